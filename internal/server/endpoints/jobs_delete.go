package endpoints

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/parksorry96/mathhub/internal/api"
	"github.com/parksorry96/mathhub/internal/jobs"
	"github.com/parksorry96/mathhub/internal/svcctx"
)

// DeleteJobEndpoint handles DELETE /api/jobs/{id}.
type DeleteJobEndpoint struct{}

func (e *DeleteJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/jobs/{id}", e.handler
}

func (e *DeleteJobEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Delete job
//	@Description	Delete a job with its pages, optionally removing the source PDF from storage
//	@Tags			jobs
//	@Produce		json
//	@Param			id				path		string	true	"Job ID"
//	@Param			delete_source	query		bool	false	"Also delete the source object from storage"
//	@Success		200				{object}	map[string]string
//	@Failure		404				{object}	ErrorResponse
//	@Failure		500				{object}	ErrorResponse
//	@Failure		503				{object}	ErrorResponse
//	@Router			/api/jobs/{id} [delete]
func (e *DeleteJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	jm := svcctx.JobManagerFrom(r.Context())
	if jm == nil {
		writeError(w, http.StatusServiceUnavailable, "job manager not initialized")
		return
	}

	opts := jobs.DeleteOptions{}
	if r.URL.Query().Get("delete_source") == "true" {
		store := svcctx.StorageFrom(r.Context())
		if store == nil {
			writeError(w, http.StatusServiceUnavailable, "storage not configured")
			return
		}
		opts.DeleteSource = true
		opts.Storage = store
	}

	if err := jm.Delete(r.Context(), id, opts); err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

func (e *DeleteJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	var deleteSource bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a job and its pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/api/jobs/" + args[0]
			if deleteSource {
				path += "?delete_source=true"
			}
			if err := client.Delete(cmd.Context(), path); err != nil {
				return err
			}
			return api.Output(map[string]string{"status": "deleted", "id": args[0]})
		},
	}

	cmd.Flags().BoolVar(&deleteSource, "delete-source", false, "Also delete the source object from storage")
	return cmd
}
