package endpoints

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/parksorry96/mathhub/internal/api"
	"github.com/parksorry96/mathhub/internal/jobs"
	"github.com/parksorry96/mathhub/internal/svcctx"
)

// CancelJobEndpoint handles POST /api/jobs/{id}/cancel.
type CancelJobEndpoint struct{}

func (e *CancelJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/jobs/{id}/cancel", e.handler
}

func (e *CancelJobEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Cancel job
//	@Description	Cancel a job that has not yet reached a terminal status
//	@Tags			jobs
//	@Produce		json
//	@Param			id	path		string	true	"Job ID"
//	@Success		200	{object}	jobs.Record
//	@Failure		404	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/jobs/{id}/cancel [post]
func (e *CancelJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	jm := svcctx.JobManagerFrom(r.Context())
	if jm == nil {
		writeError(w, http.StatusServiceUnavailable, "job manager not initialized")
		return
	}

	if err := jm.Cancel(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, jobs.ErrNotFound):
			writeError(w, http.StatusNotFound, "job not found")
		case errors.Is(err, jobs.ErrInvalidTransition):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	job, err := jm.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (e *CancelJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp jobs.Record
			if err := client.Post(cmd.Context(), "/api/jobs/"+args[0]+"/cancel", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
