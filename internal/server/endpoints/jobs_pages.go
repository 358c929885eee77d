package endpoints

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/parksorry96/mathhub/internal/api"
	"github.com/parksorry96/mathhub/internal/jobs"
	"github.com/parksorry96/mathhub/internal/svcctx"
)

// ListJobPagesResponse carries the synced pages of a job in page order.
type ListJobPagesResponse struct {
	JobID string             `json:"job_id"`
	Pages []*jobs.PageRecord `json:"pages"`
}

// ListJobPagesEndpoint handles GET /api/jobs/{id}/pages.
type ListJobPagesEndpoint struct{}

func (e *ListJobPagesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/jobs/{id}/pages", e.handler
}

func (e *ListJobPagesEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List job pages
//	@Description	List the recognized pages synced for a job
//	@Tags			jobs
//	@Produce		json
//	@Param			id	path		string	true	"Job ID"
//	@Success		200	{object}	ListJobPagesResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/jobs/{id}/pages [get]
func (e *ListJobPagesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	jm := svcctx.JobManagerFrom(r.Context())
	if jm == nil {
		writeError(w, http.StatusServiceUnavailable, "job manager not initialized")
		return
	}

	if _, err := jm.Get(r.Context(), id); err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	pages, err := jm.ListPages(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ListJobPagesResponse{JobID: id, Pages: pages})
}

func (e *ListJobPagesEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "pages <id>",
		Short: "List the recognized pages of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListJobPagesResponse
			if err := client.Get(cmd.Context(), "/api/jobs/"+args[0]+"/pages", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
