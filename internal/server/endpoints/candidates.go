package endpoints

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/parksorry96/mathhub/internal/api"
	"github.com/parksorry96/mathhub/internal/assets"
	"github.com/parksorry96/mathhub/internal/jobs"
	"github.com/parksorry96/mathhub/internal/problems"
	"github.com/parksorry96/mathhub/internal/segment"
	"github.com/parksorry96/mathhub/internal/svcctx"
)

// CandidateView is one segmented problem candidate as returned by the API.
type CandidateView struct {
	Ordinal    int           `json:"ordinal"`
	QuestionNo int           `json:"question_no,omitempty"`
	Strategy   string        `json:"strategy"`
	Text       string        `json:"text"`
	HasVisual  bool          `json:"has_visual"`
	BBox       *segment.BBox `json:"bbox,omitempty"`
}

// PageCandidatesView groups candidates under their source page.
type PageCandidatesView struct {
	PageNo     int             `json:"page_no"`
	Candidates []CandidateView `json:"candidates"`
}

// ListCandidatesResponse is the segmentation preview for a job.
type ListCandidatesResponse struct {
	JobID string               `json:"job_id"`
	Total int                  `json:"total"`
	Pages []PageCandidatesView `json:"pages"`
}

// ListCandidatesEndpoint handles GET /api/jobs/{id}/candidates.
type ListCandidatesEndpoint struct{}

func (e *ListCandidatesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/jobs/{id}/candidates", e.handler
}

func (e *ListCandidatesEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Preview problem candidates
//	@Description	Segment the job's recognized pages into problem candidates without writing anything
//	@Tags			jobs
//	@Produce		json
//	@Param			id	path		string	true	"Job ID"
//	@Success		200	{object}	ListCandidatesResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/jobs/{id}/candidates [get]
func (e *ListCandidatesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	jm := svcctx.JobManagerFrom(r.Context())
	if jm == nil {
		writeError(w, http.StatusServiceUnavailable, "job manager not initialized")
		return
	}

	pages, err := problems.CandidatesForJob(r.Context(), jm, id)
	if err != nil {
		switch {
		case errors.Is(err, jobs.ErrNotFound):
			writeError(w, http.StatusNotFound, "job not found")
		case errors.Is(err, problems.ErrNoPages):
			writeError(w, http.StatusConflict, "job has no synced pages")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	resp := ListCandidatesResponse{JobID: id}
	for _, pc := range pages {
		view := PageCandidatesView{PageNo: pc.Page.PageNo}
		for _, cand := range pc.Candidates {
			cv := CandidateView{
				Ordinal:    cand.Ordinal,
				QuestionNo: cand.QuestionNo,
				Strategy:   cand.Strategy,
				Text:       cand.Text,
				HasVisual:  len(assets.CollectHints(pc.Page, cand)) > 0,
				BBox:       cand.BBox,
			}
			view.Candidates = append(view.Candidates, cv)
		}
		resp.Total += len(view.Candidates)
		resp.Pages = append(resp.Pages, view)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *ListCandidatesEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "candidates <id>",
		Short: "Preview segmented problem candidates for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListCandidatesResponse
			if err := client.Get(cmd.Context(), "/api/jobs/"+args[0]+"/candidates", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
