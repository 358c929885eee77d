package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/parksorry96/mathhub/internal/api"
	"github.com/parksorry96/mathhub/internal/jobs"
	"github.com/parksorry96/mathhub/internal/problems"
	"github.com/parksorry96/mathhub/internal/svcctx"
)

// ClassifyJobRequest tunes one classification step.
type ClassifyJobRequest struct {
	BatchSize int `json:"batch_size,omitempty"`
}

// ClassifyJobEndpoint handles POST /api/jobs/{id}/classify.
type ClassifyJobEndpoint struct{}

func (e *ClassifyJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/jobs/{id}/classify", e.handler
}

func (e *ClassifyJobEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Classify problem candidates
//	@Description	Run one classification batch over the job's unclassified candidates; call repeatedly until done
//	@Tags			jobs
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Job ID"
//	@Param			request	body		ClassifyJobRequest	false	"Batch options"
//	@Success		200		{object}	problems.StepResult
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/jobs/{id}/classify [post]
func (e *ClassifyJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	jm := svcctx.JobManagerFrom(r.Context())
	if jm == nil {
		writeError(w, http.StatusServiceUnavailable, "job manager not initialized")
		return
	}
	cls := svcctx.ClassifierFrom(r.Context())
	if cls == nil {
		writeError(w, http.StatusServiceUnavailable, "classifier not configured")
		return
	}

	var req ClassifyJobRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	result, err := problems.ClassifyStep(r.Context(), jm, id, cls, req.BatchSize, svcctx.LoggerFrom(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, jobs.ErrNotFound):
			writeError(w, http.StatusNotFound, "job not found")
		case errors.Is(err, jobs.ErrInvalidTransition):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, problems.ErrNoPages):
			writeError(w, http.StatusConflict, "job has no synced pages")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (e *ClassifyJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		batch int
		all   bool
	)

	cmd := &cobra.Command{
		Use:   "classify <id>",
		Short: "Classify a job's problem candidates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/api/jobs/" + args[0] + "/classify"
			req := ClassifyJobRequest{BatchSize: batch}
			for {
				var resp problems.StepResult
				if err := client.Post(cmd.Context(), path, req, &resp); err != nil {
					return err
				}
				if resp.Done || !all {
					return api.Output(resp)
				}
			}
		},
	}

	cmd.Flags().IntVar(&batch, "batch", 0, "Candidates per batch (default 10)")
	cmd.Flags().BoolVar(&all, "all", false, "Keep running batches until every candidate is classified")
	return cmd
}
