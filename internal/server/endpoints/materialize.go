package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/parksorry96/mathhub/internal/api"
	"github.com/parksorry96/mathhub/internal/jobs"
	"github.com/parksorry96/mathhub/internal/problems"
	"github.com/parksorry96/mathhub/internal/svcctx"
)

// MaterializeJobRequest tunes materialization of classified candidates.
type MaterializeJobRequest struct {
	MinConfidence    int    `json:"min_confidence,omitempty"`
	MinAxisArtifacts int    `json:"min_axis_artifacts,omitempty"`
	PDFPath          string `json:"pdf_path,omitempty"`
}

// MaterializeJobEndpoint handles POST /api/jobs/{id}/materialize.
type MaterializeJobEndpoint struct{}

func (e *MaterializeJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/jobs/{id}/materialize", e.handler
}

func (e *MaterializeJobEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Materialize classified candidates into problems
//	@Description	Upsert accepted candidates as problem rows, map curriculum units, and extract visual assets
//	@Tags			jobs
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Job ID"
//	@Param			request	body		MaterializeJobRequest	false	"Materialization options"
//	@Success		200		{object}	problems.Summary
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/jobs/{id}/materialize [post]
func (e *MaterializeJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	mat := svcctx.MaterializerFrom(r.Context())
	if mat == nil {
		writeError(w, http.StatusServiceUnavailable, "materializer not initialized")
		return
	}

	var req MaterializeJobRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	if req.PDFPath == "" {
		if h := svcctx.HomeFrom(r.Context()); h != nil {
			if p := h.DocumentPath(id); fileExists(p) {
				req.PDFPath = p
			}
		}
	}

	summary, err := mat.Materialize(r.Context(), id, problems.MaterializeOptions{
		MinConfidence:    req.MinConfidence,
		MinAxisArtifacts: req.MinAxisArtifacts,
		PDFPath:          req.PDFPath,
	})
	if err != nil {
		switch {
		case errors.Is(err, jobs.ErrNotFound):
			writeError(w, http.StatusNotFound, "job not found")
		case errors.Is(err, jobs.ErrInvalidTransition):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, problems.ErrClassifyIncomplete):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, problems.ErrNoPages):
			writeError(w, http.StatusConflict, "job has no synced pages")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (e *MaterializeJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		minConfidence int
		pdfPath       string
	)

	cmd := &cobra.Command{
		Use:   "materialize <id>",
		Short: "Write classified candidates into the problem bank",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			req := MaterializeJobRequest{MinConfidence: minConfidence, PDFPath: pdfPath}
			var resp problems.Summary
			if err := client.Post(cmd.Context(), "/api/jobs/"+args[0]+"/materialize", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}

	cmd.Flags().IntVar(&minConfidence, "min-confidence", 0, "Confidence threshold (default from server config)")
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "Local PDF path for asset extraction")
	return cmd
}
