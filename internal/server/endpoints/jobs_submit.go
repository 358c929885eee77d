package endpoints

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/parksorry96/mathhub/internal/api"
	"github.com/parksorry96/mathhub/internal/jobs"
	"github.com/parksorry96/mathhub/internal/svcctx"
)

// SubmitJobEndpoint handles POST /api/jobs/{id}/submit.
type SubmitJobEndpoint struct{}

func (e *SubmitJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/jobs/{id}/submit", e.handler
}

func (e *SubmitJobEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Submit job to OCR provider
//	@Description	Presign the source document and hand it to the configured OCR provider
//	@Tags			jobs
//	@Produce		json
//	@Param			id	path		string	true	"Job ID"
//	@Success		200	{object}	jobs.Record
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/jobs/{id}/submit [post]
func (e *SubmitJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	jm := svcctx.JobManagerFrom(r.Context())
	if jm == nil {
		writeError(w, http.StatusServiceUnavailable, "job manager not initialized")
		return
	}
	ocrClient := svcctx.OCRClientFrom(r.Context())
	if ocrClient == nil {
		writeError(w, http.StatusServiceUnavailable, "ocr provider not configured")
		return
	}

	// Storage may be nil; Submit only needs it for storage-key sources.
	store := svcctx.StorageFrom(r.Context())

	var presigner jobs.Presigner
	if store != nil {
		presigner = store
	}

	job, err := jm.Submit(r.Context(), id, ocrClient, presigner)
	if err != nil {
		switch {
		case errors.Is(err, jobs.ErrNotFound):
			writeError(w, http.StatusNotFound, "job not found")
		case errors.Is(err, jobs.ErrAlreadySubmitted):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, jobs.ErrInvalidTransition):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, jobs.ErrUnsupportedSource):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, job)
}

func (e *SubmitJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <id>",
		Short: "Submit a job to the OCR provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp jobs.Record
			if err := client.Post(cmd.Context(), "/api/jobs/"+args[0]+"/submit", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
