package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/parksorry96/mathhub/internal/api"
	"github.com/parksorry96/mathhub/internal/jobs"
	"github.com/parksorry96/mathhub/internal/svcctx"
)

// CreateJobRequest is the request body for creating an OCR job.
type CreateJobRequest struct {
	StorageKey       string `json:"storage_key"`
	OriginalFilename string `json:"original_filename"`
	MimeType         string `json:"mime_type"`
	FileSizeBytes    int64  `json:"file_size_bytes"`
	SHA256           string `json:"sha256"`
	Provider         string `json:"provider,omitempty"`
}

// CreateJobEndpoint handles POST /api/jobs.
type CreateJobEndpoint struct{}

func (e *CreateJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/jobs", e.handler
}

func (e *CreateJobEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Create an OCR job
//	@Description	Register an uploaded document and queue an OCR job for it. Documents are deduplicated by sha256.
//	@Tags			jobs
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CreateJobRequest	true	"Job creation request"
//	@Success		201		{object}	jobs.Record
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/jobs [post]
func (e *CreateJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	jm := svcctx.JobManagerFrom(r.Context())
	if jm == nil {
		writeError(w, http.StatusServiceUnavailable, "job manager not initialized")
		return
	}

	input := jobs.DocumentInput{
		StorageKey:       req.StorageKey,
		OriginalFilename: req.OriginalFilename,
		MimeType:         req.MimeType,
		FileSizeBytes:    req.FileSizeBytes,
		SHA256:           req.SHA256,
	}

	rec, err := jm.CreateJob(r.Context(), input, req.Provider)
	if err != nil {
		if errors.Is(err, jobs.ErrInvalidDocument) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

func (e *CreateJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req CreateJobRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new OCR job for an uploaded document",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.StorageKey == "" || req.SHA256 == "" {
				return fmt.Errorf("--storage-key and --sha256 are required")
			}
			client := api.NewClient(getServerURL())
			var resp jobs.Record
			if err := client.Post(cmd.Context(), "/api/jobs", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&req.StorageKey, "storage-key", "", "Storage key of the uploaded document (required)")
	cmd.Flags().StringVar(&req.OriginalFilename, "filename", "", "Original filename")
	cmd.Flags().StringVar(&req.MimeType, "mime-type", "application/pdf", "Document MIME type")
	cmd.Flags().Int64Var(&req.FileSizeBytes, "size", 0, "Document size in bytes")
	cmd.Flags().StringVar(&req.SHA256, "sha256", "", "Document sha256 hex digest (required)")
	cmd.Flags().StringVar(&req.Provider, "provider", "", "OCR provider (default from config)")
	return cmd
}
