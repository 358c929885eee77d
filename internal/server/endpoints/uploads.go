package endpoints

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/parksorry96/mathhub/internal/api"
	"github.com/parksorry96/mathhub/internal/storage"
	"github.com/parksorry96/mathhub/internal/svcctx"
)

const (
	defaultUploadPrefix = "ocr-uploads"
	uploadExpires       = 15 * time.Minute
)

// PresignUploadRequest asks for a direct-to-storage upload slot.
type PresignUploadRequest struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
}

// PresignUploadResponse carries the signed PUT URL and the storage key to
// register the document under once the upload completes.
type PresignUploadResponse struct {
	UploadURL  string `json:"upload_url"`
	StorageKey string `json:"storage_key"`
	ObjectKey  string `json:"object_key"`
	ExpiresIn  int    `json:"expires_in_seconds"`
}

// PresignUploadEndpoint handles POST /api/uploads/presign.
type PresignUploadEndpoint struct{}

func (e *PresignUploadEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/uploads/presign", e.handler
}

func (e *PresignUploadEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Presign PDF upload
//	@Description	Issue a presigned PUT URL for uploading a source PDF directly to object storage
//	@Tags			uploads
//	@Accept			json
//	@Produce		json
//	@Param			request	body		PresignUploadRequest	true	"Upload descriptor"
//	@Success		200		{object}	PresignUploadResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/uploads/presign [post]
func (e *PresignUploadEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.StorageFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "storage not configured")
		return
	}

	var req PresignUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Filename == "" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}
	if req.MimeType != "application/pdf" {
		writeError(w, http.StatusBadRequest, "only application/pdf uploads are accepted")
		return
	}

	prefix := svcctx.UploadPrefixFrom(r.Context())
	if prefix == "" {
		prefix = defaultUploadPrefix
	}

	objectKey := storage.BuildObjectKey(prefix, req.Filename, time.Now().UTC())
	uploadURL, err := store.PresignPut(objectKey, uploadExpires)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, PresignUploadResponse{
		UploadURL:  uploadURL,
		StorageKey: store.StorageKey(objectKey),
		ObjectKey:  objectKey,
		ExpiresIn:  int(uploadExpires.Seconds()),
	})
}

func (e *PresignUploadEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "presign <filename>",
		Short: "Presign a PDF upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			req := PresignUploadRequest{Filename: args[0], MimeType: "application/pdf"}
			var resp PresignUploadResponse
			if err := client.Post(cmd.Context(), "/api/uploads/presign", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
