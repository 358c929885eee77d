package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/parksorry96/mathhub/internal/api"
	"github.com/parksorry96/mathhub/internal/jobs"
	"github.com/parksorry96/mathhub/internal/svcctx"
)

// SyncJobRequest tunes a sync call. With Wait set the handler polls the
// provider until the job reaches a terminal status.
type SyncJobRequest struct {
	Wait     bool `json:"wait,omitempty"`
	Attempts int  `json:"attempts,omitempty"`
	Interval int  `json:"interval_seconds,omitempty"`
}

// SyncJobEndpoint handles POST /api/jobs/{id}/sync.
type SyncJobEndpoint struct{}

func (e *SyncJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/jobs/{id}/sync", e.handler
}

func (e *SyncJobEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Sync job from OCR provider
//	@Description	Pull provider status and recognized pages into the local job record
//	@Tags			jobs
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Job ID"
//	@Param			request	body		SyncJobRequest	false	"Sync options"
//	@Success		200		{object}	jobs.Record
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/jobs/{id}/sync [post]
func (e *SyncJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
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

	var req SyncJobRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	var (
		job *jobs.Record
		err error
	)
	if req.Wait {
		opts := jobs.SyncOptions{Attempts: req.Attempts}
		if req.Interval > 0 {
			opts.Interval = time.Duration(req.Interval) * time.Second
		}
		job, err = jm.SyncUntilDone(r.Context(), id, ocrClient, opts)
	} else {
		job, err = jm.Sync(r.Context(), id, ocrClient)
	}
	if err != nil {
		switch {
		case errors.Is(err, jobs.ErrNotFound):
			writeError(w, http.StatusNotFound, "job not found")
		case errors.Is(err, jobs.ErrNotSubmitted):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, jobs.ErrSyncTimeout):
			writeError(w, http.StatusGatewayTimeout, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, job)
}

func (e *SyncJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		wait     bool
		attempts int
		interval int
	)

	cmd := &cobra.Command{
		Use:   "sync <id>",
		Short: "Sync a job's status and pages from the provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			req := SyncJobRequest{Wait: wait, Attempts: attempts, Interval: interval}
			var resp jobs.Record
			if err := client.Post(cmd.Context(), "/api/jobs/"+args[0]+"/sync", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until the job reaches a terminal status")
	cmd.Flags().IntVar(&attempts, "attempts", 0, "Max polls when waiting")
	cmd.Flags().IntVar(&interval, "interval", 0, "Seconds between polls when waiting")
	return cmd
}
