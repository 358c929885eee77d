package endpoints

import (
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/parksorry96/mathhub/internal/api"
	"github.com/parksorry96/mathhub/internal/jobs"
	"github.com/parksorry96/mathhub/internal/svcctx"
)

// ListJobsResponse carries a page of jobs plus status totals across the
// whole collection.
type ListJobsResponse struct {
	Jobs   []*jobs.Record      `json:"jobs"`
	Counts map[jobs.Status]int `json:"counts"`
}

// ListJobsEndpoint handles GET /api/jobs.
type ListJobsEndpoint struct{}

func (e *ListJobsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/jobs", e.handler
}

func (e *ListJobsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List jobs
//	@Description	List OCR jobs with optional status and text filters
//	@Tags			jobs
//	@Produce		json
//	@Param			status	query		string	false	"Filter by status"
//	@Param			q		query		string	false	"Substring match on job id or filename"
//	@Param			limit	query		int		false	"Max results (default 100)"
//	@Param			offset	query		int		false	"Results to skip"
//	@Success		200		{object}	ListJobsResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/jobs [get]
func (e *ListJobsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	jm := svcctx.JobManagerFrom(r.Context())
	if jm == nil {
		writeError(w, http.StatusServiceUnavailable, "job manager not initialized")
		return
	}

	filter := jobs.ListFilter{
		Status: jobs.Status(r.URL.Query().Get("status")),
		Query:  r.URL.Query().Get("q"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	records, err := jm.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	counts, err := jm.StatusCounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ListJobsResponse{Jobs: records, Counts: counts})
}

func (e *ListJobsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		status string
		query  string
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/api/jobs?limit=" + strconv.Itoa(limit) + "&offset=" + strconv.Itoa(offset)
			if status != "" {
				path += "&status=" + status
			}
			if query != "" {
				path += "&q=" + query
			}
			var resp ListJobsResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Substring match on job id or filename")
	cmd.Flags().IntVar(&limit, "limit", 100, "Max results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Results to skip")
	return cmd
}
