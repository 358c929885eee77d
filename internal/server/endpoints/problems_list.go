package endpoints

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/parksorry96/mathhub/internal/api"
	"github.com/parksorry96/mathhub/internal/problems"
	"github.com/parksorry96/mathhub/internal/svcctx"
)

// ListProblemsResponse carries a page of problems plus review status totals
// for the same filter scope.
type ListProblemsResponse struct {
	Problems []*problems.Problem `json:"problems"`
	Counts   map[string]int      `json:"counts"`
}

// ListProblemsEndpoint handles GET /api/problems.
type ListProblemsEndpoint struct{}

func (e *ListProblemsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/problems", e.handler
}

func (e *ListProblemsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List problems
//	@Description	List materialized problems with review status, source job, and text filters
//	@Tags			problems
//	@Produce		json
//	@Param			job_id			query		string	false	"Filter by source job"
//	@Param			review_status	query		string	false	"Filter by review status (pending, approved, rejected)"
//	@Param			ai_reviewed		query		bool	false	"Filter by AI classification flag"
//	@Param			q				query		string	false	"Substring match on problem content"
//	@Param			limit			query		int		false	"Max results"
//	@Param			offset			query		int		false	"Results to skip"
//	@Success		200				{object}	ListProblemsResponse
//	@Failure		500				{object}	ErrorResponse
//	@Failure		503				{object}	ErrorResponse
//	@Router			/api/problems [get]
func (e *ListProblemsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	repo := svcctx.ProblemsFrom(r.Context())
	if repo == nil {
		writeError(w, http.StatusServiceUnavailable, "problem repository not initialized")
		return
	}

	q := r.URL.Query()
	filter := problems.ListFilter{
		JobID:        q.Get("job_id"),
		ReviewStatus: q.Get("review_status"),
		Query:        q.Get("q"),
	}
	if v := q.Get("ai_reviewed"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filter.AIReviewed = &b
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	list, counts, err := repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ListProblemsResponse{Problems: list, Counts: counts})
}

func (e *ListProblemsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		jobID        string
		reviewStatus string
		aiReviewed   string
		query        string
		limit        int
		offset       int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List problems in the bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())

			params := url.Values{}
			params.Set("limit", strconv.Itoa(limit))
			params.Set("offset", strconv.Itoa(offset))
			if jobID != "" {
				params.Set("job_id", jobID)
			}
			if reviewStatus != "" {
				params.Set("review_status", reviewStatus)
			}
			if aiReviewed != "" {
				params.Set("ai_reviewed", aiReviewed)
			}
			if query != "" {
				params.Set("q", query)
			}

			var resp ListProblemsResponse
			if err := client.Get(cmd.Context(), "/api/problems?"+params.Encode(), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}

	cmd.Flags().StringVar(&jobID, "job", "", "Filter by source job ID")
	cmd.Flags().StringVar(&reviewStatus, "review-status", "", "Filter by review status")
	cmd.Flags().StringVar(&aiReviewed, "ai-reviewed", "", "Filter by AI classification flag (true/false)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Substring match on problem content")
	cmd.Flags().IntVar(&limit, "limit", 50, "Max results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Results to skip")
	return cmd
}
