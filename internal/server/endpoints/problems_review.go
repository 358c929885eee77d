package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/parksorry96/mathhub/internal/api"
	"github.com/parksorry96/mathhub/internal/problems"
	"github.com/parksorry96/mathhub/internal/svcctx"
)

// ReviewProblemRequest records a human review verdict.
type ReviewProblemRequest struct {
	Action string `json:"action"`
	Note   string `json:"note,omitempty"`
}

// ReviewProblemEndpoint handles PATCH /api/problems/{id}/review.
type ReviewProblemEndpoint struct{}

func (e *ReviewProblemEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PATCH", "/api/problems/{id}/review", e.handler
}

func (e *ReviewProblemEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Review problem
//	@Description	Approve or reject a problem; approval marks it verified
//	@Tags			problems
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Problem ID"
//	@Param			request	body		ReviewProblemRequest	true	"Review verdict"
//	@Success		200		{object}	problems.Problem
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/problems/{id}/review [patch]
func (e *ReviewProblemEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	repo := svcctx.ProblemsFrom(r.Context())
	if repo == nil {
		writeError(w, http.StatusServiceUnavailable, "problem repository not initialized")
		return
	}

	var req ReviewProblemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	prob, err := repo.Review(r.Context(), id, req.Action, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, problems.ErrNotFound):
			writeError(w, http.StatusNotFound, "problem not found")
		case errors.Is(err, problems.ErrInvalidReview):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, prob)
}

func (e *ReviewProblemEndpoint) Command(getServerURL func() string) *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:       "review <id> <approve|reject>",
		Short:     "Approve or reject a problem",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"approve", "reject"},
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			req := ReviewProblemRequest{Action: args[1], Note: note}
			var resp problems.Problem
			if err := client.Patch(cmd.Context(), "/api/problems/"+args[0]+"/review", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "Review note")
	return cmd
}
