package endpoints

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/parksorry96/mathhub/internal/api"
	"github.com/parksorry96/mathhub/internal/problems"
	"github.com/parksorry96/mathhub/internal/svcctx"
)

// GetProblemResponse is a problem with its stored visual assets.
type GetProblemResponse struct {
	*problems.Problem

	Assets []*problems.StoredAsset `json:"assets"`
}

// GetProblemEndpoint handles GET /api/problems/{id}.
type GetProblemEndpoint struct{}

func (e *GetProblemEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/problems/{id}", e.handler
}

func (e *GetProblemEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get problem by ID
//	@Description	Get a problem with its stored visual assets
//	@Tags			problems
//	@Produce		json
//	@Param			id	path		string	true	"Problem ID"
//	@Success		200	{object}	GetProblemResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/problems/{id} [get]
func (e *GetProblemEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	repo := svcctx.ProblemsFrom(r.Context())
	if repo == nil {
		writeError(w, http.StatusServiceUnavailable, "problem repository not initialized")
		return
	}

	prob, err := repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, problems.ErrNotFound) {
			writeError(w, http.StatusNotFound, "problem not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	stored, err := repo.ListAssets(r.Context(), prob.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, GetProblemResponse{Problem: prob, Assets: stored})
}

func (e *GetProblemEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a problem by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp GetProblemResponse
			if err := client.Get(cmd.Context(), "/api/problems/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
