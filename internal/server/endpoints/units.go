package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/parksorry96/mathhub/internal/api"
	"github.com/parksorry96/mathhub/internal/curriculum"
	"github.com/parksorry96/mathhub/internal/svcctx"
)

// ListUnitsResponse is the curriculum unit tree in directory order.
type ListUnitsResponse struct {
	Units []curriculum.Unit `json:"units"`
}

// ListUnitsEndpoint handles GET /api/units.
type ListUnitsEndpoint struct{}

func (e *ListUnitsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/units", e.handler
}

func (e *ListUnitsEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		List curriculum units
//	@Description	List the curriculum units problems are filed under
//	@Tags			units
//	@Produce		json
//	@Success		200	{object}	ListUnitsResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/units [get]
func (e *ListUnitsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	dir := svcctx.CurriculumFrom(r.Context())
	if dir == nil {
		writeError(w, http.StatusServiceUnavailable, "curriculum not initialized")
		return
	}
	writeJSON(w, http.StatusOK, ListUnitsResponse{Units: dir.Units()})
}

func (e *ListUnitsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "units",
		Short: "List curriculum units",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListUnitsResponse
			if err := client.Get(cmd.Context(), "/api/units", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
