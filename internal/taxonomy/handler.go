package taxonomy

import (
	"net/http"

	"github.com/wibowo/expense-report/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
}

func NewHandler() *Handler {
	return &Handler{BaseHandler: transport.NewBaseHandler(nil)}
}

type optionResponse struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type taxonomyResponse struct {
	MasterGroups []optionResponse            `json:"master_groups"`
	Subgroups    map[string][]optionResponse `json:"subgroups"`
	Currencies   []string                    `json:"currencies"`
	Statuses     []optionResponse            `json:"statuses"`
}

// GetTaxonomy serves the category, currency and status tables so clients do
// not have to hardcode them.
func (h *Handler) GetTaxonomy(w http.ResponseWriter, r *http.Request) {
	resp := taxonomyResponse{
		Currencies: Currencies(),
		Subgroups:  make(map[string][]optionResponse),
	}
	for _, g := range MasterGroups() {
		resp.MasterGroups = append(resp.MasterGroups, optionResponse{Value: g, Label: GroupLabel(g)})
		for _, s := range SubgroupsFor(g) {
			resp.Subgroups[g] = append(resp.Subgroups[g], optionResponse{Value: s, Label: SubgroupLabel(s)})
		}
	}
	for _, s := range Statuses() {
		resp.Statuses = append(resp.Statuses, optionResponse{Value: s, Label: StatusLabel(s)})
	}

	h.WriteJSON(w, http.StatusOK, resp)
}
