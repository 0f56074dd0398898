package api

import (
	"net/http"

	"github.com/ctxthelp/ctxt-api/internal/core"
)

type tierView struct {
	Tier         core.Tier `json:"tier"`
	Name         string    `json:"name"`
	DailyLimit   *int      `json:"daily_limit"`
	Features     []string  `json:"features"`
	PriceMonthly int       `json:"price_monthly"`
}

// listTiers publishes the tier catalog, cheapest first.
func (s *Server) listTiers(w http.ResponseWriter, _ *http.Request) {
	defs := s.deps.Policy.Definitions()
	out := make([]tierView, 0, len(defs))
	for _, d := range defs {
		out = append(out, tierView{
			Tier:         d.Tier,
			Name:         d.Name,
			DailyLimit:   d.DailyLimit,
			Features:     d.Features,
			PriceMonthly: d.PriceMonthly,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tiers": out})
}
