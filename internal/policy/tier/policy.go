// Package tier maps subscription tiers to daily quotas and feature sets.
package tier

import (
	"sort"

	"github.com/ctxthelp/ctxt-api/internal/config"
	"github.com/ctxthelp/ctxt-api/internal/core"
)

// Definition is the resolved shape of one tier. A nil DailyLimit means
// unlimited.
type Definition struct {
	Tier         core.Tier
	Name         string
	DailyLimit   *int
	Features     []string
	PriceMonthly int
}

// Policy is a pure lookup from tier name to quota and features. It has no
// side effects and no failure modes: unknown tiers resolve to the free
// definition. That fallback is the contract, not a defect.
type Policy struct {
	defs map[core.Tier]Definition
	free Definition
}

// NewPolicy builds a Policy from validated configuration. The free tier
// definition must be present (config validation guarantees it).
func NewPolicy(cfgs map[string]config.TierDefinition) *Policy {
	defs := make(map[core.Tier]Definition, len(cfgs))
	for name, tc := range cfgs {
		defs[core.Tier(name)] = resolve(core.Tier(name), tc)
	}
	return &Policy{
		defs: defs,
		free: defs[core.TierFree],
	}
}

func resolve(t core.Tier, tc config.TierDefinition) Definition {
	d := Definition{
		Tier:         t,
		Name:         tc.Name,
		Features:     append([]string(nil), tc.Features...),
		PriceMonthly: tc.PriceMonthly,
	}
	if tc.DailyLimit > 0 {
		limit := tc.DailyLimit
		d.DailyLimit = &limit
	}
	return d
}

// Lookup returns the definition for a tier, falling back to free for
// unknown names.
func (p *Policy) Lookup(t core.Tier) Definition {
	if d, ok := p.defs[t]; ok {
		return d
	}
	return p.free
}

// DailyLimit returns the daily conversion quota for a tier; nil means
// unlimited.
func (p *Policy) DailyLimit(t core.Tier) *int {
	return p.Lookup(t).DailyLimit
}

// HasFeature reports whether a tier includes the named feature.
func (p *Policy) HasFeature(t core.Tier, feature string) bool {
	for _, f := range p.Lookup(t).Features {
		if f == feature {
			return true
		}
	}
	return false
}

// Definitions lists all configured tiers, cheapest first, for the public
// tier catalog.
func (p *Policy) Definitions() []Definition {
	out := make([]Definition, 0, len(p.defs))
	for _, d := range p.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PriceMonthly != out[j].PriceMonthly {
			return out[i].PriceMonthly < out[j].PriceMonthly
		}
		return out[i].Tier < out[j].Tier
	})
	return out
}
