package model

import (
	"fmt"
)

// Variant names, in run order.
const (
	VariantBasic      = "basic"
	VariantDecomposed = "decomposed"
	VariantMisspec    = "misspec"
	VariantIV         = "iv"
)

// Variants returns all analysis variant names in canonical run order.
func Variants() []string {
	return []string{VariantBasic, VariantDecomposed, VariantMisspec, VariantIV}
}

// Fixed-effect and cluster level definitions shared across variants.
var (
	feTime    = []string{"year", "month", "day_of_week", "scheduled_hour"}
	feCarrier = []string{"carrier"}
	feOrigin  = []string{"origin_airport_id"}
	feDest    = []string{"dest_airport_id"}
	feRoute   = []string{"route"}

	clusterYMCarrier = []string{"year", "month", "carrier"}
)

// Hub-decomposed concentration regressors, ordered non < small < medium <
// large to match the monotonicity constraint chains.
var (
	hubConcOrigin = []string{
		"nonhubairlineconcorigin",
		"smallhubairlineconcorigin",
		"mediumhubairlineconcorigin",
		"largehubairlineconcorigin",
	}
	hubConcDest = []string{
		"nonhubairlineconcdest",
		"smallhubairlineconcdest",
		"mediumhubairlineconcdest",
		"largehubairlineconcdest",
	}
)

// DefaultRegistry returns the shared regressor-group definitions.
func DefaultRegistry() Registry {
	r := make(Registry)
	r.Add(&Group{Name: "concentration", Columns: []string{"hhiorigin", "hhidest"}})
	r.Add(&Group{Name: "hubconc_origin", Columns: hubConcOrigin})
	r.Add(&Group{Name: "hubconc_dest", Columns: hubConcDest})
	r.Add(&Group{Name: "share", Columns: []string{"market_share_origin", "market_share_dest"}})
	r.Add(&Group{Name: "lagged", Columns: []string{"hhiorigin_lag", "hhidest_lag"}})
	r.Add(&Group{Name: "operations", Columns: []string{"distance", "seats", "load_factor", "scheduled_flights"}})
	r.Add(&Group{Name: "weather", Columns: []string{
		"temp_origin", "precip_origin", "snow_origin", "wind_origin",
		"temp_dest", "precip_dest", "snow_dest", "wind_dest",
	}})
	r.Add(&Group{Name: "census", Columns: []string{
		"population_origin", "population_dest",
		"income_origin", "income_dest",
	}})
	return r
}

// Builder assembles the model specifications for each analysis variant from
// a shared group registry.
type Builder struct {
	registry Registry
	outcome  string
}

// NewBuilder creates a builder over the given registry and outcome column.
func NewBuilder(registry Registry, outcome string) *Builder {
	return &Builder{registry: registry, outcome: outcome}
}

// Registry exposes the shared group registry.
func (b *Builder) Registry() Registry {
	return b.registry
}

// Build returns the specifications for one analysis variant, validated.
func (b *Builder) Build(variant string) ([]*Spec, error) {
	var specs []*Spec
	var err error
	switch variant {
	case VariantBasic:
		specs, err = b.basic()
	case VariantDecomposed:
		specs, err = b.decomposed()
	case VariantMisspec:
		specs, err = b.misspec()
	case VariantIV:
		specs, err = b.iv()
	default:
		return nil, fmt.Errorf("unknown analysis variant %q", variant)
	}
	if err != nil {
		return nil, err
	}
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
	}
	return specs, nil
}

// groups resolves a list of group names against the registry.
func (b *Builder) groups(names ...string) ([]*Group, error) {
	out := make([]*Group, 0, len(names))
	for _, name := range names {
		g, err := b.registry.Group(name)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// basic regresses delay on origin and destination concentration. Column (1)
// absorbs airport and carrier effects separately; column (2) absorbs the
// full route and adds weather and metro-area controls.
func (b *Builder) basic() ([]*Spec, error) {
	controls, err := b.groups("concentration", "operations")
	if err != nil {
		return nil, err
	}
	full, err := b.groups("concentration", "operations", "weather", "census")
	if err != nil {
		return nil, err
	}

	display := []string{"hhiorigin", "hhidest", "distance", "seats", "load_factor"}

	return []*Spec{
		{
			Name:         "basic_airports",
			Label:        "Airport FE",
			Outcome:      b.outcome,
			Groups:       controls,
			FixedEffects: [][]string{feTime, feCarrier, feOrigin, feDest},
			Cluster:      clusterYMCarrier,
			Display:      display,
		},
		{
			Name:         "basic_route",
			Label:        "Route FE",
			Outcome:      b.outcome,
			Groups:       full,
			FixedEffects: [][]string{feTime, feRoute},
			Cluster:      clusterYMCarrier,
			Display:      display,
		},
	}, nil
}

// decomposed splits concentration by airline hub size and tests equality of
// adjacent hub-size coefficients. The constraint chains are configuration,
// ordered non < small < medium < large; no further null is inferred.
func (b *Builder) decomposed() ([]*Spec, error) {
	groups, err := b.groups("hubconc_origin", "hubconc_dest", "operations", "weather", "census")
	if err != nil {
		return nil, err
	}

	constraints := adjacentEquality(hubConcOrigin)
	constraints = append(constraints, adjacentEquality(hubConcDest)...)

	display := append(append([]string{}, hubConcOrigin...), hubConcDest...)

	return []*Spec{
		{
			Name:         "decomposed_route",
			Label:        "Hub-size decomposition",
			Outcome:      b.outcome,
			Groups:       groups,
			FixedEffects: [][]string{feTime, feRoute},
			Cluster:      clusterYMCarrier,
			Display:      display,
			Constraints:  constraints,
		},
	}, nil
}

// misspec estimates the misspecification checks: market share in place of
// concentration, both together, and lagged concentration.
func (b *Builder) misspec() ([]*Spec, error) {
	shareOnly, err := b.groups("share", "operations", "weather", "census")
	if err != nil {
		return nil, err
	}
	both, err := b.groups("concentration", "share", "operations", "weather", "census")
	if err != nil {
		return nil, err
	}
	lagged, err := b.groups("lagged", "operations", "weather", "census")
	if err != nil {
		return nil, err
	}

	display := []string{
		"hhiorigin", "hhidest",
		"market_share_origin", "market_share_dest",
		"hhiorigin_lag", "hhidest_lag",
	}

	fe := [][]string{feTime, feRoute}
	return []*Spec{
		{
			Name:         "misspec_share",
			Label:        "Market share",
			Outcome:      b.outcome,
			Groups:       shareOnly,
			FixedEffects: fe,
			Cluster:      clusterYMCarrier,
			Display:      display,
		},
		{
			Name:         "misspec_both",
			Label:        "HHI + share",
			Outcome:      b.outcome,
			Groups:       both,
			FixedEffects: fe,
			Cluster:      clusterYMCarrier,
			Display:      display,
		},
		{
			Name:         "misspec_lagged",
			Label:        "Lagged HHI",
			Outcome:      b.outcome,
			Groups:       lagged,
			FixedEffects: fe,
			Cluster:      clusterYMCarrier,
			Display:      display,
		},
	}, nil
}

// iv instruments current concentration with its lag.
func (b *Builder) iv() ([]*Spec, error) {
	controls, err := b.groups("operations", "weather", "census")
	if err != nil {
		return nil, err
	}

	return []*Spec{
		{
			Name:         "iv_lagged",
			Label:        "IV (lagged HHI)",
			Outcome:      b.outcome,
			Groups:       controls,
			Endog:        []string{"hhiorigin", "hhidest"},
			Instruments:  []string{"hhiorigin_lag", "hhidest_lag"},
			FixedEffects: [][]string{feTime, feRoute},
			Cluster:      clusterYMCarrier,
			Display:      []string{"hhiorigin", "hhidest", "distance", "seats", "load_factor"},
		},
	}, nil
}

// adjacentEquality builds pairwise equality constraints along an ordered
// category chain.
func adjacentEquality(ordered []string) []string {
	out := make([]string, 0, len(ordered)-1)
	for i := 0; i+1 < len(ordered); i++ {
		out = append(out, fmt.Sprintf("%s = %s", ordered[i], ordered[i+1]))
	}
	return out
}
