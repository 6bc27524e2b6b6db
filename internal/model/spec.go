package model

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Group is a named, ordered list of regressor columns. Specifications hold
// groups by reference, never by copy.
type Group struct {
	Name    string   `validate:"required"`
	Columns []string `validate:"required,min=1"`
}

// Registry holds the shared group definitions by name.
type Registry map[string]*Group

// Group returns a group by name.
func (r Registry) Group(name string) (*Group, error) {
	g, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("regressor group %q not defined", name)
	}
	return g, nil
}

// Add registers a group, replacing any previous definition of the name.
func (r Registry) Add(g *Group) {
	r[g.Name] = g
}

// Spec is one model specification: outcome, regressors, absorbed fixed
// effects, cluster key and optional instrument set. A spec is immutable
// once built; only the group definitions it references are shared state.
type Spec struct {
	Name  string `validate:"required"`
	Label string

	Outcome string `validate:"required"`

	// Groups are exogenous regressor groups, by reference.
	Groups []*Group
	// Extra lists exogenous regressors outside any group.
	Extra []string

	// Endog and Instruments are set only on IV specifications. Multiple
	// endogenous regressors and multiple instruments are supported.
	Endog       []string
	Instruments []string

	// FixedEffects lists the absorbed levels. Each entry is one fixed
	// effect, given as the categorical columns whose interaction defines
	// its levels.
	FixedEffects [][]string `validate:"required,min=1"`

	// Cluster is the categorical interaction defining the cluster key for
	// robust variance estimation. Empty means classical standard errors.
	Cluster []string

	// Display selects and orders the regressors shown in the exported
	// table. Empty means all regressors in estimation order.
	Display []string

	// Constraints are linear-restriction strings tested after estimation
	// (e.g. "nonhubairlineconcorigin = smallhubairlineconcorigin").
	// The constraint set is configuration; nothing is inferred.
	Constraints []string
}

// IsIV reports whether the specification uses the two-stage estimator.
// Presence of a non-empty instrument set is the deciding signal.
func (s *Spec) IsIV() bool {
	return len(s.Instruments) > 0
}

// Exogenous returns the exogenous regressor columns in estimation order:
// extra columns first, then each group's members in group order.
func (s *Spec) Exogenous() []string {
	out := make([]string, 0, len(s.Extra))
	out = append(out, s.Extra...)
	for _, g := range s.Groups {
		out = append(out, g.Columns...)
	}
	return out
}

// Regressors returns all regressors in estimation order: endogenous first,
// then exogenous.
func (s *Spec) Regressors() []string {
	out := make([]string, 0, len(s.Endog))
	out = append(out, s.Endog...)
	out = append(out, s.Exogenous()...)
	return out
}

// DisplayList returns the display selection, defaulting to all regressors.
func (s *Spec) DisplayList() []string {
	if len(s.Display) > 0 {
		return s.Display
	}
	return s.Regressors()
}

// Validate checks structural validity of the specification.
func (s *Spec) Validate() error {
	v := validator.New()
	if err := v.Struct(s); err != nil {
		return fmt.Errorf("spec %s: %w", s.Name, err)
	}
	if len(s.Endog) > 0 && len(s.Instruments) == 0 {
		return fmt.Errorf("spec %s: endogenous regressors without instruments", s.Name)
	}
	if len(s.Instruments) > 0 && len(s.Endog) == 0 {
		return fmt.Errorf("spec %s: instruments without endogenous regressors", s.Name)
	}
	seen := make(map[string]bool)
	for _, name := range s.Regressors() {
		if seen[name] {
			return fmt.Errorf("spec %s: regressor %s appears twice", s.Name, name)
		}
		seen[name] = true
	}
	return nil
}
