package policy

import (
	"github.com/careorg/rosteraccess/pkg/models"
)

// Classification buckets a staff member for an evaluation pass.
type Classification int

const (
	// Gated staff are subject to roster-driven access decisions.
	Gated Classification = iota
	// Excluded staff bypass the engine and receive universal access.
	Excluded
	// Denied staff never receive roster access (finance-only roles and,
	// under strict mode, anything not allow-listed).
	Denied
)

func (c Classification) String() string {
	switch c {
	case Excluded:
		return "excluded"
	case Denied:
		return "denied"
	default:
		return "gated"
	}
}

// Resolver maps roles to baseline classifications. The table is static
// configuration: it can be replaced wholesale via Reload but individual
// entries are never mutated in place.
type Resolver struct {
	baselines map[string]Classification
}

// DefaultBaselines is the built-in role table: roles that handle finances
// or administration only and never need roster access.
func DefaultBaselines() map[string]Classification {
	return map[string]Classification{
		"Finance":      Denied,
		"Payroll":      Denied,
		"Receptionist": Denied,
	}
}

// NewResolver creates a Resolver with the given role baseline table.
// A nil table means every role starts as Gated.
func NewResolver(baselines map[string]Classification) *Resolver {
	if baselines == nil {
		baselines = map[string]Classification{}
	}
	return &Resolver{baselines: baselines}
}

// Reload swaps in a new baseline table. Callers must not invoke Reload
// concurrently with Classify; the config holder serializes reloads.
func (r *Resolver) Reload(baselines map[string]Classification) {
	next := make(map[string]Classification, len(baselines))
	for role, c := range baselines {
		next[role] = c
	}
	r.baselines = next
}

// Classify buckets a role under the given configuration. Exclusion wins over
// everything; a baseline deny wins over strict mode; strict mode turns any
// role missing from the allow list into Denied.
func (r *Resolver) Classify(role string, cfg models.RBACConfig) Classification {
	if cfg.RoleExcluded(role) {
		return Excluded
	}
	if base, ok := r.baselines[role]; ok && base == Denied {
		return Denied
	}
	if cfg.StrictMode && !cfg.RoleAllowed(role) {
		return Denied
	}
	return Gated
}
