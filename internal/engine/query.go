package engine

import (
	"context"
)

// AccessibleProperties returns the property IDs the staff member may access
// right now, most recently granted first. The call evaluates lazily: grant
// transitions implied by the current time are persisted as a side effect.
func (e *Engine) AccessibleProperties(ctx context.Context, staffID string) ([]string, error) {
	access, err := e.ComputeEffectiveAccess(ctx, staffID, e.now())
	if err != nil {
		return nil, err
	}
	properties := make([]string, 0, len(access))
	for _, a := range access {
		properties = append(properties, a.PropertyID)
	}
	return properties, nil
}

// AccessibleClients returns the client IDs reachable through the staff
// member's current access, ordered by most recent grant.
func (e *Engine) AccessibleClients(ctx context.Context, staffID string) ([]string, error) {
	access, err := e.ComputeEffectiveAccess(ctx, staffID, e.now())
	if err != nil {
		return nil, err
	}
	var clients []string
	seen := map[string]bool{}
	for _, a := range access {
		for _, c := range a.ClientIDs {
			if !seen[c] {
				seen[c] = true
				clients = append(clients, c)
			}
		}
	}
	return clients, nil
}
