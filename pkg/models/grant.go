package models

import "time"

// GrantSource distinguishes roster-derived grants from manual overrides.
type GrantSource string

const (
	SourceRoster GrantSource = "roster"
	SourceManual GrantSource = "manual"
)

// AccessGrant is an authorization record giving a staff member access to a
// property (and optionally a specific client set) for a bounded or open time
// range. Roster grants are derived by the engine and never hand-edited;
// manual grants outrank roster state and are only cleared explicitly.
// A manual grant with Deny set removes the property even when roster shifts
// would grant it.
type AccessGrant struct {
	ID         string      `json:"id"`
	StaffID    string      `json:"staff_id"`
	PropertyID string      `json:"property_id"`
	ClientIDs  []string    `json:"client_ids"`
	ValidFrom  time.Time   `json:"valid_from"`
	ValidUntil *time.Time  `json:"valid_until,omitempty"`
	Source     GrantSource `json:"source"`
	GrantedBy  string      `json:"granted_by,omitempty"`
	Deny       bool        `json:"deny,omitempty"`
	RevokedAt  *time.Time  `json:"revoked_at,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// ActiveAt reports whether the grant is in force at the given instant.
func (g *AccessGrant) ActiveAt(now time.Time) bool {
	if g.RevokedAt != nil {
		return false
	}
	if now.Before(g.ValidFrom) {
		return false
	}
	if g.ValidUntil != nil && !now.Before(*g.ValidUntil) {
		return false
	}
	return true
}

// Access is one entry of a staff member's effective access set: a property
// and the client records reachable through it.
type Access struct {
	PropertyID string    `json:"property_id"`
	ClientIDs  []string  `json:"client_ids"`
	GrantedAt  time.Time `json:"granted_at"`
	Source     GrantSource `json:"source"`
}
