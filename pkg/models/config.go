package models

import (
	"fmt"
	"time"
)

// RBACConfig is the process-wide engine configuration. It is treated as an
// immutable value: the holder hands out copies stamped with a version, and a
// running evaluation only ever sees the snapshot it started with.
type RBACConfig struct {
	Enabled                       bool     `yaml:"enabled" json:"enabled"`
	AutoGrantAccess               bool     `yaml:"auto_grant_access" json:"auto_grant_access"`
	AutoRevokeAccess              bool     `yaml:"auto_revoke_access" json:"auto_revoke_access"`
	RequireClockIn                bool     `yaml:"require_clock_in" json:"require_clock_in"`
	AllowManualOverride           bool     `yaml:"allow_manual_override" json:"allow_manual_override"`
	AuditLogging                  bool     `yaml:"audit_logging" json:"audit_logging"`
	AllowEarlyFinish              bool     `yaml:"allow_early_finish" json:"allow_early_finish"`
	RequireEarlyFinishReason      bool     `yaml:"require_early_finish_reason" json:"require_early_finish_reason"`
	EarlyFinishGracePeriodMinutes int      `yaml:"early_finish_grace_period_minutes" json:"early_finish_grace_period_minutes"`
	ClockInGracePeriodMinutes     int      `yaml:"clock_in_grace_period_minutes" json:"clock_in_grace_period_minutes"`
	AutoClockOutAtShiftEnd        bool     `yaml:"auto_clock_out_at_shift_end" json:"auto_clock_out_at_shift_end"`
	AllowManualClockOut           bool     `yaml:"allow_manual_clock_out" json:"allow_manual_clock_out"`
	StrictMode                    bool     `yaml:"strict_mode" json:"strict_mode"`
	AllowedRoles                  []string `yaml:"allowed_roles" json:"allowed_roles"`
	ExcludedRoles                 []string `yaml:"excluded_roles" json:"excluded_roles"`

	// Version is assigned by the config holder on every swap. Zero means
	// the value has not been installed yet.
	Version int `yaml:"-" json:"version"`
}

// DefaultRBACConfig returns the configuration the engine runs with when no
// policy file is supplied.
func DefaultRBACConfig() RBACConfig {
	return RBACConfig{
		Enabled:                       true,
		AutoGrantAccess:               true,
		AutoRevokeAccess:              true,
		RequireClockIn:                false,
		AllowManualOverride:           true,
		AuditLogging:                  true,
		AllowEarlyFinish:              true,
		RequireEarlyFinishReason:      true,
		EarlyFinishGracePeriodMinutes: 15,
		ClockInGracePeriodMinutes:     15,
		AutoClockOutAtShiftEnd:        true,
		AllowManualClockOut:           true,
	}
}

// GracePeriod returns the early-finish grace as a duration.
func (c RBACConfig) GracePeriod() time.Duration {
	return time.Duration(c.EarlyFinishGracePeriodMinutes) * time.Minute
}

// ClockInGrace returns how long after shift start a clock-in is still
// accepted when RequireClockIn is set.
func (c RBACConfig) ClockInGrace() time.Duration {
	return time.Duration(c.ClockInGracePeriodMinutes) * time.Minute
}

// RoleExcluded reports whether the role bypasses the engine entirely.
func (c RBACConfig) RoleExcluded(role string) bool {
	return contains(c.ExcludedRoles, role)
}

// RoleAllowed reports whether the role is on the strict-mode allow list.
func (c RBACConfig) RoleAllowed(role string) bool {
	return contains(c.AllowedRoles, role)
}

func contains(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// Validate rejects configurations the engine cannot safely run with.
// Errors are of type *ConfigError.
func (c RBACConfig) Validate() error {
	if c.EarlyFinishGracePeriodMinutes < 0 {
		return &ConfigError{Msg: fmt.Sprintf("early_finish_grace_period_minutes must be >= 0, got %d", c.EarlyFinishGracePeriodMinutes)}
	}
	if c.ClockInGracePeriodMinutes < 0 {
		return &ConfigError{Msg: fmt.Sprintf("clock_in_grace_period_minutes must be >= 0, got %d", c.ClockInGracePeriodMinutes)}
	}
	if c.StrictMode && len(c.AllowedRoles) == 0 {
		return &ConfigError{Msg: "strict_mode requires a non-empty allowed_roles list"}
	}
	for _, role := range c.ExcludedRoles {
		if role == "" {
			return &ConfigError{Msg: "excluded_roles must not contain empty role names"}
		}
	}
	for _, role := range c.AllowedRoles {
		if role == "" {
			return &ConfigError{Msg: "allowed_roles must not contain empty role names"}
		}
	}
	return nil
}
