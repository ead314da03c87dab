package notify

import (
	"github.com/rs/zerolog/log"
)

// Hooks receives notifications after a state change commits. Implementations
// must not block; delivery transport (email, push) lives behind this
// interface and is out of scope here.
type Hooks interface {
	OnClockIn(staffID, shiftID string)
	OnClockOut(staffID, shiftID string)
	OnEarlyFinish(staffID, shiftID, reason string)
	OnAccessGranted(staffID, propertyID string)
	OnAccessRevoked(staffID, propertyID string)
}

// LogHooks is the default Hooks implementation: it logs each notification.
type LogHooks struct{}

func (LogHooks) OnClockIn(staffID, shiftID string) {
	log.Info().Str("staff_id", staffID).Str("shift_id", shiftID).Msg("notify: clock in")
}

func (LogHooks) OnClockOut(staffID, shiftID string) {
	log.Info().Str("staff_id", staffID).Str("shift_id", shiftID).Msg("notify: clock out")
}

func (LogHooks) OnEarlyFinish(staffID, shiftID, reason string) {
	log.Info().Str("staff_id", staffID).Str("shift_id", shiftID).Str("reason", reason).Msg("notify: early finish")
}

func (LogHooks) OnAccessGranted(staffID, propertyID string) {
	log.Info().Str("staff_id", staffID).Str("property_id", propertyID).Msg("notify: access granted")
}

func (LogHooks) OnAccessRevoked(staffID, propertyID string) {
	log.Info().Str("staff_id", staffID).Str("property_id", propertyID).Msg("notify: access revoked")
}

// NopHooks discards all notifications. Used in tests.
type NopHooks struct{}

func (NopHooks) OnClockIn(string, string) {}

func (NopHooks) OnClockOut(string, string) {}

func (NopHooks) OnEarlyFinish(string, string, string) {}

func (NopHooks) OnAccessGranted(string, string) {}

func (NopHooks) OnAccessRevoked(string, string) {}
