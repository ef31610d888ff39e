package risk

import (
	"fmt"
	"time"

	"positionGuard/config"
)

const dateLayout = "2006-01-02"

// Counters is the process-local run state consulted by the emergency brake.
// It is owned by the polling loop and passed into every cycle explicitly.
type Counters struct {
	DailyTrades   int
	ErrorCount    int
	LastResetDate string // local calendar date, YYYY-MM-DD
	Halted        bool   // brake engaged on the previous check
}

// NewCounters returns zeroed counters dated now.
func NewCounters(now time.Time) *Counters {
	return &Counters{LastResetDate: now.Format(dateLayout)}
}

// ResetIfNewDay zeroes the daily counters when the local date of now differs
// from the last reset. It reports whether a reset happened.
func (c *Counters) ResetIfNewDay(now time.Time) bool {
	today := now.Format(dateLayout)
	if today == c.LastResetDate {
		return false
	}
	c.DailyTrades = 0
	c.ErrorCount = 0
	c.LastResetDate = today
	return true
}

// RecordTrade counts one successfully submitted protective or reducing order.
func (c *Counters) RecordTrade() { c.DailyTrades++ }

// RecordError counts one failure toward the error threshold.
func (c *Counters) RecordError() { c.ErrorCount++ }

// EmergencyReason returns why processing must stop, or "" when the brake is
// released. The flag is checked first, then the trade and error thresholds.
func (c *Counters) EmergencyReason(cfg *config.Config) string {
	rm := cfg.RiskManagement
	switch {
	case cfg.EmergencyStop:
		return "emergency_stop flag set"
	case c.DailyTrades >= rm.MaxDailyTrades:
		return fmt.Sprintf("daily trade limit reached (%d/%d)", c.DailyTrades, rm.MaxDailyTrades)
	case c.ErrorCount >= rm.ErrorThreshold:
		return fmt.Sprintf("error threshold reached (%d/%d)", c.ErrorCount, rm.ErrorThreshold)
	default:
		return ""
	}
}

// Engage marks the brake as engaged and reports whether this is a new engagement.
func (c *Counters) Engage() bool {
	first := !c.Halted
	c.Halted = true
	return first
}

// Release clears the brake and reports whether it had been engaged.
func (c *Counters) Release() bool {
	was := c.Halted
	c.Halted = false
	return was
}
