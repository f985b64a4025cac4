package risk

import (
	"time"

	"main/internal/schema"
)

// KillSwitchState is the process-lifetime safety state read before every
// order. It is an explicit object passed by reference into the orchestrator
// and execution handler at construction, never a shared singleton. It is
// mutated only by the orchestrator thread.
type KillSwitchState struct {
	sessionDay  int64
	dailyTrades uint32
	peakEquity  schema.Notional
	drawdown    schema.Notional
	manualHalt  bool
}

// NewKillSwitchState creates state anchored to the session containing ts.
func NewKillSwitchState(tsNano int64) *KillSwitchState {
	return &KillSwitchState{sessionDay: utcDay(tsNano)}
}

// MaybeRoll resets counters when ts falls in a new UTC trading day.
// Returns true when a session boundary was crossed.
func (k *KillSwitchState) MaybeRoll(tsNano int64) bool {
	day := utcDay(tsNano)
	if day == k.sessionDay {
		return false
	}
	k.sessionDay = day
	k.dailyTrades = 0
	k.peakEquity = 0
	k.drawdown = 0
	return true
}

// RecordTrade bumps the daily trade counter.
func (k *KillSwitchState) RecordTrade() {
	k.dailyTrades++
}

// DailyTrades returns the number of trades executed this session.
func (k *KillSwitchState) DailyTrades() uint32 {
	return k.dailyTrades
}

// ObserveEquity updates peak equity and running drawdown.
func (k *KillSwitchState) ObserveEquity(equity schema.Notional) {
	if equity > k.peakEquity {
		k.peakEquity = equity
	}
	if dd := k.peakEquity - equity; dd > k.drawdown {
		k.drawdown = dd
	}
}

// Drawdown returns the running drawdown for the session.
func (k *KillSwitchState) Drawdown() schema.Notional {
	return k.drawdown
}

// SetManualHalt flips the operator halt flag. Clearing it is an explicit
// operator action; a halted process never clears it itself.
func (k *KillSwitchState) SetManualHalt(halt bool) {
	k.manualHalt = halt
}

// ManualHalt reports the operator halt flag.
func (k *KillSwitchState) ManualHalt() bool {
	return k.manualHalt
}

func utcDay(tsNano int64) int64 {
	return time.Unix(0, tsNano).UTC().Truncate(24 * time.Hour).Unix()
}
