package runner

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/clock"
	"main/internal/codec"
	"main/internal/exec"
	"main/internal/feed"
	"main/internal/obs"
	"main/internal/risk"
	"main/internal/schema"
	"main/internal/state"
	"main/internal/strategy"
)

var ErrHalted = errors.New("orchestrator halted")

// Config assembles one orchestrator. Everything is wired once at startup
// and immutable for the process lifetime.
type Config struct {
	Clock      clock.Clock
	Source     feed.Source
	Registry   *schema.Registry
	Strategies []strategy.Strategy
	Analytics  *strategy.RollingAnalytics
	Tracker    *state.Tracker
	Handler    *exec.Handler
	Bus        *bus.Bus
	Kill       *risk.KillSwitchState
	Metrics    *obs.Metrics
	// MaxCycles bounds the run; 0 runs until the clock is exhausted or the
	// context is cancelled.
	MaxCycles int
}

// Orchestrator owns the single-threaded decision cycle. It is the only
// writer of the position tracker; strategies and the execution handler see
// read-only views.
type Orchestrator struct {
	cfg   Config
	state State

	nextSignalID uint64
	cycles       int
	buf          []byte
}

// New creates an orchestrator in the initializing state.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Clock == nil || cfg.Source == nil || cfg.Registry == nil {
		return nil, errors.New("clock, source and registry are required")
	}
	if cfg.Handler == nil || cfg.Tracker == nil || cfg.Bus == nil || cfg.Kill == nil {
		return nil, errors.New("handler, tracker, bus and kill switch are required")
	}
	if len(cfg.Strategies) == 0 {
		return nil, errors.New("at least one strategy is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = obs.NewMetrics()
	}
	return &Orchestrator{
		cfg:   cfg,
		state: StateInitializing,
		buf:   make([]byte, 0, 64),
	}, nil
}

// State returns the current lifecycle phase.
func (o *Orchestrator) State() State {
	return o.state
}

// Cycles returns the number of completed decision cycles.
func (o *Orchestrator) Cycles() int {
	return o.cycles
}

// SeedSignalID sets the next signal ID after recovery.
func (o *Orchestrator) SeedSignalID(next uint64) {
	if next > o.nextSignalID {
		o.nextSignalID = next
	}
}

func (o *Orchestrator) transition(to State) error {
	if !canTransition(o.state, to) {
		return errors.Wrapf(ErrInvalidStateChange, "%s -> %s", o.state, to)
	}
	logs.Infof("lifecycle transition %s -> %s", o.state, to)
	o.state = to
	return nil
}

// Run drives decision cycles until the clock is exhausted, the context is
// cancelled, MaxCycles is reached, or a kill-switch trip halts the process.
// A halt returns ErrHalted; every other stop drains and returns nil.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.transition(StateRunning); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return o.drain()
		default:
		}
		if o.cfg.MaxCycles > 0 && o.cycles >= o.cfg.MaxCycles {
			return o.drain()
		}
		// A manual halt must stop the run even when no strategy ever emits
		// a signal, so it is polled here as well as in the order pipeline.
		if o.cfg.Kill.ManualHalt() {
			return o.haltManual()
		}

		ts, ok := o.cfg.Clock.Advance()
		if !ok {
			return o.drain()
		}

		cycleStart := time.Now()
		err := o.cycle(ctx, ts)
		o.cfg.Metrics.ObserveCycle(time.Since(cycleStart))
		o.cycles++

		if err != nil {
			if errors.Is(err, exec.ErrKillSwitchTripped) {
				return o.halt(err)
			}
			return err
		}
	}
}

// haltManual records a durable halt event for an operator-requested stop
// and moves the orchestrator into the halted state.
func (o *Orchestrator) haltManual() error {
	now := o.cfg.Clock.Now()
	o.buf = codec.EncodeHalt(o.buf[:0], schema.Halt{
		Reason:     schema.HaltReasonManual,
		DailyCount: o.cfg.Kill.DailyTrades(),
		Drawdown:   o.cfg.Kill.Drawdown(),
		TsNano:     now,
	})
	if _, err := o.cfg.Bus.Publish(schema.EventHalt, now, now, 0, o.buf); err != nil {
		return err
	}
	return o.halt(errors.Wrap(exec.ErrKillSwitchTripped, "manual halt"))
}

func (o *Orchestrator) drain() error {
	if err := o.transition(StateDraining); err != nil {
		return err
	}
	return o.transition(StateStopped)
}

func (o *Orchestrator) halt(cause error) error {
	if o.state == StateHalted {
		return ErrHalted
	}
	o.state = StateHalted
	logs.Errorf("halted, cause: %+v", cause)
	return errors.Wrap(ErrHalted, cause.Error())
}

// cycle processes one clock tick: every instrument in registration order,
// every strategy in registration order, at most one order per instrument.
// Position updates land before the next instrument starts, so later
// evaluations within the same tick observe earlier fills.
func (o *Orchestrator) cycle(ctx context.Context, ts int64) error {
	for i := 0; i < o.cfg.Registry.InstrumentCount(); i++ {
		inst, _ := o.cfg.Registry.InstrumentAt(i)
		bar, ok := o.cfg.Source.Next(inst.ID)
		if !ok {
			// No bar this tick: skip the instrument, never stall the cycle.
			o.cfg.Metrics.IncDataGap()
			continue
		}
		if err := o.processBar(ctx, inst.ID, bar, ts); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) processBar(ctx context.Context, id schema.InstrumentID, bar schema.Bar, ts int64) error {
	o.buf = codec.EncodeBar(o.buf[:0], bar)
	if _, err := o.cfg.Bus.Publish(schema.EventBar, bar.TsNano, ts, 0, o.buf); err != nil {
		return err
	}
	if o.cfg.Analytics != nil {
		o.cfg.Analytics.Update(bar)
	}
	o.cfg.Tracker.MarkPrice(id, bar.Close)
	// Drawdown must track mark-to-market equity, not just fills: the next
	// order is gated on losses the market has already inflicted.
	o.cfg.Kill.ObserveEquity(o.cfg.Tracker.Equity())

	signals := o.invokeStrategies(id, bar, ts)
	winner, losers := resolveSignals(signals)
	for _, loser := range losers {
		if err := o.rejectSuperseded(loser, ts); err != nil {
			return err
		}
	}
	if winner == nil {
		return nil
	}

	o.buf = codec.EncodeSignal(o.buf[:0], *winner)
	if _, err := o.cfg.Bus.Publish(schema.EventSignal, winner.TsNano, ts, winner.SignalID, o.buf); err != nil {
		return err
	}

	trade, filled, err := o.cfg.Handler.Handle(ctx, *winner, bar.Close)
	if err != nil {
		if errors.Is(err, exec.ErrKillSwitchTripped) {
			return err
		}
		// Denies and broker rejects are already on the audit trail; the
		// cycle continues.
		logs.Warnf("signal %d not executed, err: %+v", winner.SignalID, err)
		return nil
	}
	if filled {
		o.cfg.Tracker.Apply(trade)
		o.cfg.Kill.ObserveEquity(o.cfg.Tracker.Equity())
	}
	return nil
}

// invokeStrategies runs every strategy against the bar. A panicking
// strategy is isolated: its fault is audited and the remaining strategies
// still run.
func (o *Orchestrator) invokeStrategies(id schema.InstrumentID, bar schema.Bar, ts int64) []schema.Signal {
	var (
		snap   strategy.Snapshot
		regime strategy.Regime
	)
	if o.cfg.Analytics != nil {
		snap, _ = o.cfg.Analytics.Snapshot(id)
		regime = o.cfg.Analytics.Regime(id)
	}
	sctx := strategy.Context{
		Position:  o.cfg.Tracker.Position(id),
		Analytics: snap,
		Regime:    regime,
	}

	signals := make([]schema.Signal, 0, len(o.cfg.Strategies))
	for idx, strat := range o.cfg.Strategies {
		sig, emitted := o.invokeOne(strat, bar, sctx, ts)
		if !emitted {
			continue
		}
		o.nextSignalID++
		sig.SignalID = o.nextSignalID
		sig.StrategyID = uint32(idx + 1)
		sig.InstrumentID = uint32(id)
		sig.TsNano = ts
		signals = append(signals, sig)
	}
	return signals
}

func (o *Orchestrator) invokeOne(strat strategy.Strategy, bar schema.Bar, sctx strategy.Context, ts int64) (sig schema.Signal, emitted bool) {
	defer func() {
		if r := recover(); r != nil {
			emitted = false
			o.cfg.Metrics.IncStrategyFault()
			logs.Errorf("strategy %s fault, panic: %+v", strat.Name(), r)
			o.buf = codec.EncodeReject(o.buf[:0], schema.Reject{
				InstrumentID: bar.InstrumentID,
				Reason:       schema.RejectReasonStrategyFault,
				TsNano:       ts,
			})
			if _, err := o.cfg.Bus.Publish(schema.EventReject, ts, ts, 0, o.buf); err != nil {
				logs.Errorf("publish strategy fault, err: %+v", err)
			}
		}
	}()
	return strat.Process(bar, sctx)
}

func (o *Orchestrator) rejectSuperseded(sig schema.Signal, ts int64) error {
	o.cfg.Metrics.IncReject(schema.RejectReasonSuperseded)
	o.buf = codec.EncodeReject(o.buf[:0], schema.Reject{
		SignalID:     sig.SignalID,
		InstrumentID: sig.InstrumentID,
		Reason:       schema.RejectReasonSuperseded,
		TsNano:       ts,
	})
	_, err := o.cfg.Bus.Publish(schema.EventReject, ts, ts, sig.SignalID, o.buf)
	return err
}

// resolveSignals picks at most one signal per bar. Exits outrank entries
// so risk reduction always wins; ties go to the earliest-registered
// strategy. Losing signals become superseded rejects.
func resolveSignals(signals []schema.Signal) (*schema.Signal, []schema.Signal) {
	if len(signals) == 0 {
		return nil, nil
	}
	winner := 0
	for i := 1; i < len(signals); i++ {
		if signals[i].Kind == schema.SignalExit && signals[winner].Kind != schema.SignalExit {
			winner = i
		}
	}
	losers := make([]schema.Signal, 0, len(signals)-1)
	for i, sig := range signals {
		if i != winner {
			losers = append(losers, sig)
		}
	}
	return &signals[winner], losers
}
