package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/turtacn/nodesync/pkg/consts"
	apperrors "github.com/turtacn/nodesync/pkg/errors"
	"github.com/turtacn/nodesync/pkg/logger"
)

// Metricer receives the monitor's observability signals.
type Metricer interface {
	RecordTick(progress, target uint64)
	RecordReferenceReached(reference uint64, throughput float64)
	RecordStall(stalledFor time.Duration)
	RecordProbeFailure(code apperrors.ErrorCode)
}

type noopMetrics struct{}

func (noopMetrics) RecordTick(uint64, uint64)              {}
func (noopMetrics) RecordReferenceReached(uint64, float64) {}
func (noopMetrics) RecordStall(time.Duration)              {}
func (noopMetrics) RecordProbeFailure(apperrors.ErrorCode) {}

// TickReport describes a non-terminal tick.
type TickReport struct {
	Tick         int
	Progress     uint64
	Target       uint64
	BestProgress uint64
	StalledFor   time.Duration
	Elapsed      time.Duration
}

// MonitorConfig configures one monitoring session.
type MonitorConfig struct {
	Endpoint     string
	Reference    uint64
	Target       uint64
	Mode         Mode
	PollInterval time.Duration
	StallTimeout time.Duration

	Clock    Clock
	Metrics  Metricer
	Observer func(TickReport)
}

// Monitor polls the local endpoint until the target is reached or the session
// fails. It is single-use and not safe for concurrent use.
type Monitor struct {
	cfg    MonitorConfig
	guard  Guard
	prober Prober
	state  SyncState
	ticks  int
	log    logger.Logger
}

func NewMonitor(g Guard, p Prober, cfg MonitorConfig) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = consts.DefaultPollInterval
	}
	if cfg.StallTimeout <= 0 {
		cfg.StallTimeout = consts.DefaultStallTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	return &Monitor{
		cfg:    cfg,
		guard:  g,
		prober: p,
		log:    logger.Log.With("component", "monitor", "mode", cfg.Mode.String()),
	}
}

// State returns a copy of the current progress bookkeeping.
func (m *Monitor) State() SyncState {
	return m.state
}

// Begin marks the session start. Run calls it; tests driving Step directly
// call it once before the first tick.
func (m *Monitor) Begin() {
	now := m.cfg.Clock.Now()
	m.state = SyncState{SessionStart: now, BestProgressAt: now}
	m.ticks = 0
	m.log.Info("Waiting for the node to synchronize", "reference", m.cfg.Reference, "target", m.cfg.Target,
		"poll_interval", m.cfg.PollInterval, "stall_timeout", m.cfg.StallTimeout)
}

// Run executes ticks every PollInterval until a verdict is reached. Cancelling
// ctx terminates the guarded process and yields an ErrCodeCancelled failure.
func (m *Monitor) Run(ctx context.Context) Verdict {
	m.Begin()
	for {
		if err := ctx.Err(); err != nil {
			return m.cancel(err)
		}
		if v, done := m.Step(ctx); done {
			return v
		}
		select {
		case <-ctx.Done():
			return m.cancel(ctx.Err())
		case <-m.cfg.Clock.After(m.cfg.PollInterval):
		}
	}
}

func (m *Monitor) cancel(cause error) Verdict {
	m.log.Warn("Monitoring cancelled, terminating node", "best_progress", m.state.BestProgress)
	if err := m.guard.Terminate(); err != nil {
		m.log.Error("Terminate after cancellation failed", "err", err)
	}
	return m.fail(apperrors.New(apperrors.ErrCodeCancelled, "Monitor",
		fmt.Sprintf("monitoring cancelled at progress %d", m.state.BestProgress), cause))
}

func (m *Monitor) fail(err error) Verdict {
	return Verdict{
		FinalProgress: m.state.BestProgress,
		Elapsed:       m.cfg.Clock.Now().Sub(m.state.SessionStart),
		Err:           err,
	}
}

// Step executes a single tick. It returns the verdict and true when the
// session has reached a terminal state.
func (m *Monitor) Step(ctx context.Context) (Verdict, bool) {
	m.ticks++

	if err := checkAlive(m.guard, "Monitor"); err != nil {
		return m.fail(err), true
	}

	progress, err := m.prober.FetchProgress(ctx, m.cfg.Endpoint)
	now := m.cfg.Clock.Now()
	elapsed := now.Sub(m.state.SessionStart)
	if err != nil {
		if ctx.Err() != nil {
			// The probe was interrupted by cancellation, not by the node.
			return m.cancel(ctx.Err()), true
		}
		code := apperrors.CodeOf(err)
		if code == apperrors.ErrCodeUnknown {
			code = apperrors.ErrCodeProbeUnreachable
		}
		m.cfg.Metrics.RecordProbeFailure(code)
		return m.fail(apperrors.New(code, "Monitor",
			fmt.Sprintf("local status probe failed at best progress %d after %s", m.state.BestProgress, elapsed), err)), true
	}

	if !m.state.ReferenceReached && progress >= m.cfg.Reference {
		m.state.ReferenceReached = true
		throughput := perSecond(m.cfg.Reference, elapsed)
		m.cfg.Metrics.RecordReferenceReached(m.cfg.Reference, throughput)
		m.log.Info("Synced to reference progress", "reference", m.cfg.Reference, "elapsed", elapsed,
			"throughput_per_sec", throughput)
	}

	if progress >= m.cfg.Target {
		m.state.Observe(progress, now)
		m.cfg.Metrics.RecordTick(progress, m.cfg.Target)
		m.log.Info("Successfully synced to the target", "target", m.cfg.Target, "progress", progress, "elapsed", elapsed)
		return Verdict{
			Success:       true,
			FinalProgress: progress,
			Elapsed:       elapsed,
			Throughput:    perSecond(progress, elapsed),
		}, true
	}

	var stalledFor time.Duration
	if !m.state.Observe(progress, now) {
		stalledFor = now.Sub(m.state.BestProgressAt)
		m.cfg.Metrics.RecordStall(stalledFor)
		if stalledFor > m.cfg.StallTimeout {
			if m.cfg.Mode == ModeFastSync && m.state.BestProgress == 0 {
				m.log.Warn("No progress yet, fast sync may still be initializing", "stalled_for", stalledFor)
			} else {
				return m.fail(apperrors.New(apperrors.ErrCodeStallTimeout, "Monitor", "node is not making any syncing progress",
					&apperrors.Stall{BestProgress: m.state.BestProgress, StalledFor: stalledFor, Timeout: m.cfg.StallTimeout})), true
			}
		}
	} else {
		m.cfg.Metrics.RecordStall(0)
	}

	m.cfg.Metrics.RecordTick(progress, m.cfg.Target)
	m.log.Info("Still syncing", "target", m.cfg.Target, "progress", progress, "best", m.state.BestProgress,
		"stalled_for", stalledFor)
	if m.cfg.Observer != nil {
		m.cfg.Observer(TickReport{
			Tick:         m.ticks,
			Progress:     progress,
			Target:       m.cfg.Target,
			BestProgress: m.state.BestProgress,
			StalledFor:   stalledFor,
			Elapsed:      elapsed,
		})
	}
	return Verdict{}, false
}

func perSecond(v uint64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(v) / d.Seconds()
}

// Personal.AI order the ending
