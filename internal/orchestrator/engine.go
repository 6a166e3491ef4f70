package orchestrator

import (
	"context"

	"github.com/turtacn/nodesync/internal/logtail"
	"github.com/turtacn/nodesync/internal/monitor"
	"github.com/turtacn/nodesync/internal/nodeconfig"
	"github.com/turtacn/nodesync/internal/supervisor"
	"github.com/turtacn/nodesync/internal/tracker"
	"github.com/turtacn/nodesync/pkg/consts"
	"github.com/turtacn/nodesync/pkg/fsm"
	"github.com/turtacn/nodesync/pkg/logger"
	"github.com/turtacn/nodesync/pkg/protocol"
)

// SpawnFunc launches the node and hands back ownership of the running process.
type SpawnFunc func(node protocol.NodeConfig) (tracker.Guard, error)

// Engine drives one sync session: resolve target, spawn, wait for startup,
// monitor, verdict.
type Engine struct {
	cfg     *protocol.Config
	fsm     *fsm.StateMachine
	prober  tracker.Prober
	metrics *monitor.Metrics
	clock   tracker.Clock
	spawn   SpawnFunc
}

type Option func(*Engine)

// WithSpawner replaces the default exec-based launcher.
func WithSpawner(s SpawnFunc) Option { return func(e *Engine) { e.spawn = s } }

// WithClock replaces the wall clock used by the wait loops.
func WithClock(c tracker.Clock) Option { return func(e *Engine) { e.clock = c } }

// WithMetrics shares an existing metrics set, e.g. one already being served.
func WithMetrics(m *monitor.Metrics) Option { return func(e *Engine) { e.metrics = m } }

func NewEngine(cfg *protocol.Config, prober tracker.Prober, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		fsm:    fsm.New(fsm.State(consts.PhasePending)),
		prober: prober,
		clock:  tracker.RealClock(),
		spawn:  spawnProcess,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = monitor.NewMetrics()
	}
	e.setupFSM()
	return e
}

func spawnProcess(node protocol.NodeConfig) (tracker.Guard, error) {
	g, err := supervisor.Start(node.Command, node.Env, node.LogPath)
	if err != nil {
		return nil, err
	}
	g.SetTerminateGrace(node.TerminateGrace)
	return g, nil
}

func (e *Engine) setupFSM() {
	pending := fsm.State(consts.PhasePending)
	targeting := fsm.State(consts.PhaseTargeting)
	starting := fsm.State(consts.PhaseStarting)
	syncing := fsm.State(consts.PhaseSyncing)
	succeeded := fsm.State(consts.PhaseSucceeded)
	failed := fsm.State(consts.PhaseFailed)

	e.fsm.AddTransition(pending, targeting, "target")
	e.fsm.AddTransition(targeting, starting, "spawn")
	e.fsm.AddTransition(starting, syncing, "ready")
	e.fsm.AddTransition(syncing, succeeded, "succeed")
	for _, s := range []fsm.State{pending, targeting, starting, syncing} {
		e.fsm.AddTransition(s, failed, "fail")
	}
	e.fsm.MarkTerminal(succeeded, failed)

	e.fsm.OnTransition(func(t fsm.Transition) {
		logger.Log.Info("Session phase changed", "from", t.From, "to", t.To, "event", t.Event)
		e.metrics.RecordPhase(consts.SessionPhase(t.To))
	})
	e.metrics.RecordPhase(consts.PhasePending)
}

// Phase returns the session's current phase.
func (e *Engine) Phase() consts.SessionPhase {
	return consts.SessionPhase(e.fsm.Current())
}

// Metrics returns the session's metrics set.
func (e *Engine) Metrics() *monitor.Metrics {
	return e.metrics
}

// Run executes the session and returns its single verdict. The spawned node is
// terminated on every return path.
func (e *Engine) Run(ctx context.Context) tracker.Verdict {
	mode := tracker.ParseMode(e.cfg.Node.BootstrappingMode)
	logger.Log.Info("Starting sync session",
		"reference_endpoint", e.cfg.Sync.ReferenceEndpoint,
		"local_endpoint", e.cfg.Sync.LocalEndpoint,
		"bootstrapping_mode", e.cfg.Node.BootstrappingMode,
		"continuous_syncing_mode", e.cfg.Node.ContinuousSyncingMode,
		"stall_policy", mode.String())

	e.fire("target")
	target, err := tracker.ResolveTarget(ctx, e.prober, e.cfg.Sync.ReferenceEndpoint, e.cfg.Sync.Delta)
	if err != nil {
		return e.finish(tracker.Verdict{Err: err})
	}
	e.metrics.RecordTarget(target.Reference, target.Target)

	if e.cfg.Node.ConfigTemplate != "" {
		doc, err := nodeconfig.Prepare(nodeconfig.Options{
			Template:              e.cfg.Node.ConfigTemplate,
			Output:                e.cfg.Node.ConfigPath,
			DataDir:               e.cfg.Node.DataDir,
			BootstrappingMode:     e.cfg.Node.BootstrappingMode,
			ContinuousSyncingMode: e.cfg.Node.ContinuousSyncingMode,
		})
		if err != nil {
			return e.finish(tracker.Verdict{Err: err})
		}
		logger.Log.Debug("Node config", "config", doc)
	}

	e.fire("spawn")
	guard, err := e.spawn(e.cfg.Node)
	if err != nil {
		return e.finish(tracker.Verdict{Err: err})
	}
	defer func() {
		if err := guard.Terminate(); err != nil {
			logger.Log.Error("Terminating node failed", "pid", guard.PID(), "err", err)
		}
	}()
	logger.Log.Info("Node spawned", "pid", guard.PID())

	err = tracker.WaitUntilReady(ctx, guard, e.prober, e.cfg.Sync.LocalEndpoint, tracker.StartupOptions{
		PollInterval: e.cfg.Sync.StartupPollInterval,
		Timeout:      e.cfg.Sync.EffectiveStartupTimeout(),
		Clock:        e.clock,
	})
	if err != nil {
		return e.finish(tracker.Verdict{Err: err})
	}

	e.fire("ready")
	mon := tracker.NewMonitor(guard, e.prober, tracker.MonitorConfig{
		Endpoint:     e.cfg.Sync.LocalEndpoint,
		Reference:    target.Reference,
		Target:       target.Target,
		Mode:         mode,
		PollInterval: e.cfg.Sync.PollInterval,
		StallTimeout: e.cfg.Sync.StallTimeout,
		Clock:        e.clock,
		Metrics:      e.metrics,
		Observer:     e.showNodeLog,
	})
	return e.finish(mon.Run(ctx))
}

func (e *Engine) showNodeLog(tracker.TickReport) {
	n := e.cfg.Sync.LogTailLines
	if n <= 0 || e.cfg.Node.LogPath == "" {
		return
	}
	lines, err := logtail.Tail(e.cfg.Node.LogPath, n)
	if err != nil {
		logger.Log.Warn("Cannot read node log", "path", e.cfg.Node.LogPath, "err", err)
		return
	}
	for _, line := range lines {
		logger.Log.Info("node", "line", line)
	}
}

func (e *Engine) finish(v tracker.Verdict) tracker.Verdict {
	if v.Err == nil && v.Success {
		e.fire("succeed")
		logger.Log.Info("Sync session succeeded", "progress", v.FinalProgress, "elapsed", v.Elapsed,
			"throughput_per_sec", v.Throughput)
	} else {
		e.fire("fail")
		logger.Log.Error("Sync session failed", "progress", v.FinalProgress, "elapsed", v.Elapsed, "err", v.Err)
	}
	e.metrics.RecordVerdict(v.Err)
	return v
}

func (e *Engine) fire(event fsm.Event) {
	if err := e.fsm.Fire(event); err != nil {
		logger.Log.Error("Unexpected session transition", "event", event, "err", err)
	}
}

// Personal.AI order the ending
