package tracker

import (
	"context"
	"time"

	"github.com/turtacn/nodesync/pkg/consts"
	apperrors "github.com/turtacn/nodesync/pkg/errors"
	"github.com/turtacn/nodesync/pkg/logger"
)

// StartupOptions bounds the readiness wait.
type StartupOptions struct {
	PollInterval time.Duration
	// Timeout caps the whole wait. Zero falls back to the default stall timeout.
	Timeout time.Duration
	Clock   Clock
}

// WaitUntilReady blocks until the endpoint answers with anything at all, the
// process dies, the timeout expires, or ctx is cancelled. Only unreachable
// probes are retried; a malformed response already proves the server is up.
func WaitUntilReady(ctx context.Context, g Guard, p Prober, endpoint string, opts StartupOptions) error {
	if opts.PollInterval <= 0 {
		opts.PollInterval = consts.DefaultStartupPollInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = consts.DefaultStallTimeout
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}

	start := opts.Clock.Now()
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return apperrors.New(apperrors.ErrCodeCancelled, "Startup", "startup wait cancelled", err)
		}
		if err := checkAlive(g, "Startup"); err != nil {
			return err
		}

		_, err := p.FetchProgress(ctx, endpoint)
		if err == nil || !apperrors.HasCode(err, apperrors.ErrCodeProbeUnreachable) {
			logger.Log.Info("Startup: status endpoint is up", "endpoint", endpoint, "attempts", attempt,
				"elapsed", opts.Clock.Now().Sub(start))
			return nil
		}

		waited := opts.Clock.Now().Sub(start)
		if waited >= opts.Timeout {
			return apperrors.New(apperrors.ErrCodeStartupTimeout, "Startup",
				"status endpoint did not come up within "+opts.Timeout.String(), err)
		}
		logger.Log.Info("Waiting for the node to start", "endpoint", endpoint, "attempt", attempt, "waited", waited)

		select {
		case <-ctx.Done():
			return apperrors.New(apperrors.ErrCodeCancelled, "Startup", "startup wait cancelled", ctx.Err())
		case <-opts.Clock.After(opts.PollInterval):
		}
	}
}

// checkAlive returns a ProcessDied error if the guarded process has exited.
func checkAlive(g Guard, op string) error {
	if g.IsAlive() {
		return nil
	}
	code, _ := g.ExitCode()
	return apperrors.New(apperrors.ErrCodeProcessDied, op, "node process terminated prematurely",
		&apperrors.ProcessDied{PID: g.PID(), ExitCode: code})
}

// Personal.AI order the ending
