package supervisor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/turtacn/nodesync/pkg/consts"
	apperrors "github.com/turtacn/nodesync/pkg/errors"
	"github.com/turtacn/nodesync/pkg/logger"
)

// ProcessGuard owns a running child process for the lifetime of a session.
// A reaper goroutine waits on the process so liveness can be queried without
// blocking, and Terminate guarantees the child is not left behind.
type ProcessGuard struct {
	cmd     *exec.Cmd
	logFile *os.File
	grace   time.Duration

	done     chan struct{}
	exitCode int
	waitErr  error

	termOnce sync.Once
	termErr  error
}

// Start launches command with env appended to the current environment. The
// child's stdout and stderr are written to logPath, or inherited when logPath
// is empty.
func Start(command []string, env []string, logPath string) (*ProcessGuard, error) {
	if len(command) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeProcessStartFail, "Spawn", "empty node command", nil)
	}

	cmd := exec.Command(command[0], command[1:]...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	var logFile *os.File
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrCodeProcessStartFail, "Spawn", "cannot open node log "+logPath, err)
		}
		cmd.Stdout = f
		cmd.Stderr = f
		logFile = f
	}

	logger.Log.Info("Supervisor: Forking process", "cmd", command, "log", logPath)
	if err := cmd.Start(); err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, apperrors.New(apperrors.ErrCodeProcessStartFail, "Spawn", fmt.Sprintf("cannot start %q", command[0]), err)
	}

	g, err := Wrap(cmd)
	if err != nil {
		return nil, err
	}
	g.logFile = logFile
	return g, nil
}

// Wrap takes ownership of an already started command. The caller must not
// call cmd.Wait itself.
func Wrap(cmd *exec.Cmd) (*ProcessGuard, error) {
	if cmd == nil || cmd.Process == nil {
		return nil, apperrors.New(apperrors.ErrCodeProcessStartFail, "Wrap", "command has not been started", nil)
	}
	g := &ProcessGuard{
		cmd:   cmd,
		grace: consts.DefaultTerminateGrace,
		done:  make(chan struct{}),
	}
	go g.reap()
	return g, nil
}

func (g *ProcessGuard) reap() {
	err := g.cmd.Wait()
	code := -1
	if g.cmd.ProcessState != nil {
		code = g.cmd.ProcessState.ExitCode()
	}
	g.exitCode = code
	g.waitErr = err
	close(g.done)
	logger.Log.Info("Supervisor: Process exited", "pid", g.cmd.Process.Pid, "code", code)
}

// SetTerminateGrace sets how long Terminate waits after SIGTERM before SIGKILL.
func (g *ProcessGuard) SetTerminateGrace(d time.Duration) {
	if d > 0 {
		g.grace = d
	}
}

// PID returns the child's process id.
func (g *ProcessGuard) PID() int {
	return g.cmd.Process.Pid
}

// IsAlive reports whether the child is still running. It never blocks.
func (g *ProcessGuard) IsAlive() bool {
	select {
	case <-g.done:
		return false
	default:
		return true
	}
}

// ExitCode returns the child's exit code once it has died. A child killed by a
// signal reports -1.
func (g *ProcessGuard) ExitCode() (int, bool) {
	select {
	case <-g.done:
		return g.exitCode, true
	default:
		return 0, false
	}
}

// Done is closed when the child has exited.
func (g *ProcessGuard) Done() <-chan struct{} {
	return g.done
}

// Terminate stops the child with SIGTERM, escalating to SIGKILL after the grace
// period, and releases the log file. Safe to call any number of times.
func (g *ProcessGuard) Terminate() error {
	g.termOnce.Do(func() {
		var result *multierror.Error
		if g.IsAlive() {
			logger.Log.Info("Supervisor: Sending SIGTERM", "pid", g.PID())
			if err := g.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
				result = multierror.Append(result, fmt.Errorf("sigterm: %w", err))
			}
			select {
			case <-g.done:
			case <-time.After(g.grace):
				logger.Log.Warn("Supervisor: Sending SIGKILL", "pid", g.PID(), "grace", g.grace)
				if err := g.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
					result = multierror.Append(result, fmt.Errorf("sigkill: %w", err))
				}
				<-g.done
			}
		}
		if g.logFile != nil {
			if err := g.logFile.Close(); err != nil {
				result = multierror.Append(result, fmt.Errorf("closing node log: %w", err))
			}
		}
		g.termErr = result.ErrorOrNil()
	})
	return g.termErr
}

// Personal.AI order the ending
