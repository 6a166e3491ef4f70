package supervisor

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/turtacn/nodesync/pkg/errors"
)

func waitDone(t *testing.T, g *ProcessGuard) {
	t.Helper()
	select {
	case <-g.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
}

func TestProcessGuard_TerminateRunning(t *testing.T) {
	g, err := Start([]string{"sleep", "10"}, nil, "")
	require.NoError(t, err)
	assert.True(t, g.IsAlive())

	_, ok := g.ExitCode()
	assert.False(t, ok, "exit code must not be available while running")

	require.NoError(t, g.Terminate())
	assert.False(t, g.IsAlive())

	code, ok := g.ExitCode()
	assert.True(t, ok)
	assert.Equal(t, -1, code, "signalled process reports -1")

	// Idempotent
	assert.NoError(t, g.Terminate())
}

func TestProcessGuard_EscalatesToKill(t *testing.T) {
	g, err := Start([]string{"sh", "-c", "trap '' TERM; sleep 10"}, nil, "")
	require.NoError(t, err)
	g.SetTerminateGrace(200 * time.Millisecond)

	// Let the shell install its trap.
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	require.NoError(t, g.Terminate())
	assert.False(t, g.IsAlive())
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestProcessGuard_ObservesExitCode(t *testing.T) {
	g, err := Start([]string{"sh", "-c", "exit 3"}, nil, "")
	require.NoError(t, err)
	waitDone(t, g)

	assert.False(t, g.IsAlive())
	code, ok := g.ExitCode()
	require.True(t, ok)
	assert.Equal(t, 3, code)
	assert.NoError(t, g.Terminate())
}

func TestProcessGuard_WritesLogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "node.log")
	g, err := Start([]string{"sh", "-c", "echo hello; echo oops >&2"}, []string{"NODESYNC_TEST=1"}, logPath)
	require.NoError(t, err)
	waitDone(t, g)
	require.NoError(t, g.Terminate())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), "oops")
}

func TestStart_Errors(t *testing.T) {
	_, err := Start(nil, nil, "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeProcessStartFail))

	_, err = Start([]string{"/definitely/not/a/binary"}, nil, "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeProcessStartFail))
}

func TestWrap_RequiresStartedCommand(t *testing.T) {
	_, err := Wrap(exec.Command("true"))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeProcessStartFail))

	cmd := exec.Command("sleep", "10")
	require.NoError(t, cmd.Start())
	g, err := Wrap(cmd)
	require.NoError(t, err)
	assert.Equal(t, cmd.Process.Pid, g.PID())
	require.NoError(t, g.Terminate())
}
