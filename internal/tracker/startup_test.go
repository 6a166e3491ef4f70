package tracker

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/turtacn/nodesync/pkg/errors"
)

func TestWaitUntilReady_RetriesUnreachable(t *testing.T) {
	clk := newFakeClock()
	start := clk.Now()
	p := &scriptedProber{results: []probeResult{unreachable(), unreachable(), unreachable(), {progress: 0}}}

	err := WaitUntilReady(context.Background(), newFakeGuard(), p, "http://local", StartupOptions{
		PollInterval: 5 * time.Second, Timeout: time.Hour, Clock: clk,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, p.calls)
	assert.Equal(t, 15*time.Second, clk.Now().Sub(start))
}

func TestWaitUntilReady_MalformedMeansReady(t *testing.T) {
	p := &scriptedProber{results: []probeResult{unreachable(), malformed()}}
	err := WaitUntilReady(context.Background(), newFakeGuard(), p, "http://local", StartupOptions{
		PollInterval: time.Second, Timeout: time.Hour, Clock: newFakeClock(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls)
}

func TestWaitUntilReady_ProcessDied(t *testing.T) {
	g := newFakeGuard()
	p := &scriptedProber{results: []probeResult{unreachable()}}
	p.onCall = func(call int) {
		if call == 2 {
			g.die(101)
		}
	}
	err := WaitUntilReady(context.Background(), g, p, "http://local", StartupOptions{
		PollInterval: time.Second, Timeout: time.Hour, Clock: newFakeClock(),
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeProcessDied, apperrors.CodeOf(err))
	var died *apperrors.ProcessDied
	require.True(t, errors.As(err, &died))
	assert.Equal(t, 101, died.ExitCode)
	assert.Equal(t, 2, p.calls)
}

func TestWaitUntilReady_DeadBeforeFirstProbe(t *testing.T) {
	g := newFakeGuard()
	g.die(2)
	p := &scriptedProber{results: []probeResult{{progress: 1}}}
	err := WaitUntilReady(context.Background(), g, p, "http://local", StartupOptions{Clock: newFakeClock()})
	assert.Equal(t, apperrors.ErrCodeProcessDied, apperrors.CodeOf(err))
	assert.Zero(t, p.calls)
}

func TestWaitUntilReady_Timeout(t *testing.T) {
	p := &scriptedProber{results: []probeResult{unreachable()}}
	err := WaitUntilReady(context.Background(), newFakeGuard(), p, "http://local", StartupOptions{
		PollInterval: 5 * time.Second, Timeout: 30 * time.Second, Clock: newFakeClock(),
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeStartupTimeout, apperrors.CodeOf(err))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeProbeUnreachable))
	assert.Equal(t, 7, p.calls)
}

func TestWaitUntilReady_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &scriptedProber{results: []probeResult{unreachable()}}
	err := WaitUntilReady(ctx, newFakeGuard(), p, "http://local", StartupOptions{Clock: newFakeClock()})
	assert.Equal(t, apperrors.ErrCodeCancelled, apperrors.CodeOf(err))
}

func TestComputeTarget(t *testing.T) {
	cases := [][2]uint64{{0, 0}, {1000, 20000}, {0, 20000}, {123456789, 1}, {math.MaxUint64 - 5, 5}}
	for _, c := range cases {
		assert.Equal(t, c[0]+c[1], ComputeTarget(c[0], c[1]))
	}
	assert.Equal(t, uint64(math.MaxUint64), ComputeTarget(math.MaxUint64-1, 10))
}

func TestResolveTarget(t *testing.T) {
	tgt, err := ResolveTarget(context.Background(), feed(1000), "http://ref", 20000)
	require.NoError(t, err)
	assert.Equal(t, Target{Reference: 1000, Target: 21000}, tgt)

	_, err = ResolveTarget(context.Background(), &scriptedProber{results: []probeResult{unreachable()}}, "http://ref", 1)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeReferenceUnavailable, apperrors.CodeOf(err))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeProbeUnreachable))
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeFastSync, ParseMode("DownloadLatestStates"))
	assert.Equal(t, ModeFastSync, ParseMode(" fast_sync "))
	assert.Equal(t, ModeOther, ParseMode("ExecuteTransactionsFromGenesis"))
	assert.Equal(t, ModeOther, ParseMode(""))
	assert.Equal(t, "FastSync", ModeFastSync.String())
}
