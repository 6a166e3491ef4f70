package tracker

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/turtacn/nodesync/pkg/errors"
)

// fakeClock advances instantly whenever someone waits on it.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.Advance(d)
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

type probeResult struct {
	progress uint64
	err      error
}

// scriptedProber replays results in order and repeats the last one forever.
type scriptedProber struct {
	results []probeResult
	calls   int
	onCall  func(call int)
}

func feed(values ...uint64) *scriptedProber {
	p := &scriptedProber{}
	for _, v := range values {
		p.results = append(p.results, probeResult{progress: v})
	}
	return p
}

func (p *scriptedProber) FetchProgress(ctx context.Context, endpoint string) (uint64, error) {
	p.calls++
	if p.onCall != nil {
		p.onCall(p.calls)
	}
	idx := p.calls - 1
	if idx >= len(p.results) {
		idx = len(p.results) - 1
	}
	r := p.results[idx]
	return r.progress, r.err
}

func unreachable() probeResult {
	return probeResult{err: apperrors.New(apperrors.ErrCodeProbeUnreachable, "Probe", "connection refused", nil)}
}

func malformed() probeResult {
	return probeResult{err: apperrors.New(apperrors.ErrCodeMalformedResponse, "Probe", "missing field", nil)}
}

type fakeGuard struct {
	alive      bool
	code       int
	terminated int
}

func newFakeGuard() *fakeGuard { return &fakeGuard{alive: true} }

func (g *fakeGuard) PID() int      { return 4242 }
func (g *fakeGuard) IsAlive() bool { return g.alive }

func (g *fakeGuard) ExitCode() (int, bool) {
	if g.alive {
		return 0, false
	}
	return g.code, true
}

func (g *fakeGuard) Terminate() error {
	g.terminated++
	if g.alive {
		g.alive = false
		g.code = -1
	}
	return nil
}

func (g *fakeGuard) die(code int) {
	g.alive = false
	g.code = code
}

type recordedMetrics struct {
	ticks         int
	references    []float64
	probeFailures []apperrors.ErrorCode
	lastStall     time.Duration
}

func (m *recordedMetrics) RecordTick(uint64, uint64) { m.ticks++ }
func (m *recordedMetrics) RecordReferenceReached(_ uint64, throughput float64) {
	m.references = append(m.references, throughput)
}
func (m *recordedMetrics) RecordStall(d time.Duration) { m.lastStall = d }
func (m *recordedMetrics) RecordProbeFailure(code apperrors.ErrorCode) {
	m.probeFailures = append(m.probeFailures, code)
}
