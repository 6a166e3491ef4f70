package tracker

import (
	"context"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/turtacn/nodesync/pkg/consts"
)

// Prober fetches the current progress counter from a status endpoint.
type Prober interface {
	FetchProgress(ctx context.Context, endpoint string) (uint64, error)
}

// Guard is the view of the child process the tracker needs.
type Guard interface {
	PID() int
	IsAlive() bool
	ExitCode() (int, bool)
	Terminate() error
}

// Clock is the subset of clock.Clock used by the wait loops.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// RealClock returns the wall clock.
func RealClock() Clock {
	return clock.New()
}

// Mode selects the stall-detection policy.
type Mode int

const (
	ModeOther Mode = iota
	// ModeFastSync tolerates a zero counter for as long as it stays zero.
	ModeFastSync
)

func (m Mode) String() string {
	if m == ModeFastSync {
		return "FastSync"
	}
	return "Other"
}

// ParseMode maps a node bootstrapping mode string to a Mode. Snapshot-style
// modes are FastSync; everything else is Other.
func ParseMode(raw string) Mode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case strings.ToLower(consts.BootstrapDownloadLatestStates), "fastsync", "fast_sync", "fast-sync":
		return ModeFastSync
	default:
		return ModeOther
	}
}

// SyncState is the progress bookkeeping of one monitoring session. It is owned
// by the monitor loop.
type SyncState struct {
	BestProgress     uint64
	BestProgressAt   time.Time
	ReferenceReached bool
	SessionStart     time.Time
}

// Observe records a progress sample. It reports whether the best-seen progress
// increased; BestProgressAt only moves when it does.
func (s *SyncState) Observe(progress uint64, now time.Time) bool {
	if progress > s.BestProgress {
		s.BestProgress = progress
		s.BestProgressAt = now
		return true
	}
	return false
}

// Verdict is the single terminal outcome of a session.
type Verdict struct {
	Success       bool
	FinalProgress uint64
	Elapsed       time.Duration
	// Throughput is FinalProgress per second of Elapsed; zero on failure.
	Throughput float64
	// Err is the tagged failure reason; nil on success.
	Err error
}

// Personal.AI order the ending
