package tracker

import (
	"context"
	"math"

	apperrors "github.com/turtacn/nodesync/pkg/errors"
	"github.com/turtacn/nodesync/pkg/logger"
)

// Target is the pair of progress values a session is judged against.
type Target struct {
	Reference uint64
	Target    uint64
}

// ComputeTarget returns reference + delta, saturating at the counter's maximum.
func ComputeTarget(reference, delta uint64) uint64 {
	if delta > math.MaxUint64-reference {
		return math.MaxUint64
	}
	return reference + delta
}

// ResolveTarget probes the reference endpoint once and derives the target.
// Any probe failure is fatal to the session.
func ResolveTarget(ctx context.Context, p Prober, referenceEndpoint string, delta uint64) (Target, error) {
	ref, err := p.FetchProgress(ctx, referenceEndpoint)
	if err != nil {
		return Target{}, apperrors.New(apperrors.ErrCodeReferenceUnavailable, "Target",
			"cannot read reference progress from "+referenceEndpoint, err)
	}
	t := Target{Reference: ref, Target: ComputeTarget(ref, delta)}
	logger.Log.Info("Target resolved", "endpoint", referenceEndpoint, "reference", t.Reference, "delta", delta, "target", t.Target)
	return t, nil
}

// Personal.AI order the ending
