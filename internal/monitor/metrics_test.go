package monitor

import (
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/nodesync/pkg/consts"
	apperrors "github.com/turtacn/nodesync/pkg/errors"
)

func TestMetricsValues(t *testing.T) {
	m := NewMetrics()
	m.RecordTarget(1000, 21000)
	m.RecordTick(1500, 21000)
	m.RecordReferenceReached(1000, 33.5)
	m.RecordStall(90 * time.Second)
	m.RecordProbeFailure(apperrors.ErrCodeMalformedResponse)
	m.RecordVerdict(nil)
	m.RecordVerdict(apperrors.New(apperrors.ErrCodeStallTimeout, "Monitor", "stalled", nil))

	assert.Equal(t, 1500.0, testutil.ToFloat64(m.Progress))
	assert.Equal(t, 21000.0, testutil.ToFloat64(m.TargetProgress))
	assert.Equal(t, 1000.0, testutil.ToFloat64(m.ReferenceProgress))
	assert.Equal(t, 33.5, testutil.ToFloat64(m.Throughput))
	assert.Equal(t, 90.0, testutil.ToFloat64(m.StalledSeconds))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProbeFailures.WithLabelValues("malformed_response")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Verdicts.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Verdicts.WithLabelValues("stall_timeout")))
}

func TestRecordPhase_OneHot(t *testing.T) {
	m := NewMetrics()
	m.RecordPhase(consts.PhaseStarting)
	m.RecordPhase(consts.PhaseSyncing)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Phase.WithLabelValues(string(consts.PhaseSyncing))))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Phase.WithLabelValues(string(consts.PhaseStarting))))
}

func TestServe_ExposesRegistry(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	m := NewMetrics()
	m.RecordTick(7, 9)
	srv := m.Serve(addr)
	t.Cleanup(func() { _ = srv.Close() })

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		body = string(data)
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)
	assert.True(t, strings.Contains(body, "nodesync_progress 7"))
}
