package metrics

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// freeAddr returns a loopback address with an OS-assigned free port,
// released immediately for the server under test to rebind.
func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestObserveStepDurationRecordsFailure(t *testing.T) {
	RunnerStepFailuresTotal.Reset()

	ObserveStepDuration("dump_layout", 10*time.Millisecond, true)

	assert.Equal(t, float64(1), testutil.ToFloat64(RunnerStepFailuresTotal.WithLabelValues("dump_layout")))
}

func TestServerExposesMetricsAndHealthEndpoints(t *testing.T) {
	RecordsCaptured.WithLabelValues("buffer").Inc()

	addr := freeAddr(t)
	srv := NewServer(addr, nil)
	srv.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, time.Second, 10*time.Millisecond)
}
