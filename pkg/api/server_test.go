package api

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ssargent/tickdb/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartServer_ShutsDownOnCancel(t *testing.T) {
	store, err := storage.Open(t.TempDir(), storage.Options{})
	require.NoError(t, err)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- StartServer(ctx, store, ServerConfig{
			Port:            0,
			Bind:            "127.0.0.1",
			APIKey:          "test-key",
			MetricsInterval: 10 * time.Millisecond,
			Registerer:      prometheus.NewRegistry(),
		})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestStartServer_BindFailure(t *testing.T) {
	store, err := storage.Open(t.TempDir(), storage.Options{})
	require.NoError(t, err)
	defer store.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	err = StartServer(context.Background(), store, ServerConfig{
		Port:       ln.Addr().(*net.TCPAddr).Port,
		Bind:       "127.0.0.1",
		APIKey:     "test-key",
		Registerer: prometheus.NewRegistry(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server failed")
}

func TestServerFactory(t *testing.T) {
	factory := NewServerFactory()
	starter := factory.CreateServerStarter()
	require.NotNil(t, starter)
	_, ok := starter.(*DefaultServerStarter)
	assert.True(t, ok)
}

func TestMetrics_InstrumentHandlerCountsRequests(t *testing.T) {
	env := setupTestServer(t)

	for i := 0; i < 3; i++ {
		w, _ := env.do(t, "GET", "/api/v1/health", nil)
		require.Equal(t, 200, w.Code)
	}

	families, err := env.reg.Gather()
	require.NoError(t, err)

	var health, auth float64
	for _, mf := range families {
		switch mf.GetName() {
		case "tickdb_health_checks_total":
			for _, m := range mf.GetMetric() {
				health += m.GetCounter().GetValue()
			}
		case "tickdb_auth_requests_total":
			for _, m := range mf.GetMetric() {
				auth += m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, float64(3), health)
	assert.Equal(t, float64(3), auth)
}
