package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ssargent/tickdb/pkg/api"
	"github.com/ssargent/tickdb/pkg/codec"
	"github.com/ssargent/tickdb/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamURL(t *testing.T) {
	tests := []struct {
		addr    string
		code    string
		want    string
		wantErr bool
	}{
		{"127.0.0.1:8080", "600000", "ws://127.0.0.1:8080/api/v1/ticks/S/600000/stream", false},
		{"http://db.local:8080/", "600000", "ws://db.local:8080/api/v1/ticks/S/600000/stream", false},
		{"https://db.local/proxy", "600000", "wss://db.local/proxy/api/v1/ticks/S/600000/stream", false},
		{"http://db.local/a%2Fb", "600000", "ws://db.local/a%2Fb/api/v1/ticks/S/600000/stream", false},
		{"127.0.0.1:8080", "AB/CD", "ws://127.0.0.1:8080/api/v1/ticks/S/AB%2FCD/stream", false},
		{"127.0.0.1:8080", "AB CD", "ws://127.0.0.1:8080/api/v1/ticks/S/AB%20CD/stream", false},
		{"ftp://db.local", "600000", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.addr+" "+tt.code, func(t *testing.T) {
			code, err := codec.NewCode(tt.code)
			require.NoError(t, err)
			got, err := streamURL(tt.addr, 'S', code)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTailCommand(t *testing.T) {
	env := newTestEnv(t)

	store, err := storage.Open(t.TempDir(), storage.Options{ChunkDuration: time.Minute})
	require.NoError(t, err)
	defer store.Close()

	reg := prometheus.NewRegistry()
	server := api.NewServer(store, api.ServerConfig{APIKey: "tail-key"}, api.NewMetrics(reg))
	srv := httptest.NewServer(api.NewRouter(server, reg))
	defer srv.Close()

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := env.run(t, "tail", "S", "600000",
			"--addr", srv.URL, "--api-key", "tail-key", "--count", "2", "-o", "json")
		done <- result{out: out, err: err}
	}()

	// Ticks ingested before the subscription is live are not streamed, so
	// keep ingesting until the command has seen enough.
	start := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	deadline := time.After(10 * time.Second)
	var res result
	for i := 0; ; i++ {
		body, err := json.Marshal([]api.TickPayload{{
			Market: "S", Code: "600000",
			Time:  start.Add(time.Duration(i) * time.Second),
			Price: int32(1000 + i), Qty: 100, Side: 'B',
		}})
		require.NoError(t, err)
		req, err := http.NewRequest("POST", srv.URL+"/api/v1/ticks", bytes.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("X-API-Key", "tail-key")
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		select {
		case res = <-done:
		case <-deadline:
			t.Fatal("tail did not finish")
		case <-time.After(50 * time.Millisecond):
			continue
		}
		break
	}

	require.NoError(t, res.err)
	var got []api.TickPayload
	for _, line := range strings.Split(res.out, "\n") {
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var p api.TickPayload
		require.NoError(t, json.Unmarshal([]byte(line), &p))
		got = append(got, p)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "600000", got[0].Code)
	assert.Equal(t, got[0].Price+1, got[1].Price)
}

func TestTailCommandRejectedKey(t *testing.T) {
	env := newTestEnv(t)

	store, err := storage.Open(t.TempDir(), storage.Options{ChunkDuration: time.Minute})
	require.NoError(t, err)
	defer store.Close()

	reg := prometheus.NewRegistry()
	server := api.NewServer(store, api.ServerConfig{APIKey: "tail-key"}, api.NewMetrics(reg))
	srv := httptest.NewServer(api.NewRouter(server, reg))
	defer srv.Close()

	_, err = env.run(t, "tail", "S", "600000", "--addr", srv.URL, "--api-key", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect")
}
