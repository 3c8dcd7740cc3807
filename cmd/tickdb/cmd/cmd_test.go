package cmd

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/ssargent/tickdb/pkg/api"
	"github.com/ssargent/tickdb/pkg/config"
	"github.com/ssargent/tickdb/pkg/di"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag to its default so commands can run repeatedly.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

type testEnv struct {
	configPath string
	dataDir    string
}

func newTestEnv(t *testing.T) testEnv {
	tmpDir := t.TempDir()
	return testEnv{
		configPath: filepath.Join(tmpDir, "config.yaml"),
		dataDir:    filepath.Join(tmpDir, "data"),
	}
}

// run executes a command against the test store using one minute chunks.
func (e testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return e.runStored(t, append(args, "--chunk", "1m")...)
}

// runStored executes a command without --chunk, so the store decides.
func (e testEnv) runStored(t *testing.T, args ...string) (string, error) {
	t.Helper()
	args = append(args, "--config", e.configPath, "--data-dir", e.dataDir, "--log-level", "warn")
	return executeCommand(t, args...)
}

func TestInitCommand(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "TickDB initialized")
	assert.DirExists(t, env.dataDir)

	loaded, err := config.LoadConfig(env.configPath)
	require.NoError(t, err)
	assert.Equal(t, env.dataDir, loaded.DataDir)
	assert.Equal(t, config.Duration(time.Minute), loaded.Storage.ChunkDuration)
	assert.Equal(t, "warn", loaded.Logging.Level)
	assert.Len(t, loaded.Security.APIKey, 64)
	_, err = hex.DecodeString(loaded.Security.APIKey)
	assert.NoError(t, err)

	t.Run("existing config is kept", func(t *testing.T) {
		out, err := env.run(t, "init")
		require.NoError(t, err)
		assert.Contains(t, out, "already exists")

		again, err := config.LoadConfig(env.configPath)
		require.NoError(t, err)
		assert.Equal(t, loaded.Security.APIKey, again.Security.APIKey)
	})

	t.Run("force regenerates the key", func(t *testing.T) {
		_, err := env.run(t, "init", "--force")
		require.NoError(t, err)

		again, err := config.LoadConfig(env.configPath)
		require.NoError(t, err)
		assert.NotEqual(t, loaded.Security.APIKey, again.Security.APIKey)
	})
}

func TestInvalidSettings(t *testing.T) {
	env := newTestEnv(t)

	_, err := executeCommand(t, "chunks", "S", "600000",
		"--config", env.configPath, "--data-dir", env.dataDir, "--chunk", "2h")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_duration")

	_, err = executeCommand(t, "chunks", "S", "600000",
		"--config", env.configPath, "--data-dir", env.dataDir, "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}

func TestPutScanAndChunks(t *testing.T) {
	env := newTestEnv(t)

	ticks := []struct {
		time  string
		price string
		side  string
	}{
		{"2024-01-02T09:30:00.000123Z", "1050", "B"},
		{"2024-01-02T09:30:30Z", "1060", "S"},
		{"2024-01-02T09:31:10Z", "1040", "B"},
	}
	for i, tk := range ticks {
		out, err := env.run(t, "put",
			"--market", "S", "--code", "600000",
			"--time", tk.time, "--price", tk.price, "--qty", "100",
			"--side", tk.side, "--tick-no", string(rune('1'+i)))
		require.NoError(t, err)
		assert.Contains(t, out, "Stored tick S 600000")
	}

	rangeArgs := []string{"--from", "2024-01-02T09:30:00Z", "--to", "2024-01-02T10:00:00Z"}

	t.Run("table", func(t *testing.T) {
		out, err := env.run(t, append([]string{"scan", "S", "600000"}, rangeArgs...)...)
		require.NoError(t, err)
		assert.Contains(t, out, "TIME")
		assert.Contains(t, out, "2024-01-02T09:30:00.000123Z")
		assert.Contains(t, out, "1060")
	})

	t.Run("json with side filter", func(t *testing.T) {
		out, err := env.run(t, append([]string{"scan", "S", "600000", "--side", "B", "-o", "json"}, rangeArgs...)...)
		require.NoError(t, err)

		var got []api.TickPayload
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		require.Len(t, got, 2)
		assert.Equal(t, int32(1050), got[0].Price)
		assert.Equal(t, int32(1040), got[1].Price)
		assert.Equal(t, uint8('B'), got[0].Side)
	})

	t.Run("summary", func(t *testing.T) {
		out, err := env.run(t, append([]string{"scan", "S", "600000", "--summary", "-o", "json"}, rangeArgs...)...)
		require.NoError(t, err)

		var sum struct {
			Count    int    `json:"count"`
			High     int32  `json:"high"`
			Low      int32  `json:"low"`
			TotalQty uint64 `json:"total_qty"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &sum))
		assert.Equal(t, 3, sum.Count)
		assert.Equal(t, int32(1060), sum.High)
		assert.Equal(t, int32(1040), sum.Low)
		assert.Equal(t, uint64(300), sum.TotalQty)
	})

	t.Run("chunks", func(t *testing.T) {
		out, err := env.run(t, "chunks", "S", "600000", "-o", "json")
		require.NoError(t, err)

		var chunks []api.ChunkInfo
		require.NoError(t, json.Unmarshal([]byte(out), &chunks))
		require.Len(t, chunks, 2)
		first := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
		assert.Equal(t, uint64(first.UnixMilli()), chunks[0].BaseMs)
		assert.Equal(t, uint64(first.Add(time.Minute).UnixMilli()), chunks[1].BaseMs)

		out, err = env.run(t, "chunks", "S", "600000", "--delete", "1704187800000")
		require.NoError(t, err)
		assert.Contains(t, out, "Deleted chunk 1704187800000")

		out, err = env.run(t, append([]string{"scan", "S", "600000", "-o", "json"}, rangeArgs...)...)
		require.NoError(t, err)
		var got []api.TickPayload
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		require.Len(t, got, 1)
		assert.Equal(t, int32(1040), got[0].Price)
	})

	t.Run("bad arguments", func(t *testing.T) {
		_, err := env.run(t, append([]string{"scan", "SZ", "600000"}, rangeArgs...)...)
		assert.Error(t, err)

		_, err = env.run(t, "scan", "S", "600000", "--from", "yesterday", "--to", "2024-01-02T10:00:00Z")
		assert.Error(t, err)

		_, err = env.run(t, "put", "--market", "S", "--code", "0123456789")
		assert.Error(t, err)
	})
}

func TestReopenWithoutChunkFlag(t *testing.T) {
	env := newTestEnv(t)

	for i, at := range []string{"2024-01-02T09:30:10Z", "2024-01-02T09:31:10Z"} {
		_, err := env.run(t, "put", "--market", "S", "--code", "600000",
			"--time", at, "--price", strconv.Itoa(1000+i), "--qty", "10")
		require.NoError(t, err)
	}

	rangeArgs := []string{"--from", "2024-01-02T09:30:00Z", "--to", "2024-01-02T10:00:00Z"}
	out, err := env.runStored(t, append([]string{"scan", "S", "600000", "-o", "json"}, rangeArgs...)...)
	require.NoError(t, err)
	var got []api.TickPayload
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)

	out, err = env.runStored(t, "chunks", "S", "600000", "-o", "json")
	require.NoError(t, err)
	var chunks []api.ChunkInfo
	require.NoError(t, json.Unmarshal([]byte(out), &chunks))
	require.Len(t, chunks, 2)
	assert.Equal(t, uint64(time.Minute.Milliseconds()), chunks[1].BaseMs-chunks[0].BaseMs)

	_, err = env.runStored(t, "put", "--market", "S", "--code", "600000",
		"--time", "2024-01-02T09:32:10Z", "--price", "1002", "--qty", "10")
	require.NoError(t, err)

	_, err = env.runStored(t, append([]string{"scan", "S", "600000", "--chunk", "1h"}, rangeArgs...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk duration mismatch")
}

func TestInitDefaultChunk(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.runStored(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Chunk duration: 1h0m0s")

	loaded, err := config.LoadConfig(env.configPath)
	require.NoError(t, err)
	assert.Zero(t, loaded.Storage.ChunkDuration)

	out, err = env.runStored(t, "stats", "-o", "json")
	require.NoError(t, err)
	var st struct {
		ChunkDuration time.Duration `json:"chunk_duration"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, time.Hour, st.ChunkDuration)
}

func TestSeriesStatsAndPaging(t *testing.T) {
	env := newTestEnv(t)

	puts := []struct{ market, code, at string }{
		{"S", "600000", "2024-01-02T09:30:00Z"},
		{"S", "600000", "2024-01-02T09:30:01Z"},
		{"S", "600000", "2024-01-02T09:30:02Z"},
		{"Z", "000001", "2024-01-02T09:30:00Z"},
		{"S", "AB/CD", "2024-01-02T09:30:00Z"},
	}
	for i, p := range puts {
		_, err := env.run(t, "put", "--market", p.market, "--code", p.code,
			"--time", p.at, "--price", strconv.Itoa(100+i), "--qty", "1")
		require.NoError(t, err)
	}

	out, err := env.run(t, "series", "-o", "json")
	require.NoError(t, err)
	var series []api.SeriesInfo
	require.NoError(t, json.Unmarshal([]byte(out), &series))
	assert.Equal(t, []api.SeriesInfo{
		{Market: "S", Code: "600000"},
		{Market: "S", Code: "AB/CD"},
		{Market: "Z", Code: "000001"},
	}, series)

	out, err = env.run(t, "series")
	require.NoError(t, err)
	assert.Contains(t, out, "MARKET")
	assert.Contains(t, out, "AB/CD")

	out, err = env.run(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Ticks:")
	assert.Regexp(t, `Ticks:\s+5`, out)
	assert.Regexp(t, `Series:\s+3`, out)

	out, err = env.run(t, "scan", "S", "600000", "--from", "2024-01-02T09:30:00Z",
		"--to", "2024-01-02T09:31:00Z", "--limit", "2", "--offset", "1", "-o", "json")
	require.NoError(t, err)
	var page []api.TickPayload
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Len(t, page, 2)
	assert.Equal(t, int32(101), page[0].Price)
	assert.Equal(t, int32(102), page[1].Price)

	out, err = env.run(t, "scan", "S", "600000", "--from", "2024-01-03T09:30:00Z",
		"--to", "2024-01-03T09:31:00Z", "--summary")
	require.NoError(t, err)
	assert.Contains(t, out, "No ticks found")
}

func TestEncodeCommand(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "encode",
		"--market", "S", "--code", "600000",
		"--time", "2023-11-14T22:13:00.001Z", "--seq", "7",
		"--price", "-1050", "--qty", "200")
	require.NoError(t, err)

	assert.Contains(t, out, "1699999980000")
	assert.Contains(t, out, "533630303030302020200000018bcfe519e0")
	assert.Contains(t, out, "000003e80007")
	assert.Contains(t, out, "fffffbe6000000c8")
	assert.NoDirExists(t, env.dataDir)
}

type fakeServerStarter struct {
	called bool
	config api.ServerConfig
}

func (f *fakeServerStarter) StartServer(ctx context.Context, store api.TickStore, config api.ServerConfig) error {
	f.called = true
	f.config = config
	return nil
}

type fakeServerFactory struct {
	starter *fakeServerStarter
}

func (f *fakeServerFactory) CreateServerStarter() api.ServerStarter {
	return f.starter
}

func TestServeCommand(t *testing.T) {
	env := newTestEnv(t)

	starter := &fakeServerStarter{}
	container := di.NewContainer()
	container.SetServerFactory(&fakeServerFactory{starter: starter})
	SetContainer(container)
	defer SetContainer(nil)

	_, err := env.run(t, "serve", "--port", "9123", "--api-key", "secret")
	require.NoError(t, err)

	require.True(t, starter.called)
	assert.Equal(t, 9123, starter.config.Port)
	assert.Equal(t, "127.0.0.1", starter.config.Bind)
	assert.Equal(t, "secret", starter.config.APIKey)
	assert.NotNil(t, starter.config.Logger)

	t.Run("generates a key when none is configured", func(t *testing.T) {
		out, err := env.run(t, "serve")
		require.NoError(t, err)
		assert.Contains(t, out, "Generated API key")
		assert.Len(t, starter.config.APIKey, 64)
	})

	t.Run("missing container", func(t *testing.T) {
		SetContainer(nil)
		_, err := env.run(t, "serve")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dependency container not initialized")
	})
}
