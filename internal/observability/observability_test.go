package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	lg := NewLoggerTo(&buf, "warn")
	lg.Info("hidden")
	lg.Warn("frame dropped", "protocol", "huasheng")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &m))
	assert.Equal(t, "frame dropped", m["msg"])
	assert.Equal(t, "huasheng", m["protocol"])
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(FramesDropped.WithLabelValues("robotrack", "checksum"))
	FramesDropped.WithLabelValues("robotrack", "checksum").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(FramesDropped.WithLabelValues("robotrack", "checksum")))

	ObserveParseLatency("robotrack", time.Now())
}

func TestMetricsServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- StartMetricsServer(ctx, port) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://127.0.0.1:" + port + "/healthz")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}
