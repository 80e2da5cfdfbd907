package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogging(t *testing.T) {
	dir := t.TempDir()

	closer, path, err := SetupLogging("debug", dir)
	require.NoError(t, err)
	defer func() { _ = closer.Close() }()

	assert.Contains(t, path, dir)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestSetupLogging_BadLevel(t *testing.T) {
	_, _, err := SetupLogging("chatty", t.TempDir())
	assert.Error(t, err)
}

func TestInitOTEL_NoEndpoint(t *testing.T) {
	shutdown, err := InitOTEL(context.Background(), Config{ServiceName: "kartta-test"})
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	require.NotNil(t, PrometheusRegistry)
	assert.NotNil(t, FetchErrors)
	assert.NotNil(t, RowsExtracted)
	assert.NotNil(t, PhaseDuration)
}

func TestFlushMetrics(t *testing.T) {
	shutdown, err := InitOTEL(context.Background(), Config{ServiceName: "kartta-test"})
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	FetchErrors.Add(context.Background(), 1)

	path := filepath.Join(t.TempDir(), "kartta.prom")
	require.NoError(t, FlushMetrics(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "kartta_fetch_errors")
}

func TestLogPhase_RecordsDuration(t *testing.T) {
	shutdown, err := InitOTEL(context.Background(), Config{ServiceName: "kartta-test"})
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	LogPhase(context.Background(), "fetch apps", time.Now().Add(-10*time.Millisecond), nil)

	path := filepath.Join(t.TempDir(), "kartta.prom")
	require.NoError(t, FlushMetrics(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "kartta_phase_duration_seconds")
	assert.Contains(t, string(data), `phase="fetch apps"`)
}

func TestLogPhase_UninitializedHistogram(t *testing.T) {
	saved := PhaseDuration
	PhaseDuration = nil
	defer func() { PhaseDuration = saved }()

	// must not panic without InitOTEL
	LogPhase(context.Background(), "fetch apps", time.Now(), nil)
}

func TestFlushMetrics_EmptyPathNoop(t *testing.T) {
	assert.NoError(t, FlushMetrics(""))
}
