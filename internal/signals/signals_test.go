package signals

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestWatcherDispatchesSignals(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "signals")
	stop := make(chan struct{}, 4)
	pause := make(chan struct{}, 4)
	resume := make(chan struct{}, 4)

	w, err := NewWatcher(dir, Handlers{
		OnStop:   func() { stop <- struct{}{} },
		OnPause:  func() { pause <- struct{}{} },
		OnResume: func() { resume <- struct{}{} },
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, SendPause(dir))
	waitFor(t, pause, "pause")

	require.NoError(t, SendResume(dir))
	waitFor(t, resume, "resume")

	require.NoError(t, SendKill(dir))
	waitFor(t, stop, "stop")

	cancel()
	assert.NoError(t, <-done)
	assert.NoError(t, w.Close(), "Close after Run is a no-op")
}

func TestNewWatcherClearsStaleSignals(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SendKill(dir))
	require.NoError(t, SendPause(dir))

	w, err := NewWatcher(dir, Handlers{}, nil)
	require.NoError(t, err)
	defer w.Close()

	for _, name := range []string{KillFile, PauseFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.True(t, os.IsNotExist(err), "%s should be cleared", name)
	}
}

func TestSendResumeWithoutPause(t *testing.T) {
	assert.NoError(t, SendResume(t.TempDir()))
}

func TestDirIn(t *testing.T) {
	assert.Equal(t, filepath.Join("state", "signals"), DirIn("state"))
}
