// Package signals lets a second process steer a running orchestrator through
// files in a shared directory: "kill" stops the run, "pause" holds it until
// the file is removed.
package signals

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	// KillFile stops the run when created.
	KillFile = "kill"
	// PauseFile pauses the run while present.
	PauseFile = "pause"
)

// Handlers are invoked from the watcher goroutine. Nil handlers are skipped.
type Handlers struct {
	OnStop   func()
	OnPause  func()
	OnResume func()
}

// Watcher watches a signals directory.
type Watcher struct {
	dir      string
	handlers Handlers
	logger   *zap.Logger
	fsw      *fsnotify.Watcher

	closeOnce sync.Once
	closeErr  error
}

// DirIn returns the signals directory inside a state directory.
func DirIn(stateDir string) string {
	return filepath.Join(stateDir, "signals")
}

// NewWatcher creates the directory if needed, clears signals left over from a
// previous run, and starts watching. Call Run to dispatch events.
func NewWatcher(dir string, h Handlers, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create signals directory: %w", err)
	}
	if err := Clear(dir); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &Watcher{dir: dir, handlers: h, logger: logger, fsw: fsw}, nil
}

// Run dispatches signal events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("signal watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	created := event.Op&(fsnotify.Create|fsnotify.Write) != 0
	removed := event.Op&(fsnotify.Remove|fsnotify.Rename) != 0

	switch filepath.Base(event.Name) {
	case KillFile:
		if created {
			w.logger.Info("stop signal received")
			call(w.handlers.OnStop)
		}
	case PauseFile:
		switch {
		case created:
			w.logger.Info("pause signal received")
			call(w.handlers.OnPause)
		case removed:
			w.logger.Info("pause signal cleared")
			call(w.handlers.OnResume)
		}
	}
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.fsw.Close()
	})
	return w.closeErr
}

// SendKill creates the kill file in dir.
func SendKill(dir string) error {
	return writeSignal(dir, KillFile)
}

// SendPause creates the pause file in dir.
func SendPause(dir string) error {
	return writeSignal(dir, PauseFile)
}

// SendResume removes the pause file in dir.
func SendResume(dir string) error {
	err := os.Remove(filepath.Join(dir, PauseFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove pause signal: %w", err)
	}
	return nil
}

// Clear removes every signal file in dir.
func Clear(dir string) error {
	for _, name := range []string{KillFile, PauseFile} {
		err := os.Remove(filepath.Join(dir, name))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("clear %s signal: %w", name, err)
		}
	}
	return nil
}

func writeSignal(dir, name string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create signals directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644); err != nil {
		return fmt.Errorf("write %s signal: %w", name, err)
	}
	return nil
}
