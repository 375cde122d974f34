// Package watch reports changes to a definitions directory.
package watch

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce batches bursts of writes from editors into one callback.
const DefaultDebounce = 200 * time.Millisecond

// Watcher calls OnChange after definition files in Dir change. The callback
// runs on the goroutine that called Run, so it may touch single-threaded
// state owned by that goroutine.
type Watcher struct {
	Dir        string
	Extensions []string
	Debounce   time.Duration
	Logger     *zap.Logger
	OnChange   func(ctx context.Context)
}

// Run blocks until ctx is cancelled or the underlying watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	if w.OnChange == nil {
		return errors.New("watch: OnChange is required")
	}
	logger := w.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(w.Dir); err != nil {
		return err
	}
	logger.Info("watching definitions", zap.String("dir", w.Dir))

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			logger.Debug("definition changed", zap.String("path", event.Name), zap.String("op", event.Op.String()))
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", zap.Error(err))

		case <-timer.C:
			w.OnChange(ctx)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	if len(w.Extensions) == 0 {
		return true
	}
	return slices.Contains(w.Extensions, strings.ToLower(filepath.Ext(event.Name)))
}
