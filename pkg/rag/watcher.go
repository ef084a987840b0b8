package rag

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// MaterialsWatcher watches a materials directory for changes and reports
// them, debounced, through a single callback.
type MaterialsWatcher struct {
	watcher  *fsnotify.Watcher
	logger   zerolog.Logger
	onDirty  func()
	debounce time.Duration
	timer    *time.Timer
	stopCh   chan struct{}
}

// NewMaterialsWatcher creates a watcher that fires onDirty after changes
// settle.
func NewMaterialsWatcher(logger zerolog.Logger, onDirty func()) (*MaterialsWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	mw := &MaterialsWatcher{
		watcher:  watcher,
		logger:   logger.With().Str("component", "materials_watcher").Logger(),
		onDirty:  onDirty,
		debounce: 500 * time.Millisecond,
		stopCh:   make(chan struct{}),
	}

	go mw.run()

	return mw, nil
}

// Watch starts watching a directory.
func (mw *MaterialsWatcher) Watch(path string) error {
	return mw.watcher.Add(path)
}

// Stop stops the watcher.
func (mw *MaterialsWatcher) Stop() error {
	close(mw.stopCh)
	return mw.watcher.Close()
}

func (mw *MaterialsWatcher) run() {
	for {
		select {
		case event, ok := <-mw.watcher.Events:
			if !ok {
				return
			}

			if !isMaterialFile(event.Name) {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				mw.logger.Debug().
					Str("file", filepath.Base(event.Name)).
					Str("op", event.Op.String()).
					Msg("material change detected")

				mw.scheduleMarkDirty()
			}

		case err, ok := <-mw.watcher.Errors:
			if !ok {
				return
			}
			mw.logger.Error().Err(err).Msg("materials watcher error")

		case <-mw.stopCh:
			return
		}
	}
}

// scheduleMarkDirty debounces the dirty notification.
func (mw *MaterialsWatcher) scheduleMarkDirty() {
	if mw.timer != nil {
		mw.timer.Stop()
	}

	mw.timer = time.AfterFunc(mw.debounce, func() {
		mw.logger.Debug().Msg("marking materials dirty after changes")
		mw.onDirty()
	})
}

func isMaterialFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".txt":
		return true
	}
	return false
}
