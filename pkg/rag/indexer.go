package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Indexer keeps the MaterialIndex in sync with an on-disk materials tree.
// Layout: <root>/<courseID>/<material file>. A directory watcher marks the
// tree dirty; a cron schedule re-syncs dirty trees in the background.
type Indexer struct {
	root    string
	index   *MaterialIndex
	logger  zerolog.Logger
	watcher *MaterialsWatcher
	cron    *cron.Cron

	mu    sync.Mutex
	dirty bool
}

// NewIndexer creates an indexer over the materials root directory.
func NewIndexer(root string, index *MaterialIndex, logger zerolog.Logger) *Indexer {
	return &Indexer{
		root:   root,
		index:  index,
		logger: logger.With().Str("component", "material_indexer").Logger(),
		dirty:  true, // force an initial sync
	}
}

// Start performs an initial sync, then watches for changes and schedules
// periodic re-syncs. schedule is a cron spec such as "@every 5m".
func (ix *Indexer) Start(ctx context.Context, schedule string) error {
	if err := ix.Sync(ctx); err != nil {
		return err
	}

	watcher, err := NewMaterialsWatcher(ix.logger, ix.markDirty)
	if err != nil {
		return fmt.Errorf("failed to create materials watcher: %w", err)
	}
	ix.watcher = watcher

	if err := ix.watchTree(); err != nil {
		ix.logger.Warn().Err(err).Msg("failed to watch materials tree")
	}

	ix.cron = cron.New()
	if _, err := ix.cron.AddFunc(schedule, func() {
		if err := ix.Sync(context.Background()); err != nil {
			ix.logger.Error().Err(err).Msg("scheduled sync failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", schedule, err)
	}
	ix.cron.Start()

	return nil
}

// Stop halts the watcher and the sync schedule.
func (ix *Indexer) Stop() {
	if ix.cron != nil {
		ix.cron.Stop()
	}
	if ix.watcher != nil {
		_ = ix.watcher.Stop()
	}
}

func (ix *Indexer) markDirty() {
	ix.mu.Lock()
	ix.dirty = true
	ix.mu.Unlock()
}

func (ix *Indexer) watchTree() error {
	if err := ix.watcher.Watch(ix.root); err != nil {
		return err
	}

	entries, err := os.ReadDir(ix.root)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			if err := ix.watcher.Watch(filepath.Join(ix.root, entry.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

// Sync walks the materials tree and indexes changed files. It is a no-op
// when nothing was marked dirty since the last sync.
func (ix *Indexer) Sync(ctx context.Context) error {
	ix.mu.Lock()
	if !ix.dirty {
		ix.mu.Unlock()
		return nil
	}
	ix.dirty = false
	ix.mu.Unlock()

	entries, err := os.ReadDir(ix.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read materials root: %w", err)
	}

	indexed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		courseID := entry.Name()
		courseDir := filepath.Join(ix.root, courseID)

		files, err := os.ReadDir(courseDir)
		if err != nil {
			ix.logger.Warn().Err(err).Str("course_id", courseID).Msg("failed to read course materials")
			continue
		}

		for _, f := range files {
			if f.IsDir() || !isMaterialFile(f.Name()) {
				continue
			}

			content, err := os.ReadFile(filepath.Join(courseDir, f.Name()))
			if err != nil {
				ix.logger.Warn().Err(err).Str("file", f.Name()).Msg("failed to read material")
				continue
			}

			materialID := strings.TrimSuffix(f.Name(), filepath.Ext(f.Name()))
			if err := ix.index.IndexMaterial(ctx, courseID, materialID, string(content)); err != nil {
				ix.logger.Warn().Err(err).Str("material_id", materialID).Msg("failed to index material")
				continue
			}
			indexed++
		}
	}

	ix.logger.Info().Int("materials", indexed).Msg("materials sync complete")
	return nil
}
