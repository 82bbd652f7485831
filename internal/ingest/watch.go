package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ErrRunInProgress is returned when an ingestion run is already active
var ErrRunInProgress = errors.New("ingestion already in progress")

// IngestFile loads the parents file and ingests it. Generated parent ids
// are written back to the file first, so later runs reuse them. Only one
// run may be active per Ingester.
func (i *Ingester) IngestFile(ctx context.Context, path string) (*Stats, error) {
	if !i.lock.TryAcquire() {
		return nil, ErrRunInProgress
	}
	defer i.lock.Release()

	parents, assigned, err := LoadParents(path)
	if err != nil {
		return nil, err
	}
	if assigned {
		if err := SaveParents(path, parents); err != nil {
			return nil, fmt.Errorf("save parent ids: %w", err)
		}
		i.logger.Info("assigned parent ids", "path", path)
	}
	return i.Run(ctx, parents)
}

// Watch re-ingests path every time it is written or replaced, until ctx is
// cancelled. Events that arrive while a run is active are skipped. The
// parent directory is watched and events are filtered to path. done, if
// set, receives each run's outcome.
func (i *Ingester) Watch(ctx context.Context, path string, done func(*Stats, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	i.logger.Info("watching knowledge base", "path", abs)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			go func() {
				stats, err := i.IngestFile(ctx, abs)
				if errors.Is(err, ErrRunInProgress) {
					i.logger.Debug("skipping change, run in progress", "path", abs)
					return
				}
				if err != nil {
					i.logger.Error("re-ingest failed", "path", abs, "error", err)
				}
				if done != nil {
					done(stats, err)
				}
			}()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			i.logger.Warn("watch error", "error", err)
		}
	}
}
