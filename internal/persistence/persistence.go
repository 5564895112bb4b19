// Package persistence implements the periodic snapshotter that serializes
// the store handler's state to disk, gated by the dirty flag, and the
// startup load path that restores it. Writes are atomic (temp file then
// rename) and guarded by an exclusive github.com/gofrs/flock lock against
// a concurrent snapshot attempt.
package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/ahnlich/ahnlich-db/internal/storehandler"
	"github.com/ahnlich/ahnlich-db/internal/wire"
)

// Snapshotter wakes every Interval, tests the handler's dirty flag, and if
// set, serializes the entire store handler graph to Path via an atomic
// temp-file-then-rename.
type Snapshotter struct {
	handler  *storehandler.Handler
	path     string
	interval time.Duration
	logger   *slog.Logger
	lock     *flock.Flock

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New constructs a Snapshotter. path is the persisted state file;
// interval is the tick period between dirty-flag checks.
func New(handler *storehandler.Handler, path string, interval time.Duration, logger *slog.Logger) *Snapshotter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Snapshotter{
		handler:  handler,
		path:     path,
		interval: interval,
		logger:   logger,
		lock:     flock.New(path + ".lock"),
	}
}

// LoadIfExists loads a prior snapshot from disk, if present, before any
// listener is opened. Returns false if the path does not exist (fresh
// start with empty state); any other read/decode error, including a
// snapshot whose major version differs from wire.CurrentVersion, is
// returned wrapped with context, and is fatal for the caller to handle.
func (sn *Snapshotter) LoadIfExists() (bool, error) {
	f, err := os.Open(sn.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("open persisted state: %w", err)
	}
	defer f.Close()

	_, payload, err := wire.ReadFrame(f)
	if err != nil {
		return false, fmt.Errorf("read persisted state frame: %w", err)
	}

	var snap storehandler.Snapshot
	if err := wire.Decode(payload, &snap); err != nil {
		return false, fmt.Errorf("decode persisted state: %w", err)
	}
	if !wire.CurrentVersion.IsCompatible(snap.Version) {
		return false, fmt.Errorf("persisted state version %s is incompatible with %s", snap.Version, wire.CurrentVersion)
	}

	if err := sn.handler.Import(snap); err != nil {
		return false, fmt.Errorf("restore persisted state: %w", err)
	}
	return true, nil
}

// Start launches the background snapshot loop. It returns immediately;
// call Stop to drain it.
func (sn *Snapshotter) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	sn.cancel = cancel

	sn.wg.Add(1)
	go func() {
		defer sn.wg.Done()
		ticker := time.NewTicker(sn.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if !sn.handler.TakeDirty() {
					continue
				}
				if err := sn.snapshotOnce(); err != nil {
					sn.logger.Error("snapshot failed, dirty flag retained for next tick", slog.String("error", err.Error()))
					sn.handler.MarkDirty()
				}
			}
		}
	}()
}

// Stop cancels the background loop and waits for it to finish, performing
// one final snapshot if the dirty flag is set at shutdown time.
func (sn *Snapshotter) Stop() {
	sn.stopOnce.Do(func() {
		if sn.cancel != nil {
			sn.cancel()
		}
		sn.wg.Wait()
		if sn.handler.TakeDirty() {
			if err := sn.snapshotOnce(); err != nil {
				sn.logger.Error("final snapshot failed", slog.String("error", err.Error()))
			}
		}
	})
}

func (sn *Snapshotter) snapshotOnce() error {
	locked, err := sn.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire snapshot lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("snapshot lock held by another writer")
	}
	defer sn.lock.Unlock()

	snap, err := sn.handler.Export()
	if err != nil {
		return fmt.Errorf("export store handler state: %w", err)
	}

	payload, err := wire.Encode(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmpPath := sn.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp snapshot file: %w", err)
	}
	if err := wire.WriteFrame(f, payload); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write snapshot frame: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, sn.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename snapshot into place: %w", err)
	}

	sn.logger.Debug("snapshot written", slog.String("path", sn.path))
	return nil
}
