package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/brunobiangulo/qoyllur"
)

// engineBox holds the live engine. Handlers load it per request, so a
// reload never disturbs a request in flight.
type engineBox struct {
	cur     atomic.Pointer[loaded]
	metrics *metrics
}

type loaded struct {
	engine   qoyllur.Engine
	loadedAt time.Time
}

func newEngineBox(e qoyllur.Engine, m *metrics) *engineBox {
	b := &engineBox{metrics: m}
	b.store(e)
	return b
}

func (b *engineBox) load() *loaded { return b.cur.Load() }

func (b *engineBox) store(e qoyllur.Engine) {
	b.cur.Store(&loaded{engine: e, loadedAt: time.Now()})
	st := e.Stats()
	b.metrics.entities.Set(float64(st.Entities))
	if st.FromCache {
		b.metrics.fromCache.Set(1)
	} else {
		b.metrics.fromCache.Set(0)
	}
}

// reload rebuilds the engine from cfg. On failure the current engine stays.
func (b *engineBox) reload(ctx context.Context, cfg qoyllur.Config) error {
	start := time.Now()
	e, err := qoyllur.New(ctx, cfg)
	if err != nil {
		b.metrics.reloads.WithLabelValues("error").Inc()
		slog.Error("reload: keeping previous graph", "path", cfg.GraphPath, "error", err)
		return err
	}
	b.store(e)
	b.metrics.reloads.WithLabelValues("ok").Inc()
	slog.Info("reload: graph swapped",
		"path", cfg.GraphPath, "entities", e.Stats().Entities,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// graphWatcher rebuilds the engine when the graph file changes. It watches
// the parent directory so editors that replace the file by rename are seen.
type graphWatcher struct {
	box      *engineBox
	cfg      qoyllur.Config
	debounce time.Duration
	fsw      *fsnotify.Watcher
	done     chan struct{}
}

func newGraphWatcher(box *engineBox, cfg qoyllur.Config, debounce time.Duration) (*graphWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(cfg.GraphPath)); err != nil {
		fsw.Close()
		return nil, err
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &graphWatcher{box: box, cfg: cfg, debounce: debounce, fsw: fsw, done: make(chan struct{})}, nil
}

// run processes events until ctx is done, then closes the watcher.
func (w *graphWatcher) run(ctx context.Context) {
	defer close(w.done)
	defer w.fsw.Close()

	target := filepath.Clean(w.cfg.GraphPath)
	var timer *time.Timer
	var fire <-chan time.Time
	slog.Info("reload: watching graph", "path", target, "debounce", w.debounce)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			slog.Debug("reload: graph changed", "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("reload: watcher error", "error", err)

		case <-fire:
			fire = nil
			_ = w.box.reload(ctx, w.cfg)
		}
	}
}

// wait blocks until run has returned.
func (w *graphWatcher) wait() { <-w.done }
