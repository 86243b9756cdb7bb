package wasm

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lsm/karajan/internal/host"
)

const reloadDebounce = 200 * time.Millisecond

// Reloader serves calls from the current runtime and rebuilds it when the
// module file changes. In-flight calls finish on the old runtime before it
// is closed. A module that fails to load leaves the previous one in place.
type Reloader struct {
	factory Factory
	cfg     Config
	host    host.Host
	logger  *slog.Logger

	mu      sync.RWMutex
	current Runtime

	watcher *fsnotify.Watcher
	reloads atomic.Int64
	done    chan struct{}
	stop    context.CancelFunc
}

func NewReloader(ctx context.Context, factory Factory, cfg Config, h host.Host, logger *slog.Logger) (*Reloader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt, err := factory.Create(ctx, cfg, h)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: build tools usually replace the file rather than
	// write it in place, which drops a watch on the file itself.
	if err := watcher.Add(filepath.Dir(cfg.ModulePath)); err != nil {
		_ = watcher.Close()
		_ = rt.Close()
		return nil, fmt.Errorf("watch %s: %w", cfg.ModulePath, err)
	}

	watchCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	r := &Reloader{
		factory: factory,
		cfg:     cfg,
		host:    h,
		logger:  logger,
		current: rt,
		watcher: watcher,
		done:    make(chan struct{}),
		stop:    stop,
	}
	go r.watch(watchCtx)
	return r, nil
}

func (r *Reloader) watch(ctx context.Context) {
	defer close(r.done)

	target := filepath.Clean(r.cfg.ModulePath)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Error("module watcher error", "error", err)
		case <-fire:
			fire = nil
			if err := r.Reload(ctx); err != nil {
				r.logger.Error("module reload failed, keeping previous module", "module", r.cfg.ModulePath, "error", err)
			}
		}
	}
}

// Reload rebuilds the runtime from the module file and swaps it in.
func (r *Reloader) Reload(ctx context.Context) error {
	rt, err := r.factory.Create(ctx, r.cfg, r.host)
	if err != nil {
		return err
	}

	r.mu.Lock()
	old := r.current
	r.current = rt
	r.mu.Unlock()

	r.reloads.Add(1)
	r.logger.Info("module reloaded", "module", r.cfg.ModulePath)
	if err := old.Close(); err != nil {
		r.logger.Warn("close previous runtime", "error", err)
	}
	return nil
}

// Reloads reports how many times the runtime has been swapped.
func (r *Reloader) Reloads() int64 {
	return r.reloads.Load()
}

func (r *Reloader) Call(ctx context.Context, input []byte) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.Call(ctx, input)
}

func (r *Reloader) Type() RuntimeType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.Type()
}

func (r *Reloader) Close() error {
	r.stop()
	werr := r.watcher.Close()
	<-r.done

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.current.Close(); err != nil {
		return err
	}
	return werr
}
