// Package poll receives updates with getUpdates long polling.
package poll

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/lsm/karajan/internal/source"
)

const (
	DefaultTimeout    = 60 * time.Second
	DefaultMaxBackoff = 60 * time.Second
)

// Fetcher is the part of the Bot API client the poller needs.
type Fetcher interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]json.RawMessage, error)
}

// Config holds long polling configuration.
type Config struct {
	// Timeout is the server-side long poll timeout.
	Timeout time.Duration
	// MaxBackoff caps the sleep after consecutive fetch errors.
	MaxBackoff time.Duration
	// Offset to start from; 0 lets Telegram pick the oldest unconfirmed update.
	Offset int64
}

// Option configures a Source.
type Option func(*Source)

// WithErrorHook is called after every failed fetch, before the backoff sleep.
func WithErrorHook(fn func(error)) Option {
	return func(s *Source) { s.onError = fn }
}

// WithSleep replaces the backoff sleep, for tests.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(s *Source) { s.sleep = fn }
}

// Source polls getUpdates in a loop. An update is confirmed by requesting
// the next batch with an offset past it, so a crash replays at most the
// batch in flight.
type Source struct {
	fetcher Fetcher
	cfg     Config
	logger  *slog.Logger
	onError func(error)
	sleep   func(context.Context, time.Duration) error

	mu     sync.Mutex
	offset int64
	cancel context.CancelFunc
}

func NewSource(f Fetcher, cfg Config, logger *slog.Logger, opts ...Option) *Source {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Source{
		fetcher: f,
		cfg:     cfg,
		logger:  logger,
		onError: func(error) {},
		sleep:   sleepCtx,
		offset:  cfg.Offset,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backoff is the sleep after n consecutive fetch errors: 2^n seconds,
// capped at limit.
func Backoff(n int, limit time.Duration) time.Duration {
	if n > 30 {
		return limit
	}
	d := time.Duration(1<<n) * time.Second
	if d > limit {
		return limit
	}
	return d
}

// Offset returns the offset the next getUpdates call will use.
func (s *Source) Offset() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// Start polls until ctx is cancelled or Close is called. Handler errors are
// logged; they do not stop polling or hold back the offset.
func (s *Source) Start(ctx context.Context, handler func(context.Context, source.Event) error) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	s.logger.Info("long polling started", "timeout", s.cfg.Timeout, "offset", s.Offset())
	errCount := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		updates, err := s.fetcher.GetUpdates(ctx, s.Offset(), s.cfg.Timeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errCount++
			wait := Backoff(errCount, s.cfg.MaxBackoff)
			s.logger.Error("get updates failed", "error", err, "consecutive_errors", errCount, "retry_in", wait)
			s.onError(err)
			if err := s.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}
		errCount = 0

		if len(updates) > 0 {
			s.logger.Debug("got updates", "count", len(updates))
		}
		for _, raw := range updates {
			evt := source.NewEvent(raw, map[string]string{"source": "poll"})
			s.advance(evt.UpdateID)
			if err := handler(ctx, evt); err != nil {
				s.logger.Error("handler error", "update_id", evt.UpdateID, "error", err)
			}
		}
	}
}

func (s *Source) advance(updateID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset = max(s.offset, updateID+1)
}

// Close stops a running Start.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
