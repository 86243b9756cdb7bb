package host

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lsm/karajan/internal/observability"
	"github.com/lsm/karajan/internal/ratelimit"
	"github.com/lsm/karajan/internal/store"
)

// Sender delivers a text message to a chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Telegram is the production Host: messages go through the Bot API client,
// key/value data goes to the configured store.
type Telegram struct {
	bot     string
	sender  Sender
	store   store.Store
	limiter *ratelimit.Limiter
	metrics *observability.Metrics
	logger  *slog.Logger
}

// Option configures a Telegram host.
type Option func(*Telegram)

func WithLimiter(l *ratelimit.Limiter) Option {
	return func(t *Telegram) { t.limiter = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(t *Telegram) { t.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(t *Telegram) { t.logger = l }
}

// WithBotName sets the "bot" metric label.
func WithBotName(name string) Option {
	return func(t *Telegram) { t.bot = name }
}

func NewTelegram(sender Sender, st store.Store, opts ...Option) *Telegram {
	t := &Telegram{
		bot:    "default",
		sender: sender,
		store:  st,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Telegram) SendMessage(ctx context.Context, chatID int64, text string) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx, chatID); err != nil {
			t.sendFailed(chatID, err)
			return
		}
	}
	if err := t.sender.SendMessage(ctx, chatID, text); err != nil {
		t.sendFailed(chatID, err)
		return
	}
	if t.metrics != nil {
		t.metrics.MessagesSent.WithLabelValues(t.bot).Inc()
	}
	t.logger.Debug("message sent", "chat_id", chatID, "length", len(text))
}

func (t *Telegram) sendFailed(chatID int64, err error) {
	if t.metrics != nil {
		t.metrics.SendErrors.WithLabelValues(t.bot).Inc()
	}
	t.logger.Error("send message failed", "chat_id", chatID, "error", err)
}

func (t *Telegram) StoreJSON(ctx context.Context, key, value string) {
	if err := t.store.Put(ctx, key, value); err != nil {
		t.logger.Error("store json failed", "key", key, "error", err)
	}
}

func (t *Telegram) ReadJSON(ctx context.Context, key string) string {
	v, err := t.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			t.logger.Error("read json failed", "key", key, "error", err)
		}
		return ""
	}
	return v
}
