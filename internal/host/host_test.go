package host

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/lsm/karajan/internal/observability"
	"github.com/lsm/karajan/internal/ratelimit"
	"github.com/lsm/karajan/internal/store"
)

type fakeSender struct {
	calls []SentMessage
	err   error
}

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text string) error {
	f.calls = append(f.calls, SentMessage{ChatID: chatID, Text: text})
	return f.err
}

type brokenStore struct{ store.Store }

func (brokenStore) Put(context.Context, string, string) error { return errors.New("disk full") }
func (brokenStore) Get(context.Context, string) (string, error) {
	return "", errors.New("io error")
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestTelegram_SendMessage(t *testing.T) {
	sender := &fakeSender{}
	m := observability.NewMetrics(prometheus.NewRegistry())
	h := NewTelegram(sender, store.NewMemory(), WithMetrics(m), WithBotName("greeter"), WithLogger(discard()))

	h.SendMessage(context.Background(), 42, "Hello, Ann, your id is 42, you said hi")

	if len(sender.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(sender.calls))
	}
	if sender.calls[0].ChatID != 42 {
		t.Errorf("chat id = %d", sender.calls[0].ChatID)
	}
	if got := testutil.ToFloat64(m.MessagesSent.WithLabelValues("greeter")); got != 1 {
		t.Errorf("messages sent = %v, want 1", got)
	}
}

func TestTelegram_SendFailureIsCountedNotReturned(t *testing.T) {
	sender := &fakeSender{err: errors.New("bad request")}
	m := observability.NewMetrics(prometheus.NewRegistry())
	h := NewTelegram(sender, store.NewMemory(), WithMetrics(m), WithLogger(discard()))

	h.SendMessage(context.Background(), 1, "x")

	if got := testutil.ToFloat64(m.SendErrors.WithLabelValues("default")); got != 1 {
		t.Errorf("send errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.MessagesSent.WithLabelValues("default")); got != 0 {
		t.Errorf("messages sent = %v, want 0", got)
	}
}

func TestTelegram_LimiterCancelled(t *testing.T) {
	sender := &fakeSender{}
	h := NewTelegram(sender, store.NewMemory(), WithLimiter(ratelimit.New(0, 0.001)), WithLogger(discard()))

	h.SendMessage(context.Background(), 9, "first")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.SendMessage(ctx, 9, "second")

	if len(sender.calls) != 1 {
		t.Errorf("calls = %d, want 1 (second should be dropped by limiter)", len(sender.calls))
	}
}

func TestTelegram_KeyValue(t *testing.T) {
	ctx := context.Background()
	h := NewTelegram(&fakeSender{}, store.NewMemory(), WithLogger(discard()))

	if got := h.ReadJSON(ctx, "missing"); got != "" {
		t.Errorf("ReadJSON(missing) = %q, want empty", got)
	}
	h.StoreJSON(ctx, "user:7", `{"visits":2}`)
	if got := h.ReadJSON(ctx, "user:7"); got != `{"visits":2}` {
		t.Errorf("ReadJSON = %q", got)
	}
}

func TestTelegram_StoreErrorsReadEmpty(t *testing.T) {
	ctx := context.Background()
	h := NewTelegram(&fakeSender{}, brokenStore{}, WithLogger(discard()))
	h.StoreJSON(ctx, "k", "v")
	if got := h.ReadJSON(ctx, "k"); got != "" {
		t.Errorf("ReadJSON = %q, want empty", got)
	}
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder()
	r.SendMessage(ctx, 5, "a")
	r.SendMessage(ctx, 6, "b")
	r.StoreJSON(ctx, "k", "v")

	sent := r.Sent()
	if len(sent) != 2 || sent[1] != (SentMessage{ChatID: 6, Text: "b"}) {
		t.Errorf("sent = %+v", sent)
	}
	if r.ReadJSON(ctx, "k") != "v" {
		t.Error("kv not stored")
	}
	if r.ReadJSON(ctx, "nope") != "" {
		t.Error("missing key should read empty")
	}

	r.Reset()
	if len(r.Sent()) != 0 || r.ReadJSON(ctx, "k") != "" {
		t.Error("Reset did not clear state")
	}
}
