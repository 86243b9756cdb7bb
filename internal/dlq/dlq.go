// Package dlq records updates the guest failed to process. Records are
// CloudEvents in structured JSON form so they can be replayed or shipped to
// any CloudEvents consumer later.
package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/google/uuid"
)

const EventType = "karajan.update.failed"

// Extension attribute names. CloudEvents restricts these to lowercase
// alphanumerics.
const (
	ExtErrorCode     = "errorcode"
	ExtErrorMessage  = "errormessage"
	ExtUpdateID      = "updateid"
	ExtCorrelationID = "correlationid"
)

// Publisher persists or forwards an encoded dead letter.
type Publisher interface {
	Publish(ctx context.Context, id string, record []byte) error
	Close() error
}

// FailureInfo contains metadata about why an update failed processing.
type FailureInfo struct {
	ErrorCode     string
	ErrorMessage  string
	BotName       string
	CorrelationID string
}

// Handler turns failed updates into CloudEvents and publishes them.
type Handler struct {
	publisher Publisher
	now       func() time.Time
	newID     func() string
}

// Option configures a Handler.
type Option func(*Handler)

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// NewHandler creates a new dead-letter handler.
func NewHandler(pub Publisher, opts ...Option) *Handler {
	h := &Handler{
		publisher: pub,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Send records payload as a failed update. A payload that is not valid JSON
// is kept as a string so nothing is lost.
func (h *Handler) Send(ctx context.Context, updateID int64, payload []byte, info FailureInfo) error {
	ev, err := h.build(updateID, payload, info)
	if err != nil {
		return err
	}
	record, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode dead letter: %w", err)
	}
	if err := h.publisher.Publish(ctx, ev.ID(), record); err != nil {
		return fmt.Errorf("dlq publish %s: %w", ev.ID(), err)
	}
	return nil
}

func (h *Handler) build(updateID int64, payload []byte, info FailureInfo) (event.Event, error) {
	bot := info.BotName
	if bot == "" {
		bot = "default"
	}

	ev := event.New()
	ev.SetID(h.newID())
	ev.SetType(EventType)
	ev.SetSource("karajan/" + bot)
	ev.SetTime(h.now().UTC())
	ev.SetExtension(ExtErrorCode, info.ErrorCode)
	ev.SetExtension(ExtErrorMessage, info.ErrorMessage)
	ev.SetExtension(ExtUpdateID, strconv.FormatInt(updateID, 10))
	if info.CorrelationID != "" {
		ev.SetExtension(ExtCorrelationID, info.CorrelationID)
	}

	var data any = json.RawMessage(payload)
	if !json.Valid(payload) {
		data = string(payload)
	}
	if err := ev.SetData(event.ApplicationJSON, data); err != nil {
		return ev, fmt.Errorf("set dead letter data: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return ev, fmt.Errorf("invalid dead letter: %w", err)
	}
	return ev, nil
}

// Close releases resources held by the handler.
func (h *Handler) Close() error {
	return h.publisher.Close()
}

// NoopPublisher discards all dead letters.
type NoopPublisher struct{}

func (*NoopPublisher) Publish(context.Context, string, []byte) error { return nil }

func (*NoopPublisher) Close() error { return nil }
