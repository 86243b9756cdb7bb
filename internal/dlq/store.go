package dlq

import (
	"context"
)

// DeadLetterStore is the part of store.Store used for dead letters.
type DeadLetterStore interface {
	PutDeadLetter(ctx context.Context, id string, record []byte) error
}

// StorePublisher writes dead letters into the bot's key/value store. It does
// not own the store, so Close leaves it open.
type StorePublisher struct {
	store DeadLetterStore
}

func NewStorePublisher(s DeadLetterStore) *StorePublisher {
	return &StorePublisher{store: s}
}

func (p *StorePublisher) Publish(ctx context.Context, id string, record []byte) error {
	return p.store.PutDeadLetter(ctx, id, record)
}

func (p *StorePublisher) Close() error { return nil }
