package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// teardown releases resources in reverse order of acquisition. Every step
// runs even when an earlier one fails.
type teardown struct {
	logger *slog.Logger
	steps  []teardownStep
}

type teardownStep struct {
	name string
	fn   func(context.Context) error
}

func (t *teardown) add(name string, fn func(context.Context) error) {
	t.steps = append(t.steps, teardownStep{name: name, fn: fn})
}

func (t *teardown) run(ctx context.Context) error {
	var errs []error
	for i := len(t.steps) - 1; i >= 0; i-- {
		s := t.steps[i]
		if err := s.fn(ctx); err != nil {
			t.logger.Error(s.name+" shutdown error", "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	t.steps = nil
	return errors.Join(errs...)
}
