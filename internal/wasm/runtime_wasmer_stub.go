//go:build !wasmer

package wasm

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lsm/karajan/internal/host"
)

// ErrWasmerUnavailable is returned when the binary was built without the
// wasmer tag.
var ErrWasmerUnavailable = errors.New("wasmer runtime requires building with -tags wasmer")

// WasmerRuntime stub for non-wasmer builds.
type WasmerRuntime struct{}

func NewWasmerRuntime(ctx context.Context, wasmBytes []byte, cfg Config, h host.Host, logger *slog.Logger) (*WasmerRuntime, error) {
	return nil, ErrWasmerUnavailable
}

func (w *WasmerRuntime) Call(ctx context.Context, input []byte) ([]byte, error) {
	return nil, ErrWasmerUnavailable
}

func (w *WasmerRuntime) Close() error { return nil }

func (w *WasmerRuntime) Type() RuntimeType { return RuntimeWasmer }
