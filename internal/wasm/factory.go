package wasm

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/lsm/karajan/internal/host"
)

// DefaultFactory is the default runtime factory.
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *DefaultFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// Create reads cfg.ModulePath and builds the runtime cfg selects.
func (f *DefaultFactory) Create(ctx context.Context, cfg Config, h host.Host) (Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	wasmBytes, err := os.ReadFile(cfg.ModulePath)
	if err != nil {
		return nil, fmt.Errorf("read wasm module: %w", err)
	}
	return f.CreateFromBytes(ctx, wasmBytes, cfg, h)
}

func (f *DefaultFactory) CreateFromBytes(ctx context.Context, wasmBytes []byte, cfg Config, h host.Host) (Runtime, error) {
	switch cfg.Type {
	case RuntimeWazero, "":
		if cfg.ABI == ABIAssemblyScript {
			return NewAscRuntime(ctx, wasmBytes, cfg, h, f.logger)
		}
		return NewWazeroRuntime(ctx, wasmBytes, cfg, h)
	case RuntimeWasmer:
		return NewWasmerRuntime(ctx, wasmBytes, cfg, h, f.logger)
	default:
		return nil, fmt.Errorf("unknown runtime type: %s", cfg.Type)
	}
}
