// Package wasm hosts bot guests compiled to WebAssembly. A guest exports
// processUpdate and imports sendMessage, storeJson and readJson from the
// "host" module.
package wasm

import (
	"context"
	"fmt"
	"time"

	"github.com/lsm/karajan/internal/host"
)

// RuntimeType indicates which WASM engine to use.
type RuntimeType string

const (
	RuntimeWazero RuntimeType = "wazero" // Pure Go
	RuntimeWasmer RuntimeType = "wasmer" // CGO, build tag wasmer
)

// ABI is the calling convention between host and guest.
type ABI string

const (
	// ABIWASI runs the guest as a WASI command: the update JSON arrives on
	// stdin and strings cross the boundary as (pointer, length) pairs.
	ABIWASI ABI = "wasi"
	// ABIAssemblyScript calls the exported processUpdate with a managed
	// UTF-16 string on one long-lived instance.
	ABIAssemblyScript ABI = "assemblyscript"
)

// Config configures a WASM runtime.
type Config struct {
	// Type specifies which engine to use (wazero or wasmer).
	Type RuntimeType `yaml:"type"`

	// ModulePath is the path to the .wasm file.
	ModulePath string `yaml:"modulePath"`

	ABI ABI `yaml:"abi"`

	// MemoryLimitPages caps guest memory in 64KiB pages (0 = engine default).
	MemoryLimitPages uint32 `yaml:"memoryLimitPages"`

	// Timeout per invocation (0 = none).
	Timeout time.Duration `yaml:"timeout"`

	// Environment variables for WASI guests.
	Env map[string]string `yaml:"env"`
}

// Validate checks enum fields and bounds. Empty Type and ABI select defaults.
func (c Config) Validate() error {
	switch c.Type {
	case "", RuntimeWazero, RuntimeWasmer:
	default:
		return fmt.Errorf("unknown runtime type: %s", c.Type)
	}
	switch c.ABI {
	case "", ABIWASI, ABIAssemblyScript:
	default:
		return fmt.Errorf("unknown abi: %s", c.ABI)
	}
	if c.Type == RuntimeWasmer && c.ABI != ABIAssemblyScript {
		return fmt.Errorf("wasmer runtime supports only the %s abi", ABIAssemblyScript)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %s", c.Timeout)
	}
	return nil
}

// Runtime abstracts WASM execution across wazero and Wasmer.
type Runtime interface {
	// Call hands one update to the guest's processUpdate and returns
	// whatever the guest produced (stdout or a returned string).
	Call(ctx context.Context, input []byte) ([]byte, error)

	Close() error

	// Type returns the runtime type for logging/metrics.
	Type() RuntimeType
}

// Factory creates runtimes bound to a host.
type Factory interface {
	Create(ctx context.Context, cfg Config, h host.Host) (Runtime, error)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}
