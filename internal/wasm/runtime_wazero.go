package wasm

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"github.com/lsm/karajan/internal/host"
)

func newWazero(ctx context.Context, cfg Config) wazero.Runtime {
	rc := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg.MemoryLimitPages > 0 {
		rc = rc.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	return wazero.NewRuntimeWithConfig(ctx, rc)
}

// WazeroRuntime runs WASI command guests. It compiles the module once and
// instantiates a fresh copy per Call, so guests keep no state between
// updates except through storeJson.
type WazeroRuntime struct {
	rt     wazero.Runtime
	module wazero.CompiledModule
	cfg    Config
}

// NewWazeroRuntime compiles a wasip1 module that reads the update JSON from
// stdin and links the host imports to h.
func NewWazeroRuntime(ctx context.Context, wasmBytes []byte, cfg Config, h host.Host) (*WazeroRuntime, error) {
	rt := newWazero(ctx, cfg)

	wasi_snapshot_preview1.MustInstantiate(ctx, rt)
	if err := instantiateWASIHost(ctx, rt, h); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("link host module: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("compile wasm module: %w", err)
	}

	return &WazeroRuntime{rt: rt, module: compiled, cfg: cfg}, nil
}

// Call runs the guest with input on stdin and returns its stdout. A
// non-zero exit is an *ExitError carrying stderr.
func (w *WazeroRuntime) Call(ctx context.Context, input []byte) ([]byte, error) {
	ctx, cancel := withTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	modCfg := wazero.NewModuleConfig().
		WithStdin(bytes.NewReader(input)).
		WithStdout(&stdout).
		WithStderr(&stderr).
		WithArgs("guest").
		WithName("") // anonymous module so concurrent calls don't collide
	for k, v := range w.cfg.Env {
		modCfg = modCfg.WithEnv(k, v)
	}

	mod, err := w.rt.InstantiateModule(ctx, w.module, modCfg)
	if mod != nil {
		_ = mod.Close(ctx)
	}
	if err == nil {
		return stdout.Bytes(), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("wasm execution: %w", ctxErr)
	}
	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.ExitCode() == 0 {
			return stdout.Bytes(), nil
		}
		return nil, &ExitError{Code: exitErr.ExitCode(), Stderr: stderr.String()}
	}
	return nil, fmt.Errorf("wasm execution: %w", err)
}

func (w *WazeroRuntime) Close() error {
	return w.rt.Close(context.Background())
}

func (w *WazeroRuntime) Type() RuntimeType {
	return RuntimeWazero
}
