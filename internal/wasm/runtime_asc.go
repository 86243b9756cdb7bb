package wasm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/lsm/karajan/internal/host"
)

// AscRuntime runs AssemblyScript guests on wazero. One instance serves
// every call, so guest globals survive between updates. A failed call
// drops the instance and the next call starts a fresh one.
type AscRuntime struct {
	mu       sync.Mutex
	rt       wazero.Runtime
	compiled wazero.CompiledModule
	cfg      Config

	mod       api.Module
	newFn     api.Function
	pinFn     api.Function
	unpinFn   api.Function
	processFn api.Function

	// set by env.abort during the current call
	aborted *AbortError
}

func NewAscRuntime(ctx context.Context, wasmBytes []byte, cfg Config, h host.Host, logger *slog.Logger) (*AscRuntime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &AscRuntime{cfg: cfg}
	a.rt = newWazero(ctx, cfg)

	// Some toolchains emit a WASI shim; linking it is harmless otherwise.
	wasi_snapshot_preview1.MustInstantiate(ctx, a.rt)
	if err := instantiateASCHost(ctx, a.rt, h, func(e *AbortError) { a.aborted = e }, logger); err != nil {
		_ = a.rt.Close(ctx)
		return nil, fmt.Errorf("link host module: %w", err)
	}

	compiled, err := a.rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		_ = a.rt.Close(ctx)
		return nil, fmt.Errorf("compile wasm module: %w", err)
	}
	a.compiled = compiled

	if err := a.instantiate(ctx); err != nil {
		_ = a.rt.Close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *AscRuntime) instantiate(ctx context.Context) error {
	modCfg := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions("_initialize")
	for k, v := range a.cfg.Env {
		modCfg = modCfg.WithEnv(k, v)
	}
	mod, err := a.rt.InstantiateModule(ctx, a.compiled, modCfg)
	if err != nil {
		return fmt.Errorf("instantiate wasm module: %w", err)
	}
	if mod.ExportedMemory("memory") == nil {
		_ = mod.Close(ctx)
		return errors.New("module does not export memory")
	}

	fns := map[string]*api.Function{
		"__new":         &a.newFn,
		"__pin":         &a.pinFn,
		"__unpin":       &a.unpinFn,
		"processUpdate": &a.processFn,
	}
	for name, dst := range fns {
		fn := mod.ExportedFunction(name)
		if fn == nil {
			_ = mod.Close(ctx)
			return fmt.Errorf("module does not export %s", name)
		}
		*dst = fn
	}
	a.mod = mod
	return nil
}

func (a *AscRuntime) discard(ctx context.Context) {
	if a.mod != nil {
		_ = a.mod.Close(ctx)
		a.mod = nil
	}
}

// Call passes input to processUpdate as a managed string. A returned
// string pointer is decoded into the result; a void processUpdate yields nil.
func (a *AscRuntime) Call(ctx context.Context, input []byte) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ctx, cancel := withTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	if a.mod == nil || a.mod.IsClosed() {
		a.mod = nil
		if err := a.instantiate(ctx); err != nil {
			return nil, err
		}
	}

	a.aborted = nil
	out, err := a.call(ctx, input)
	if err == nil {
		return out, nil
	}

	a.discard(context.Background())
	switch {
	case a.aborted != nil:
		return nil, a.aborted
	case ctx.Err() != nil:
		return nil, fmt.Errorf("wasm execution: %w", ctx.Err())
	default:
		return nil, fmt.Errorf("wasm execution: %w", err)
	}
}

func (a *AscRuntime) call(ctx context.Context, input []byte) ([]byte, error) {
	mem := a.mod.Memory()
	ptr, err := writeASCString(mem, func(size, id uint32) (uint32, error) {
		res, err := a.newFn.Call(ctx, uint64(size), uint64(id))
		if err != nil {
			return 0, err
		}
		return uint32(res[0]), nil
	}, string(input))
	if err != nil {
		return nil, err
	}
	if _, err := a.pinFn.Call(ctx, uint64(ptr)); err != nil {
		return nil, fmt.Errorf("pin input: %w", err)
	}

	res, err := a.processFn.Call(ctx, uint64(ptr))
	if err != nil {
		return nil, err
	}
	if _, err := a.unpinFn.Call(ctx, uint64(ptr)); err != nil {
		return nil, fmt.Errorf("unpin input: %w", err)
	}

	if len(res) == 0 || uint32(res[0]) == 0 {
		return nil, nil
	}
	// memory may have grown during the call
	s, err := readASCString(a.mod.Memory(), uint32(res[0]))
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}
	return []byte(s), nil
}

func (a *AscRuntime) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mod = nil
	return a.rt.Close(context.Background())
}

func (a *AscRuntime) Type() RuntimeType {
	return RuntimeWazero
}
