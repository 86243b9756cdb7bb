//go:build wasmer

package wasm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/lsm/karajan/internal/host"
)

// WasmerRuntime runs AssemblyScript guests on Wasmer. It follows the same
// single-instance model as AscRuntime. Wasmer cannot interrupt a running
// guest, so Timeout is only checked before each call.
type WasmerRuntime struct {
	mu     sync.Mutex
	store  *wasmer.Store
	module *wasmer.Module
	cfg    Config
	host   host.Host
	logger *slog.Logger

	instance  *wasmer.Instance
	memory    *wasmer.Memory
	newFn     wasmer.NativeFunction
	pinFn     wasmer.NativeFunction
	unpinFn   wasmer.NativeFunction
	processFn wasmer.NativeFunction

	// valid for the duration of Call; host imports have no context of their own
	callCtx context.Context
	aborted *AbortError
}

func NewWasmerRuntime(ctx context.Context, wasmBytes []byte, cfg Config, h host.Host, logger *slog.Logger) (*WasmerRuntime, error) {
	if cfg.ABI != ABIAssemblyScript {
		return nil, fmt.Errorf("wasmer runtime supports only the %s abi", ABIAssemblyScript)
	}
	if logger == nil {
		logger = slog.Default()
	}
	store := wasmer.NewStore(wasmer.NewEngine())
	module, err := wasmer.NewModule(store, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("compile wasm module: %w", err)
	}
	w := &WasmerRuntime{
		store:   store,
		module:  module,
		cfg:     cfg,
		host:    h,
		logger:  logger,
		callCtx: ctx,
	}
	if err := w.instantiate(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *WasmerRuntime) mem() byteMemory {
	return byteMemory(w.memory.Data())
}

func (w *WasmerRuntime) alloc(size, id uint32) (uint32, error) {
	res, err := w.newFn(int32(size), int32(id))
	if err != nil {
		return 0, err
	}
	ptr, ok := res.(int32)
	if !ok {
		return 0, fmt.Errorf("__new returned %T", res)
	}
	return uint32(ptr), nil
}

func (w *WasmerRuntime) str(ptr int32) (string, error) {
	return readASCString(w.mem(), uint32(ptr))
}

func (w *WasmerRuntime) imports() (*wasmer.ImportObject, error) {
	imports := wasmer.NewImportObject()
	if wasmer.GetWasiVersion(w.module) != wasmer.WASI_VERSION_INVALID {
		builder := wasmer.NewWasiStateBuilder("guest")
		for k, v := range w.cfg.Env {
			builder = builder.Environment(k, v)
		}
		env, err := builder.Finalize()
		if err != nil {
			return nil, fmt.Errorf("wasi environment: %w", err)
		}
		imports, err = env.GenerateImportObject(w.store, w.module)
		if err != nil {
			return nil, fmt.Errorf("wasi imports: %w", err)
		}
	}

	fn := func(params, results []wasmer.ValueKind, impl func([]wasmer.Value) ([]wasmer.Value, error)) *wasmer.Function {
		return wasmer.NewFunction(w.store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(params...), wasmer.NewValueTypes(results...)),
			impl)
	}
	none := []wasmer.Value{}

	imports.Register(hostModule, map[string]wasmer.IntoExtern{
		"sendMessage": fn([]wasmer.ValueKind{wasmer.I64, wasmer.I32}, nil, func(args []wasmer.Value) ([]wasmer.Value, error) {
			text, err := w.str(args[1].I32())
			if err != nil {
				return nil, err
			}
			w.host.SendMessage(w.callCtx, args[0].I64(), text)
			return none, nil
		}),
		"storeJson": fn([]wasmer.ValueKind{wasmer.I32, wasmer.I32}, nil, func(args []wasmer.Value) ([]wasmer.Value, error) {
			key, err := w.str(args[0].I32())
			if err != nil {
				return nil, err
			}
			value, err := w.str(args[1].I32())
			if err != nil {
				return nil, err
			}
			w.host.StoreJSON(w.callCtx, key, value)
			return none, nil
		}),
		"readJson": fn([]wasmer.ValueKind{wasmer.I32}, []wasmer.ValueKind{wasmer.I32}, func(args []wasmer.Value) ([]wasmer.Value, error) {
			key, err := w.str(args[0].I32())
			if err != nil {
				return nil, err
			}
			v := w.host.ReadJSON(w.callCtx, key)
			// __new may grow memory, so the view is taken after allocation
			data, err := encodeASCString(v)
			if err != nil {
				return nil, err
			}
			ptr, err := w.alloc(uint32(len(data)), ascStringID)
			if err != nil {
				return nil, err
			}
			if !w.mem().Write(ptr, data) {
				return nil, fmt.Errorf("write string at %#x out of range", ptr)
			}
			return []wasmer.Value{wasmer.NewI32(int32(ptr))}, nil
		}),
	})

	imports.Register("env", map[string]wasmer.IntoExtern{
		"abort": fn([]wasmer.ValueKind{wasmer.I32, wasmer.I32, wasmer.I32, wasmer.I32}, nil, func(args []wasmer.Value) ([]wasmer.Value, error) {
			e := &AbortError{Line: uint32(args[2].I32()), Col: uint32(args[3].I32())}
			if args[0].I32() != 0 {
				e.Message, _ = w.str(args[0].I32())
			}
			if args[1].I32() != 0 {
				e.File, _ = w.str(args[1].I32())
			}
			w.aborted = e
			return nil, e
		}),
		"seed": fn(nil, []wasmer.ValueKind{wasmer.F64}, func([]wasmer.Value) ([]wasmer.Value, error) {
			return []wasmer.Value{wasmer.NewF64(float64(time.Now().UnixNano()))}, nil
		}),
		"trace": fn([]wasmer.ValueKind{wasmer.I32, wasmer.I32, wasmer.F64, wasmer.F64, wasmer.F64, wasmer.F64, wasmer.F64}, nil, func(args []wasmer.Value) ([]wasmer.Value, error) {
			text, _ := w.str(args[0].I32())
			w.logger.Debug("guest trace", "message", text)
			return none, nil
		}),
	})
	return imports, nil
}

func (w *WasmerRuntime) instantiate() error {
	imports, err := w.imports()
	if err != nil {
		return err
	}
	instance, err := wasmer.NewInstance(w.module, imports)
	if err != nil {
		return fmt.Errorf("instantiate wasm module: %w", err)
	}
	memory, err := instance.Exports.GetMemory("memory")
	if err != nil {
		return fmt.Errorf("module does not export memory: %w", err)
	}
	fns := map[string]*wasmer.NativeFunction{
		"__new":         &w.newFn,
		"__pin":         &w.pinFn,
		"__unpin":       &w.unpinFn,
		"processUpdate": &w.processFn,
	}
	for name, dst := range fns {
		f, err := instance.Exports.GetFunction(name)
		if err != nil {
			return fmt.Errorf("module does not export %s: %w", name, err)
		}
		*dst = f
	}
	if start, err := instance.Exports.GetFunction("_initialize"); err == nil {
		if _, err := start(); err != nil {
			return fmt.Errorf("initialize module: %w", err)
		}
	}
	w.instance = instance
	w.memory = memory
	return nil
}

func (w *WasmerRuntime) Call(ctx context.Context, input []byte) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ctx, cancel := withTimeout(ctx, w.cfg.Timeout)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("wasm execution: %w", err)
	}

	if w.instance == nil {
		if err := w.instantiate(); err != nil {
			return nil, err
		}
	}

	w.callCtx = ctx
	w.aborted = nil
	out, err := w.call(input)
	if err == nil {
		return out, nil
	}

	w.instance = nil
	if w.aborted != nil {
		return nil, w.aborted
	}
	return nil, fmt.Errorf("wasm execution: %w", err)
}

func (w *WasmerRuntime) call(input []byte) ([]byte, error) {
	ptr, err := writeASCString(w.mem(), w.alloc, string(input))
	if err != nil {
		return nil, err
	}
	if _, err := w.pinFn(int32(ptr)); err != nil {
		return nil, fmt.Errorf("pin input: %w", err)
	}
	res, err := w.processFn(int32(ptr))
	if err != nil {
		return nil, err
	}
	if _, err := w.unpinFn(int32(ptr)); err != nil {
		return nil, fmt.Errorf("unpin input: %w", err)
	}

	out, ok := res.(int32)
	if !ok || out == 0 {
		return nil, nil
	}
	s, err := w.str(out)
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}
	return []byte(s), nil
}

func (w *WasmerRuntime) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.instance = nil
	return nil
}

func (w *WasmerRuntime) Type() RuntimeType {
	return RuntimeWasmer
}
