package wasm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/lsm/karajan/internal/host"
)

// hostModule is the import module name guests link sendMessage,
// storeJson and readJson from.
const hostModule = "host"

func readBytes(m api.Module, ptr, n uint32) []byte {
	b, ok := m.Memory().Read(ptr, n)
	if !ok {
		panic(fmt.Errorf("read %d bytes at %#x: out of range", n, ptr))
	}
	return b
}

// instantiateWASIHost links the pointer/length flavor of the host imports.
// readJson copies at most bufcap bytes and always returns the full length,
// so a guest can retry with a bigger buffer.
func instantiateWASIHost(ctx context.Context, rt wazero.Runtime, h host.Host) error {
	_, err := rt.NewHostModuleBuilder(hostModule).
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, chatID int64, ptr, n uint32) {
			h.SendMessage(ctx, chatID, string(readBytes(m, ptr, n)))
		}).
		WithParameterNames("chat_id", "ptr", "len").
		Export("sendMessage").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, kptr, klen, vptr, vlen uint32) {
			key := string(readBytes(m, kptr, klen))
			h.StoreJSON(ctx, key, string(readBytes(m, vptr, vlen)))
		}).
		WithParameterNames("key_ptr", "key_len", "value_ptr", "value_len").
		Export("storeJson").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, kptr, klen, bufptr, bufcap uint32) uint32 {
			v := h.ReadJSON(ctx, string(readBytes(m, kptr, klen)))
			if len(v) <= int(bufcap) && len(v) > 0 {
				if !m.Memory().Write(bufptr, []byte(v)) {
					panic(fmt.Errorf("write %d bytes at %#x: out of range", len(v), bufptr))
				}
			}
			return uint32(len(v))
		}).
		WithParameterNames("key_ptr", "key_len", "buf_ptr", "buf_cap").
		Export("readJson").
		Instantiate(ctx)
	return err
}

// instantiateASCHost links the managed-string flavor of the host imports
// for AssemblyScript guests, plus the env functions the AssemblyScript
// runtime expects.
func instantiateASCHost(ctx context.Context, rt wazero.Runtime, h host.Host, onAbort func(*AbortError), logger *slog.Logger) error {
	str := func(m api.Module, ptr uint32) string {
		s, err := readASCString(m.Memory(), ptr)
		if err != nil {
			panic(err)
		}
		return s
	}

	_, err := rt.NewHostModuleBuilder(hostModule).
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, chatID int64, ptr uint32) {
			h.SendMessage(ctx, chatID, str(m, ptr))
		}).
		WithParameterNames("chat_id", "message").
		Export("sendMessage").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, kptr, vptr uint32) {
			h.StoreJSON(ctx, str(m, kptr), str(m, vptr))
		}).
		WithParameterNames("key", "value").
		Export("storeJson").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, kptr uint32) uint32 {
			v := h.ReadJSON(ctx, str(m, kptr))
			newFn := m.ExportedFunction("__new")
			if newFn == nil {
				panic(fmt.Errorf("module does not export __new"))
			}
			ptr, err := writeASCString(m.Memory(), func(size, id uint32) (uint32, error) {
				res, err := newFn.Call(ctx, uint64(size), uint64(id))
				if err != nil {
					return 0, err
				}
				return uint32(res[0]), nil
			}, v)
			if err != nil {
				panic(err)
			}
			return ptr
		}).
		WithParameterNames("key").
		Export("readJson").
		Instantiate(ctx)
	if err != nil {
		return err
	}

	_, err = rt.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(_ context.Context, m api.Module, msg, file, line, col uint32) {
			// abort never returns in the guest; the unreachable that follows
			// traps the call and the runtime reports this instead.
			e := &AbortError{Line: line, Col: col}
			if msg != 0 {
				e.Message, _ = readASCString(m.Memory(), msg)
			}
			if file != 0 {
				e.File, _ = readASCString(m.Memory(), file)
			}
			onAbort(e)
		}).
		WithParameterNames("message", "file_name", "line", "column").
		Export("abort").
		NewFunctionBuilder().
		WithFunc(func(context.Context) float64 {
			return float64(time.Now().UnixNano())
		}).
		Export("seed").
		NewFunctionBuilder().
		WithFunc(func(_ context.Context, m api.Module, msg uint32, n int32, a0, a1, a2, a3, a4 float64) {
			text, _ := readASCString(m.Memory(), msg)
			args := []float64{a0, a1, a2, a3, a4}
			n = max(0, min(n, 5))
			logger.Debug("guest trace", "message", text, "args", args[:n])
		}).
		Export("trace").
		Instantiate(ctx)
	return err
}
