//go:build wasmer

package wasm

import (
	"context"
	"errors"
	"testing"

	"github.com/lsm/karajan/internal/host"
)

func newWasmerGuest(t *testing.T, name string, h host.Host) *WasmerRuntime {
	t.Helper()
	cfg := Config{Type: RuntimeWasmer, ABI: ABIAssemblyScript}
	rt, err := NewWasmerRuntime(context.Background(), readGuest(t, name, true), cfg, h, nil)
	if err != nil {
		t.Fatalf("NewWasmerRuntime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func TestWasmerRuntime_ProcessUpdate(t *testing.T) {
	rec := host.NewRecorder()
	rt := newWasmerGuest(t, "ascgreeter", rec)

	if _, err := rt.Call(context.Background(), []byte(`{"message":{"chat":{"id":42},"from":{"first_name":"Ann"},"text":"hi"}}`)); err != nil {
		t.Fatalf("Call: %v", err)
	}
	sent := rec.Sent()
	if len(sent) != 1 || sent[0].Text != "Hello, Ann, your id is 42, you said hi (call 1)" {
		t.Errorf("sent = %+v", sent)
	}
}

func TestWasmerRuntime_AbortThenRecover(t *testing.T) {
	rt := newWasmerGuest(t, "ascgreet", host.NewRecorder())
	ctx := context.Background()

	var abortErr *AbortError
	if _, err := rt.Call(ctx, []byte("")); !errors.As(err, &abortErr) {
		t.Fatalf("err = %v, want *AbortError", err)
	}
	out, err := rt.Call(ctx, []byte("Ann"))
	if err != nil {
		t.Fatalf("call after abort: %v", err)
	}
	if string(out) != "Hi Ann: 123" {
		t.Errorf("out = %q", out)
	}
}

func TestWasmerRuntime_RejectsWASI(t *testing.T) {
	_, err := NewWasmerRuntime(context.Background(), nil, Config{Type: RuntimeWasmer, ABI: ABIWASI}, host.NewRecorder(), nil)
	if err == nil {
		t.Fatal("expected error for wasi abi")
	}
}

func TestWasmerRuntime_CancelledContext(t *testing.T) {
	rt := newWasmerGuest(t, "ascgreet", host.NewRecorder())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := rt.Call(ctx, []byte("Ann")); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
