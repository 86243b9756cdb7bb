package wasm

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// buildGuest compiles testdata/<name> for wasip1. Reactors (modules that
// export functions instead of running main) need -buildmode=c-shared.
func buildGuest(t *testing.T, name string, reactor bool) string {
	t.Helper()
	outPath := filepath.Join(t.TempDir(), name+".wasm")
	args := []string{"build", "-o", outPath}
	if reactor {
		args = append(args, "-buildmode=c-shared")
	}
	cmd := exec.Command("go", append(args, ".")...)
	cmd.Dir = filepath.Join("testdata", name)
	cmd.Env = append(os.Environ(), "GOOS=wasip1", "GOARCH=wasm")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("compile wasm module %s: %v\n%s", name, err, out)
	}
	return outPath
}

func readGuest(t *testing.T, name string, reactor bool) []byte {
	t.Helper()
	b, err := os.ReadFile(buildGuest(t, name, reactor))
	if err != nil {
		t.Fatalf("read wasm: %v", err)
	}
	return b
}

// MockRuntime implements Runtime for testing purposes.
type MockRuntime struct {
	mu        sync.Mutex
	callErr   error
	callResp  []byte
	closeErr  error
	rtype     RuntimeType
	closed    bool
	callCount int
}

func (m *MockRuntime) Call(ctx context.Context, input []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	return m.callResp, m.callErr
}

func (m *MockRuntime) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.closeErr
}

func (m *MockRuntime) Type() RuntimeType {
	return m.rtype
}

func (m *MockRuntime) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "defaults",
			config:  Config{ModulePath: "/bots/greeter.wasm"},
			wantErr: false,
		},
		{
			name:    "wazero assemblyscript",
			config:  Config{Type: RuntimeWazero, ABI: ABIAssemblyScript},
			wantErr: false,
		},
		{
			name:    "wasmer assemblyscript",
			config:  Config{Type: RuntimeWasmer, ABI: ABIAssemblyScript},
			wantErr: false,
		},
		{
			name:    "wasmer wasi",
			config:  Config{Type: RuntimeWasmer, ABI: ABIWASI},
			wantErr: true,
		},
		{
			name:    "wasmer default abi",
			config:  Config{Type: RuntimeWasmer},
			wantErr: true,
		},
		{
			name:    "invalid runtime type",
			config:  Config{Type: RuntimeType("invalid")},
			wantErr: true,
		},
		{
			name:    "invalid abi",
			config:  Config{ABI: ABI("emscripten")},
			wantErr: true,
		},
		{
			name:    "negative timeout",
			config:  Config{Timeout: -1 * time.Second},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&ExitError{Code: 3, Stderr: "boom\n"}, "guest exited with code 3: boom"},
		{&ExitError{Code: 1}, "guest exited with code 1"},
		{&AbortError{Message: "bad", File: "assembly/index.ts", Line: 3, Col: 5}, "guest aborted: bad at assembly/index.ts:3:5"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
