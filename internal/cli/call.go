package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/lsm/karajan/internal/host"
	"github.com/lsm/karajan/internal/observability"
	"github.com/lsm/karajan/internal/wasm"
)

const defaultCallTimeout = 10 * time.Second

type callResult struct {
	Sent   []host.SentMessage `json:"sent"`
	Output string             `json:"output,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// RunCall invokes a guest once against a recording host and prints what it
// sent.
func RunCall(args []string, w io.Writer) error {
	if isHelp(args) {
		fmt.Fprintln(w, `Usage: karajan call --module <path> (--input <json> | --file <path>) [flags]

Runs processUpdate of a guest module once. Messages the guest sends are
recorded instead of delivered and printed as JSON together with the guest's
output.

Flags:
  --module     Path to the .wasm module (required)
  --input      Inline update JSON
  --file       Path to a file containing the update JSON
  --abi        wasi (default) or assemblyscript
  --runtime    wazero (default) or wasmer
  --timeout    Per-call timeout (default: 10s)
  --log-level  debug, info, warn or error (logs go to stderr)

Examples:
  karajan call --module bot.wasm --input '{"message":{"chat":{"id":42},"text":"hi"}}'
  karajan call --module greet.wasm --abi assemblyscript --input Ann`)
		return nil
	}

	module, err := parseStringFlag(args, "--module")
	if err != nil {
		return err
	}
	if module == "" {
		return fmt.Errorf("--module flag is required")
	}
	inline, err := parseStringFlag(args, "--input")
	if err != nil {
		return err
	}
	file, err := parseStringFlag(args, "--file")
	if err != nil {
		return err
	}
	input, err := readInput(inline, file)
	if err != nil {
		return err
	}
	abi, _ := parseStringFlag(args, "--abi")
	runtime, _ := parseStringFlag(args, "--runtime")
	timeout, err := parseDurationFlag(args, "--timeout", defaultCallTimeout)
	if err != nil {
		return err
	}
	levelFlag, _ := parseStringFlag(args, "--log-level")

	cfg := wasm.Config{
		Type:       wasm.RuntimeType(runtime),
		ModulePath: module,
		ABI:        wasm.ABI(abi),
		Timeout:    timeout,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := observability.NewLoggerTo(os.Stderr, "karajan", observability.GetLogLevel(levelFlag))
	ctx, cancel := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer cancel()

	rec := host.NewRecorder()
	rt, err := wasm.NewFactory(logger).Create(ctx, cfg, rec)
	if err != nil {
		return fmt.Errorf("load module: %w", err)
	}
	defer func() {
		_ = rt.Close()
	}()

	out, callErr := rt.Call(ctx, input)
	result := callResult{Sent: rec.Sent(), Output: string(out)}
	if result.Sent == nil {
		result.Sent = []host.SentMessage{}
	}
	if callErr != nil {
		result.Error = callErr.Error()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if callErr != nil {
		return fmt.Errorf("call %s: %w", module, callErr)
	}
	return nil
}
