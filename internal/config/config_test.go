package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lsm/karajan/internal/wasm"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "karajan.yaml", `
bot:
  name: echo
  token: "123:abc"
source:
  type: webhook
  listenAddr: ":8080"
  path: /hook
  secret: s3cret
  publicURL: https://bot.example.com/hook
guest:
  module: bots/echo.wasm
  abi: assemblyscript
  timeout: 2s
  memoryLimitPages: 32
  env:
    GREETING: hi
store:
  dsn: bolt:///var/lib/karajan/echo.db
  prefix: echo_
rateLimit:
  global: 20
  perChat: 0.5
metricsAddr: ":9100"
logLevel: debug
propagateErrors: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Bot.Name != "echo" || cfg.Bot.Token != "123:abc" {
		t.Errorf("bot = %+v", cfg.Bot)
	}
	if cfg.Bot.APIURL != "https://api.telegram.org" {
		t.Errorf("expected default API URL, got %s", cfg.Bot.APIURL)
	}
	if cfg.Source.Type != SourceWebhook || cfg.Source.Path != "/hook" || cfg.Source.Secret != "s3cret" {
		t.Errorf("source = %+v", cfg.Source)
	}
	if cfg.Guest.Timeout != 2*time.Second || cfg.Guest.Env["GREETING"] != "hi" {
		t.Errorf("guest = %+v", cfg.Guest)
	}
	if cfg.Store.DSN != "bolt:///var/lib/karajan/echo.db" || cfg.Store.Prefix != "echo_" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.RateLimit.PerChat != 0.5 {
		t.Errorf("rate limit = %+v", cfg.RateLimit)
	}
	if !cfg.PropagateErrors || cfg.LogLevel != "debug" || cfg.MetricsAddr != ":9100" {
		t.Errorf("top-level fields = %+v", cfg)
	}

	wc := cfg.WasmConfig()
	if wc.ABI != wasm.ABIAssemblyScript || wc.Type != wasm.RuntimeWazero || wc.MemoryLimitPages != 32 {
		t.Errorf("wasm config = %+v", wc)
	}
	whc := cfg.WebhookConfig()
	if whc.ListenAddr != ":8080" || whc.Path != "/hook" || whc.Secret != "s3cret" {
		t.Errorf("webhook config = %+v", whc)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("KARAJAN_BOT_TOKEN", "tok")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Source.Type != SourcePoll {
		t.Errorf("expected poll source, got %s", cfg.Source.Type)
	}
	pc := cfg.PollConfig()
	if pc.Timeout != 60*time.Second || pc.MaxBackoff != 60*time.Second {
		t.Errorf("poll config = %+v", pc)
	}
	if cfg.Store.DSN != "memory" || cfg.Guest.Module != "" {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.RateLimit.Global != 30 || cfg.RateLimit.PerChat != 1 {
		t.Errorf("rate limit = %+v", cfg.RateLimit)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "karajan.yaml", `
bot:
  token: from-yaml
guest:
  module: a.wasm
`)
	t.Setenv("KARAJAN_BOT_TOKEN", "from-env")
	t.Setenv("KARAJAN_MODULE", "b.wasm")
	t.Setenv("KARAJAN_STORE_DSN", "postgres://localhost/karajan")
	t.Setenv("KARAJAN_GUEST_TIMEOUT", "250ms")
	t.Setenv("KARAJAN_RATE_PER_CHAT", "3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Bot.Token != "from-env" {
		t.Errorf("token = %s", cfg.Bot.Token)
	}
	if cfg.Guest.Module != "b.wasm" {
		t.Errorf("module = %s", cfg.Guest.Module)
	}
	if cfg.Store.DSN != "postgres://localhost/karajan" {
		t.Errorf("dsn = %s", cfg.Store.DSN)
	}
	if cfg.Guest.Timeout != 250*time.Millisecond {
		t.Errorf("timeout = %s", cfg.Guest.Timeout)
	}
	if cfg.RateLimit.PerChat != 3 {
		t.Errorf("per chat = %v", cfg.RateLimit.PerChat)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "KARAJAN_BOT_TOKEN=dotenv-token\nKARAJAN_BOT_NAME=dotenv\n")
	t.Setenv("KARAJAN_BOT_NAME", "process")
	// godotenv sets variables directly; make sure the test leaves none behind.
	t.Setenv("KARAJAN_BOT_TOKEN", "")
	os.Unsetenv("KARAJAN_BOT_TOKEN")

	cfg, err := Load("", envFile, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Bot.Token != "dotenv-token" {
		t.Errorf("token = %s", cfg.Bot.Token)
	}
	if cfg.Bot.Name != "process" {
		t.Errorf("existing environment should win over .env, got %s", cfg.Bot.Name)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing token",
			yaml:    "bot:\n  name: echo\n",
			wantErr: "Config.Bot.Token",
		},
		{
			name:    "unknown source",
			yaml:    "bot:\n  token: t\nsource:\n  type: kafka\n",
			wantErr: "Config.Source.Type",
		},
		{
			name:    "webhook without listen address",
			yaml:    "bot:\n  token: t\nsource:\n  type: webhook\n  listenAddr: \"\"\n",
			wantErr: "Config.Source.ListenAddr",
		},
		{
			name:    "bad abi",
			yaml:    "bot:\n  token: t\nguest:\n  module: m.wasm\n  abi: emscripten\n",
			wantErr: "Config.Guest.ABI",
		},
		{
			name:    "wasmer needs assemblyscript",
			yaml:    "bot:\n  token: t\nguest:\n  module: m.wasm\n  runtime: wasmer\n  abi: wasi\n",
			wantErr: "wasmer runtime supports only",
		},
		{
			name:    "unsafe store prefix",
			yaml:    "bot:\n  token: t\nstore:\n  prefix: \"x; drop\"\n",
			wantErr: "Config.Store.Prefix",
		},
		{
			name:    "negative rate",
			yaml:    "bot:\n  token: t\nrateLimit:\n  global: -1\n",
			wantErr: "Config.RateLimit.Global",
		},
		{
			name:    "invalid yaml",
			yaml:    "bot: [unclosed",
			wantErr: "parse yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "karajan.yaml", tt.yaml)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "read config") {
		t.Errorf("expected read error, got %v", err)
	}
}
