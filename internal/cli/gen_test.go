package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunGen_AssemblyScript(t *testing.T) {
	var out bytes.Buffer
	if err := RunGen([]string{"--lang", "as"}, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "class Message {\n  id: i64 | null = null;\n  chat: Chat = new Chat();") {
		t.Errorf("output = %s", out.String())
	}
}

func TestRunGen_GoToFile(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeTestFile(t, dir, "bot.krj", "struct Command { name: string }")
	outPath := filepath.Join(dir, "types.go")

	var out bytes.Buffer
	err := RunGen([]string{"--lang", "go", "--schema", schemaPath, "--package", "bot", "--out", outPath}, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	src := string(data)
	if !strings.Contains(src, "package bot") || !strings.Contains(src, "type Command struct") {
		t.Errorf("generated = %s", src)
	}
	if !strings.Contains(out.String(), "Wrote "+outPath) {
		t.Errorf("output = %s", out.String())
	}
}

func TestRunGen_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing lang", nil, "--lang flag is required"},
		{"unknown lang", []string{"--lang", "rust"}, `unsupported language "rust"`},
		{"missing schema", []string{"--lang", "go", "--schema", "/nonexistent.krj"}, "read schema"},
		{"dangling flag", []string{"--lang"}, "flag --lang requires a value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RunGen(tt.args, &bytes.Buffer{})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestRunGreet(t *testing.T) {
	var out bytes.Buffer
	if err := RunGreet([]string{"Ann"}, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "Hi Ann: 123\n" {
		t.Errorf("output = %q", out.String())
	}

	if err := RunGreet(nil, &bytes.Buffer{}); err == nil || !strings.Contains(err.Error(), "must not be empty") {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestPositional(t *testing.T) {
	got := positional([]string{"--schema", "a.krj", "x.json", "--verbose", "y.json"}, "--schema")
	if strings.Join(got, ",") != "x.json,y.json" {
		t.Errorf("positional = %v", got)
	}
}

func TestParseDurationFlag(t *testing.T) {
	d, err := parseDurationFlag([]string{"--timeout", "250ms"}, "--timeout", 0)
	if err != nil || d.Milliseconds() != 250 {
		t.Errorf("got %v, %v", d, err)
	}
	if _, err := parseDurationFlag([]string{"--timeout", "soon"}, "--timeout", 0); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestReadInput(t *testing.T) {
	if _, err := readInput("", ""); err == nil {
		t.Error("expected error without input")
	}
	if _, err := readInput("{}", "x.json"); err == nil {
		t.Error("expected error for both inputs")
	}
	got, err := readInput("{}", "")
	if err != nil || string(got) != "{}" {
		t.Errorf("got %q, %v", got, err)
	}
}
