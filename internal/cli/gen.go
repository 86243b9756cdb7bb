package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/lsm/karajan/internal/schema"
)

// RunGen generates Go or AssemblyScript types from a .krj schema.
func RunGen(args []string, w io.Writer) error {
	if isHelp(args) {
		fmt.Fprintln(w, `Usage: karajan gen --lang <go|as> [--schema <path>] [--package <name>] [--out <path>]

Generates record types from a .krj schema. Without --schema the bundled
Telegram schema (Update, Message, Chat, User) is used.

Flags:
  --lang      go or as (required)
  --schema    Path to a .krj file
  --package   Go package name (default: tg)
  --out       Write to this file instead of stdout

Examples:
  karajan gen --lang as --out assembly/tg.ts
  karajan gen --lang go --schema bot.krj --package bot --out bot/types.go`)
		return nil
	}

	lang, err := parseStringFlag(args, "--lang")
	if err != nil {
		return err
	}
	schemaPath, err := parseStringFlag(args, "--schema")
	if err != nil {
		return err
	}
	pkg, err := parseStringFlag(args, "--package")
	if err != nil {
		return err
	}
	if pkg == "" {
		pkg = "tg"
	}
	outPath, err := parseStringFlag(args, "--out")
	if err != nil {
		return err
	}

	f, err := loadSchema(schemaPath)
	if err != nil {
		return err
	}

	var out []byte
	switch lang {
	case "go":
		out, err = schema.GenGo(f, pkg)
		if err != nil {
			return err
		}
	case "as", "assemblyscript":
		out = []byte(schema.GenAssemblyScript(f))
	case "":
		return fmt.Errorf("--lang flag is required")
	default:
		return fmt.Errorf("unsupported language %q (want go or as)", lang)
	}

	if outPath == "" {
		_, err := w.Write(out)
		return err
	}
	if err := os.WriteFile(outPath, out, 0644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	fmt.Fprintf(w, "Wrote %s\n", outPath)
	return nil
}

func loadSchema(path string) (*schema.File, error) {
	src := schema.Telegram
	name := "bundled schema"
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read schema: %w", err)
		}
		src = string(data)
		name = path
	}
	f, err := schema.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", name, err)
	}
	return f, nil
}
