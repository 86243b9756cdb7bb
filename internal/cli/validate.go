package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/lsm/karajan/internal/config"
	"github.com/lsm/karajan/internal/schema"
)

// RunValidate checks a host configuration file, update payloads against a
// schema, or both.
func RunValidate(args []string, w io.Writer) error {
	if isHelp(args) {
		fmt.Fprintln(w, `Usage: karajan validate [--config <path>] [--schema <path>] [--type <struct>] [update.json ...]

Validates a host configuration file (including KARAJAN_* overrides from the
environment and ./.env) and checks JSON payloads against a .krj schema.
Without --schema payloads are checked against the bundled Telegram schema.

Flags:
  --config    Host configuration file
  --schema    Path to a .krj file (also validates the schema itself)
  --type      Struct payloads must match (default: Update)

Examples:
  karajan validate --config karajan.yaml
  karajan validate testdata/update.json
  karajan validate --schema bot.krj --type Command cmd.json`)
		return nil
	}

	configPath, err := parseStringFlag(args, "--config")
	if err != nil {
		return err
	}
	schemaPath, err := parseStringFlag(args, "--schema")
	if err != nil {
		return err
	}
	root, err := parseStringFlag(args, "--type")
	if err != nil {
		return err
	}
	if root == "" {
		root = "Update"
	}
	payloads := positional(args, "--config", "--schema", "--type")

	if configPath == "" && schemaPath == "" && len(payloads) == 0 {
		return fmt.Errorf("nothing to validate: pass --config, --schema or payload files")
	}

	var failures int
	if configPath != "" {
		if _, err := config.Load(configPath, ".env"); err != nil {
			fmt.Fprintf(w, "%s: %v\n", configPath, err)
			failures++
		} else {
			fmt.Fprintf(w, "%s: ok\n", configPath)
		}
	}

	if schemaPath != "" || len(payloads) > 0 {
		f, err := loadSchema(schemaPath)
		if err != nil {
			return err
		}
		if schemaPath != "" {
			fmt.Fprintf(w, "%s: ok (%d structs)\n", schemaPath, len(f.Structs))
		}
		if len(payloads) > 0 {
			codec, err := schema.NewCodec(f, root)
			if err != nil {
				return err
			}
			for _, p := range payloads {
				if err := validatePayload(codec, p); err != nil {
					fmt.Fprintf(w, "%s: %v\n", p, err)
					failures++
					continue
				}
				fmt.Fprintf(w, "%s: ok\n", p)
			}
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d validation error(s) found", failures)
	}
	return nil
}

func validatePayload(codec *schema.Codec, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read error: %w", err)
	}
	return codec.Validate(data)
}
