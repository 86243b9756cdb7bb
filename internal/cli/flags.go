package cli

import (
	"fmt"
	"os"
	"time"
)

func parseStringFlag(args []string, flag string) (string, error) {
	for i, arg := range args {
		if arg == flag {
			if i+1 < len(args) {
				return args[i+1], nil
			}
			return "", fmt.Errorf("flag %s requires a value", flag)
		}
	}
	return "", nil
}

func parseDurationFlag(args []string, flag string, defaultVal time.Duration) (time.Duration, error) {
	str, err := parseStringFlag(args, flag)
	if err != nil {
		return 0, err
	}
	if str == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(str)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid value for %s: must be a duration like 5s", flag)
	}
	return d, nil
}

func isHelp(args []string) bool {
	return len(args) > 0 && (args[0] == "-h" || args[0] == "--help")
}

// positional returns the arguments that are neither flags nor flag values.
// valueFlags lists the flags that take a value.
func positional(args []string, valueFlags ...string) []string {
	takesValue := make(map[string]bool, len(valueFlags))
	for _, f := range valueFlags {
		takesValue[f] = true
	}
	var out []string
	for i := 0; i < len(args); i++ {
		switch {
		case takesValue[args[i]]:
			i++
		case len(args[i]) > 1 && args[i][0] == '-':
		default:
			out = append(out, args[i])
		}
	}
	return out
}

// readInput returns inline when set, otherwise the contents of path.
func readInput(inline, path string) ([]byte, error) {
	switch {
	case inline != "" && path != "":
		return nil, fmt.Errorf("--input and --file are mutually exclusive")
	case inline != "":
		return []byte(inline), nil
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("either --input or --file must be specified")
	}
}
