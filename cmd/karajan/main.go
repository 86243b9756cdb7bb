package main

import (
	"fmt"
	"os"

	"github.com/lsm/karajan/internal/cli"
)

const usage = `karajan - Telegram bots in WebAssembly

Usage:
  karajan <command> [arguments]

Commands:
  call        Run a guest module once against a recording host
  gen         Generate Go or AssemblyScript types from a .krj schema
  validate    Validate host configuration and update payloads
  greet       Print the echo greeting for a name

The long-running host is the karajan-host binary.

Run 'karajan <command> -h' for help on a specific command.`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		return nil
	}

	switch os.Args[1] {
	case "call":
		return cli.RunCall(os.Args[2:], os.Stdout)
	case "gen":
		return cli.RunGen(os.Args[2:], os.Stdout)
	case "validate":
		return cli.RunValidate(os.Args[2:], os.Stdout)
	case "greet":
		return cli.RunGreet(os.Args[2:], os.Stdout)
	case "-h", "--help", "help":
		fmt.Println(usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\nRun 'karajan help' for usage", os.Args[1])
	}
}
