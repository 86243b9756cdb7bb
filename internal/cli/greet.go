package cli

import (
	"fmt"
	"io"

	"github.com/lsm/karajan/internal/reply"
)

// RunGreet runs the echo greeting natively.
func RunGreet(args []string, w io.Writer) error {
	if isHelp(args) {
		fmt.Fprintln(w, `Usage: karajan greet <name>

Prints the greeting the echo guest returns for <name>.`)
		return nil
	}

	var name string
	if len(args) > 0 {
		name = args[0]
	}
	out, err := reply.Greet(name)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, out)
	return nil
}
