// Command greet is the single-string variant: stdin is a name.
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	input, _ := io.ReadAll(os.Stdin)
	if len(input) == 0 {
		fmt.Fprintln(os.Stderr, "input must not be empty")
		os.Exit(1)
	}
	fmt.Printf("Hi %s: 123", input)
}
