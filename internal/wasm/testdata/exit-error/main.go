package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprint(os.Stderr, "boom")
	os.Exit(3)
}
