package main

import (
	"os"

	"github.com/scratchlang/scl/internal/cmd/scl"
)

func main() {
	os.Exit(scl.Run(os.Args[1:]))
}
