package main

import (
	"os"

	"github.com/scratchlang/scl/internal/cmd/sclls"
)

func main() {
	os.Exit(sclls.Run(os.Args[1:]))
}
