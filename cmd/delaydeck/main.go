package main

import (
	"context"
	"fmt"
	"os"

	"github.com/bhandras/delaydeck/internal/cli"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	deps := &cli.Dependencies{}
	return cli.NewRootCmd(deps).ExecuteContext(context.Background())
}
