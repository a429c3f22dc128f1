package main

import (
	"fmt"
	"os"

	"github.com/mrlokans/eln-import/internal/cli"
)

func main() {
	cmd := cli.NewImportCommand()
	if err := cmd.ParseFlags(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
