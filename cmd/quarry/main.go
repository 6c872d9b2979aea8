package main

import (
	"fmt"
	"os"

	"github.com/quarryhq/quarry/cmd/quarry/cmd"
	qerrors "github.com/quarryhq/quarry/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, qerrors.FormatCLI(err))
		os.Exit(1)
	}
}
