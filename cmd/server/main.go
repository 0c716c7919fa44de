package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sgfractal/eigen-workflow/internal/logging"
)

func main() {
	logger := logging.NewLogger()

	root := &cobra.Command{
		Use:   "server",
		Short: "Eigen Workflow orchestration service",
	}

	root.AddCommand(newServeCommand(logger))
	root.AddCommand(newMigrateCommand(logger))
	root.AddCommand(newSeedCommand(logger))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
