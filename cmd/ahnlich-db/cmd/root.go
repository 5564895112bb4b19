// Package cmd provides the CLI commands for ahnlich-db.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ahnlich/ahnlich-db/internal/logging"
	"github.com/ahnlich/ahnlich-db/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the ahnlich-db CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "ahnlich-db",
		Short:   "In-memory vector database engine",
		Long:    `ahnlich-db stores vectors with metadata in named stores, supporting predicate-filtered similarity search over a TCP wire protocol.`,
		Version: version.Version,
	}

	root.SetVersionTemplate("ahnlich-db version {{.Version}}\n")
	root.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging to ~/.ahnlich/logs/")
	root.PersistentPreRunE = startLogging
	root.PersistentPostRunE = stopLogging

	root.AddCommand(newRunCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func startLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if debugMode {
		cfg = logging.DebugConfig()
	}

	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
