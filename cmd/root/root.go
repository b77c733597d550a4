// Package root builds SEFS's cobra command tree: serve, scan, and
// version. Trimmed from the teacher's much larger cmd/root, which
// wires dozens of agent/session/registry subcommands SEFS has no
// analogue for; the persistent-flags-plus-logging-setup shape is kept.
package root

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sefs-dev/sefs/pkg/config"
	"github.com/sefs-dev/sefs/pkg/logging"
)

type rootFlags struct {
	configPath string
	debug      bool
	logFile    io.Closer
}

// NewRootCmd builds the sefs command tree.
func NewRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "sefs",
		Short: "sefs - a semantic, self-organizing file system daemon",
		Long:  "sefs watches a directory, clusters its files by meaning, and reorganizes them into semantically named folders.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := slog.LevelInfo
			if flags.debug {
				level = slog.LevelDebug
			}
			logFile, err := logging.Setup(config.Default().LogPath, level)
			if err != nil {
				slog.Warn("failed to set up log file, falling back to stderr only", "error", err)
				return nil
			}
			flags.logFile = logFile
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if flags.logFile != nil {
				return flags.logFile.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to an optional sefs.yaml config file")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newServeCmd(&flags), newScanCmd(&flags), newVersionCmd())
	return cmd
}

func loadAndValidate(flags *rootFlags, root, listen string) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if root != "" {
		cfg.Root = root
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
