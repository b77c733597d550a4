package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sefs-dev/sefs/pkg/config"
	"github.com/sefs-dev/sefs/pkg/embedding"
	"github.com/sefs-dev/sefs/pkg/engine"
)

type scanFlags struct {
	root string
}

// newScanCmd builds `sefs scan`: a one-shot full scan and recluster
// of a root directory, without starting the watcher or API server.
// Useful for priming a fresh root, or re-priming one after an
// out-of-band bulk edit.
func newScanCmd(rf *rootFlags) *cobra.Command {
	var flags scanFlags

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a one-shot full scan and recluster of a root directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadAndValidate(rf, flags.root, "")
			if err != nil {
				return err
			}
			return runScan(cmd, cfg)
		},
	}

	cmd.Flags().StringVarP(&flags.root, "root", "r", "", "root directory to scan (overrides config)")
	return cmd
}

func runScan(cmd *cobra.Command, cfg config.Config) error {
	ctx := cmd.Context()

	provider, err := buildProvider(cfg)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	adapter := embedding.NewAdapter(provider)

	eng, err := engine.New(config.GlobalDBPath(), cfg.Root, adapter)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	defer eng.Shutdown()

	count, err := eng.Rescan(ctx)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sefs: processed %d files under %s\n", count, cfg.Root)
	return nil
}
