package root

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags; defaults to "dev".
var Version = "dev"

// newVersionCmd builds `sefs version`, mirroring the teacher's
// version command shape minus build-time/commit (SEFS has no
// telemetry/build pipeline to source them from).
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sefs version %s\n", Version)
		},
	}
}
