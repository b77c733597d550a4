package root

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sefs-dev/sefs/pkg/api"
	"github.com/sefs-dev/sefs/pkg/config"
	"github.com/sefs-dev/sefs/pkg/embedding"
	"github.com/sefs-dev/sefs/pkg/engine"
)

type serveFlags struct {
	root   string
	listen string
}

// newServeCmd builds `sefs serve`: start the watcher, control-plane
// engine, and REST+SSE API server bound to a root directory, until a
// signal or the context is cancelled. Grounded on the teacher's `api`
// command (cmd/root/api.go), trimmed to SEFS's single long-running
// daemon shape (no session store, OCI pulling, or Connect-RPC).
func newServeCmd(rf *rootFlags) *cobra.Command {
	var sf serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Watch a root directory and serve the SEFS API",
		Long:  "serve starts the filesystem watcher, ingestion pipeline, and clustering engine for a root directory, and exposes the REST+SSE control-plane API over HTTP.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadAndValidate(rf, sf.root, sf.listen)
			if err != nil {
				return err
			}
			return runServe(cmd, cfg)
		},
	}

	cmd.Flags().StringVarP(&sf.root, "root", "r", "", "root directory to watch (overrides config)")
	cmd.Flags().StringVarP(&sf.listen, "listen", "l", "", "API listen address (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := buildProvider(cfg)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	adapter := embedding.NewAdapter(provider)

	eng, err := engine.New(config.GlobalDBPath(), cfg.Root, adapter)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	defer func() {
		if err := eng.Shutdown(); err != nil {
			slog.Error("serve: shutdown", "error", err)
		}
	}()

	go eng.Run(ctx)

	srv := api.New(eng)
	slog.Info("sefs serving", "root", cfg.Root, "listen", cfg.Listen)
	fmt.Fprintf(cmd.OutOrStdout(), "sefs: watching %s, listening on %s\n", cfg.Root, cfg.Listen)

	if err := srv.Start(ctx, cfg.Listen); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// buildProvider constructs the active embedding.Provider from cfg,
// per spec.md §4.2's "exactly one provider is active" framing.
func buildProvider(cfg config.Config) (embedding.Provider, error) {
	switch cfg.ProviderKind {
	case "remote":
		return embedding.NewRemoteProvider(cfg.APIKey, cfg.LLMModel, cfg.ProviderHost), nil
	case "local", "":
		return embedding.NewLocalProvider(cfg.EmbedModel), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.ProviderKind)
	}
}
