package commands

import (
	"context"

	"github.com/spf13/cobra"

	"docrag/internal/bootstrap"
)

var outputFormat string

// openApp builds the services a command needs. Tests replace it.
var openApp = func(ctx context.Context) (*bootstrap.App, error) {
	return bootstrap.New(ctx, bootstrap.WithoutWorker())
}

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docrag",
		Short: "Ingest PDF documents and search them by meaning",
		Long: `docrag splits documents into sentence-aligned chunks, embeds them and
stores them for similarity search.

Configuration is read from .env, CONFIG_FILE (default configs/config.toml)
and environment variables, the same way as the HTTP server.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&outputFormat, "format", "table", "Output format: table or json")

	root.AddCommand(NewIngestCmd())
	root.AddCommand(NewSearchCmd())
	root.AddCommand(NewTokenCmd())
	return root
}

func Execute() error {
	return NewRootCmd().Execute()
}
