package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func NewIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file.pdf>",
		Short: "Ingest a PDF into the document store",
		Long: `Extract the text of a PDF, split it into chunks, embed every chunk and
store it. Chunks that fail to embed or store are skipped and counted.

Examples:
  docrag ingest handbook.pdf
  docrag ingest --format json handbook.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: runIngest,
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	if err := validateFormat(outputFormat); err != nil {
		return err
	}

	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}
	defer a.Close()

	result, err := a.Ingest.IngestPDF(ctx, filepath.Base(path), f)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", path, err)
	}

	if outputFormat == "json" {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"filename": result.Filename,
			"chunks":   result.Chunks,
			"total":    result.Total,
			"failed":   result.Failed(),
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %s: %d/%d chunks stored\n", result.Filename, result.Chunks, result.Total)
	for _, failure := range result.Failures {
		fmt.Fprintf(cmd.OutOrStdout(), "  chunk %d (%s): %v\n", failure.Index, failure.Stage, failure.Err)
	}
	return nil
}
