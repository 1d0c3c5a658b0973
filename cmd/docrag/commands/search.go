package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var searchLimit int

func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search ingested documents",
		Long: `Embed the query and list the most similar stored chunks whose
similarity reaches the configured threshold, best match first.

Examples:
  docrag search "which animals are mammals"
  docrag search --limit 10 "renewal policy"
  docrag search --format json "renewal policy"`,
		Args: cobra.ExactArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().IntVar(&searchLimit, "limit", 5, "Maximum results to return")
	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(searchLimit, "limit"); err != nil {
		return err
	}
	if err := validateFormat(outputFormat); err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}
	defer a.Close()

	query := args[0]
	results, err := a.Retrieval.Retrieve(ctx, query, searchLimit)
	if err != nil {
		return fmt.Errorf("searching documents: %w", err)
	}

	if outputFormat == "json" {
		return writeJSON(cmd.OutOrStdout(), results)
	}
	if len(results) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No documents found for query: %s\n", query)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SCORE\tFILE\tCHUNK\tCONTENT\n")
	fmt.Fprintf(w, "-----\t----\t-----\t-------\n")
	for _, r := range results {
		fmt.Fprintf(w, "%.3f\t%s\t%d\t%s\n", r.Similarity, truncate(r.Filename, 30), r.ChunkIndex, truncate(oneLine(r.Content), 70))
	}
	w.Flush()

	fmt.Fprintf(cmd.OutOrStdout(), "\nFound %d result(s)\n", len(results))
	return nil
}
