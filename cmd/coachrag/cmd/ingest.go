package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallnest/coachrag/rag"
	"github.com/smallnest/coachrag/rag/loader"
	"github.com/spf13/cobra"
)

var (
	ingestDocID string
	ingestMode  string
	ingestMeta  []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Split, embed and store files",
	Long: `Load text, Markdown, HTML or PDF files and add their chunks to the store.

The document id defaults to the file name without extension. With
--mode replace the earlier chunks of each document are removed in the
same transaction.

Examples:
  coachrag ingest handbook.pdf
  coachrag ingest plan.md --doc-id plan-2024 --meta owner=coaching --mode replace`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDocID, "doc-id", "", "Document id (only with a single file)")
	ingestCmd.Flags().StringVar(&ingestMode, "mode", "append", "Ingest mode: append or replace")
	ingestCmd.Flags().StringArrayVar(&ingestMeta, "meta", nil, "Extra metadata as key=value (repeatable)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if ingestDocID != "" && len(args) > 1 {
		return fmt.Errorf("--doc-id can only be used with a single file")
	}
	mode, err := rag.ParseIngestMode(ingestMode)
	if err != nil {
		return err
	}
	meta, err := parseMeta(ingestMeta)
	if err != nil {
		return err
	}

	opts := []loader.Option{loader.WithMetadata(meta)}
	if ingestDocID != "" {
		opts = append(opts, loader.WithDocID(ingestDocID))
	}

	items := make([]rag.IngestItem, 0, len(args))
	for _, path := range args {
		item, err := loader.Load(ctx, path, opts...)
		if err != nil {
			return err
		}
		items = append(items, *item)
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	added, err := a.engine.Ingest(ctx, items, mode)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ %d chunks added from %d files\n", added, len(items))
	return nil
}

func parseMeta(pairs []string) (map[string]any, error) {
	meta := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --meta %q, want key=value", p)
		}
		meta[strings.TrimSpace(k)] = v
	}
	return meta, nil
}
