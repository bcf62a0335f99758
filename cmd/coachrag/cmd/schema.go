package cmd

import (
	"context"
	"fmt"

	"github.com/smallnest/coachrag/store"
	"github.com/spf13/cobra"
)

var initSchemaCmd = &cobra.Command{
	Use:   "init-schema",
	Short: "Create the chunk table and its indexes",
	Long: `Create the pgvector extension, the chunk table and its doc_id and
vector indexes. Safe to run repeatedly. SQLite creates its table on open and
the memory store needs no schema.`,
	Args: cobra.NoArgs,
	RunE: runInitSchema,
}

func init() {
	rootCmd.AddCommand(initSchemaCmd)
}

func runInitSchema(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := store.InitSchema(ctx, a.store); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Schema ready (%s, table %s, dimension %d)\n",
		a.cfg.StoreDriver, a.cfg.TableName, a.cfg.EmbedDim)
	return nil
}
