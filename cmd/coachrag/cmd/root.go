package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// envFile is an optional .env file read before the environment
	envFile string
	// logLevel overrides LOG_LEVEL when set
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "coachrag",
	Short: "Retrieval-augmented question answering over ingested documents",
	Long: `coachrag splits documents into overlapping chunks, embeds them, stores the
vectors in PostgreSQL (pgvector), SQLite or memory, and answers questions
from the most similar chunks.

Examples:
  # Create the chunk table once
  coachrag init-schema

  # Ingest files, replacing earlier versions of the same documents
  coachrag ingest guide.md notes.pdf --mode replace

  # Ask a question restricted to one document
  coachrag ask "How should a session open?" --doc-id guide

  # Serve the HTTP API
  coachrag serve`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file (defaults to ./.env when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
}
