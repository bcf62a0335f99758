package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/smallnest/coachrag/server"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve the ingest and ask operations over HTTP.

Endpoints:
  POST   /rag/ingest
  POST   /rag/ask
  DELETE /rag/documents/{doc_id}
  GET    /healthz
  GET    /metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides HTTP_ADDR)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := a.cfg.HTTPAddr
	if serveAddr != "" {
		addr = serveAddr
	}
	return server.New(a.engine, a.logger).ListenAndServe(ctx, addr)
}
