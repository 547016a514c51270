// chatd is a multi-room text chat server.
//
// Usage:
//
//	chatd serve              - Start the chat server
//	chatd events             - Show recent events from the audit store
//
// Global flags:
//
//	--config <path>  - YAML config file (optional)
package main

import (
	"fmt"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var flagConfig string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chatd",
	Short: "Multi-room text chat server",
	Long: `chatd accepts line-oriented TCP clients (and WebSocket clients on the
HTTP port), lets them pick a nickname, create and join rooms, and chat with
the other members of their room.

Examples:
  chatd serve --port 5000
  chatd serve --config chatd.yaml
  chatd events --audit-db ./audit.db --limit 50`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(eventsCmd)
}

func newLogger(level string) *slog.Logger {
	handler := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		Prefix:          "chatd",
	})
	if lvl, err := charmlog.ParseLevel(level); err == nil {
		handler.SetLevel(lvl)
	}
	return slog.New(handler)
}
