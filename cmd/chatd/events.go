package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andy6609/roomchat/internal/audit"
	"github.com/andy6609/roomchat/internal/config"
)

var (
	flagEventsDB    string
	flagEventsLimit int
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent server events from the audit store",
	Long: `Prints the newest connection and room events recorded in the SQLite
audit store. Chat text is never recorded.`,
	RunE: runEvents,
}

func init() {
	eventsCmd.Flags().StringVar(&flagEventsDB, "audit-db", "", "Path to SQLite audit database (defaults to log.audit_db)")
	eventsCmd.Flags().IntVar(&flagEventsLimit, "limit", 20, "Number of events to show")
}

func runEvents(_ *cobra.Command, _ []string) error {
	path := flagEventsDB
	if path == "" {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		path = cfg.Log.AuditDB
	}
	if path == "" {
		return fmt.Errorf("no audit database configured; pass --audit-db")
	}

	store, err := audit.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(flagEventsLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No events recorded.")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  %s\n", e.RecordedAt.Format("2006-01-02 15:04:05"), e.Text)
	}
	return nil
}
