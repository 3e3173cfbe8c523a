package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/cuemby/glean/pkg/database"
	"github.com/cuemby/glean/pkg/storage"
	"github.com/spf13/cobra"
)

// Pending ping commands
var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Inspect pending pings in a client data directory",
}

var pendingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pings waiting to be uploaded",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, pingsDB, err := openPendingPings(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		queued, err := pingsDB.GetAllPings()
		if err != nil {
			return fmt.Errorf("failed to read pending pings: %v", err)
		}
		if len(queued) == 0 {
			fmt.Println("No pending pings")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCOLLECTED\tPATH")
		for _, p := range queued {
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.Identifier, p.CollectionDate, p.Path)
		}
		return w.Flush()
	},
}

var pendingClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete pending pings, keeping deletion-request pings",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, pingsDB, err := openPendingPings(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		before := pingsDB.Count()
		if err := pingsDB.ClearAll(true); err != nil {
			return fmt.Errorf("failed to clear pending pings: %v", err)
		}
		fmt.Printf("✓ Cleared %d pending pings\n", before-pingsDB.Count())
		return nil
	},
}

func init() {
	pendingCmd.AddCommand(pendingListCmd)
	pendingCmd.AddCommand(pendingClearCmd)

	pendingCmd.PersistentFlags().String("data-dir", "./glean-data", "Client data directory")
}

func openPendingPings(cmd *cobra.Command) (*storage.BoltDB, *database.PingsDatabase, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	db, err := storage.OpenBolt(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %v", dataDir, err)
	}
	store, err := db.Store(storage.StorePendingPings)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to open pending pings: %v", err)
	}
	return db, database.NewPingsDatabase(store), nil
}
