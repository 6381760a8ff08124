package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/lazypower/glyphwheel/internal/store"
)

// openDB is a helper that opens the database for CLI commands.
func openDB() (*store.DB, error) {
	dbPath := os.Getenv("GLYPHWHEEL_DB")
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	return store.Open(dbPath)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Summarize the recorded history in the local database",
	Long:  "Reads the database directly; the server does not need to be running.",
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	out := cmd.OutOrStdout()

	counts, err := db.ReportCounts()
	if err != nil {
		return fmt.Errorf("report counts: %w", err)
	}
	if len(counts) == 0 {
		fmt.Fprintln(out, "No operations recorded yet.")
	} else {
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(out, "## Operations")
		for _, k := range keys {
			fmt.Fprintf(out, "  %-24s %d\n", k, counts[k])
		}
	}

	ghosts, err := db.GhostCount()
	if err != nil {
		return fmt.Errorf("ghost count: %w", err)
	}
	fmt.Fprintf(out, "\n## Ghosts\n  %d recorded\n", ghosts)

	latest, err := db.LatestSnapshot()
	if err != nil {
		return fmt.Errorf("latest snapshot: %w", err)
	}
	if latest != nil {
		st, err := latest.Status()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n## Latest snapshot (#%d)\n", latest.ID)
		printStatus(out, st)
	}
	return nil
}
