package commands

import (
	"os"
	"time"

	"coursepilot-backend/lib/serviceutil"
	"coursepilot-backend/lib/sqliteutil"
	enrollerdb "coursepilot-backend/services/enroller/db"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	historyDb    *string
	historyLimit *int64
)

func init() {
	historyDb = historyCmd.Flags().String("db", "enroller.db", "The database the enrollment history was recorded to.")
	historyLimit = historyCmd.Flags().Int64("limit", 50, "Maximum rows to print.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [--db <path/to/history.db>] [--limit <n>]",
	Short: "Prints recent enrollment attempts, newest first.",
	Run: func(cmd *cobra.Command, args []string) {
		database, err := sqliteutil.OpenDB(enrollerdb.Schema, *historyDb)
		if err != nil {
			serviceutil.Fatal("failed to open db", err)
		}
		defer database.Close()

		entries, err := enrollerdb.New(database).ListRecentEnrollments(cmd.Context(), *historyLimit)
		if err != nil {
			serviceutil.Fatal("failed to list history", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"When", "Title", "Source", "Success", "Reason"})
		for _, e := range entries {
			t.AppendRow(table.Row{
				time.Unix(e.AttemptedAt, 0).Format(time.DateTime),
				e.Title, e.Source, e.Success, e.Reason,
			})
		}
		t.Render()
	},
}
