package commands

import (
	"fmt"
	"os"
	"traderdeck/services/portfolio"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print recent scrape runs from the local run history.",
	Run: func(cmd *cobra.Command, args []string) {
		config := loadConfig()

		history, err := portfolio.OpenHistory(config.HistoryDb)
		if err != nil {
			fatal("failed to open run history", err)
		}
		defer history.Close()

		runs, err := history.RecentRuns(cmd.Context(), historyLimit)
		if err != nil {
			fatal("failed to read run history", err)
		}
		if len(runs) == 0 {
			fmt.Println("no runs recorded yet")
			return
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Time", "Source", "Status", "Sector Rotation", "Long Term"})
		for _, run := range runs {
			t.AppendRow(table.Row{
				run.Time.Format("2006-01-02 15:04"),
				run.Source,
				run.Status,
				run.SectorRotation,
				run.LongTerm,
			})
		}
		t.Render()
	},
}
