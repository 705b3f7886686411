package commands

import (
	"fmt"
	"os"
	"traderdeck/lib/scrapers/carnivore"
	"traderdeck/services/portfolio"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(positionsCmd)
}

func formatNumber(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func renderBook(name string, positions []carnivore.Position) {
	fmt.Printf("\n%s (%d positions)\n", name, len(positions))

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Ticker", "Name", "Avg Cost", "Price", "Return %", "Weight", "Stop"})
	for _, p := range positions {
		t.AppendRow(table.Row{
			p.Ticker,
			p.Name,
			formatNumber(p.AvgCost),
			formatNumber(p.CurrentPrice),
			formatNumber(p.PctReturn),
			formatNumber(p.Weight),
			formatNumber(p.StopLoss),
		})
	}
	t.Render()
}

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "Print the last persisted snapshot as tables.",
	Run: func(cmd *cobra.Command, args []string) {
		config := loadConfig()
		snapshot := portfolio.Store{Path: config.OutputPath}.Load()

		if snapshot.Empty() {
			fmt.Println("no snapshot data, run `traderdeck scrape` first")
			return
		}

		fmt.Printf("last updated: %s (%s)\n", snapshot.LastUpdated, snapshot.Source)
		renderBook("Sector Rotation", snapshot.SectorRotation)
		renderBook("Long Term", snapshot.LongTerm)
	},
}
