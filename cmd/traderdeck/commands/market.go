package commands

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"traderdeck/lib/marketdata"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(marketCmd)
}

var marketCmd = &cobra.Command{
	Use:   "market",
	Short: "Fetch EOD market data for every symbol group and write it to disk.",
	Run: func(cmd *cobra.Command, args []string) {
		config := loadConfig()

		client := marketdata.NewClient("")
		snapshot := client.FetchSnapshot(cmd.Context())

		contents, err := json.MarshalIndent(snapshot, "", "  ")
		if err != nil {
			fatal("failed to serialize market data", err)
		}
		err = os.MkdirAll(filepath.Dir(config.MarketDataPath), 0755)
		if err != nil {
			fatal("failed to create output directory", err)
		}
		err = os.WriteFile(config.MarketDataPath, contents, 0644)
		if err != nil {
			fatal("failed to write market data", err)
		}

		slog.Info("market data written", "path", config.MarketDataPath)
	},
}
