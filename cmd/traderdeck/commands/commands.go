package commands

import (
	"context"
	"os"
	"traderdeck/lib/configutil"
	"traderdeck/lib/telemetry"
	"traderdeck/services/portfolio"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "traderdeck",
	Short: "Scrapes the Carnivore trade desk portfolios and fetches EOD market data.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func ExecuteContext(ctx context.Context) {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		os.Exit(1)
	}
}

type Config struct {
	LoginUrl       string                 `json:"login_url"`
	Pages          []portfolio.PageTarget `json:"pages"`
	OutputPath     string                 `json:"output_path"`
	DebugDir       string                 `json:"debug_dir"`
	HistoryDb      string                 `json:"history_db"`
	MarketDataPath string                 `json:"market_data_path"`
	Alerts         portfolio.AlertConfig  `json:"alerts"`
}

// loadConfig reads config.json5 when present and fills in the defaults
// for the Carnivore trade desk.
func loadConfig() Config {
	config, err := configutil.ReadRecursively[Config]("config.json5")
	if err != nil && !os.IsNotExist(err) {
		fatal("failed to load configuration", err)
	}

	if config.LoginUrl == "" {
		config.LoginUrl = "https://carnivoretradedesk.com/login"
	}
	if len(config.Pages) == 0 {
		config.Pages = []portfolio.PageTarget{
			{
				Book: portfolio.BookSectorRotation,
				URL:  "https://carnivoretradedesk.com/sector-heaters",
			},
			{
				Book:         portfolio.BookLongTerm,
				URL:          "https://carnivoretradedesk.com/longterm",
				FallbackURLs: []string{"https://carnivoretradedesk.com/long-term"},
			},
		}
	}
	if config.OutputPath == "" {
		config.OutputPath = "data/carnivore_portfolios.json"
	}
	if config.DebugDir == "" {
		config.DebugDir = "data/debug"
	}
	if config.HistoryDb == "" {
		config.HistoryDb = "data/history.db"
	}
	if config.MarketDataPath == "" {
		config.MarketDataPath = "data/market_data.json"
	}
	return config
}
