package commands

import (
	"log/slog"
	"os"
	"traderdeck/lib/restyutil"
	"traderdeck/lib/scrapers/carnivore"
	"traderdeck/lib/serviceutil"
	"traderdeck/services/portfolio"

	"github.com/spf13/cobra"
)

func fatal(message string, err error) {
	serviceutil.Fatal(message, err)
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run one full portfolio scrape: login, page visits, snapshot assembly.",
	Run: func(cmd *cobra.Command, args []string) {
		config := loadConfig()

		cred := carnivore.Credential{
			Identity: os.Getenv("CARNIVORE_EMAIL"),
			Secret:   os.Getenv("CARNIVORE_PASSWORD"),
		}
		if cred.Identity == "" || cred.Secret == "" {
			slog.Error("missing CARNIVORE_EMAIL or CARNIVORE_PASSWORD")
			os.Exit(1)
		}

		client, err := carnivore.NewClient(cmd.Context(), carnivore.ClientOptions{
			BaseUrl: config.LoginUrl,
			Debug:   restyutil.NewFilesystemOutput(config.DebugDir),
		})
		if err != nil {
			fatal("failed to build scraper client", err)
		}

		var history *portfolio.History
		if config.HistoryDb != "" {
			history, err = portfolio.OpenHistory(config.HistoryDb)
			if err != nil {
				slog.Warn("run history unavailable", "err", err)
			} else {
				defer history.Close()
			}
		}

		service := portfolio.NewService(portfolio.ServiceOptions{
			Client:   client,
			LoginUrl: config.LoginUrl,
			Store:    portfolio.Store{Path: config.OutputPath},
			History:  history,
			Alerts:   portfolio.NewAlerter(config.Alerts),
		})

		result, err := service.Run(cmd.Context(), cred, config.Pages)
		if err != nil {
			slog.Error("run failed", "status", result.Status, "err", err)
			os.Exit(1)
		}

		slog.Info(
			"snapshot written",
			"path", config.OutputPath,
			"sector_rotation", len(result.Snapshot.SectorRotation),
			"long_term", len(result.Snapshot.LongTerm),
		)
	},
}
