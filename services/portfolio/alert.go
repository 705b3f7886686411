package portfolio

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"
)

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

type AlertConfig struct {
	Smtp SmtpConfig `json:"smtp"`
	To   []string   `json:"to"`
}

// Alerter mails operators when a run ends in total data loss, the one
// failure mode monitoring must never miss. Unconfigured, it only logs.
type Alerter struct {
	config AlertConfig
}

func NewAlerter(config AlertConfig) *Alerter {
	return &Alerter{config: config}
}

func (a *Alerter) TotalDataLoss(ctx context.Context, source string, at time.Time) {
	if a == nil || a.config.Smtp.Server == "" || len(a.config.To) == 0 {
		slog.WarnContext(ctx, "total data loss alert not configured, skipping email")
		return
	}

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("traderdeck <%s>", a.config.Smtp.EmailAddress)
	mail.To = a.config.To
	mail.Subject = fmt.Sprintf("traderdeck: total data loss scraping %s", source)
	mail.Text = []byte(fmt.Sprintf(
		`The %s run against %s extracted no positions for either sub-portfolio, and no prior data was available to fall back on.

The output file was still written best-effort. Check the debug dumps from this run before the next scheduled one overwrites them.`,
		at.UTC().Format(timestampLayout), source,
	))

	addr := fmt.Sprintf("%s:%d", a.config.Smtp.Server, a.config.Smtp.Port)
	err := mail.Send(addr, smtp.PlainAuth("", a.config.Smtp.EmailAddress, a.config.Smtp.Password, a.config.Smtp.Server))
	if err != nil {
		slog.ErrorContext(ctx, "failed to send total data loss alert", "err", err)
		return
	}
	slog.InfoContext(ctx, "total data loss alert sent", "to", a.config.To)
}
