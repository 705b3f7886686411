package portfolio

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"
	"traderdeck/lib/scrapers/carnivore"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/portfolio")

// ErrTotalDataLoss means both sub-portfolios came back empty even after
// falling back to prior data. The output file is still written
// best-effort; the error exists so callers can exit non-zero and
// monitoring can alert.
var ErrTotalDataLoss = fmt.Errorf("no positions in any sub-portfolio after fallback")

type RunStatus string

const (
	StatusOK            RunStatus = "ok"
	StatusLoginFailed   RunStatus = "login_failed"
	StatusTotalDataLoss RunStatus = "total_data_loss"
)

type runState int

const (
	stateInit runState = iota
	stateLoggingIn
	stateScraping
	stateAssembling
	stateDone
	stateFailed
)

func (s runState) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateLoggingIn:
		return "logging-in"
	case stateScraping:
		return "scraping"
	case stateAssembling:
		return "assembling"
	case stateDone:
		return "done"
	case stateFailed:
		return "failed"
	}
	return "unknown"
}

// Sub-portfolio names, also the JSON keys of the output file.
const (
	BookSectorRotation = "sector_rotation"
	BookLongTerm       = "long_term"
)

// PageTarget is one page visit: which sub-portfolio it feeds and where
// to find it. Fallback urls are tried in order when the primary
// extracts nothing.
type PageTarget struct {
	Book         string   `json:"book"`
	URL          string   `json:"url"`
	FallbackURLs []string `json:"fallback_urls"`
}

type ServiceOptions struct {
	Client   *carnivore.Client
	LoginUrl string
	Store    Store
	// optional run history, skipped when nil
	History *History
	// optional total-data-loss mailer, skipped when nil
	Alerts *Alerter
}

type Service struct {
	client   *carnivore.Client
	loginUrl string
	store    Store
	history  *History
	alerts   *Alerter
}

func NewService(opts ServiceOptions) Service {
	return Service{
		client:   opts.Client,
		loginUrl: opts.LoginUrl,
		store:    opts.Store,
		history:  opts.History,
		alerts:   opts.Alerts,
	}
}

type RunResult struct {
	Snapshot Snapshot
	Status   RunStatus
}

// Run drives one full scrape: login, sequential page visits, assembly
// under the overwrite-safety policy, persistence. Page-level failures
// never abort the run; only login-level failures are fatal.
func (s Service) Run(ctx context.Context, cred carnivore.Credential, pages []PageTarget) (RunResult, error) {
	ctx, span := tracer.Start(ctx, "service:Run")
	defer span.End()

	state := stateInit
	transition := func(next runState) {
		slog.DebugContext(ctx, "run transition", "from", state, "to", next)
		state = next
	}

	now := time.Now().UTC()
	prior := s.store.Load()
	source := s.client.BaseUrl.Hostname()

	transition(stateLoggingIn)
	session, err := s.client.Login(ctx, s.loginUrl, cred)
	if err != nil {
		transition(stateFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		slog.ErrorContext(ctx, "login failed, keeping existing data", "err", err)

		s.record(ctx, NewSnapshot(source, now), StatusLoginFailed, now)
		return RunResult{Snapshot: prior, Status: StatusLoginFailed}, err
	}
	slog.InfoContext(ctx, "session established", "state", session.State, "signal", session.Signal)

	login, err := url.Parse(s.loginUrl)
	if err != nil {
		return RunResult{Snapshot: prior, Status: StatusLoginFailed}, err
	}

	next := NewSnapshot(source, now)
	for _, page := range pages {
		transition(stateScraping)
		positions := s.scrapeBook(ctx, login, page)
		switch page.Book {
		case BookSectorRotation:
			next.SectorRotation = positions
		case BookLongTerm:
			next.LongTerm = positions
		default:
			slog.WarnContext(ctx, "page target names an unknown book", "book", page.Book)
		}
	}

	transition(stateAssembling)
	merged := Merge(next, prior)
	span.SetAttributes(
		attribute.Int("sector_rotation", len(merged.SectorRotation)),
		attribute.Int("long_term", len(merged.LongTerm)),
	)

	// best-effort write even on total loss, the status code carries
	// the failure to the caller
	err = s.store.Save(merged)
	if err != nil {
		slog.ErrorContext(ctx, "failed to persist snapshot", "err", err)
	}

	if merged.Empty() {
		transition(stateFailed)
		span.SetStatus(codes.Error, ErrTotalDataLoss.Error())
		s.record(ctx, merged, StatusTotalDataLoss, now)
		s.alerts.TotalDataLoss(ctx, source, now)
		return RunResult{Snapshot: merged, Status: StatusTotalDataLoss}, ErrTotalDataLoss
	}

	transition(stateDone)
	s.record(ctx, merged, StatusOK, now)
	slog.InfoContext(
		ctx, "run complete",
		"sector_rotation", len(merged.SectorRotation),
		"long_term", len(merged.LongTerm),
	)
	return RunResult{Snapshot: merged, Status: StatusOK}, nil
}

// scrapeBook visits the target (and its fallbacks) and returns
// normalized positions. Every failure mode here degrades to an empty
// result; the caller's merge step decides what that means.
func (s Service) scrapeBook(ctx context.Context, login *url.URL, target PageTarget) []carnivore.Position {
	ctx, span := tracer.Start(ctx, "service:scrapeBook")
	defer span.End()
	span.SetAttributes(attribute.String("book", target.Book))

	urls := append([]string{target.URL}, target.FallbackURLs...)
	for i, pageUrl := range urls {
		label := target.Book
		if i > 0 {
			label = fmt.Sprintf("%s_alt%d", target.Book, i)
		}

		page, err := s.client.LoadPage(ctx, pageUrl)
		if err != nil {
			slog.WarnContext(ctx, "failed to load page", "book", target.Book, "url", pageUrl, "err", err)
			continue
		}

		if carnivore.OnLoginSurface(page.URL, login) {
			// the session died between pages; a failure for this
			// page only, the run carries on
			slog.WarnContext(ctx, "redirected to login", "book", target.Book, "url", pageUrl)
			s.client.DumpPage(label+"_redirect", page)
			continue
		}

		s.client.DumpPage(label, page)

		rows := s.client.ExtractRows(ctx, page)
		positions := carnivore.Normalize(rows)
		slog.InfoContext(
			ctx, "extracted positions",
			"book", target.Book,
			"url", pageUrl,
			"rows", len(rows),
			"positions", len(positions),
		)
		if len(positions) > 0 {
			return positions
		}
	}
	return nil
}

func (s Service) record(ctx context.Context, snapshot Snapshot, status RunStatus, at time.Time) {
	if s.history == nil {
		return
	}
	err := s.history.Record(ctx, snapshot, status, at)
	if err != nil {
		slog.WarnContext(ctx, "failed to record run history", "err", err)
	}
}
