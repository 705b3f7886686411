package marketdata

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"time"
)

type Symbol struct {
	Ticker string
	Name   string
}

var Futures = []Symbol{
	{"ES=F", "E-mini S&P 500"},
	{"NQ=F", "E-mini Nasdaq 100"},
	{"YM=F", "E-mini Dow Jones"},
	{"RTY=F", "E-mini Russell 2000"},
}

var VolDollar = []Symbol{
	{"^VIX", "VIX Index"},
	{"^VVIX", "VVIX"},
	{"DX-Y.NYB", "US Dollar Index"},
	{"EURUSD=X", "EUR/USD"},
	{"GBPUSD=X", "GBP/USD"},
	{"USDJPY=X", "USD/JPY"},
}

var Metals = []Symbol{
	{"GC=F", "Gold Futures"},
	{"SI=F", "Silver Futures"},
	{"HG=F", "Copper Futures"},
	{"PL=F", "Platinum Futures"},
}

var Energy = []Symbol{
	{"CL=F", "WTI Crude Oil"},
	{"BZ=F", "Brent Crude Oil"},
	{"NG=F", "Natural Gas"},
	{"RB=F", "RBOB Gasoline"},
}

var Yields = []Symbol{
	{"^IRX", "13W T-Bill"},
	{"^FVX", "5Y Treasury"},
	{"^TNX", "10Y Treasury"},
	{"^TYX", "30Y Treasury"},
}

var yieldTenors = map[string]string{
	"^IRX": "3M",
	"^FVX": "5Y",
	"^TNX": "10Y",
	"^TYX": "30Y",
}

var GlobalIndices = []Symbol{
	{"^FTSE", "FTSE 100"},
	{"^GDAXI", "DAX"},
	{"^FCHI", "CAC 40"},
	{"^N225", "Nikkei 225"},
	{"^HSI", "Hang Seng"},
	{"^AXJO", "ASX 200"},
	{"^KS11", "KOSPI"},
}

var Sectors = []Symbol{
	{"XLK", "Technology"},
	{"XLF", "Financials"},
	{"XLV", "Health Care"},
	{"XLY", "Consumer Disc."},
	{"XLP", "Consumer Staples"},
	{"XLE", "Energy"},
	{"XLI", "Industrials"},
	{"XLB", "Materials"},
	{"XLRE", "Real Estate"},
	{"XLU", "Utilities"},
	{"XLC", "Comm. Services"},
}

var MajorEtfs = []Symbol{
	{"SPY", "S&P 500"},
	{"QQQ", "Nasdaq 100"},
	{"IWM", "Russell 2000"},
	{"DIA", "Dow Jones"},
	{"GLD", "Gold"},
	{"SLV", "Silver"},
	{"TLT", "20Y Treasuries"},
	{"HYG", "High Yield Corp"},
	{"LQD", "Investment Grade"},
	{"VNQ", "Real Estate"},
	{"USO", "Oil Fund"},
}

var Crypto = []Symbol{
	{"BTC-USD", "Bitcoin"},
	{"ETH-USD", "Ethereum"},
}

var CountryEtfs = []Symbol{
	{"EWG", "Germany"},
	{"EWU", "United Kingdom"},
	{"EWJ", "Japan"},
	{"FXI", "China"},
	{"INDA", "India"},
	{"EWZ", "Brazil"},
	{"EWC", "Canada"},
	{"EWA", "Australia"},
	{"EWY", "South Korea"},
	{"EWQ", "France"},
}

type Quote struct {
	Ticker   string    `json:"ticker"`
	Name     string    `json:"name"`
	Price    float64   `json:"price"`
	Chg1d    float64   `json:"chg_1d"`
	Chg1w    float64   `json:"chg_1w"`
	Chg52wHi float64   `json:"chg_52w_hi"`
	ChgYtd   float64   `json:"chg_ytd"`
	Spark    []float64 `json:"spark"`
}

type YieldQuote struct {
	Ticker   string  `json:"ticker"`
	Tenor    string  `json:"tenor"`
	Name     string  `json:"name"`
	YieldPct float64 `json:"yield_pct"`
	Chg1dBps float64 `json:"chg_1d_bps"`
	Chg1w    float64 `json:"chg_1w"`
	Chg52wHi float64 `json:"chg_52w_hi"`
	ChgYtd   float64 `json:"chg_ytd"`
}

type Snapshot struct {
	UpdatedAt     string       `json:"updated_at"`
	UpdatedDate   string       `json:"updated_date"`
	Futures       []Quote      `json:"futures"`
	VolDollar     []Quote      `json:"vol_dollar"`
	Metals        []Quote      `json:"metals"`
	Energy        []Quote      `json:"energy"`
	Yields        []YieldQuote `json:"yields"`
	GlobalIndices []Quote      `json:"global_indices"`
	Sectors       []Quote      `json:"sectors"`
	MajorEtfs     []Quote      `json:"major_etfs"`
	Crypto        []Quote      `json:"crypto"`
	CountryEtfs   []Quote      `json:"country_etfs"`
}

const seriesWindow = 365 * 24 * time.Hour

func round(v float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(v*scale) / scale
}

func pctChange(now, then float64) float64 {
	return round((now-then)/then*100, 2)
}

// quoteFromCloses computes the snapshot fields from a year of daily
// closes; at least two closes are required.
func quoteFromCloses(symbol Symbol, closes []float64) (Quote, bool) {
	if len(closes) < 2 {
		return Quote{}, false
	}

	today := closes[len(closes)-1]
	prior := closes[len(closes)-2]
	weekAgo := prior
	if len(closes) >= 6 {
		weekAgo = closes[len(closes)-6]
	}
	high := closes[0]
	for _, c := range closes {
		if c > high {
			high = c
		}
	}
	yearStart := closes[0]

	// a zero reference close cannot anchor a percent change, skip the
	// symbol rather than poisoning the snapshot with Inf
	if prior == 0 || weekAgo == 0 || high == 0 || yearStart == 0 {
		return Quote{}, false
	}

	// previous five closes as day-over-day percent deltas,
	// excluding today when there is enough data
	sparkRaw := closes
	if len(closes) >= 6 {
		sparkRaw = closes[len(closes)-6 : len(closes)-1]
	}
	var spark []float64
	for i := 1; i < len(sparkRaw); i++ {
		if sparkRaw[i-1] == 0 {
			continue
		}
		spark = append(spark, pctChange(sparkRaw[i], sparkRaw[i-1]))
	}

	return Quote{
		Ticker:   symbol.Ticker,
		Name:     symbol.Name,
		Price:    round(today, 4),
		Chg1d:    pctChange(today, prior),
		Chg1w:    pctChange(today, weekAgo),
		Chg52wHi: pctChange(today, high),
		ChgYtd:   pctChange(today, yearStart),
		Spark:    spark,
	}, true
}

// yieldFromCloses handles treasuries separately: the series is already
// in percent, so the one-day move is reported in basis points.
func yieldFromCloses(symbol Symbol, closes []float64) (YieldQuote, bool) {
	if len(closes) < 2 {
		return YieldQuote{}, false
	}

	today := closes[len(closes)-1]
	prior := closes[len(closes)-2]
	weekAgo := prior
	if len(closes) >= 6 {
		weekAgo = closes[len(closes)-6]
	}
	high := closes[0]
	for _, c := range closes {
		if c > high {
			high = c
		}
	}
	if weekAgo == 0 || high == 0 || closes[0] == 0 {
		return YieldQuote{}, false
	}

	return YieldQuote{
		Ticker:   symbol.Ticker,
		Tenor:    yieldTenors[symbol.Ticker],
		Name:     symbol.Name,
		YieldPct: round(today, 2),
		Chg1dBps: round((today-prior)*100, 1),
		Chg1w:    pctChange(today, weekAgo),
		Chg52wHi: pctChange(today, high),
		ChgYtd:   pctChange(today, closes[0]),
	}, true
}

func (c *Client) fetchGroup(ctx context.Context, label string, symbols []Symbol) []Quote {
	var out []Quote
	for _, symbol := range symbols {
		series, err := c.CloseSeries(ctx, symbol.Ticker, seriesWindow)
		if err != nil {
			slog.WarnContext(ctx, "failed to fetch series", "group", label, "symbol", symbol.Ticker, "err", err)
			continue
		}
		closes := make([]float64, len(series))
		for i, p := range series {
			closes[i] = p.Close
		}
		if quote, ok := quoteFromCloses(symbol, closes); ok {
			out = append(out, quote)
		}
	}
	slog.InfoContext(ctx, "fetched group", "group", label, "symbols", len(out), "of", len(symbols))
	return out
}

func (c *Client) fetchYields(ctx context.Context) []YieldQuote {
	var out []YieldQuote
	for _, symbol := range Yields {
		series, err := c.CloseSeries(ctx, symbol.Ticker, seriesWindow)
		if err != nil {
			slog.WarnContext(ctx, "failed to fetch series", "group", "yields", "symbol", symbol.Ticker, "err", err)
			continue
		}
		closes := make([]float64, len(series))
		for i, p := range series {
			closes[i] = p.Close
		}
		if quote, ok := yieldFromCloses(symbol, closes); ok {
			out = append(out, quote)
		}
	}
	return out
}

// FetchSnapshot pulls every symbol group. Individual symbol failures
// are logged and skipped rather than failing the whole snapshot.
func (c *Client) FetchSnapshot(ctx context.Context) Snapshot {
	ctx, span := tracer.Start(ctx, "client:FetchSnapshot")
	defer span.End()

	now := time.Now().UTC()
	snapshot := Snapshot{
		UpdatedAt:     now.Format("2006-01-02 15:04 UTC"),
		UpdatedDate:   now.Format("2006-01-02"),
		Futures:       c.fetchGroup(ctx, "US Futures", Futures),
		VolDollar:     c.fetchGroup(ctx, "Vol & Dollar", VolDollar),
		Metals:        c.fetchGroup(ctx, "Metals", Metals),
		Energy:        c.fetchGroup(ctx, "Energy", Energy),
		Yields:        c.fetchYields(ctx),
		GlobalIndices: c.fetchGroup(ctx, "Global Indices", GlobalIndices),
		Sectors:       c.fetchGroup(ctx, "S&P Sectors", Sectors),
		MajorEtfs:     c.fetchGroup(ctx, "Major ETFs", MajorEtfs),
		Crypto:        c.fetchGroup(ctx, "Crypto", Crypto),
		CountryEtfs:   c.fetchGroup(ctx, "Country ETFs", CountryEtfs),
	}

	byWeekChange := func(a, b Quote) int {
		if a.Chg1w > b.Chg1w {
			return -1
		}
		if a.Chg1w < b.Chg1w {
			return 1
		}
		return 0
	}
	slices.SortFunc(snapshot.Sectors, byWeekChange)
	slices.SortFunc(snapshot.CountryEtfs, byWeekChange)

	return snapshot
}
