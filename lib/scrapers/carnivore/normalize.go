package carnivore

import (
	"context"
	"log/slog"
	"strings"
	"traderdeck/lib/textutil"

	"github.com/antzucaro/matchr"
)

// Position is the canonical record every discovered row is normalized
// into. Nil numeric fields mean "not present in source", never zero.
type Position struct {
	Ticker        string   `json:"ticker"`
	Name          string   `json:"name"`
	Shares        *float64 `json:"shares"`
	AvgCost       *float64 `json:"avg_cost"`
	CurrentPrice  *float64 `json:"current_price"`
	MarketValue   *float64 `json:"market_value"`
	UnrealizedPnl *float64 `json:"unrealized_pnl"`
	PctReturn     *float64 `json:"pct_return"`
	Weight        *float64 `json:"weight"`
	StopLoss      *float64 `json:"stop_loss"`
	BuyUpTo       *float64 `json:"buy_up_to"`
	EntryDate     *string  `json:"entry_date"`
}

// canonicalFields is the explicit resolution table: each canonical
// field with its candidate substrings in declaration priority.
// Containment is ambiguous by design ("weight" and "%" can both match
// allocation-like columns); the tie-break is first-declared field wins,
// and within a field the first raw key in insertion order that contains
// any candidate wins. A deliberate heuristic, not guaranteed correct
// for every layout.
var canonicalFields = []struct {
	field      string
	candidates []string
}{
	{"ticker", []string{"ticker", "symbol", "stock"}},
	{"name", []string{"company", "name", "description"}},
	{"shares", []string{"shares", "qty", "quantity"}},
	{"avg_cost", []string{"avg", "cost", "average", "entry", "basis"}},
	{"current_price", []string{"current", "price", "last"}},
	{"market_value", []string{"market", "value", "mkt"}},
	{"unrealized_pnl", []string{"unrealized", "gain", "p&l", "pnl"}},
	{"pct_return", []string{"return", "change", "pct", "%", "gain%"}},
	{"weight", []string{"weight", "alloc"}},
	{"stop_loss", []string{"stop"}},
	{"buy_up_to", []string{"buy up", "target"}},
	{"entry_date", []string{"date", "entry date"}},
}

func candidatesFor(field string) []string {
	for _, cf := range canonicalFields {
		if cf.field == field {
			return cf.candidates
		}
	}
	return nil
}

// resolveText scans raw keys in insertion order and returns the value
// of the first key containing any candidate substring.
func resolveText(row RawRow, field string) (string, bool) {
	candidates := candidatesFor(field)
	for _, key := range row.Keys() {
		if textutil.MatchKey(key, candidates) {
			value, _ := row.Get(key)
			return value, true
		}
	}
	return "", false
}

// resolveNumber parses the resolved cell text; unparsable values are
// absent, not zero and not an error.
func resolveNumber(row RawRow, field string) *float64 {
	text, ok := resolveText(row, field)
	if !ok {
		return nil
	}
	value, ok := textutil.ParseNumber(text)
	if !ok {
		return nil
	}
	return &value
}

// Normalize converts raw rows into canonical positions. Rows without a
// resolvable ticker are dropped silently, that is expected for header
// or decoration rows that slipped through discovery.
func Normalize(rows []RawRow) []Position {
	var out []Position
	for _, row := range rows {
		ticker, _ := resolveText(row, "ticker")
		ticker = strings.ToUpper(strings.TrimSpace(ticker))
		if ticker == "" {
			continue
		}

		name, ok := resolveText(row, "name")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			name = ticker
		}

		var entryDate *string
		if text, ok := resolveText(row, "entry_date"); ok {
			text = strings.TrimSpace(text)
			if text != "" {
				entryDate = &text
			}
		}

		out = append(out, Position{
			Ticker:        ticker,
			Name:          name,
			Shares:        resolveNumber(row, "shares"),
			AvgCost:       resolveNumber(row, "avg_cost"),
			CurrentPrice:  resolveNumber(row, "current_price"),
			MarketValue:   resolveNumber(row, "market_value"),
			UnrealizedPnl: resolveNumber(row, "unrealized_pnl"),
			PctReturn:     resolveNumber(row, "pct_return"),
			Weight:        resolveNumber(row, "weight"),
			StopLoss:      resolveNumber(row, "stop_loss"),
			BuyUpTo:       resolveNumber(row, "buy_up_to"),
			EntryDate:     entryDate,
		})

		reportUnmappedKeys(row)
	}
	return out
}

// reportUnmappedKeys logs columns no canonical field claimed, with the
// closest canonical name by similarity. Diagnostics only, never used
// for resolution.
func reportUnmappedKeys(row RawRow) {
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	for _, key := range row.Keys() {
		claimed := false
		for _, cf := range canonicalFields {
			if textutil.MatchKey(key, cf.candidates) {
				claimed = true
				break
			}
		}
		if claimed {
			continue
		}

		closest := ""
		best := 0.0
		for _, cf := range canonicalFields {
			similarity := matchr.JaroWinkler(textutil.NormalizeKey(key), cf.field, false)
			if similarity > best {
				best = similarity
				closest = cf.field
			}
		}
		slog.Debug("unmapped column", "key", key, "closest", closest)
	}
}
