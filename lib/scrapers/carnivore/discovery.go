package carnivore

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"traderdeck/lib/htmlutil"
	"traderdeck/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/net/html"
)

// RawRow is one extracted table row keyed by as-rendered column label.
// Insertion order is column order, which the normalizer depends on.
type RawRow struct {
	keys   []string
	values map[string]string
}

func (r *RawRow) Set(key, value string) {
	if r.values == nil {
		r.values = map[string]string{}
	}
	if _, exists := r.values[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

func (r RawRow) Get(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

func (r RawRow) Keys() []string {
	return r.keys
}

func (r RawRow) Len() int {
	return len(r.keys)
}

// ExtractRows runs the discovery cascade against a loaded page. Each
// strategy is tried only when the previous one yields nothing; an
// entirely empty result is not an error, callers decide whether to fall
// back to previous data.
func (c *Client) ExtractRows(ctx context.Context, page Page) []RawRow {
	ctx, span := tracer.Start(ctx, "client:ExtractRows")
	defer span.End()

	rows := extractFromTables(page.Doc)
	if len(rows) > 0 {
		span.SetAttributes(
			attribute.String("strategy", "table"),
			attribute.Int("rows", len(rows)),
		)
		return rows
	}

	if selector, count := probeRepeatedElements(page.Doc); selector != "" {
		// diagnostics only, this narrows down the layout for the
		// pattern scan and for operators reading the logs
		slog.InfoContext(
			ctx, "candidate repeated layout",
			"selector", selector,
			"count", count,
		)
		span.SetAttributes(attribute.String("candidate_layout", selector))
	}

	rows = extractFromPatterns(page.Doc)
	span.SetAttributes(
		attribute.String("strategy", "pattern"),
		attribute.Int("rows", len(rows)),
	)
	return rows
}

type tableShape struct {
	headers  []string
	dataRows *goquery.Selection
}

// shapeTable derives the header labels and the data rows of a table.
// Headers come from an explicit header section when present, otherwise
// the first row supplies them and only the subsequent rows count as
// data.
func shapeTable(table *goquery.Selection) tableShape {
	headers := cellTexts(table.Find("thead th, thead td"))

	rows := table.Find("tbody tr")
	if rows.Length() == 0 {
		rows = table.Find("tr").Not("thead tr")
	}
	if len(headers) == 0 && rows.Length() > 0 {
		headers = cellTexts(rows.First().Find("td,th"))
		rows = rows.Slice(1, rows.Length())
	}
	return tableShape{headers: headers, dataRows: rows}
}

// extractFromTables is the structured-table strategy: pick the table
// with the most data rows (first encountered wins ties) and key each
// row by the header labels.
func extractFromTables(doc *goquery.Document) []RawRow {
	var best tableShape
	bestCount := 0

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		shape := shapeTable(table)
		if shape.dataRows.Length() > bestCount {
			bestCount = shape.dataRows.Length()
			best = shape
		}
	})

	if bestCount == 0 {
		return nil
	}

	headers := best.headers

	var rows []RawRow
	best.dataRows.Each(func(_ int, tr *goquery.Selection) {
		cells := cellTexts(tr.Find("td,th"))
		if allEmpty(cells) {
			return
		}
		var row RawRow
		for i, cell := range cells {
			key := "col_" + strconv.Itoa(i)
			if i < len(headers) && headers[i] != "" {
				key = headers[i]
			}
			row.Set(key, cell)
		}
		rows = append(rows, row)
	})
	return rows
}

func cellTexts(cells *goquery.Selection) []string {
	var out []string
	cells.Each(func(_ int, cell *goquery.Selection) {
		out = append(out, htmlutil.CleanText(cell.Text()))
	})
	return out
}

func allEmpty(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

// repeated-element probes, ordered by how strongly the selector implies
// position/holding semantics
var layoutSelectors = []string{
	"[class*=position]",
	"[class*=holding]",
	"[class*=portfolio-row]",
	"[class*=table-row]",
	"[class*=row]",
	"[role=row]",
	"ul li",
}

const layoutThreshold = 3

// probeRepeatedElements reports the first selector matching more than a
// small threshold of elements. It never produces rows itself.
func probeRepeatedElements(doc *goquery.Document) (string, int) {
	for _, selector := range layoutSelectors {
		count := doc.Find(selector).Length()
		if count > layoutThreshold {
			return selector, count
		}
	}
	return "", 0
}

var tickerPattern = regexp.MustCompile(`\b[A-Z]{1,5}\b`)
var numberPattern = regexp.MustCompile(`\(?\$?-?\d[\d,]*(?:\.\d+)?%?\)?`)

var rowAncestorTags = map[string]bool{
	"tr": true,
	"li": true,
}

const patternRowCap = 50

const (
	plausibleMin = 0.01
	plausibleMax = 100000
)

// extractFromPatterns is the lossy last resort: anchor on ticker-like
// tokens in leaf text nodes and guess the first two plausible
// magnitudes in the surrounding row as avg cost and current price, in
// that order.
func extractFromPatterns(doc *goquery.Document) []RawRow {
	if len(doc.Selection.Nodes) == 0 {
		return nil
	}

	seen := map[*html.Node]bool{}
	var rows []RawRow

	for _, leaf := range htmlutil.LeafTextNodes(doc.Selection.Nodes[0]) {
		ticker := tickerPattern.FindString(leaf.Data)
		if ticker == "" {
			continue
		}

		ancestor := htmlutil.ClosestAncestor(leaf, rowAncestorTags)
		if ancestor == nil {
			ancestor = leaf.Parent
		}
		if ancestor == nil || seen[ancestor] {
			continue
		}
		seen[ancestor] = true

		var row RawRow
		row.Set("ticker", ticker)

		text := htmlutil.VisibleText(ancestor)
		assigned := 0
		for _, token := range numberPattern.FindAllString(text, -1) {
			value, ok := textutil.ParseNumber(token)
			if !ok {
				continue
			}
			magnitude := value
			if magnitude < 0 {
				magnitude = -magnitude
			}
			if magnitude < plausibleMin || magnitude > plausibleMax {
				continue
			}
			switch assigned {
			case 0:
				row.Set("avg cost", token)
			case 1:
				row.Set("current price", token)
			}
			assigned++
			if assigned >= 2 {
				break
			}
		}

		rows = append(rows, row)
		if len(rows) >= patternRowCap {
			break
		}
	}
	return rows
}
