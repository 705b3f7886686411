package marketdata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQuoteFromCloses(t *testing.T) {
	symbol := Symbol{Ticker: "SPY", Name: "S&P 500"}
	closes := []float64{100, 102, 104, 103, 105, 106, 108}

	quote, ok := quoteFromCloses(symbol, closes)
	require.True(t, ok)
	require.Equal(t, "SPY", quote.Ticker)
	require.Equal(t, 108.0, quote.Price)
	// 106 -> 108
	require.Equal(t, 1.89, quote.Chg1d)
	// five sessions back: 102 -> 108
	require.Equal(t, 5.88, quote.Chg1w)
	// 108 is the high, so distance to it is zero
	require.Equal(t, 0.0, quote.Chg52wHi)
	// first close of the window: 100 -> 108
	require.Equal(t, 8.0, quote.ChgYtd)
	// day-over-day deltas of the five closes before today
	require.Len(t, quote.Spark, 4)
}

func TestQuoteFromClosesTooShort(t *testing.T) {
	_, ok := quoteFromCloses(Symbol{Ticker: "SPY"}, []float64{100})
	require.False(t, ok)
	_, ok = quoteFromCloses(Symbol{Ticker: "SPY"}, nil)
	require.False(t, ok)
}

func TestQuoteFromClosesShortSeries(t *testing.T) {
	quote, ok := quoteFromCloses(Symbol{Ticker: "SPY"}, []float64{100, 101})
	require.True(t, ok)
	// with under a week of data the week change degrades to the day change
	require.Equal(t, quote.Chg1d, quote.Chg1w)
}

// a zero reference close must skip the symbol entirely: an Inf percent
// change would make the whole snapshot unserializable
func TestQuoteFromClosesZeroReference(t *testing.T) {
	// zero at the start of the window anchors the ytd change
	_, ok := quoteFromCloses(Symbol{Ticker: "SPY"}, []float64{0, 101, 102, 103, 104, 105, 106})
	require.False(t, ok)

	// zero on the prior session anchors the day change
	_, ok = quoteFromCloses(Symbol{Ticker: "SPY"}, []float64{100, 101, 102, 103, 104, 0, 106})
	require.False(t, ok)

	_, ok = yieldFromCloses(Symbol{Ticker: "^TNX"}, []float64{0, 4.10, 4.05, 4.20, 4.15, 4.25, 4.30})
	require.False(t, ok)
}

func TestYieldFromCloses(t *testing.T) {
	symbol := Symbol{Ticker: "^TNX", Name: "10Y Treasury"}
	closes := []float64{4.00, 4.10, 4.05, 4.20, 4.15, 4.25, 4.30}

	quote, ok := yieldFromCloses(symbol, closes)
	require.True(t, ok)
	require.Equal(t, "10Y", quote.Tenor)
	require.Equal(t, 4.30, quote.YieldPct)
	// 4.25 -> 4.30 is five basis points
	require.Equal(t, 5.0, quote.Chg1dBps)
}
