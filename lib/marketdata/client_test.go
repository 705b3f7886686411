package marketdata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func chartBody(t *testing.T, timestamps []int64, closes []*float64) []byte {
	payload := map[string]any{
		"chart": map[string]any{
			"result": []any{
				map[string]any{
					"timestamp": timestamps,
					"indicators": map[string]any{
						"quote": []any{
							map[string]any{"close": closes},
						},
					},
				},
			},
		},
	}
	contents, err := json.Marshal(payload)
	require.NoError(t, err)
	return contents
}

func closePtr(v float64) *float64 {
	return &v
}

func TestCloseSeries(t *testing.T) {
	day := int64(24 * 60 * 60)
	base := time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC).Unix()

	mux := http.NewServeMux()
	mux.HandleFunc("/v8/finance/chart/AAPL", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "1d", r.URL.Query().Get("interval"))
		w.Write(chartBody(t,
			[]int64{base, base + day, base + 2*day},
			// the middle day has no close, it must be dropped
			[]*float64{closePtr(200.5), nil, closePtr(201.12)},
		))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.URL)
	series, err := client.CloseSeries(context.Background(), "AAPL", 7*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, series, 2)
	require.Equal(t, 200.5, series[0].Close)
	require.Equal(t, 201.12, series[1].Close)
	require.Equal(t, time.Unix(base, 0).UTC(), series[0].Time)
}

func TestCloseSeriesApiError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v8/finance/chart/BOGUS", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.CloseSeries(context.Background(), "BOGUS", 7*24*time.Hour)
	require.Error(t, err)
	require.Contains(t, err.Error(), "No data found")
}

func TestLatestClose(t *testing.T) {
	day := int64(24 * 60 * 60)
	base := time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC).Unix()

	mux := http.NewServeMux()
	mux.HandleFunc("/v8/finance/chart/SPY", func(w http.ResponseWriter, r *http.Request) {
		w.Write(chartBody(t,
			[]int64{base, base + day},
			[]*float64{closePtr(500.0), closePtr(510.25)},
		))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.URL)
	latest, err := client.LatestClose(context.Background(), "SPY")
	require.NoError(t, err)
	require.Equal(t, 510.25, latest)
}

func TestCloseAsOf(t *testing.T) {
	day := int64(24 * 60 * 60)
	base := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC).Unix()

	mux := http.NewServeMux()
	mux.HandleFunc("/v8/finance/chart/GLD", func(w http.ResponseWriter, r *http.Request) {
		w.Write(chartBody(t,
			[]int64{base, base + day, base + 2*day},
			[]*float64{closePtr(180.0), closePtr(181.0), closePtr(182.0)},
		))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.URL)
	// the cutoff falls between the second and third points
	cutoff := time.Unix(base+day, 0).UTC().Add(12 * time.Hour)
	value, err := client.CloseAsOf(context.Background(), "GLD", cutoff)
	require.NoError(t, err)
	require.Equal(t, 181.0, value)
}
