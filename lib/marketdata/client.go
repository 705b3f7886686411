package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"traderdeck/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("marketdata")

const defaultBaseUrl = "https://query1.finance.yahoo.com"

// Client fetches EOD close series from the Yahoo Finance chart API.
type Client struct {
	Http *resty.Client
}

func NewClient(baseUrl string) *Client {
	if baseUrl == "" {
		baseUrl = defaultBaseUrl
	}
	client := resty.New()
	client.SetBaseURL(baseUrl)
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36")
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "marketdata/http")

	return &Client{Http: client}
}

type ClosePoint struct {
	Time  time.Time
	Close float64
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// CloseSeries returns the daily close series for the window ending now.
// Days without a close (halts, missing data) are dropped.
func (c *Client) CloseSeries(ctx context.Context, symbol string, window time.Duration) ([]ClosePoint, error) {
	ctx, span := tracer.Start(ctx, "client:CloseSeries")
	defer span.End()

	now := time.Now()
	res, err := c.Http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"period1":  fmt.Sprintf("%d", now.Add(-window).Unix()),
			"period2":  fmt.Sprintf("%d", now.Unix()),
			"interval": "1d",
			"events":   "history",
		}).
		Get("/v8/finance/chart/" + symbol)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch chart")
		return nil, err
	}

	var parsed chartResponse
	err = json.Unmarshal(res.Body(), &parsed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse chart response")
		return nil, err
	}
	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf(
			"chart api error for %s: %s (%s)",
			symbol, parsed.Chart.Error.Description, parsed.Chart.Error.Code,
		)
	}
	if len(parsed.Chart.Result) == 0 || len(parsed.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("chart api returned no series for %s", symbol)
	}

	result := parsed.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close

	var series []ClosePoint
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		series = append(series, ClosePoint{
			Time:  time.Unix(ts, 0).UTC(),
			Close: *closes[i],
		})
	}
	return series, nil
}

// LatestClose returns the most recent daily close.
func (c *Client) LatestClose(ctx context.Context, symbol string) (float64, error) {
	series, err := c.CloseSeries(ctx, symbol, 7*24*time.Hour)
	if err != nil {
		return 0, err
	}
	if len(series) == 0 {
		return 0, fmt.Errorf("no closes for %s", symbol)
	}
	return series[len(series)-1].Close, nil
}

// CloseAsOf returns the last close at or before the given date.
func (c *Client) CloseAsOf(ctx context.Context, symbol string, date time.Time) (float64, error) {
	window := time.Since(date) + 14*24*time.Hour
	series, err := c.CloseSeries(ctx, symbol, window)
	if err != nil {
		return 0, err
	}
	for i := len(series) - 1; i >= 0; i-- {
		if !series[i].Time.After(date) {
			return series[i].Close, nil
		}
	}
	return 0, fmt.Errorf("no close at or before %s for %s", date.Format("2006-01-02"), symbol)
}
