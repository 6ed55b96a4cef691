package collector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	"AlertWatch/internal/model"
)

// polygonLookbackPad covers weekends and overnight gaps so a descending,
// limited query still returns the latest count bars.
const polygonLookbackPad = 96 * time.Hour

// polygonMaxLimit is the API maximum. Polygon applies limit to the base
// aggregates a query reads, not to the bars it returns, so the wanted bar
// count is enforced client-side instead.
const polygonMaxLimit = 50000

// PolygonGateway implements Gateway using the Polygon aggregates API.
type PolygonGateway struct {
	Client *polygon.Client
	Now    func() time.Time
}

// NewPolygonGateway creates a Polygon-backed gateway sharing the proxy and
// timeout settings of the other HTTP collectors.
func NewPolygonGateway(apiKey, proxyURL string, timeout time.Duration) *PolygonGateway {
	return &PolygonGateway{
		Client: polygon.NewWithClient(apiKey, newHTTPClient(proxyURL, timeout)),
		Now:    time.Now,
	}
}

func (g *PolygonGateway) Name() string { return "polygon" }

type aggSpan struct {
	multiplier int
	timespan   models.Timespan
	unit       time.Duration
}

// parseInterval maps Twelve Data style interval strings onto Polygon aggregate spans.
func parseInterval(interval string) (aggSpan, error) {
	s := strings.ToLower(strings.TrimSpace(interval))
	units := []struct {
		suffix   string
		timespan models.Timespan
		unit     time.Duration
	}{
		{"min", models.Minute, time.Minute},
		{"h", models.Hour, time.Hour},
		{"day", models.Day, 24 * time.Hour},
	}
	for _, u := range units {
		if !strings.HasSuffix(s, u.suffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(s, u.suffix))
		if err != nil || n <= 0 {
			break
		}
		return aggSpan{multiplier: n, timespan: u.timespan, unit: time.Duration(n) * u.unit}, nil
	}
	return aggSpan{}, fmt.Errorf("%w: %q", ErrUnknownInterval, interval)
}

func (g *PolygonGateway) GetCandles(ctx context.Context, symbol, interval string, count int) (model.CandleSeries, error) {
	span, err := parseInterval(interval)
	if err != nil {
		return model.CandleSeries{}, err
	}
	now := g.Now()
	from := now.Add(-(time.Duration(count)*span.unit + polygonLookbackPad))

	params := models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: span.multiplier,
		Timespan:   span.timespan,
		From:       models.Millis(from),
		To:         models.Millis(now),
	}.WithOrder(models.Desc).WithLimit(polygonMaxLimit).WithAdjusted(true)

	iter := g.Client.ListAggs(ctx, params)
	bars := make([]model.Bar, 0, count)
	// Check the cap first so a full result never pulls another page.
	for len(bars) < count && iter.Next() {
		a := iter.Item()
		bars = append(bars, model.Bar{
			OpenTime: time.Time(a.Timestamp),
			Open:     a.Open,
			High:     a.High,
			Low:      a.Low,
			Close:    a.Close,
			Volume:   a.Volume,
		})
	}
	if err := iter.Err(); err != nil {
		return model.CandleSeries{}, fmt.Errorf("polygon %s %s: %w", symbol, interval, err)
	}
	if len(bars) == 0 {
		return model.CandleSeries{}, fmt.Errorf("polygon %s %s: %w", symbol, interval, ErrInsufficientData)
	}

	// descending order, flip to oldest first
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return model.NewCandleSeries(symbol, interval, bars), nil
}
