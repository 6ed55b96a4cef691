package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"
	_ "time/tzdata"

	"AlertWatch/internal/model"
)

const defaultTwelveDataURL = "https://api.twelvedata.com"

// TwelveDataGateway implements Gateway using the Twelve Data time_series endpoint.
type TwelveDataGateway struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewTwelveDataGateway creates a gateway with optional proxy support.
func NewTwelveDataGateway(baseURL, apiKey, proxyURL string, timeout time.Duration) *TwelveDataGateway {
	if baseURL == "" {
		baseURL = defaultTwelveDataURL
	}
	return &TwelveDataGateway{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL, timeout),
	}
}

func (g *TwelveDataGateway) Name() string { return "twelvedata" }

// tdResponse is the JSON shape of /time_series. Numbers arrive as strings.
type tdResponse struct {
	Meta struct {
		Symbol           string `json:"symbol"`
		Interval         string `json:"interval"`
		ExchangeTimezone string `json:"exchange_timezone"`
	} `json:"meta"`
	Values []struct {
		Datetime string `json:"datetime"`
		Open     string `json:"open"`
		High     string `json:"high"`
		Low      string `json:"low"`
		Close    string `json:"close"`
		Volume   string `json:"volume"`
	} `json:"values"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (g *TwelveDataGateway) GetCandles(ctx context.Context, symbol, interval string, count int) (model.CandleSeries, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("outputsize", strconv.Itoa(count))
	q.Set("apikey", g.APIKey)
	endpoint := fmt.Sprintf("%s/time_series?%s", g.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.CandleSeries{}, err
	}
	resp, err := g.Client.Do(req)
	if err != nil {
		return model.CandleSeries{}, fmt.Errorf("twelvedata %s %s: %w", symbol, interval, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.CandleSeries{}, fmt.Errorf("twelvedata read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return model.CandleSeries{}, fmt.Errorf("twelvedata %s %s: status %d, body: %s", symbol, interval, resp.StatusCode, string(body))
	}

	var payload tdResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return model.CandleSeries{}, fmt.Errorf("twelvedata decode: %w", err)
	}
	if payload.Status == "error" {
		return model.CandleSeries{}, fmt.Errorf("twelvedata %s %s: api error %d: %s", symbol, interval, payload.Code, payload.Message)
	}
	if len(payload.Values) == 0 {
		return model.CandleSeries{}, fmt.Errorf("twelvedata %s %s: %w", symbol, interval, ErrInsufficientData)
	}

	loc := time.UTC
	if payload.Meta.ExchangeTimezone != "" {
		if l, err := time.LoadLocation(payload.Meta.ExchangeTimezone); err == nil {
			loc = l
		}
	}

	bars := make([]model.Bar, 0, len(payload.Values))
	for _, v := range payload.Values {
		ts, err := parseTDTime(v.Datetime, loc)
		if err != nil {
			return model.CandleSeries{}, fmt.Errorf("twelvedata %s: %w", symbol, err)
		}
		bar := model.Bar{OpenTime: ts}
		fields := []struct {
			raw string
			dst *float64
		}{{v.Open, &bar.Open}, {v.High, &bar.High}, {v.Low, &bar.Low}, {v.Close, &bar.Close}, {v.Volume, &bar.Volume}}
		for _, f := range fields {
			if f.raw == "" {
				continue // indices and forex omit volume
			}
			n, err := strconv.ParseFloat(f.raw, 64)
			if err != nil {
				return model.CandleSeries{}, fmt.Errorf("twelvedata %s: parse %q: %w", symbol, f.raw, err)
			}
			*f.dst = n
		}
		bars = append(bars, bar)
	}

	// API returns newest first
	sort.Slice(bars, func(i, j int) bool { return bars[i].OpenTime.Before(bars[j].OpenTime) })
	return model.NewCandleSeries(symbol, interval, bars), nil
}

func parseTDTime(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse datetime %q", s)
}
