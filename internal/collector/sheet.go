package collector

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
)

// sheetRow is the first column of a published spreadsheet export.
type sheetRow struct {
	Symbol string `csv:"symbol"`
}

// SheetSource reads tickers from a published spreadsheet CSV export.
type SheetSource struct {
	URL    string
	Client *http.Client
}

// NewSheetSource creates a ticker source for a published CSV URL.
func NewSheetSource(url, proxyURL string, timeout time.Duration) *SheetSource {
	return &SheetSource{URL: url, Client: newHTTPClient(proxyURL, timeout)}
}

func (s *SheetSource) Name() string { return "sheet" }

func (s *SheetSource) ListTickers(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch ticker sheet: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch ticker sheet: status %d, body: %s", resp.StatusCode, string(body))
	}
	return parseSheet(resp.Body)
}

// firstColumnReader trims every record to its first field so ragged sheets
// (notes in later columns, uneven row widths) still decode into sheetRow.
type firstColumnReader struct {
	r *csv.Reader
}

func (f firstColumnReader) Read() ([]string, error) {
	rec, err := f.r.Read()
	if err != nil {
		return nil, err
	}
	if len(rec) > 1 {
		rec = rec[:1]
	}
	return rec, nil
}

func (f firstColumnReader) ReadAll() ([][]string, error) {
	var out [][]string
	for {
		rec, err := f.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

// parseSheet returns the trimmed, non-empty first column of a headerless CSV.
func parseSheet(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var rows []sheetRow
	if err := gocsv.UnmarshalCSVWithoutHeaders(firstColumnReader{r: cr}, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse ticker sheet: %w", err)
	}
	tickers := make([]string, 0, len(rows))
	for _, row := range rows {
		if t := strings.TrimSpace(row.Symbol); t != "" {
			tickers = append(tickers, t)
		}
	}
	return tickers, nil
}

// StaticSource serves a fixed watchlist.
type StaticSource struct {
	Symbols []string
}

// NewStaticSource creates a source over a fixed list of symbols.
func NewStaticSource(symbols []string) *StaticSource {
	return &StaticSource{Symbols: symbols}
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) ListTickers(_ context.Context) ([]string, error) {
	out := make([]string, len(s.Symbols))
	copy(out, s.Symbols)
	return out, nil
}

// NormalizeTickers upper-cases, de-duplicates and truncates to max (0 = no limit),
// keeping the first occurrence order.
func NormalizeTickers(in []string, max int) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}
