package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Allenwang2004/Alltrader/internal/domain"

	"github.com/shopspring/decimal"
)

// LoadBarsCSV reads a 1-minute OHLCV series from a CSV file with a header
// row. Column names are matched case-insensitively; the timestamp column
// may be named ts or timestamp and hold RFC3339, "2006-01-02 15:04:05", or
// unix milliseconds.
func LoadBarsCSV(path string) ([]domain.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("backtest: open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("backtest: read csv header: %w", err)
	}

	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var bars []domain.Bar
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("backtest: csv line %d: %w", line, err)
		}

		bar, err := parseRecord(rec, idx)
		if err != nil {
			return nil, fmt.Errorf("backtest: csv line %d: %w", line, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// columns maps logical fields onto positions in the header row.
type columns struct {
	ts, open, high, low, close, volume int
}

func columnIndex(header []string) (columns, error) {
	idx := columns{ts: -1, open: -1, high: -1, low: -1, close: -1, volume: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "ts", "timestamp":
			idx.ts = i
		case "open", "o":
			idx.open = i
		case "high", "h":
			idx.high = i
		case "low", "l":
			idx.low = i
		case "close", "c":
			idx.close = i
		case "volume", "vol", "v":
			idx.volume = i
		}
	}
	if idx.ts < 0 || idx.open < 0 || idx.high < 0 || idx.low < 0 || idx.close < 0 || idx.volume < 0 {
		return idx, fmt.Errorf("backtest: csv header missing required columns (have %v)", header)
	}
	return idx, nil
}

func parseRecord(rec []string, idx columns) (domain.Bar, error) {
	ts, err := parseTimestamp(rec[idx.ts])
	if err != nil {
		return domain.Bar{}, err
	}

	fields := [5]decimal.Decimal{}
	for i, col := range [5]int{idx.open, idx.high, idx.low, idx.close, idx.volume} {
		d, err := decimal.NewFromString(strings.TrimSpace(rec[col]))
		if err != nil {
			return domain.Bar{}, fmt.Errorf("bad numeric field %q: %w", rec[col], err)
		}
		fields[i] = d
	}

	return domain.Bar{
		Ts:     ts,
		Open:   fields[0],
		High:   fields[1],
		Low:    fields[2],
		Close:  fields[3],
		Volume: fields[4],
	}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
