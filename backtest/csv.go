package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"quantsim/market"
)

// LoadBarsCSV reads daily bars from a CSV file with columns
// symbol,date,open,high,low,close,volume. Dates are 2006-01-02 or RFC3339.
// A header row is detected and skipped.
func LoadBarsCSV(path string) ([]market.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var bars []market.Bar
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			return bars, nil
		}
		if err != nil {
			return nil, err
		}
		if len(row) == 0 {
			continue
		}
		if first {
			first = false
			if strings.EqualFold(strings.TrimSpace(row[0]), "symbol") {
				continue
			}
		}

		bar, err := parseBarRow(row)
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}
}

func parseBarRow(row []string) (market.Bar, error) {
	if len(row) < 7 {
		return market.Bar{}, fmt.Errorf("bad row (need symbol,date,open,high,low,close,volume): %v", row)
	}

	ts := strings.TrimSpace(row[1])
	t, err := time.Parse("2006-01-02", ts)
	if err != nil {
		t, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return market.Bar{}, fmt.Errorf("bad date %q: %w", row[1], err)
		}
	}

	vals := make([]float64, 5)
	for i, col := range row[2:7] {
		v, err := strconv.ParseFloat(strings.TrimSpace(col), 64)
		if err != nil {
			return market.Bar{}, fmt.Errorf("bad value %q: %w", col, err)
		}
		vals[i] = v
	}

	return market.Bar{
		Symbol: strings.TrimSpace(row[0]),
		Time:   t.UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}
