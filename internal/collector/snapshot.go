package collector

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"TrendScreener/internal/model"
)

var snapshotHeader = []string{"Date", "Open", "High", "Low", "Close", "Volume", "EMA"}

// EncodeSnapshot renders a series as CSV for inspection outside the cache.
func EncodeSnapshot(series *model.PriceSeries) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(snapshotHeader); err != nil {
		return nil, err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for i, b := range series.Bars {
		ema := ""
		if i < len(series.EMA) {
			ema = f(series.EMA[i])
		}
		rec := []string{b.Time.Format("2006-01-02T15:04:05Z07:00"), f(b.Open), f(b.High), f(b.Low), f(b.Close), f(b.Volume), ema}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
