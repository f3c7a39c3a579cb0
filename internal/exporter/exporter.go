package exporter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrorLogName is the file that lists the instruments of the last run that failed.
const ErrorLogName = "ErrorTickers.csv"

// Exporter writes the uptrend and error lists of a run to a logs directory.
type Exporter struct {
	Dir string
	// TrimSuffix is stripped from symbols in the uptrend log (e.g. ".NS").
	TrimSuffix string
}

// Paths are the files written by one export.
type Paths struct {
	Uptrend string
	Errors  string
}

// New creates an Exporter.
func New(dir, trimSuffix string) *Exporter {
	return &Exporter{Dir: dir, TrimSuffix: trimSuffix}
}

// UptrendLogName returns the uptrend log name for an as-of date.
func UptrendLogName(asOf string) string {
	return fmt.Sprintf("UptrendTickers_%s.csv", asOf)
}

// Export overwrites both logs: one symbol per line.
func (e *Exporter) Export(asOf string, uptrends, errs []string) (Paths, error) {
	if err := os.MkdirAll(e.Dir, 0755); err != nil {
		return Paths{}, fmt.Errorf("create logs dir: %w", err)
	}
	trimmed := make([]string, len(uptrends))
	for i, s := range uptrends {
		trimmed[i] = strings.TrimSuffix(s, e.TrimSuffix)
	}

	paths := Paths{
		Uptrend: filepath.Join(e.Dir, UptrendLogName(asOf)),
		Errors:  filepath.Join(e.Dir, ErrorLogName),
	}
	if err := writeColumn(paths.Uptrend, trimmed); err != nil {
		return Paths{}, fmt.Errorf("write uptrend log: %w", err)
	}
	if err := writeColumn(paths.Errors, errs); err != nil {
		return Paths{}, fmt.Errorf("write error log: %w", err)
	}
	return paths, nil
}

// ReadUptrends reads back the uptrend log of asOf, re-appending the suffix.
func (e *Exporter) ReadUptrends(asOf string) ([]string, error) {
	f, err := os.Open(filepath.Join(e.Dir, UptrendLogName(asOf)))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse uptrend log: %w", err)
	}
	out := make([]string, 0, len(records))
	for _, rec := range records {
		if len(rec) > 0 && rec[0] != "" {
			out = append(out, rec[0]+e.TrimSuffix)
		}
	}
	return out, nil
}

func writeColumn(path string, values []string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, v := range values {
		if err := w.Write([]string{v}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
