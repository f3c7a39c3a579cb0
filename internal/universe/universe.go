package universe

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Load reads a universe file: one symbol per line, or the first column of a CSV.
// Blank lines and lines starting with '#' are skipped. suffix is appended to symbols
// that do not already carry it. The result is sorted and free of duplicates.
func Load(path, suffix string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open universe: %w", err)
	}
	defer f.Close()
	return Parse(f, suffix)
}

// Parse is Load over an arbitrary reader.
func Parse(r io.Reader, suffix string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sym, _, _ := strings.Cut(line, ",")
		sym = strings.ToUpper(strings.Trim(strings.TrimSpace(sym), `"`))
		if sym == "" || sym == "SYMBOL" {
			continue
		}
		if suffix != "" && !strings.HasSuffix(sym, strings.ToUpper(suffix)) {
			sym += strings.ToUpper(suffix)
		}
		if seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read universe: %w", err)
	}
	sort.Strings(out)
	return out, nil
}
