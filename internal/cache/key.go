package cache

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// DateLayout is the layout of the per-day cache root directory names.
const DateLayout = "2006-01-02"

const (
	aggregateDir  = "all-data"
	historicalDir = "historical-data"
)

// Kind selects the granularity of a cache entry.
type Kind int

const (
	KindAggregate Kind = iota
	KindInstrument
	KindSnapshot
)

func (k Kind) String() string {
	switch k {
	case KindAggregate:
		return "aggregate"
	case KindInstrument:
		return "instrument"
	case KindSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

// Key identifies one cache entry. Symbol is empty for aggregate entries.
type Key struct {
	Kind      Kind
	AsOf      string
	Signature string
	Symbol    string
}

// AsOfDate formats t as a cache root name.
func AsOfDate(t time.Time) string { return t.Format(DateLayout) }

// AggregateKey addresses the whole-universe entry of one run.
func AggregateKey(asOf, signature string) Key {
	return Key{Kind: KindAggregate, AsOf: asOf, Signature: signature}
}

// InstrumentKey addresses the entry of one instrument.
func InstrumentKey(asOf, signature, symbol string) Key {
	return Key{Kind: KindInstrument, AsOf: asOf, Signature: signature, Symbol: symbol}
}

// SnapshotKey addresses the CSV dump of one instrument's fetched series.
func SnapshotKey(asOf, signature, symbol string) Key {
	return Key{Kind: KindSnapshot, AsOf: asOf, Signature: signature, Symbol: symbol}
}

// RelPath returns the entry location relative to the cache root.
func (k Key) RelPath() string {
	switch k.Kind {
	case KindInstrument:
		return filepath.Join(k.AsOf, historicalDir, fileSafe(k.Symbol)+"_"+fileSafe(k.Signature)+".json")
	case KindSnapshot:
		return filepath.Join(k.AsOf, historicalDir, fileSafe(k.Symbol)+"_"+fileSafe(k.Signature)+".csv")
	default:
		return filepath.Join(k.AsOf, aggregateDir, fileSafe(k.Signature)+".json")
	}
}

func (k Key) String() string { return k.Kind.String() + ":" + filepath.ToSlash(k.RelPath()) }

// fileSafe percent-escapes every byte that is not safe in a file name.
// '%' is escaped too, so distinct inputs never share a name.
func fileSafe(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '.', c == '-', c == '_', c == '~':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
