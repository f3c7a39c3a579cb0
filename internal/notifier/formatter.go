package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// maxListed caps the symbols listed in one message; Telegram rejects texts over 4096 chars.
const maxListed = 150

// RunReport is what a scan run reports to the chat.
type RunReport struct {
	RunID     string
	AsOf      string
	Total     int
	Uptrends  []string
	Errors    []string
	FromCache bool
	Duration  time.Duration
}

// FormatRunReport formats a run outcome into a Telegram message.
func FormatRunReport(r RunReport) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📈 <b>TrendScreener</b> | %s\n\n", r.AsOf))
	src := "fresh scan"
	if r.FromCache {
		src = "cached"
	}
	b.WriteString(fmt.Sprintf("Instruments: %d (%s, %s)\n", r.Total, src, r.Duration.Round(time.Millisecond)))
	b.WriteString(fmt.Sprintf("Uptrend: <b>%d</b> | Errors: %d\n", len(r.Uptrends), len(r.Errors)))

	if len(r.Uptrends) > 0 {
		b.WriteString("\n✅ <b>Uptrend:</b>\n")
		writeList(&b, r.Uptrends)
	}
	if len(r.Errors) > 0 {
		b.WriteString("\n⚠️ <b>Failed:</b>\n")
		writeList(&b, r.Errors)
	}
	if r.RunID != "" {
		b.WriteString(fmt.Sprintf("\n<i>run %s</i>", r.RunID))
	}
	return b.String()
}

// FormatUptrendList formats the uptrend list of a date.
func FormatUptrendList(asOf string, symbols []string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("✅ <b>Uptrend</b> | %s (%d)\n\n", asOf, len(symbols)))
	if len(symbols) == 0 {
		b.WriteString("none")
		return b.String()
	}
	writeList(&b, symbols)
	return b.String()
}

// FormatHelp lists the supported commands.
func FormatHelp() string {
	return "Commands:\n• /uptrend - today's uptrend list\n• /scan - run a scan now\n• /scan force - rescan ignoring the cache"
}

func writeList(b *strings.Builder, symbols []string) {
	n := len(symbols)
	if n > maxListed {
		n = maxListed
	}
	escaped := make([]string, n)
	for i := 0; i < n; i++ {
		escaped[i] = html.EscapeString(symbols[i])
	}
	b.WriteString(strings.Join(escaped, ", "))
	if len(symbols) > maxListed {
		b.WriteString(fmt.Sprintf(" … and %d more", len(symbols)-maxListed))
	}
	b.WriteString("\n")
}
