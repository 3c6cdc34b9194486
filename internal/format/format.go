// Package format turns backend values into short display strings shared by
// the terminal and web renderers.
package format

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const missing = "n/a"

var title = cases.Title(language.English)

func Count(n int) string {
	return humanize.Comma(int64(n))
}

// Rate renders an optional 0..1 ratio as percent.
func Rate(value *float64) string {
	if value == nil {
		return missing
	}
	return Ratio(*value)
}

// Points renders the difference between two 0..1 ratios in percentage points.
func Points(value *float64) string {
	if value == nil {
		return missing
	}
	return fmt.Sprintf("%+.1f pts", *value*100)
}

// Ratio renders a 0..1 ratio as percent.
func Ratio(value float64) string {
	return fmt.Sprintf("%.1f%%", value*100)
}

func Score(value *float64) string {
	if value == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *value)
}

// ScoreChange renders a signed difference between two scores.
func ScoreChange(value *float64) string {
	if value == nil {
		return missing
	}
	return fmt.Sprintf("%+.2f", *value)
}

// Change renders a signed period-over-period change.
func Change(value *float64) string {
	if value == nil {
		return missing
	}
	if *value > 0 {
		return fmt.Sprintf("+%.1f%%", *value)
	}
	return fmt.Sprintf("%.1f%%", *value)
}

// Label turns a snake_case backend enum into a title, "rag_retrieval"
// becoming "Rag Retrieval". An empty value reads as "All".
func Label(value string) string {
	if strings.TrimSpace(value) == "" {
		return "All"
	}
	return title.String(strings.ReplaceAll(value, "_", " "))
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Ago renders a backend timestamp relative to now.
func Ago(timestamp string, now time.Time) string {
	timestamp = strings.TrimSpace(timestamp)
	if timestamp == "" {
		return "never"
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, timestamp); err == nil {
			return humanize.RelTime(parsed, now, "ago", "from now")
		}
	}
	return timestamp
}

// Truncate shortens s to at most width runes, marking the cut.
func Truncate(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if width <= 0 || len(runes) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(runes[:width-1]) + "…"
}

var ticks = []rune("▁▂▃▄▅▆▇█")

// Sparkline draws one cell per value. Only the given values are drawn;
// missing days are not filled in.
func Sparkline(values []int) string {
	if len(values) == 0 {
		return ""
	}
	peak := 0
	for _, v := range values {
		peak = max(peak, v)
	}
	var b strings.Builder
	for _, v := range values {
		if peak == 0 || v <= 0 {
			b.WriteRune(ticks[0])
			continue
		}
		index := int(math.Round(float64(v) / float64(peak) * float64(len(ticks)-1)))
		b.WriteRune(ticks[index])
	}
	return b.String()
}

// Bar draws a horizontal bar of value relative to peak within width cells.
func Bar(value, peak, width int) string {
	if peak <= 0 || value <= 0 || width <= 0 {
		return ""
	}
	cells := int(math.Round(float64(value) / float64(peak) * float64(width)))
	cells = min(max(cells, 1), width)
	return strings.Repeat("█", cells)
}
