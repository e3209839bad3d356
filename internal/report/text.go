// Package report renders operation results as plain text or Markdown.
package report

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Count formats n with thousands separators.
func Count(n int) string {
	return printer.Sprintf("%d", n)
}

// Bytes formats a byte size with thousands separators.
func Bytes(n int64) string {
	return printer.Sprintf("%d bytes", n)
}

// Percent formats a progress ratio in [0,1] as a percentage.
func Percent(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}

// Plural returns singular when n is 1 and plural otherwise.
func Plural(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

// Text builds a plain-text report.
type Text struct {
	b strings.Builder
}

// Title writes an underlined title.
func (t *Text) Title(title string) *Text {
	t.b.WriteString(title)
	t.b.WriteByte('\n')
	t.b.WriteString(strings.Repeat("=", len(title)))
	t.b.WriteByte('\n')
	return t
}

// Section writes a blank line and a section heading.
func (t *Text) Section(heading string) *Text {
	t.b.WriteByte('\n')
	t.b.WriteString(heading)
	t.b.WriteByte('\n')
	return t
}

// Line writes one formatted line.
func (t *Text) Line(format string, args ...any) *Text {
	fmt.Fprintf(&t.b, format, args...)
	t.b.WriteByte('\n')
	return t
}

// Field writes an indented "label: value" line.
func (t *Text) Field(label string, value any) *Text {
	return t.Line("  %-12s %v", label+":", value)
}

// Item writes an indented bullet.
func (t *Text) Item(format string, args ...any) *Text {
	t.b.WriteString("  - ")
	return t.Line(format, args...)
}

// String returns the report.
func (t *Text) String() string {
	return t.b.String()
}
