package report

import (
	"strings"

	md "github.com/nao1215/markdown"
)

// Markdown builds a Markdown report in memory.
type Markdown struct {
	md  *md.Markdown
	buf *strings.Builder
}

// NewMarkdownBuffer returns an empty Markdown report.
func NewMarkdownBuffer() *Markdown {
	buf := &strings.Builder{}
	return &Markdown{md: md.NewMarkdown(buf), buf: buf}
}

// String returns the report. Call Build first.
func (m *Markdown) String() string {
	return m.buf.String()
}

// H1 adds the report title.
func (m *Markdown) H1(text string) *Markdown {
	m.md.H1(text)
	return m
}

// H2 starts a section, usually one duplicate group.
func (m *Markdown) H2(text string) *Markdown {
	m.md.H2(text)
	return m
}

// PlainText adds a paragraph.
func (m *Markdown) PlainText(text string) *Markdown {
	m.md.PlainText(text)
	return m
}

// LF adds a line feed.
func (m *Markdown) LF() *Markdown {
	m.md.LF()
	return m
}

// BulletList adds a list. An empty list adds nothing.
func (m *Markdown) BulletList(items ...string) *Markdown {
	if len(items) > 0 {
		m.md.BulletList(items...)
	}
	return m
}

// Table adds a table. A table without rows adds nothing.
func (m *Markdown) Table(header []string, rows [][]string) *Markdown {
	if len(rows) > 0 {
		m.md.Table(md.TableSet{Header: header, Rows: rows})
	}
	return m
}

// Alert adds a GitHub alert block, e.g. Alert("warning", "2 deletions failed").
func (m *Markdown) Alert(kind, text string) *Markdown {
	m.md.PlainText("> [!" + strings.ToUpper(kind) + "]\n> " + text).LF()
	return m
}

// Build flushes the report into the buffer.
func (m *Markdown) Build() error {
	return m.md.Build()
}

// Code formats text as inline code.
func Code(text string) string {
	return md.Code(text)
}

// Bold formats text as bold.
func Bold(text string) string {
	return md.Bold(text)
}
