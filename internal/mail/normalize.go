package mail

import (
	"strings"
	"unicode"

	"github.com/jaytaylor/html2text"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// DateLayout renders dates like "Friday 14. March 2025".
	DateLayout = "Monday 02. January 2006"
	// BlockSeparator closes every message block of a thread rendering.
	BlockSeparator = "\n---------------------------------------\n"
)

// DefaultQuotePrefixes strips classic quoted-reply chains.
var DefaultQuotePrefixes = []string{">"}

// Normalizer renders threads and single messages into prompt text.
// It holds no per-call state and is safe for concurrent use.
type Normalizer struct {
	quotePrefixes []string
}

func NewNormalizer(quotePrefixes []string) *Normalizer {
	prefixes := make([]string, 0, len(quotePrefixes))
	for _, p := range quotePrefixes {
		if p = strings.TrimSpace(p); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	if len(prefixes) == 0 {
		prefixes = DefaultQuotePrefixes
	}
	return &Normalizer{quotePrefixes: prefixes}
}

// Thread renders every non-nil message as a block followed by BlockSeparator.
func (n *Normalizer) Thread(thread Thread) string {
	var b strings.Builder
	for _, m := range thread.Messages() {
		b.WriteString(renderBlock(m))
		b.WriteString(BlockSeparator)
	}
	return n.finish(thread.Subject(), b.String())
}

// Single renders one message without a separator. Used by the classifier.
func (n *Normalizer) Single(m *Message) string {
	if m == nil {
		return ""
	}
	return n.finish(m.Subject, renderBlock(m))
}

func (n *Normalizer) finish(subject, blocks string) string {
	text := "Subject: " + subject + "\n\n" + blocks
	return Clean(StripQuotedLines(sanitize(text), n.quotePrefixes))
}

func renderBlock(m *Message) string {
	recipients := m.Recipients()
	displays := make([]string, len(recipients))
	for i, r := range recipients {
		displays[i] = r.Display()
	}

	var b strings.Builder
	b.WriteString("From: ")
	b.WriteString(m.From.Display())
	b.WriteString("\nTo: ")
	b.WriteString(strings.Join(displays, ", "))
	b.WriteString("\nDate: ")
	if !m.Date.IsZero() {
		b.WriteString(m.Date.Format(DateLayout))
	}
	b.WriteString("\nE-mail: ")
	b.WriteString(BodyText(m))
	return b.String()
}

// BodyText returns the message body as plain text.
func BodyText(m *Message) string {
	if !m.HTML {
		return m.Body
	}
	text, err := html2text.FromString(m.Body, html2text.Options{OmitLinks: true, TextOnly: true})
	if err != nil {
		return m.Body
	}
	return text
}

// StripQuotedLines drops every line whose first non-blank characters match
// one of prefixes. Remaining lines keep their relative order.
func StripQuotedLines(text string, prefixes []string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if hasAnyPrefix(strings.TrimLeftFunc(line, unicode.IsSpace), prefixes) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// 不可见字符：控制字符（保留换行与制表符）、零宽字符、软连字符、BOM
var invisible = runes.Predicate(func(r rune) bool {
	switch r {
	case '\n', '\t':
		return false
	case '\u200b', '\u200c', '\u2060', '\ufeff', '\u00ad':
		return true
	}
	return unicode.IsControl(r)
})

// sanitize fixes UTF-8, turns CR and CRLF into LF and removes invisible
// runes, so a line's first visible character is also its first rune.
func sanitize(text string) string {
	text = strings.ToValidUTF8(text, "")
	text = lineEndings.Replace(text)
	if stripped, _, err := transform.String(runes.Remove(invisible), text); err == nil {
		text = stripped
	}
	return text
}

// Clean normalizes line endings, drops control and zero-width characters,
// collapses whitespace runs inside lines, keeps at most one blank line in a
// row and finally applies NFC. Clean(Clean(x)) == Clean(x).
func Clean(text string) string {
	lines := strings.Split(sanitize(text), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank = true
			continue
		}
		if blank && len(out) > 0 {
			out = append(out, "")
		}
		blank = false
		out = append(out, line)
	}

	// NFC 放在最后，前面的步骤不会因组合字符而再次改变结果
	return norm.NFC.String(strings.Join(out, "\n"))
}
