package mail_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailassist/internal/mail"
)

func TestClean(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "crlf and cr", input: "a\r\nb\rc", expected: "a\nb\nc"},
		{name: "whitespace runs", input: "  hello \t  world  ", expected: "hello world"},
		{name: "nbsp and wide spaces", input: "a\u00a0\u00a0b\u2003c", expected: "a b c"},
		{name: "control and zero width", input: "he\u0000l\u200blo\u0007 \ufeffthere", expected: "hello there"},
		{name: "blank lines collapse", input: "\n\na\n\n\n \n\nb\n\n", expected: "a\n\nb"},
		{name: "nfc", input: "cafe\u0301", expected: "caf\u00e9"},
		{name: "invalid utf8", input: "ok\xffok", expected: "okok"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, mail.Clean(tc.input))
		})
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"e\u0001\u0301 x",
		"\u00a0\u0301 leading combining",
		"a\n\u0301\n\n\nb",
		"tabs\t\tand\r\n\r\nlines\u2028sep",
		"  > quoted\n\n\n\tindent  ",
		"\ufeffBOM start",
		"\u00c4\u0308\u0301 stacked",
		strings.Repeat("x \n", 10),
	}

	for _, in := range inputs {
		once := mail.Clean(in)
		assert.Equal(t, once, mail.Clean(once), "input %q", in)
	}
}

func TestStripQuotedLines(t *testing.T) {
	text := "keep 1\n> quoted\n   >> nested quote\nkeep 2\n| piped\nkeep > 3"

	got := mail.StripQuotedLines(text, []string{">", "|"})
	assert.Equal(t, "keep 1\nkeep 2\nkeep > 3", got)

	got = mail.StripQuotedLines(text, []string{">"})
	assert.Equal(t, "keep 1\nkeep 2\n| piped\nkeep > 3", got)
}

func TestNormalizerThread(t *testing.T) {
	date := time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)
	thread := mail.Thread{
		{
			From:    mail.Participant{Name: "Alice", Email: "alice@x.com"},
			To:      []mail.Participant{{Name: "Bob", Email: "bob@y.com"}},
			Cc:      []mail.Participant{{Email: "carol@z.org"}},
			Date:    date,
			Subject: "Lunch?",
			Body:    "Lunch on Friday?\n> old quoted text\nAlice",
		},
		nil,
		{
			From:    mail.Participant{Name: "Bob", Email: "bob@y.com"},
			To:      []mail.Participant{{Name: "Alice", Email: "alice@x.com"}},
			Date:    date.Add(time.Hour),
			Subject: "Re: Lunch?",
			Body:    "<p>Friday at   noon works.</p>",
			HTML:    true,
		},
	}

	got := mail.NewNormalizer(nil).Thread(thread)

	expected := strings.Join([]string{
		"Subject: Lunch?",
		"",
		"From: Alice (alice@x.com)",
		"To: Bob (bob@y.com), carol@z.org",
		"Date: Friday 14. March 2025",
		"E-mail: Lunch on Friday?",
		"Alice",
		"---------------------------------------",
		"From: Bob (bob@y.com)",
		"To: Alice (alice@x.com)",
		"Date: Friday 14. March 2025",
		"E-mail: Friday at noon works.",
		"---------------------------------------",
	}, "\n")
	assert.Equal(t, expected, got)
}

func TestNormalizerSingle(t *testing.T) {
	msg := &mail.Message{
		From:    mail.Participant{Email: "news@shop.com"},
		To:      []mail.Participant{{Name: "Me", Email: "me@home.net"}},
		Date:    time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		Subject: "Sale",
		Body:    "50% off",
	}

	got := mail.NewNormalizer([]string{">"}).Single(msg)
	require.NotContains(t, got, "-----")
	assert.Equal(t, "Subject: Sale\n\nFrom: news@shop.com\nTo: Me (me@home.net)\nDate: Monday 01. January 2024\nE-mail: 50% off", got)

	assert.Empty(t, mail.NewNormalizer(nil).Single(nil))

	tests := []struct {
		name string
		body string
	}{
		{"cr line endings", "Thanks\r> old chain"},
		{"crlf line endings", "Thanks\r\n> old chain"},
		{"zero width space", "Thanks\n\u200b> old chain"},
		{"byte order mark", "Thanks\n\ufeff  > old chain"},
		{"mixed", "Thanks\r> old chain\r\n> more\n\u200b> and more"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quoted := *msg
			quoted.Body = tt.body
			got := mail.NewNormalizer(nil).Single(&quoted)
			assert.NotContains(t, got, ">")
			assert.NotContains(t, got, "chain")
			assert.True(t, strings.HasSuffix(got, "E-mail: Thanks"), got)
		})
	}
}
