package imap_test

import (
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailassist/internal/mail"
	mailimap "mailassist/internal/provider/imap"
)

func TestBuildTree(t *testing.T) {
	list := []*imap.ListData{
		{Mailbox: "INBOX", Delim: '/'},
		{Mailbox: "Sent", Delim: '/', Attrs: []imap.MailboxAttr{imap.MailboxAttrSent}},
		{Mailbox: "Work", Delim: '/'},
		{Mailbox: "Work/Invoices", Delim: '/'},
		{Mailbox: "Orphan/Child", Delim: '/'},
	}

	tree := mailimap.BuildTree(list)
	require.Len(t, tree, 4)

	assert.Equal(t, "inbox", tree[0].Role)
	assert.Equal(t, "sent", tree[1].Role)
	require.Len(t, tree[2].Children, 1)
	assert.Equal(t, mail.Folder{ID: "Work/Invoices", Name: "Invoices", Path: "Work/Invoices"}, tree[2].Children[0])
	assert.Equal(t, "Child", tree[3].Name)

	id, ok := tree.FindIDByName("inbox")
	assert.True(t, ok)
	assert.Equal(t, "INBOX", id)
	assert.Equal(t, "Work\nWork/Invoices\nOrphan/Child", tree.RenderForModel())
}

func TestBuildTreeInboxNamespace(t *testing.T) {
	list := []*imap.ListData{
		{Mailbox: "INBOX", Delim: '.'},
		{Mailbox: "INBOX.Sent", Delim: '.', Attrs: []imap.MailboxAttr{imap.MailboxAttrSent}},
		{Mailbox: "INBOX.Work", Delim: '.'},
	}

	tree := mailimap.BuildTree(list)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 2)
	assert.Equal(t, "INBOX.Work", tree.RenderForModel())
}

func TestThreadRefResource(t *testing.T) {
	ref := mailimap.ThreadRef("Work/Invoices", 7, []imap.Flag{imap.FlagSeen})
	require.Len(t, ref.Messages, 1)
	assert.True(t, ref.Messages[0].Seen)
	assert.Equal(t, "7@Work/Invoices", ref.Messages[0].UID)

	assert.Equal(t, []string{"7"}, mail.SeenMessageIDs([]mail.ThreadRef{ref}, "Work/Invoices"))

	unseen := mailimap.ThreadRef("INBOX", 8, nil)
	assert.Empty(t, mail.SeenMessageIDs([]mail.ThreadRef{unseen}, "INBOX"))
}

func TestFromEnvelope(t *testing.T) {
	date := time.Date(2025, 3, 12, 9, 30, 0, 0, time.UTC)
	m := mailimap.FromEnvelope(&imap.Envelope{
		Date:    date,
		Subject: "Lunch?",
		From:    []imap.Address{{Name: "Alice", Mailbox: "alice", Host: "x.com"}},
		To:      []imap.Address{{Mailbox: "bob", Host: "y.com"}},
	})

	assert.Equal(t, "Lunch?", m.Subject)
	assert.Equal(t, date, m.Date)
	assert.Equal(t, mail.Participant{Name: "Alice", Email: "alice@x.com"}, m.From)
	assert.Equal(t, []mail.Participant{{Email: "bob@y.com"}}, m.To)
	assert.NotNil(t, mailimap.FromEnvelope(nil))
}

func TestParseBody(t *testing.T) {
	crlf := func(s string) []byte { return []byte(strings.ReplaceAll(s, "\n", "\r\n")) }

	tests := []struct {
		name string
		raw  []byte
		body string
		html bool
	}{
		{
			name: "plain",
			raw:  crlf("From: alice@x.com\nContent-Type: text/plain; charset=utf-8\n\nFriday at noon?\n"),
			body: "Friday at noon?",
		},
		{
			name: "alternative prefers text",
			raw: crlf("From: alice@x.com\nContent-Type: multipart/alternative; boundary=b\n\n" +
				"--b\nContent-Type: text/html\n\n<p>html</p>\n" +
				"--b\nContent-Type: text/plain\n\ntext\n--b--\n"),
			body: "text",
		},
		{
			name: "html only",
			raw:  crlf("From: alice@x.com\nContent-Type: text/html\n\n<p>hi</p>"),
			body: "<p>hi</p>",
			html: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, html := mailimap.ParseBody(tt.raw)
			assert.Equal(t, tt.body, strings.TrimRight(body, "\r\n"))
			assert.Equal(t, tt.html, html)
		})
	}
}
