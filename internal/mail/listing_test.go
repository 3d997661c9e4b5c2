package mail_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mailassist/internal/mail"
)

func TestSeenMessageIDs(t *testing.T) {
	threads := []mail.ThreadRef{
		{ID: "t1", Messages: []mail.MessageRef{
			{UID: "10", Seen: true, Resource: "/mail/mb/folder/inbox-id/message/10"},
			{UID: "11", Seen: false, Resource: "/mail/mb/folder/inbox-id/message/11"},
			{UID: "12", Seen: true, Resource: "/mail/mb/folder/sent-id/message/12"},
		}},
		{ID: "t2", Messages: []mail.MessageRef{
			{UID: "13", Seen: true, Resource: "folder/inbox-id/message/13/"},
			{UID: "14", Seen: true, Resource: "broken/resource"},
			{UID: "15", Seen: true, Resource: "/mail/mb/folder/inbox-id/message"},
		}},
	}

	assert.Equal(t, []string{"10", "13"}, mail.SeenMessageIDs(threads, "inbox-id"))
	assert.Empty(t, mail.SeenMessageIDs(nil, "inbox-id"))
}

func TestParseResourceUnescapes(t *testing.T) {
	folder, id, ok := mail.ParseResource("folder/INBOX%2FWork/message/7")
	assert.True(t, ok)
	assert.Equal(t, "INBOX/Work", folder)
	assert.Equal(t, "7", id)
}

func TestParseLocator(t *testing.T) {
	cases := []struct {
		ref      string
		expected mail.MessageLocator
	}{
		{ref: "42@folder-9", expected: mail.MessageLocator{MessageID: "42", FolderID: "folder-9"}},
		{ref: " 42 ", expected: mail.MessageLocator{MessageID: "42", FolderID: "default"}},
		{ref: "42@", expected: mail.MessageLocator{MessageID: "42", FolderID: "default"}},
	}

	for _, tc := range cases {
		t.Run(tc.ref, func(t *testing.T) {
			got := mail.ParseLocator(tc.ref, "default")
			assert.Equal(t, tc.expected, got)
		})
	}
	assert.Equal(t, "42@f", mail.MessageLocator{MessageID: "42", FolderID: "f"}.String())
}
