package imap

import (
	"bytes"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/emersion/go-imap/v2"
	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"

	"mailassist/internal/mail"
)

var specialUseRoles = map[imap.MailboxAttr]string{
	imap.MailboxAttrAll:     "all",
	imap.MailboxAttrArchive: "archive",
	imap.MailboxAttrDrafts:  "drafts",
	imap.MailboxAttrFlagged: "flagged",
	imap.MailboxAttrJunk:    "spam",
	imap.MailboxAttrSent:    "sent",
	imap.MailboxAttrTrash:   "trash",
}

// Role maps SPECIAL-USE attributes, and the INBOX name, to a folder role.
func Role(name string, attrs []imap.MailboxAttr) string {
	if strings.EqualFold(name, inboxName) {
		return "inbox"
	}
	for _, a := range attrs {
		if role, ok := specialUseRoles[a]; ok {
			return role
		}
	}
	return ""
}

// BuildTree nests LIST results by hierarchy delimiter. A child listed
// without its parent is attached at the top level.
func BuildTree(list []*imap.ListData) mail.FolderTree {
	type node struct {
		folder   mail.Folder
		children []*node
	}

	nodes := make(map[string]*node, len(list))
	var roots []*node
	for _, ld := range list {
		name := ld.Mailbox
		label := name
		if ld.Delim != 0 {
			if i := strings.LastIndex(name, string(ld.Delim)); i >= 0 {
				label = name[i+1:]
			}
		}
		nodes[name] = &node{folder: mail.Folder{
			ID:   name,
			Name: label,
			Path: name,
			Role: Role(name, ld.Attrs),
		}}
	}
	for _, ld := range list {
		n := nodes[ld.Mailbox]
		parent := ""
		if ld.Delim != 0 {
			if i := strings.LastIndex(ld.Mailbox, string(ld.Delim)); i > 0 {
				parent = ld.Mailbox[:i]
			}
		}
		if p, ok := nodes[parent]; ok && parent != "" {
			p.children = append(p.children, n)
		} else {
			roots = append(roots, n)
		}
	}

	var build func(ns []*node) []mail.Folder
	build = func(ns []*node) []mail.Folder {
		out := make([]mail.Folder, 0, len(ns))
		for _, n := range ns {
			f := n.folder
			if len(n.children) > 0 {
				f.Children = build(n.children)
			}
			out = append(out, f)
		}
		return out
	}
	return build(roots)
}

// ThreadRef wraps one message of folder as a single-entry thread.
func ThreadRef(folder string, uid imap.UID, flags []imap.Flag) mail.ThreadRef {
	id := strconv.FormatUint(uint64(uid), 10)
	seen := false
	for _, f := range flags {
		if f == imap.FlagSeen {
			seen = true
			break
		}
	}
	return mail.ThreadRef{
		ID: id + "@" + folder,
		Messages: []mail.MessageRef{{
			UID:      id + "@" + folder,
			Seen:     seen,
			Resource: "folder/" + url.PathEscape(folder) + "/message/" + id,
		}},
	}
}

func participant(a imap.Address) mail.Participant {
	return mail.Participant{Name: a.Name, Email: a.Addr()}
}

func participants(in []imap.Address) []mail.Participant {
	out := make([]mail.Participant, 0, len(in))
	for _, a := range in {
		out = append(out, participant(a))
	}
	return out
}

// FromEnvelope copies the header fields of env.
func FromEnvelope(env *imap.Envelope) *mail.Message {
	m := &mail.Message{}
	if env == nil {
		return m
	}
	m.Subject = env.Subject
	m.Date = env.Date
	if len(env.From) > 0 {
		m.From = participant(env.From[0])
	}
	m.To = participants(env.To)
	m.Cc = participants(env.Cc)
	return m
}

// ParseBody returns the text/plain part of raw, or the text/html part when
// there is no plain text.
func ParseBody(raw []byte) (body string, html bool) {
	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw), false
	}
	defer mr.Close()

	var textBody, htmlBody string
	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}
		h, ok := part.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		b, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		switch {
		case strings.HasPrefix(contentType, "text/plain") && textBody == "":
			textBody = string(b)
		case strings.HasPrefix(contentType, "text/html") && htmlBody == "":
			htmlBody = string(b)
		}
	}

	if textBody != "" || htmlBody == "" {
		return textBody, false
	}
	return htmlBody, true
}
