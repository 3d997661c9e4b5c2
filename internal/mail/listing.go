package mail

import (
	"net/url"
	"strings"
)

// MessageRef is one entry of a folder listing.
type MessageRef struct {
	UID      string `json:"uid"`
	Seen     bool   `json:"seen"`
	Resource string `json:"resource"`
}

// ThreadRef groups listing entries of one conversation. A thread view may
// contain messages stored in other folders.
type ThreadRef struct {
	ID       string       `json:"id"`
	Messages []MessageRef `json:"messages"`
}

// SeenMessageIDs returns the ids of seen messages whose resource path
// ".../folder/{folderID}/message/{id}" points into folderID, in listing order.
func SeenMessageIDs(threads []ThreadRef, folderID string) []string {
	var ids []string
	for _, t := range threads {
		for _, m := range t.Messages {
			if !m.Seen {
				continue
			}
			folder, id, ok := ParseResource(m.Resource)
			if !ok || folder != folderID {
				continue
			}
			ids = append(ids, id)
		}
	}
	return ids
}

// ParseResource extracts the folder and message segments of a resource path.
func ParseResource(resource string) (folderID, messageID string, ok bool) {
	parts := strings.Split(strings.Trim(resource, "/"), "/")
	folderID, ok = segmentAfter(parts, "folder")
	if !ok {
		return "", "", false
	}
	messageID, ok = segmentAfter(parts, "message")
	if !ok {
		return "", "", false
	}
	return folderID, messageID, true
}

func segmentAfter(parts []string, key string) (string, bool) {
	for i, p := range parts {
		if p != key {
			continue
		}
		if i+1 >= len(parts) || parts[i+1] == "" {
			return "", false
		}
		seg := parts[i+1]
		if unescaped, err := url.PathUnescape(seg); err == nil {
			seg = unescaped
		}
		return seg, true
	}
	return "", false
}

// MessageLocator addresses a message as "<id>" or "<id>@<folder>".
type MessageLocator struct {
	MessageID string
	FolderID  string
}

// ParseLocator splits ref; a bare id is placed in defaultFolder.
func ParseLocator(ref, defaultFolder string) MessageLocator {
	ref = strings.TrimSpace(ref)
	if i := strings.LastIndex(ref, "@"); i > 0 && i < len(ref)-1 {
		return MessageLocator{MessageID: ref[:i], FolderID: ref[i+1:]}
	}
	return MessageLocator{MessageID: strings.TrimSuffix(ref, "@"), FolderID: defaultFolder}
}

func (l MessageLocator) String() string {
	if l.FolderID == "" {
		return l.MessageID
	}
	return l.MessageID + "@" + l.FolderID
}
