package mail

import (
	"strings"
)

// maxFolderDepth bounds every traversal of provider-supplied trees.
const maxFolderDepth = 64

// Folder 邮箱文件夹节点。Role 非空表示系统文件夹（Inbox、Sent、Trash 等）
type Folder struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Path     string   `json:"path"`
	Role     string   `json:"role,omitempty"`
	Children []Folder `json:"children,omitempty"`
}

// FolderTree is the top-level forest of a mailbox.
type FolderTree []Folder

// FindIDByName does a pre-order search for a case-insensitive name match.
func (t FolderTree) FindIDByName(name string) (string, bool) {
	return t.find(func(f *Folder) bool { return strings.EqualFold(f.Name, name) })
}

// FindIDByPath does a pre-order search for an exact path match.
func (t FolderTree) FindIDByPath(path string) (string, bool) {
	return t.find(func(f *Folder) bool { return f.Path == path })
}

func (t FolderTree) find(match func(*Folder) bool) (string, bool) {
	var walk func(nodes []Folder, depth int) (string, bool)
	walk = func(nodes []Folder, depth int) (string, bool) {
		if depth > maxFolderDepth {
			return "", false
		}
		for i := range nodes {
			if match(&nodes[i]) {
				return nodes[i].ID, true
			}
			if id, ok := walk(nodes[i].Children, depth+1); ok {
				return id, true
			}
		}
		return "", false
	}
	return walk(t, 0)
}

const inboxRole = "inbox"

// RenderForModel lists the path of every classification target, one per line.
// Role-bearing folders are left out together with their whole subtree, except
// the inbox: servers with an INBOX namespace keep every user folder under it,
// so its children are still listed.
func (t FolderTree) RenderForModel() string {
	var lines []string
	var walk func(nodes []Folder, depth int)
	walk = func(nodes []Folder, depth int) {
		if depth > maxFolderDepth {
			return
		}
		for _, f := range nodes {
			switch {
			case strings.EqualFold(f.Role, inboxRole):
				walk(f.Children, depth+1)
			case f.Role != "":
			default:
				lines = append(lines, f.Path)
				walk(f.Children, depth+1)
			}
		}
	}
	walk(t, 0)
	return strings.Join(lines, "\n")
}
