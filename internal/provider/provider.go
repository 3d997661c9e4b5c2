// Package provider defines the mailbox operations the assistant relies on.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"mailassist/internal/mail"
)

// ErrNotFound 文件夹、线程或邮件不存在
var ErrNotFound = errors.New("not found")

// MailProvider is the remote mailbox, read and write.
type MailProvider interface {
	ListFolders(ctx context.Context, mailboxID string) (mail.FolderTree, error)
	// ListThreads returns the thread view of folderID. Entries may point
	// into other folders; see mail.SeenMessageIDs.
	ListThreads(ctx context.Context, mailboxID, folderID string) ([]mail.ThreadRef, error)
	GetMessage(ctx context.Context, mailboxID, folderID, messageID string) (*mail.Message, error)
	MoveMessages(ctx context.Context, mailboxID, targetFolderID string, messageIDs []string) error
}

// Factory binds a provider to the caller's API token.
type Factory interface {
	ForToken(token string) MailProvider
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(token string) MailProvider

func (f FactoryFunc) ForToken(token string) MailProvider { return f(token) }

// StatusError is a non-2xx answer from the provider.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: provider returned %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: provider returned %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Retryable reports 5xx and 429 answers as transient.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}
