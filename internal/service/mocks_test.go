package service_test

import (
	"context"
	"sync"

	contractdb "mailassist/contracts/db"
	"mailassist/internal/llm"
	"mailassist/internal/mail"
)

// MailProviderMock is a provider.MailProvider with per-method funcs.
type MailProviderMock struct {
	ListFoldersFunc  func(ctx context.Context, mailboxID string) (mail.FolderTree, error)
	ListThreadsFunc  func(ctx context.Context, mailboxID, folderID string) ([]mail.ThreadRef, error)
	GetMessageFunc   func(ctx context.Context, mailboxID, folderID, messageID string) (*mail.Message, error)
	MoveMessagesFunc func(ctx context.Context, mailboxID, targetFolderID string, messageIDs []string) error

	mu       sync.Mutex
	fetched  []string
	moves    [][]string
	movedTos []string
}

func (m *MailProviderMock) ListFolders(ctx context.Context, mailboxID string) (mail.FolderTree, error) {
	return m.ListFoldersFunc(ctx, mailboxID)
}

func (m *MailProviderMock) ListThreads(ctx context.Context, mailboxID, folderID string) ([]mail.ThreadRef, error) {
	return m.ListThreadsFunc(ctx, mailboxID, folderID)
}

func (m *MailProviderMock) GetMessage(ctx context.Context, mailboxID, folderID, messageID string) (*mail.Message, error) {
	m.mu.Lock()
	m.fetched = append(m.fetched, messageID+"@"+folderID)
	m.mu.Unlock()
	return m.GetMessageFunc(ctx, mailboxID, folderID, messageID)
}

func (m *MailProviderMock) MoveMessages(ctx context.Context, mailboxID, targetFolderID string, messageIDs []string) error {
	m.mu.Lock()
	m.moves = append(m.moves, messageIDs)
	m.movedTos = append(m.movedTos, targetFolderID)
	m.mu.Unlock()
	if m.MoveMessagesFunc == nil {
		return nil
	}
	return m.MoveMessagesFunc(ctx, mailboxID, targetFolderID, messageIDs)
}

// runtimeByOp answers each operation with a fixed output or error.
type runtimeByOp map[string]func(req llm.Request) (string, error)

func (r runtimeByOp) Invoke(_ context.Context, req llm.Request) (string, error) {
	fn, ok := r[req.Operation]
	if !ok {
		return "", llm.InvocationError(req.Operation, context.DeadlineExceeded)
	}
	return fn(req)
}

func answer(out string) func(llm.Request) (string, error) {
	return func(llm.Request) (string, error) { return out, nil }
}

// ClassifierMock is a service.Classifier.
type ClassifierMock struct {
	ClassifyFunc func(ctx context.Context, folders, email string) (string, error)
}

func (m *ClassifierMock) Classify(ctx context.Context, folders, email string) (string, error) {
	return m.ClassifyFunc(ctx, folders, email)
}

// DeduperMock is a service.Deduper backed by a map.
type DeduperMock struct {
	seen     map[string]bool
	released []string
}

func (m *DeduperMock) AcquireOnce(_ context.Context, handler, key string) bool {
	k := handler + ":" + key
	if m.seen[k] {
		return false
	}
	m.seen[k] = true
	return true
}

func (m *DeduperMock) Release(_ context.Context, handler, key string) {
	k := handler + ":" + key
	delete(m.seen, k)
	m.released = append(m.released, key)
}

// LockerMock is a service.Locker.
type LockerMock struct {
	AcquireFunc func(ctx context.Context, name string) (func(context.Context) error, error)
}

func (m *LockerMock) Acquire(ctx context.Context, name string) (func(context.Context) error, error) {
	return m.AcquireFunc(ctx, name)
}

// RecorderMock collects decisions.
type RecorderMock struct {
	decisions []contractdb.ClassificationDecision
}

func (m *RecorderMock) Insert(_ context.Context, d contractdb.ClassificationDecision) error {
	m.decisions = append(m.decisions, d)
	return nil
}

// NotifierMock collects published payloads.
type NotifierMock struct {
	keys     []string
	payloads []any
}

func (m *NotifierMock) Publish(_ context.Context, routingKey string, payload any) error {
	m.keys = append(m.keys, routingKey)
	m.payloads = append(m.payloads, payload)
	return nil
}
