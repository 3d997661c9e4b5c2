// Package imap serves a single IMAP account as a MailProvider. The mailbox
// id argument is ignored; folder ids are IMAP mailbox names and message ids
// take the form "<uid>@<folder>".
package imap

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"mailassist/internal/mail"
	"mailassist/internal/provider"
	"mailassist/pkg/metrics"
	"mailassist/pkg/otel"
)

const inboxName = "INBOX"

type Client struct {
	host     string
	port     string
	username string
	password string
	tls      bool
	logger   *zap.Logger
}

func NewClient(host, port, username, password string, tls bool, logger *zap.Logger) *Client {
	return &Client{
		host:     host,
		port:     port,
		username: username,
		password: password,
		tls:      tls,
		logger:   logger,
	}
}

// ForToken ignores the token: IMAP credentials come from configuration.
func (c *Client) ForToken(string) provider.MailProvider { return c }

// session 建立连接并登录，ctx 结束时关闭连接以打断阻塞的命令
func (c *Client) session(ctx context.Context, op string, fn func(*imapclient.Client) error) (err error) {
	ctx, span := otel.StartSpan(ctx, "provider."+op)
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.RecordProviderCall(op, status, time.Since(start))
		span.End()
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	addr := c.host + ":" + c.port
	var client *imapclient.Client
	if c.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}
	defer client.Close()

	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer stop()

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		return fmt.Errorf("IMAP login for %s: %w", c.username, err)
	}
	defer func() { _ = client.Logout().Wait() }()

	if err := fn(client); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Client) ListFolders(ctx context.Context, _ string) (mail.FolderTree, error) {
	var tree mail.FolderTree
	err := c.session(ctx, "list_folders", func(client *imapclient.Client) error {
		list, err := client.List("", "*", &imap.ListOptions{ReturnSpecialUse: true}).Collect()
		if err != nil {
			return err
		}
		tree = BuildTree(list)
		return nil
	})
	return tree, err
}

// ListThreads returns one single-message thread per mail; IMAP has no
// portable thread view.
func (c *Client) ListThreads(ctx context.Context, _ string, folderID string) ([]mail.ThreadRef, error) {
	var threads []mail.ThreadRef
	err := c.session(ctx, "list_threads", func(client *imapclient.Client) error {
		if _, err := client.Select(folderID, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
			return fmt.Errorf("selecting %s: %w", folderID, err)
		}
		search, err := client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
		if err != nil {
			return fmt.Errorf("searching %s: %w", folderID, err)
		}
		uids := search.AllUIDs()
		if len(uids) == 0 {
			return nil
		}

		msgs, err := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{UID: true, Flags: true}).Collect()
		if err != nil {
			return fmt.Errorf("fetching flags: %w", err)
		}
		threads = make([]mail.ThreadRef, 0, len(msgs))
		for _, m := range msgs {
			threads = append(threads, ThreadRef(folderID, m.UID, m.Flags))
		}
		return nil
	})
	return threads, err
}

func (c *Client) GetMessage(ctx context.Context, _ string, folderID, messageID string) (*mail.Message, error) {
	loc := mail.ParseLocator(messageID, folderID)
	uid, err := parseUID(loc.MessageID)
	if err != nil {
		return nil, err
	}

	var msg *mail.Message
	err = c.session(ctx, "get_message", func(client *imapclient.Client) error {
		if _, err := client.Select(loc.FolderID, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
			return fmt.Errorf("selecting %s: %w", loc.FolderID, err)
		}

		section := &imap.FetchItemBodySection{Peek: true}
		bufs, err := client.Fetch(imap.UIDSetNum(uid), &imap.FetchOptions{
			UID:         true,
			Envelope:    true,
			BodySection: []*imap.FetchItemBodySection{section},
		}).Collect()
		if err != nil {
			return err
		}
		if len(bufs) == 0 {
			return fmt.Errorf("message %s: %w", loc, provider.ErrNotFound)
		}

		buf := bufs[0]
		msg = FromEnvelope(buf.Envelope)
		msg.UID = loc.String()
		if raw := buf.FindBodySection(section); raw != nil {
			msg.Body, msg.HTML = ParseBody(raw)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// MoveMessages moves "<uid>@<folder>" ids; bare uids are taken from INBOX.
func (c *Client) MoveMessages(ctx context.Context, _ string, targetFolderID string, messageIDs []string) error {
	groups, order, err := groupByFolder(messageIDs)
	if err != nil {
		return err
	}

	return c.session(ctx, "move_messages", func(client *imapclient.Client) error {
		for _, folder := range order {
			if folder == targetFolderID {
				continue
			}
			if _, err := client.Select(folder, nil).Wait(); err != nil {
				return fmt.Errorf("selecting %s: %w", folder, err)
			}
			if _, err := client.Move(imap.UIDSetNum(groups[folder]...), targetFolderID).Wait(); err != nil {
				return fmt.Errorf("moving from %s to %s: %w", folder, targetFolderID, err)
			}
		}
		return nil
	})
}

func groupByFolder(messageIDs []string) (map[string][]imap.UID, []string, error) {
	groups := make(map[string][]imap.UID)
	var order []string
	for _, id := range messageIDs {
		loc := mail.ParseLocator(id, inboxName)
		uid, err := parseUID(loc.MessageID)
		if err != nil {
			return nil, nil, err
		}
		if _, ok := groups[loc.FolderID]; !ok {
			order = append(order, loc.FolderID)
		}
		groups[loc.FolderID] = append(groups[loc.FolderID], uid)
	}
	return groups, order, nil
}

func parseUID(s string) (imap.UID, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid IMAP uid %q: %w", s, provider.ErrNotFound)
	}
	return imap.UID(n), nil
}
