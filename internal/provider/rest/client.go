// Package rest talks to an Infomaniak-style mail API over HTTPS.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"mailassist/internal/mail"
	"mailassist/internal/provider"
	"mailassist/pkg/logger"
	"mailassist/pkg/metrics"
	"mailassist/pkg/otel"
	pkgtrace "mailassist/pkg/trace"
)

const maxErrorBody = 4 << 10

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient 每个 token 一个 Client；httpClient 可共享
func NewClient(baseURL, token string, httpClient *http.Client, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Factory shares one http.Client between all tokens.
type Factory struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewFactory(baseURL string, timeout time.Duration, logger *zap.Logger) *Factory {
	return &Factory{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (f *Factory) ForToken(token string) provider.MailProvider {
	return NewClient(f.baseURL, token, f.httpClient, f.logger)
}

// envelope 接口统一返回格式
type envelope struct {
	Result string          `json:"result"`
	Data   json.RawMessage `json:"data"`
	Error  *struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error,omitempty"`
}

func (c *Client) ListFolders(ctx context.Context, mailboxID string) (mail.FolderTree, error) {
	var tree mail.FolderTree
	err := c.do(ctx, "list_folders", http.MethodGet, c.path("api/mail", mailboxID, "folder"), nil, &tree)
	return tree, err
}

func (c *Client) ListThreads(ctx context.Context, mailboxID, folderID string) ([]mail.ThreadRef, error) {
	var data struct {
		Threads []mail.ThreadRef `json:"threads"`
	}
	u := c.path("api/mail", mailboxID, "folder", folderID, "message") + "?thread=on"
	if err := c.do(ctx, "list_threads", http.MethodGet, u, nil, &data); err != nil {
		return nil, err
	}
	return data.Threads, nil
}

type wireAddress struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type wireMessage struct {
	UID     string        `json:"uid"`
	Subject string        `json:"subject"`
	Date    time.Time     `json:"date"`
	From    []wireAddress `json:"from"`
	To      []wireAddress `json:"to"`
	Cc      []wireAddress `json:"cc"`
	Body    struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"body"`
}

func participants(in []wireAddress) []mail.Participant {
	out := make([]mail.Participant, 0, len(in))
	for _, a := range in {
		out = append(out, mail.Participant{Name: a.Name, Email: a.Email})
	}
	return out
}

func (w wireMessage) toMessage() *mail.Message {
	m := &mail.Message{
		UID:     w.UID,
		Subject: w.Subject,
		Date:    w.Date,
		To:      participants(w.To),
		Cc:      participants(w.Cc),
		Body:    w.Body.Value,
		HTML:    strings.Contains(strings.ToLower(w.Body.Type), "html"),
	}
	if len(w.From) > 0 {
		m.From = mail.Participant{Name: w.From[0].Name, Email: w.From[0].Email}
	}
	return m
}

func (c *Client) GetMessage(ctx context.Context, mailboxID, folderID, messageID string) (*mail.Message, error) {
	var wm wireMessage
	u := c.path("api/mail", mailboxID, "folder", folderID, "message", messageID)
	if err := c.do(ctx, "get_message", http.MethodGet, u, nil, &wm); err != nil {
		return nil, err
	}
	return wm.toMessage(), nil
}

func (c *Client) MoveMessages(ctx context.Context, mailboxID, targetFolderID string, messageIDs []string) error {
	body := struct {
		UIDs []string `json:"uids"`
		To   string   `json:"to"`
	}{UIDs: messageIDs, To: targetFolderID}
	return c.do(ctx, "move_messages", http.MethodPost, c.path("api/mail", mailboxID, "message", "move"), body, nil)
}

func (c *Client) path(prefix string, segments ...string) string {
	escaped := make([]string, 0, len(segments)+1)
	escaped = append(escaped, prefix)
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	return c.baseURL + "/" + strings.Join(escaped, "/")
}

func (c *Client) do(ctx context.Context, op, method, u string, in, out any) (err error) {
	ctx, span := otel.StartSpan(ctx, "provider."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.request.method", method)),
	)
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

	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if traceID := pkgtrace.FromContext(ctx); traceID != "" {
		req.Header.Set(pkgtrace.HeaderName, traceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		logger.WithTrace(ctx, c.logger).Warn("Provider call failed",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
		)
		return &provider.StatusError{Op: op, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	if env.Result != "" && env.Result != "success" {
		msg := env.Result
		if env.Error != nil {
			msg = env.Error.Code + ": " + env.Error.Description
		}
		return &provider.StatusError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s: decode data: %w", op, err)
	}
	return nil
}
