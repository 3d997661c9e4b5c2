package service_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailassist/internal/llm"
	"mailassist/internal/mail"
	"mailassist/internal/pipeline"
	"mailassist/internal/provider"
	"mailassist/internal/reconcile"
	"mailassist/internal/service"
)

func lunchThread() map[string]*mail.Message {
	alice := mail.Participant{Name: "Alice", Email: "alice@x.com"}
	bob := mail.Participant{Name: "Bob", Email: "bob@y.com"}
	return map[string]*mail.Message{
		"1@f-in": {
			UID:     "1@f-in",
			From:    alice,
			To:      []mail.Participant{bob},
			Date:    time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC),
			Subject: "Lunch?",
			Body:    "Hi Bob, are you free for lunch this week?",
		},
		"2@f-in": {
			UID:     "2@f-in",
			From:    bob,
			To:      []mail.Participant{alice},
			Date:    time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC),
			Subject: "Re: Lunch?",
			Body:    "Sure, Friday at noon works for me.\n> Hi Bob, are you free for lunch this week?",
		},
	}
}

func threadProvider(msgs map[string]*mail.Message) *MailProviderMock {
	return &MailProviderMock{
		GetMessageFunc: func(_ context.Context, _, folderID, messageID string) (*mail.Message, error) {
			m, ok := msgs[messageID+"@"+folderID]
			if !ok {
				return nil, provider.ErrNotFound
			}
			return m, nil
		},
	}
}

func newThreadService(rt llm.Runtime) *service.ThreadService {
	p := pipeline.New(rt, nil)
	return service.NewThreadService(p, mail.NewNormalizer(nil), zap.NewNop())
}

var lunchRequest = service.ThreadRequest{
	MailboxID:         "mbx-1",
	FolderID:          "f-in",
	ThreadID:          "t-1",
	ContextMessageIDs: []string{"1", "2@f-in"},
}

func TestSuggestEventLunch(t *testing.T) {
	var eventPrompt llm.Request
	rt := runtimeByOp{
		pipeline.OpEvent: func(req llm.Request) (string, error) {
			eventPrompt = req
			return `{"e-mails": ["alice@x.com", "bob@y.com", "carol@z.com"], "names": ["Alice", "Bob"],
				"title": "Lunch", "description": "Lunch on Friday", "date": "2025-03-14", "start_time": "12:00"}`, nil
		},
		pipeline.OpVerify: answer("```valid```"),
	}

	ev, err := newThreadService(rt).SuggestEvent(context.Background(), threadProvider(lunchThread()), lunchRequest)
	require.NoError(t, err)

	assert.Equal(t, []string{"alice@x.com", "bob@y.com"}, ev.Emails)
	assert.Regexp(t, regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`), ev.Date)
	assert.Equal(t, "12:00", ev.StartTime)
	assert.NotContains(t, ev.Emails, "carol@z.com")

	assert.Contains(t, eventPrompt.System, "List of possible e-mails: alice@x.com, bob@y.com")
	assert.Contains(t, eventPrompt.User, "Subject: Lunch?")
	assert.NotContains(t, eventPrompt.User, "> Hi Bob")
}

func TestSuggestEventNoEvent(t *testing.T) {
	rt := runtimeByOp{pipeline.OpEvent: answer("No")}

	ev, err := newThreadService(rt).SuggestEvent(context.Background(), threadProvider(lunchThread()), lunchRequest)
	require.NoError(t, err)
	assert.True(t, ev.NoEvent)
}

func TestSuggestEventModelFailure(t *testing.T) {
	rt := runtimeByOp{pipeline.OpEvent: func(llm.Request) (string, error) {
		return "", errors.New("connection refused")
	}}

	_, err := newThreadService(rt).SuggestEvent(context.Background(), threadProvider(lunchThread()), lunchRequest)
	assert.ErrorIs(t, err, llm.ErrModelInvocation)
}

func TestSummarizeBackfillsParticipants(t *testing.T) {
	rt := runtimeByOp{pipeline.OpSummary: answer(`{"summary": "Déjeuner vendredi midi", "key_points": ["vendredi 12h"], "participants": []}`)}

	res, err := newThreadService(rt).Summarize(context.Background(), threadProvider(lunchThread()), lunchRequest)
	require.NoError(t, err)
	assert.Equal(t, "Déjeuner vendredi midi", res.Summary)
	assert.Equal(t, []string{"Alice", "Bob"}, res.Participants)
}

func TestReplyFallsBackOnModelFailure(t *testing.T) {
	rt := runtimeByOp{pipeline.OpReply: func(llm.Request) (string, error) {
		return "", errors.New("502 bad gateway")
	}}

	res, err := newThreadService(rt).Reply(context.Background(), threadProvider(lunchThread()), lunchRequest)
	require.NoError(t, err)
	assert.Equal(t, "Re: Lunch?", res.Subject)
	assert.Equal(t, reconcile.FallbackBody, res.Body)
	assert.Equal(t, reconcile.FallbackTone, res.Tone)
}

func TestReplyNormalizesSubject(t *testing.T) {
	rt := runtimeByOp{pipeline.OpReply: answer(`{"subject": "Lunch?", "body": "Parfait, à vendredi.", "tone": "amical"}`)}

	res, err := newThreadService(rt).Reply(context.Background(), threadProvider(lunchThread()), lunchRequest)
	require.NoError(t, err)
	assert.Equal(t, "Re: Lunch?", res.Subject)
	assert.Equal(t, "amical", res.Tone)
}

func TestLoadThread(t *testing.T) {
	svc := newThreadService(runtimeByOp{})
	ctx := context.Background()

	t.Run("gaps are kept", func(t *testing.T) {
		req := lunchRequest
		req.ContextMessageIDs = []string{"1", "404", "2"}
		thread, err := svc.LoadThread(ctx, threadProvider(lunchThread()), req)
		require.NoError(t, err)
		require.Len(t, thread, 3)
		assert.Nil(t, thread[1])
		assert.Len(t, thread.Messages(), 2)
	})

	t.Run("other folder", func(t *testing.T) {
		msgs := map[string]*mail.Message{"9@f-sent": {UID: "9@f-sent", Subject: "x"}}
		req := lunchRequest
		req.ContextMessageIDs = []string{"9@f-sent"}
		thread, err := svc.LoadThread(ctx, threadProvider(msgs), req)
		require.NoError(t, err)
		assert.Equal(t, "x", thread.Subject())
	})

	t.Run("nothing readable", func(t *testing.T) {
		req := lunchRequest
		req.ContextMessageIDs = []string{"404"}
		_, err := svc.LoadThread(ctx, threadProvider(lunchThread()), req)
		assert.ErrorIs(t, err, service.ErrEmptyThread)
		assert.ErrorIs(t, err, provider.ErrNotFound)
	})

	t.Run("no ids", func(t *testing.T) {
		req := lunchRequest
		req.ContextMessageIDs = nil
		_, err := svc.LoadThread(ctx, threadProvider(lunchThread()), req)
		assert.ErrorIs(t, err, service.ErrNoContextMessages)
	})

	t.Run("canceled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		mp := &MailProviderMock{GetMessageFunc: func(ctx context.Context, _, _, _ string) (*mail.Message, error) {
			return nil, ctx.Err()
		}}
		_, err := svc.LoadThread(cctx, mp, lunchRequest)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
