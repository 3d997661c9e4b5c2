package reconcile_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailassist/internal/llm"
	"mailassist/internal/mail"
	"mailassist/internal/pipeline"
	"mailassist/internal/reconcile"
)

// VerifierMock is a reconcile.Verifier whose behaviour is set per test.
type VerifierMock struct {
	VerifyEventFunc func(ctx context.Context, candidate pipeline.EventResult, text string) (pipeline.Verification, error)
	calls           []pipeline.EventResult
}

func (m *VerifierMock) VerifyEvent(ctx context.Context, candidate pipeline.EventResult, text string) (pipeline.Verification, error) {
	m.calls = append(m.calls, candidate)
	return m.VerifyEventFunc(ctx, candidate, text)
}

func valid() *VerifierMock {
	return &VerifierMock{VerifyEventFunc: func(context.Context, pipeline.EventResult, string) (pipeline.Verification, error) {
		return pipeline.Verification{Valid: true}, nil
	}}
}

func strPtr(s string) *string { return &s }

func TestReconcileEventDropsForeignAddresses(t *testing.T) {
	known := mail.NewAddressSet("alice@x.com", "bob@y.com")

	tests := []struct {
		name   string
		emails []string
		want   []string
	}{
		{name: "all known", emails: []string{"alice@x.com", "bob@y.com"}, want: []string{"alice@x.com", "bob@y.com"}},
		{name: "one foreign", emails: []string{"alice@x.com", "carol@z.com"}, want: []string{"alice@x.com"}},
		{name: "all foreign", emails: []string{"eve@evil.io", "mallory@evil.io"}, want: []string{}},
		{name: "case differs", emails: []string{"Alice@X.com"}, want: []string{"alice@x.com"}},
		{name: "same person twice", emails: []string{"alice@x.com", " Alice@X.com", "bob@y.com"}, want: []string{"alice@x.com", "bob@y.com"}},
		{name: "none", emails: nil, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := valid()
			r := reconcile.New(v, zap.NewNop())

			got, err := r.ReconcileEvent(context.Background(), pipeline.EventResult{Emails: tt.emails}, known, "text")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Emails)

			// verifier sees the filtered candidate
			require.Len(t, v.calls, 1)
			assert.Len(t, v.calls[0].Emails, len(tt.want))
		})
	}
}

func TestFilterEmailsCount(t *testing.T) {
	known := mail.NewAddressSet("a@x.com", "b@x.com", "c@x.com")
	for foreign := 0; foreign <= 4; foreign++ {
		t.Run(fmt.Sprintf("foreign=%d", foreign), func(t *testing.T) {
			emails := []string{"a@x.com", "b@x.com", "c@x.com"}
			for i := 0; i < foreign; i++ {
				emails = append(emails, fmt.Sprintf("ghost%d@nowhere.net", i))
			}
			kept, removed := reconcile.FilterEmails(emails, known)
			assert.Len(t, kept, len(emails)-foreign)
			assert.Len(t, removed, foreign)
		})
	}
}

func TestReconcileEventMergesCorrections(t *testing.T) {
	known := mail.NewAddressSet("alice@x.com", "bob@y.com")
	v := &VerifierMock{VerifyEventFunc: func(context.Context, pipeline.EventResult, string) (pipeline.Verification, error) {
		emails := []string{"bob@y.com", "intruder@z.com"}
		return pipeline.Verification{Patch: &pipeline.EventPatch{
			Title:  strPtr("Déjeuner"),
			Date:   strPtr("2025-03-14"),
			Emails: &emails,
		}}, nil
	}}
	r := reconcile.New(v, zap.NewNop())

	got, err := r.ReconcileEvent(context.Background(), pipeline.EventResult{
		Emails:      []string{"alice@x.com"},
		Title:       "Lunch",
		Description: "Friday at noon",
		Date:        "14/03/2025",
		StartTime:   "12:00",
	}, known, "text")
	require.NoError(t, err)

	assert.Equal(t, "Déjeuner", got.Title)
	assert.Equal(t, "Friday at noon", got.Description)
	assert.Equal(t, "2025-03-14", got.Date)
	assert.Equal(t, "12:00", got.StartTime)
	assert.Equal(t, []string{"bob@y.com"}, got.Emails)
}

func TestReconcileEventForeignCorrectionKeepsAttendees(t *testing.T) {
	known := mail.NewAddressSet("alice@x.com", "bob@y.com")

	tests := []struct {
		name       string
		correction []string
		want       []string
	}{
		{name: "only foreign", correction: []string{"eve@evil.io"}, want: []string{"alice@x.com", "bob@y.com"}},
		{name: "explicitly empty", correction: []string{}, want: []string{"alice@x.com", "bob@y.com"}},
		{name: "known subset", correction: []string{"BOB@y.com", "eve@evil.io"}, want: []string{"bob@y.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emails := tt.correction
			v := &VerifierMock{VerifyEventFunc: func(context.Context, pipeline.EventResult, string) (pipeline.Verification, error) {
				return pipeline.Verification{Patch: &pipeline.EventPatch{Emails: &emails}}, nil
			}}
			r := reconcile.New(v, zap.NewNop())

			got, err := r.ReconcileEvent(context.Background(), pipeline.EventResult{
				Emails: []string{"alice@x.com", "bob@y.com"},
			}, known, "text")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Emails)
		})
	}
}

func TestReconcileEventClearsMalformedFields(t *testing.T) {
	r := reconcile.New(valid(), zap.NewNop())

	got, err := r.ReconcileEvent(context.Background(), pipeline.EventResult{
		Date:      "next friday",
		StartTime: "noon",
	}, mail.NewAddressSet(), "text")
	require.NoError(t, err)
	assert.Empty(t, got.Date)
	assert.Empty(t, got.StartTime)
}

func TestReconcileEventNoEventSkipsVerifier(t *testing.T) {
	v := valid()
	r := reconcile.New(v, zap.NewNop())

	got, err := r.ReconcileEvent(context.Background(), pipeline.EventResult{NoEvent: true}, mail.NewAddressSet(), "text")
	require.NoError(t, err)
	assert.True(t, got.NoEvent)
	assert.Empty(t, v.calls)
}

func TestReconcileEventVerifierError(t *testing.T) {
	boom := llm.InvocationError(pipeline.OpVerify, errors.New("timeout"))
	v := &VerifierMock{VerifyEventFunc: func(context.Context, pipeline.EventResult, string) (pipeline.Verification, error) {
		return pipeline.Verification{}, boom
	}}
	r := reconcile.New(v, zap.NewNop())

	_, err := r.ReconcileEvent(context.Background(), pipeline.EventResult{Title: "x"}, mail.NewAddressSet(), "text")
	assert.ErrorIs(t, err, llm.ErrModelInvocation)
}

func TestReconcileSummaryBackfillsParticipants(t *testing.T) {
	thread := mail.Thread{
		{From: mail.Participant{Name: "Alice", Email: "alice@x.com"}, To: []mail.Participant{{Email: "bob@y.com"}}},
		nil,
		{From: mail.Participant{Email: "bob@y.com"}, To: []mail.Participant{{Name: "Alice", Email: "alice@x.com"}}},
	}

	got := reconcile.ReconcileSummary(pipeline.SummaryResult{Summary: "s", Participants: []string{" "}}, thread)
	assert.Equal(t, []string{"Alice", "bob@y.com"}, got.Participants)
	assert.Equal(t, []string{}, got.KeyPoints)

	kept := reconcile.ReconcileSummary(pipeline.SummaryResult{Participants: []string{"Alice"}}, thread)
	assert.Equal(t, []string{"Alice"}, kept.Participants)
}

func TestReplySubject(t *testing.T) {
	tests := []struct {
		name          string
		subject       string
		threadSubject string
		want          string
	}{
		{name: "adds prefix", subject: "Lunch?", want: "Re: Lunch?"},
		{name: "keeps prefix", subject: "Re: Lunch?", want: "Re: Lunch?"},
		{name: "keeps upper prefix", subject: "RE: Lunch?", want: "RE: Lunch?"},
		{name: "from thread", subject: "", threadSubject: "Lunch?", want: "Re: Lunch?"},
		{name: "prefixed thread", subject: " ", threadSubject: "Re: Lunch?", want: "Re: Lunch?"},
		{name: "nothing", want: reconcile.FallbackSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reconcile.ReplySubject(tt.subject, tt.threadSubject)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, reconcile.ReplySubject(got, tt.threadSubject))
		})
	}
}

func TestReconcileReply(t *testing.T) {
	r := reconcile.New(valid(), zap.NewNop())
	ctx := context.Background()

	t.Run("model failure falls back", func(t *testing.T) {
		err := llm.InvocationError(pipeline.OpReply, errors.New("503"))
		got, gotErr := r.ReconcileReply(ctx, pipeline.ReplyResult{}, err, "Lunch?")
		require.NoError(t, gotErr)
		assert.Equal(t, pipeline.ReplyResult{
			Subject: "Re: Lunch?",
			Body:    reconcile.FallbackBody,
			Tone:    reconcile.FallbackTone,
		}, got)
	})

	t.Run("cancellation propagates", func(t *testing.T) {
		err := llm.InvocationError(pipeline.OpReply, context.Canceled)
		_, gotErr := r.ReconcileReply(ctx, pipeline.ReplyResult{}, err, "Lunch?")
		assert.ErrorIs(t, gotErr, context.Canceled)
	})

	t.Run("other errors propagate", func(t *testing.T) {
		_, gotErr := r.ReconcileReply(ctx, pipeline.ReplyResult{}, errors.New("render failed"), "Lunch?")
		assert.Error(t, gotErr)
	})

	t.Run("success normalizes subject", func(t *testing.T) {
		got, err := r.ReconcileReply(ctx, pipeline.ReplyResult{Subject: "Lunch?", Body: "Oui", Tone: "amical"}, nil, "Lunch?")
		require.NoError(t, err)
		assert.Equal(t, "Re: Lunch?", got.Subject)
		assert.Equal(t, "amical", got.Tone)
	})
}
