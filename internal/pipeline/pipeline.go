// Package pipeline drives one model call per operation and decodes the
// answer into a typed candidate. Candidates are untrusted until reconciled.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"mailassist/internal/llm"
)

// Operation names, also used as config keys and metric labels.
const (
	OpEvent    = "event_suggestion"
	OpVerify   = "event_verification"
	OpSummary  = "summary"
	OpReply    = "reply"
	OpClassify = "classify"
)

// Uncategorized is the classifier's "no folder fits" answer.
const Uncategorized = "Uncategorized"

// ReplyTextLimit is the number of trailing code points kept for the reply prompt.
const ReplyTextLimit = 2500

var (
	summarySchema = llm.MustSchemaFor("summary", SummaryResult{})
	replySchema   = llm.MustSchemaFor("reply", ReplyResult{})

	noEventAnswer = regexp.MustCompile(`(?i)^["'\x60]*no\b`)
	validAnswer   = regexp.MustCompile("(?i)(```\\s*valid\\s*```|^\\s*valid\\b)")
)

type Pipeline struct {
	runtime llm.Runtime
	params  map[string]llm.Params
}

// New copies params; missing operations run with zero Params.
func New(runtime llm.Runtime, params map[string]llm.Params) *Pipeline {
	p := make(map[string]llm.Params, len(params))
	for k, v := range params {
		p[k] = v
	}
	return &Pipeline{runtime: runtime, params: p}
}

func (p *Pipeline) invoke(ctx context.Context, prompt *llm.Prompt, vars any, schema *llm.Schema) (string, error) {
	req, err := prompt.Render(vars, p.params[prompt.Name], schema)
	if err != nil {
		return "", err
	}
	out, err := p.runtime.Invoke(ctx, req)
	if err != nil {
		return "", llm.InvocationError(prompt.Name, err)
	}
	return out, nil
}

// SuggestEvent asks for an event in text. emails lists the known addresses.
func (p *Pipeline) SuggestEvent(ctx context.Context, emails []string, text string) (EventResult, error) {
	out, err := p.invoke(ctx, eventPrompt, struct{ Emails, Text string }{
		Emails: strings.Join(emails, ", "),
		Text:   text,
	}, nil)
	if err != nil {
		return EventResult{}, err
	}
	return DecodeEvent(out)
}

// DecodeEvent parses a free-text event answer.
func DecodeEvent(out string) (EventResult, error) {
	answer := llm.StripReasoning(out)
	// "No", "No event detected." and the like; anything with JSON is decoded
	if noEventAnswer.MatchString(answer) && !strings.Contains(answer, "{") {
		return EventResult{NoEvent: true}, nil
	}

	var patch EventPatch
	if err := llm.DecodeJSON(answer, &patch); err != nil {
		return EventResult{}, llm.InvocationError(OpEvent, err)
	}
	if patch.NoEvent != nil && *patch.NoEvent {
		return EventResult{NoEvent: true}, nil
	}
	return patch.Apply(EventResult{}), nil
}

// VerifyEvent runs the second pass over candidate.
func (p *Pipeline) VerifyEvent(ctx context.Context, candidate EventResult, text string) (Verification, error) {
	answer, err := json.Marshal(candidate)
	if err != nil {
		return Verification{}, fmt.Errorf("encode candidate: %w", err)
	}
	out, err := p.invoke(ctx, verifyPrompt, struct{ Text, Answer string }{
		Text:   text,
		Answer: string(answer),
	}, nil)
	if err != nil {
		return Verification{}, err
	}
	return DecodeVerification(out), nil
}

// DecodeVerification reads a verifier answer. A JSON correction wins over a
// "valid" marker; an answer with neither counts as valid and is flagged.
func DecodeVerification(out string) Verification {
	answer := llm.StripReasoning(out)

	if strings.Contains(answer, "{") {
		var patch EventPatch
		if err := llm.DecodeJSON(answer, &patch); err == nil {
			return Verification{Patch: &patch, Raw: answer}
		}
	}
	if validAnswer.MatchString(answer) {
		return Verification{Valid: true, Raw: answer}
	}
	return Verification{Valid: true, Undecodable: true, Raw: answer}
}

// Summarize asks for a structured summary of text.
func (p *Pipeline) Summarize(ctx context.Context, text string) (SummaryResult, error) {
	out, err := p.invoke(ctx, summaryPrompt, struct{ Text string }{Text: text}, summarySchema)
	if err != nil {
		return SummaryResult{}, err
	}
	var res SummaryResult
	if err := llm.DecodeJSON(out, &res); err != nil {
		return SummaryResult{}, llm.InvocationError(OpSummary, err)
	}
	return res, nil
}

// Reply asks for a reply to the most recent part of text.
func (p *Pipeline) Reply(ctx context.Context, text string) (ReplyResult, error) {
	out, err := p.invoke(ctx, replyPrompt, struct{ Text string }{Text: TruncateTail(text, ReplyTextLimit)}, replySchema)
	if err != nil {
		return ReplyResult{}, err
	}
	var res ReplyResult
	if err := llm.DecodeJSON(out, &res); err != nil {
		return ReplyResult{}, llm.InvocationError(OpReply, err)
	}
	return res, nil
}

// Classify returns a folder path from folders, or Uncategorized.
func (p *Pipeline) Classify(ctx context.Context, folders, email string) (string, error) {
	out, err := p.invoke(ctx, classifyPrompt, struct{ Folders, Email string }{
		Folders: folders,
		Email:   email,
	}, nil)
	if err != nil {
		return "", err
	}
	return DecodeFolder(out)
}

var errEmptyFolder = errors.New("empty folder answer")

// DecodeFolder trims the answer down to a bare path.
func DecodeFolder(out string) (string, error) {
	answer := strings.TrimSpace(llm.StripReasoning(out))
	if i := strings.IndexByte(answer, '\n'); i >= 0 {
		answer = strings.TrimSpace(answer[:i])
	}
	answer = strings.Trim(answer, "`\"' ")
	if answer == "" {
		return "", llm.InvocationError(OpClassify, errEmptyFolder)
	}
	if strings.EqualFold(answer, Uncategorized) {
		return Uncategorized, nil
	}
	return answer, nil
}

// TruncateTail keeps the last n code points of s.
func TruncateTail(s string, n int) string {
	count := utf8.RuneCountInString(s)
	if count <= n {
		return s
	}
	skip := count - n
	for i := range s {
		if skip == 0 {
			return s[i:]
		}
		skip--
	}
	return ""
}
