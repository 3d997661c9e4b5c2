package mail

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Participant 邮件头中的一个地址
type Participant struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// Display renders "name (email)", or the bare email when there is no name.
func (p Participant) Display() string {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return p.Email
	}
	return fmt.Sprintf("%s (%s)", name, p.Email)
}

// Label returns the display name, falling back to the email.
func (p Participant) Label() string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	return p.Email
}

// Message is an immutable snapshot of one mail in a thread.
type Message struct {
	UID     string        `json:"uid"`
	From    Participant   `json:"from"`
	To      []Participant `json:"to,omitempty"`
	Cc      []Participant `json:"cc,omitempty"`
	Date    time.Time     `json:"date"`
	Subject string        `json:"subject,omitempty"`
	Body    string        `json:"body"`
	// HTML is set when Body is text/html.
	HTML bool `json:"html,omitempty"`
}

// Recipients returns To followed by Cc.
func (m *Message) Recipients() []Participant {
	out := make([]Participant, 0, len(m.To)+len(m.Cc))
	out = append(out, m.To...)
	return append(out, m.Cc...)
}

// Participants returns the sender followed by every recipient.
func (m *Message) Participants() []Participant {
	return append([]Participant{m.From}, m.Recipients()...)
}

// Thread is a chronological list of messages. Nil entries are fetch gaps.
type Thread []*Message

// Subject returns the subject of the first message that has one.
func (t Thread) Subject() string {
	for _, m := range t {
		if m != nil && strings.TrimSpace(m.Subject) != "" {
			return m.Subject
		}
	}
	return ""
}

// Messages returns the thread without gaps.
func (t Thread) Messages() []*Message {
	out := make([]*Message, 0, len(t))
	for _, m := range t {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// ParticipantLabels returns the name-or-email of every participant, deduplicated in order.
func (t Thread) ParticipantLabels() []string {
	labels := lo.FlatMap(t.Messages(), func(m *Message, _ int) []string {
		return lo.Map(m.Participants(), func(p Participant, _ int) string { return p.Label() })
	})
	return lo.Uniq(lo.Compact(labels))
}
