package pipeline

import (
	"strings"
)

// EventResult 日历事件建议
type EventResult struct {
	NoEvent     bool     `json:"no_event,omitempty"`
	Emails      []string `json:"emails"`
	Names       []string `json:"names"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Date        string   `json:"date"`
	StartTime   string   `json:"start_time"`
}

// EventPatch is the loosely typed shape models answer with. Absent fields
// stay nil; both "emails" and "e-mails" are accepted.
type EventPatch struct {
	NoEvent     *bool     `json:"no_event"`
	Emails      *[]string `json:"emails"`
	HyphenEmail *[]string `json:"e-mails"`
	Names       *[]string `json:"names"`
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Date        *string   `json:"date"`
	StartTime   *string   `json:"start_time"`
}

func (p EventPatch) emails() *[]string {
	if p.Emails != nil {
		return p.Emails
	}
	return p.HyphenEmail
}

// Apply overlays every non-empty field of p onto ev.
func (p EventPatch) Apply(ev EventResult) EventResult {
	if list := p.emails(); list != nil && len(*list) > 0 {
		ev.Emails = append([]string(nil), (*list)...)
	}
	if p.Names != nil && len(*p.Names) > 0 {
		ev.Names = append([]string(nil), (*p.Names)...)
	}
	setString(&ev.Title, p.Title)
	setString(&ev.Description, p.Description)
	setString(&ev.Date, p.Date)
	setString(&ev.StartTime, p.StartTime)
	return ev
}

func setString(dst *string, v *string) {
	if v != nil && strings.TrimSpace(*v) != "" {
		*dst = strings.TrimSpace(*v)
	}
}

// Verification is the second-pass verdict on an event candidate.
type Verification struct {
	Valid bool
	// Patch holds the corrections when Valid is false.
	Patch *EventPatch
	// Undecodable is set when the verifier answered neither "valid" nor JSON.
	Undecodable bool
	Raw         string
}

// SummaryResult 会话摘要
type SummaryResult struct {
	Summary      string   `json:"summary" jsonschema_description:"Résumé concis du contenu de l'email"`
	KeyPoints    []string `json:"key_points" jsonschema_description:"Points clés extraits de la conversation"`
	Participants []string `json:"participants" jsonschema_description:"Liste des participants à la conversation"`
}

// ReplyResult 建议回复
type ReplyResult struct {
	Subject string `json:"subject" jsonschema_description:"Sujet de la réponse (Re: ...)"`
	Body    string `json:"body" jsonschema_description:"Corps de la réponse générée par l'IA"`
	Tone    string `json:"tone" jsonschema_description:"Ton utilisé (professionnel, amical, etc.)"`
}
