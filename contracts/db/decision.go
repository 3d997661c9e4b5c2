package db

import "time"

// Decision outcomes
const (
	OutcomeMoved         = "moved"
	OutcomeUncategorized = "uncategorized"
	OutcomeUnresolved    = "unresolved"
	OutcomeFailed        = "failed"
)

// ClassificationDecision 表示 classification_decisions 表的一行
type ClassificationDecision struct {
	ID         int64     `json:"id"`
	MailboxID  string    `json:"mailbox_id"`
	MessageID  string    `json:"message_id"`
	Outcome    string    `json:"outcome"`
	FolderPath string    `json:"folder_path,omitempty"`
	FolderID   string    `json:"folder_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
