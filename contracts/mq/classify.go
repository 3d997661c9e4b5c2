package mq

import "time"

// Routing keys
const (
	RoutingKeyClassifyRequested = "mailbox.classify.requested"
	RoutingKeyMailClassified    = "mail.classified"
)

// ClassifyRequestedPayload 请求对一个邮箱的收件箱执行一次自动归档
type ClassifyRequestedPayload struct {
	MailboxID   string    `json:"mailbox_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// MailClassifiedPayload 一封邮件被移动到目标文件夹
type MailClassifiedPayload struct {
	MailboxID    string    `json:"mailbox_id"`
	MessageID    string    `json:"message_id"`
	FolderID     string    `json:"folder_id"`
	FolderPath   string    `json:"folder_path"`
	ClassifiedAt time.Time `json:"classified_at"`
}
