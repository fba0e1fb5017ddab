package dto

// Telegram Bot API webhook payload, trimmed to the parts the
// conversation core consumes.

type WebhookUpdate struct {
	UpdateId int64    `json:"update_id" validate:"required"`
	Message  *Message `json:"message,omitempty"`
}

type Message struct {
	MessageId int64     `json:"message_id"`
	From      *User     `json:"from" validate:"required"`
	Chat      Chat      `json:"chat"`
	Date      int64     `json:"date"`
	Text      string    `json:"text,omitempty"`
	Document  *FileRef  `json:"document,omitempty"`
	Photo     []FileRef `json:"photo,omitempty"`
}

type User struct {
	Id        int64  `json:"id" validate:"required"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

type Chat struct {
	Id int64 `json:"id" validate:"required"`
}

// FileRef covers both document attachments and photo sizes; Telegram
// sends photos as an array of sizes, largest last.
type FileRef struct {
	FileId   string `json:"file_id" validate:"required"`
	FileName string `json:"file_name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

// WebhookResponse acknowledges the update. Replies are sent through
// the bot API, not in the webhook response body.
type WebhookResponse struct {
	Ok bool `json:"ok"`
}
