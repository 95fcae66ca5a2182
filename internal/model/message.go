package model

import "time"

// IncomingMessage is a free-form text message received from the chat
// transport. Immutable once created.
type IncomingMessage struct {
	Text      string
	SenderID  int64
	ChatID    int64
	MessageID int
	Timestamp time.Time
}

// Selection is a button-press event referencing a pending clarification.
type Selection struct {
	// MessageID identifies the original message that triggered the
	// clarification, carried opaquely through the callback payload.
	MessageID int
	// Index points into the candidate category list.
	Index int
	// SenderID is the user who pressed the button.
	SenderID int64
	// ChatID is the chat the button lives in.
	ChatID int64
	// PromptMessageID is the clarification prompt itself, so it can be
	// edited once a category is chosen.
	PromptMessageID int
}

// PendingClarification holds the partially resolved extraction for a message
// that needs user input before it can be finalized. Entries live only in
// memory; an entry lost to a restart is simply abandoned.
type PendingClarification struct {
	Categories []string
	Amount     Amount
	Direction  Direction
	Date       string
	OwnerID    int64
	ChatID     int64
	CreatedAt  time.Time
}
