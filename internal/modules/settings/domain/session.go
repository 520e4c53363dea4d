package domain

import "time"

// Session is the active settings conversation of one chat
type Session struct {
	ChatID    int64
	UserID    int64
	State     State
	StartedAt time.Time
	UpdatedAt time.Time
}

// Draft holds uncommitted edits of a session. It is discarded when the
// conversation ends.
type Draft struct {
	// Template is the staged caption template, nil when untouched
	Template *string
	// Group is the subscription group being edited
	Group string
	// Include selects the side of Group whose tags are being edited
	Include bool
	// Tags is the staged tag set, nil when untouched
	Tags []string
	// Delete is the group waiting for deletion confirmation
	Delete string
}

// Document is a file uploaded by the user
type Document struct {
	FileID   string
	FileName string
	Size     int64
}

// Input is one user turn
type Input struct {
	ChatID   int64
	UserID   int64
	Text     string
	Document *Document
}

// Attachment is a file sent back to the user
type Attachment struct {
	Name string
	Data []byte
}

// Reply is one message the bot answers with
type Reply struct {
	Text string
	// Keyboard rows of reply buttons, nil keeps the current keyboard
	Keyboard       [][]string
	RemoveKeyboard bool
	Document       *Attachment
}
