package domain

import "time"

// Button is an inline URL button attached under a delivered post
type Button struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// File is the media of a payload, either a remote URL or uploaded bytes
type File struct {
	Name string
	URL  string
	Data []byte
	// Upload asks the sender to download the file first
	Upload bool
}

// IsLocal reports whether the file bytes are already in memory
func (f File) IsLocal() bool {
	return len(f.Data) > 0
}

// Payload is one ready-to-send message
type Payload struct {
	Kind    MediaKind
	Caption string
	File    File
	Buttons []Button
}

// Record describes a post delivered to a chat
type Record struct {
	ChatID      int64     `json:"chat_id"`
	PostID      int64     `json:"post_id"`
	Kind        MediaKind `json:"kind"`
	Caption     string    `json:"caption"`
	PostURL     string    `json:"post_url"`
	FileURL     string    `json:"file_url"`
	PreviewURL  string    `json:"preview_url,omitempty"`
	Rating      string    `json:"rating,omitempty"`
	Tags        []string  `json:"tags"`
	PostedAt    time.Time `json:"posted_at"`
	DeliveredAt time.Time `json:"delivered_at"`
}
