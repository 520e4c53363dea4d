package domain

import "time"

// FeedInfo describes the RSS channel published for one chat
type FeedInfo struct {
	ChatID  int64     `json:"chat_id"`
	Title   string    `json:"title"`
	Link    string    `json:"link"`
	Updated time.Time `json:"updated"`
}

// DefaultItemLimit is how many delivered posts a feed lists
const DefaultItemLimit = 50
