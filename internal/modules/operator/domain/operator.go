package domain

import "time"

// Operator is a Telegram user allowed to control the bot
type Operator struct {
	ID       int64     `json:"id"`
	Username string    `json:"username"`
	AddedAt  time.Time `json:"added_at"`
	IsAdmin  bool      `json:"is_admin"`
}
