package errors

import "errors"

var (
	ErrMissingBotToken = errors.New("TELEGRAM_BOT_TOKEN environment variable is required")
	ErrUnauthorized    = errors.New("unauthorized user")
	ErrChatNotFound    = errors.New("chat not found")
	ErrRestrictedPost  = errors.New("post is restricted or missing")
	ErrPayloadRejected = errors.New("payload rejected by transport")
	ErrRefreshRunning  = errors.New("refresh already running")
	ErrInvalidTemplate = errors.New("invalid caption template")
	ErrInvalidConfig   = errors.New("invalid chat configuration")
	ErrGroupExists     = errors.New("subscription group already exists")
	ErrGroupNotFound   = errors.New("subscription group not found")
)
