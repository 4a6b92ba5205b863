package domain

import "errors"

// Ошибки доменных типов.
var (
	// ErrInvalidRole — роль сообщения не system/user/assistant.
	ErrInvalidRole = errors.New("invalid message role")
)
