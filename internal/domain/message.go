package domain

import "fmt"

// Role — роль автора сообщения в диалоге с chat-моделью.
type Role string

const (
	// RoleSystem — системная инструкция, всегда первое сообщение истории.
	RoleSystem Role = "system"

	// RoleUser — сообщение пользователя.
	RoleUser Role = "user"

	// RoleAssistant — ответ модели.
	RoleAssistant Role = "assistant"
)

// Valid возвращает true для известных ролей.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Message — одно сообщение диалога.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Validate проверяет роль сообщения.
func (m Message) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, m.Role)
	}
	return nil
}
