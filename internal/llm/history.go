package llm

import (
	"fmt"
	"strings"
	"sync"

	"github.com/shaiso/llmflows/internal/domain"
)

// MessageHistory — история диалога для chat-модели.
//
// Системный промпт хранится первым сообщением. При MaxMessages > 0
// перед добавлением в заполненную историю удаляется самое старое
// несистемное сообщение.
type MessageHistory struct {
	mu          sync.Mutex
	maxMessages int
	messages    []domain.Message
}

// NewMessageHistory создаёт пустую историю.
// maxMessages == 0 — без ограничения.
func NewMessageHistory(maxMessages int) *MessageHistory {
	return &MessageHistory{maxMessages: maxMessages}
}

// MaxMessages возвращает ограничение на размер истории.
func (h *MessageHistory) MaxMessages() int {
	return h.maxMessages
}

// SystemPrompt возвращает системный промпт или пустую строку.
func (h *MessageHistory) SystemPrompt() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.messages) > 0 && h.messages[0].Role == domain.RoleSystem {
		return h.messages[0].Content
	}
	return ""
}

// SetSystemPrompt добавляет или заменяет системный промпт.
func (h *MessageHistory) SetSystemPrompt(prompt string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	msg := domain.Message{Role: domain.RoleSystem, Content: prompt}
	if len(h.messages) > 0 && h.messages[0].Role == domain.RoleSystem {
		h.messages[0] = msg
		return
	}
	h.messages = append([]domain.Message{msg}, h.messages...)
}

// AddUserMessage добавляет сообщение пользователя.
func (h *MessageHistory) AddUserMessage(content string) {
	h.append(domain.Message{Role: domain.RoleUser, Content: content})
}

// AddAssistantMessage добавляет ответ модели.
func (h *MessageHistory) AddAssistantMessage(content string) {
	h.append(domain.Message{Role: domain.RoleAssistant, Content: content})
}

// AddMessage добавляет сообщение с произвольной ролью.
// Системный промпт меняется только через SetSystemPrompt.
func (h *MessageHistory) AddMessage(role domain.Role, content string) error {
	msg := domain.Message{Role: role, Content: content}
	if err := msg.Validate(); err != nil {
		return err
	}
	if role == domain.RoleSystem {
		return fmt.Errorf("%w: use SetSystemPrompt for system messages", domain.ErrInvalidRole)
	}

	h.append(msg)
	return nil
}

func (h *MessageHistory) append(msg domain.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.maxMessages > 0 && len(h.messages) >= h.maxMessages {
		h.removeOldest()
	}
	h.messages = append(h.messages, msg)
}

// removeOldest удаляет самое старое несистемное сообщение.
func (h *MessageHistory) removeOldest() {
	idx := 0
	if len(h.messages) > 0 && h.messages[0].Role == domain.RoleSystem {
		idx = 1
	}
	if idx >= len(h.messages) {
		return
	}
	h.messages = append(h.messages[:idx], h.messages[idx+1:]...)
}

// Messages возвращает копию истории.
func (h *MessageHistory) Messages() []domain.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]domain.Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// SetMessages заменяет историю целиком.
func (h *MessageHistory) SetMessages(messages []domain.Message) error {
	for _, m := range messages {
		if err := m.Validate(); err != nil {
			return err
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append([]domain.Message(nil), messages...)
	return nil
}

// Len возвращает количество сообщений, включая системное.
func (h *MessageHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

// Reset очищает историю, сохраняя системный промпт.
func (h *MessageHistory) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.messages) > 0 && h.messages[0].Role == domain.RoleSystem {
		h.messages = h.messages[:1]
		return
	}
	h.messages = nil
}

// ConversationString возвращает историю в виде строк "role: content".
func (h *MessageHistory) ConversationString() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	lines := make([]string, 0, len(h.messages))
	for _, m := range h.messages {
		lines = append(lines, string(m.Role)+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}
