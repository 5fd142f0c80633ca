package model

import "time"

type ChatMode string

const (
	ModeProjectChat ChatMode = "project_chat"
	ModeGlobalChat  ChatMode = "global_chat"
)

// Valid сообщает, что режим один из поддерживаемых.
func (m ChatMode) Valid() bool {
	return m == ModeProjectChat || m == ModeGlobalChat
}

type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatSession: ветка разговора пользователя в рамках (проект, режим).
type ChatSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ProjectID string    `json:"project_id,omitempty"`
	Title     string    `json:"title"`
	Mode      ChatMode  `json:"mode"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatMessage неизменяемо после создания; порядок: по CreatedAt по возрастанию.
type ChatMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryItem: проекция сообщения для сервиса ответов. Не хранится.
type HistoryItem struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// ToHistory сводит сообщения к парам {role, content}.
func ToHistory(msgs []ChatMessage) []HistoryItem {
	out := make([]HistoryItem, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, HistoryItem{Role: m.Role, Content: m.Content})
	}
	return out
}
