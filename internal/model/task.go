package model

import "time"

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// Task: уведомление-задача, назначенная участнику. Создаётся внешней системой,
// здесь меняется только состояние прочтения.
type Task struct {
	ID          string       `json:"id"`
	AssignedTo  string       `json:"assigned_to"`
	ProjectID   string       `json:"project_id,omitempty"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	IsRead      bool         `json:"is_read"`
	ReadAt      *time.Time   `json:"read_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// UnreadCount: число непрочитанных задач; не хранится, всегда вычисляется.
func UnreadCount(tasks []Task) int {
	n := 0
	for _, t := range tasks {
		if !t.IsRead {
			n++
		}
	}
	return n
}
