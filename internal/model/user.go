package model

import "time"

type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	PasswordHash  string    `json:"-"`
	Department    string    `json:"department"`
	Role          string    `json:"role"`
	ParticipantID string    `json:"participant_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// IsAdmin: доступ к административным операциям (проекты, команды, документы).
func (u *User) IsAdmin() bool {
	return u.Role == "admin" || u.Role == "hod"
}
