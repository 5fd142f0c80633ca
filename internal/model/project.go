package model

import "time"

// Participant: внешняя справочная запись сотрудника.
type Participant struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department"`
	Discipline string `json:"discipline"`
	Role       string `json:"role"`
}

type TeamRole string

const (
	TeamRoleMember TeamRole = "member"
	TeamRoleHOD    TeamRole = "hod"
)

type TeamMember struct {
	ProjectID     string    `json:"project_id"`
	ParticipantID string    `json:"participant_id"`
	Role          TeamRole  `json:"role"`
	Department    string    `json:"department"`
	AssignedAt    time.Time `json:"assigned_at"`
}

type Project struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Code        string     `json:"code"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
}
