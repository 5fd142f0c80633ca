package model

// AuthSchemaVersion увеличивается при несовместимом изменении AuthState;
// сохранённое состояние другой версии отбрасывается.
const AuthSchemaVersion = 3

type AuthState struct {
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Department    string `json:"department"`
	Role          string `json:"role"`
	ParticipantID string `json:"participant_id,omitempty"`
	SchemaVersion int    `json:"schema_version"`
}

// WorkspaceState: навигация по рабочему пространству.
type WorkspaceState struct {
	ProjectID     string `json:"project_id,omitempty"`
	DeliverableID string `json:"deliverable_id,omitempty"`
	NodeID        string `json:"node_id,omitempty"`
	ViewMode      string `json:"view_mode,omitempty"`
}

type AppState struct {
	Auth      AuthState      `json:"auth"`
	Workspace WorkspaceState `json:"workspace"`
}

// AuthStateFor строит AuthState из записи пользователя.
func AuthStateFor(u *User) AuthState {
	return AuthState{
		UserID:        u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Department:    u.Department,
		Role:          u.Role,
		ParticipantID: u.ParticipantID,
		SchemaVersion: AuthSchemaVersion,
	}
}
