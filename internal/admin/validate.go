package admin

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError: ошибка поля формы; до сетевого вызова дело не доходит.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"error"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ProjectInput: поля формы создания и изменения проекта.
type ProjectInput struct {
	Name        string     `json:"name"`
	Code        string     `json:"code"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

// Validate проверяет обязательные поля и порядок дат.
func (in *ProjectInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.TrimSpace(in.Code)
	if in.Name == "" {
		return &ValidationError{Field: "name", Message: "project name is required"}
	}
	if in.Code == "" {
		return &ValidationError{Field: "code", Message: "project code is required"}
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return &ValidationError{Field: "end_date", Message: "end date must not be before start date"}
	}
	return nil
}

// ValidateUpload проверяет проект, имя и размер файла. maxSize <= 0: без ограничения.
func ValidateUpload(u *Upload, maxSize int64) error {
	if strings.TrimSpace(u.ProjectID) == "" {
		return &ValidationError{Field: "project_id", Message: "project is required"}
	}
	if strings.TrimSpace(u.Filename) == "" || u.Body == nil {
		return &ValidationError{Field: "file", Message: "file is required"}
	}
	if u.Size <= 0 {
		return &ValidationError{Field: "file", Message: "file is empty"}
	}
	if maxSize > 0 && u.Size > maxSize {
		return &ValidationError{Field: "file", Message: fmt.Sprintf("file exceeds %d MB limit", maxSize>>20)}
	}
	return nil
}
