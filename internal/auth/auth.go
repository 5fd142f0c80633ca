// Package auth: вход по email и паролю (bcrypt), токены сессий и выход.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/workspace/internal/logger"
	"github.com/workspace/internal/model"
	"github.com/workspace/internal/repository"
	"github.com/workspace/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	ErrInvalidEmail       = errors.New("invalid email format")
)

// Валидация email: допустимый формат (упрощённый, без полного RFC).
var emailRegexp = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Хеш для сравнения, когда пользователь не найден: время ответа не выдаёт существование email.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("workspace-dummy-password"), bcrypt.DefaultCost)

type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	SetPasswordHash(ctx context.Context, id, hash string) error
}

type ParticipantFinder interface {
	FindByEmail(ctx context.Context, email string) (*model.Participant, error)
}

type Service struct {
	users        UserStore
	sessions     storage.SessionStore
	participants ParticipantFinder
}

func NewService(users UserStore, sessions storage.SessionStore, participants ParticipantFinder) *Service {
	return &Service{users: users, sessions: sessions, participants: participants}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResult struct {
	Token string          `json:"token"`
	Auth  model.AuthState `json:"auth"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HashPassword: bcrypt с cost по умолчанию.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// Login проверяет пароль и выдаёт новый токен. participant_id, если его нет
// у пользователя, ищется в справочнике по email.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	defer logger.DeferLogDuration("auth.Login", time.Now())()
	email := normalizeEmail(req.Email)
	if !emailRegexp.MatchString(email) {
		return nil, ErrInvalidEmail
	}
	allowed, err := s.sessions.CheckLoginRateLimit(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("auth.Login rate limit: %w", err)
	}
	if !allowed {
		return nil, ErrRateLimitExceeded
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth.Login: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	s.rehashIfWeak(ctx, user, req.Password)

	state := model.AuthStateFor(user)
	if state.ParticipantID == "" && s.participants != nil {
		if p, err := s.participants.FindByEmail(ctx, user.Email); err == nil {
			state.ParticipantID = p.ID
		} else if !errors.Is(err, repository.ErrNotFound) {
			logger.Errorf("auth.Login participant lookup %s: %v", user.Email, err)
		}
	}

	token := uuid.New().String()
	if err := s.sessions.SetSession(ctx, token, user.ID); err != nil {
		return nil, fmt.Errorf("auth.Login store session: %w", err)
	}
	logger.Infof("auth: login user=%s", user.ID)
	return &LoginResult{Token: token, Auth: state}, nil
}

func (s *Service) rehashIfWeak(ctx context.Context, user *model.User, password string) {
	cost, err := bcrypt.Cost([]byte(user.PasswordHash))
	if err != nil || cost >= bcrypt.DefaultCost {
		return
	}
	h, err := HashPassword(password)
	if err != nil {
		return
	}
	if err := s.users.SetPasswordHash(ctx, user.ID, h); err != nil {
		logger.Errorf("auth: rehash user=%s: %v", user.ID, err)
	}
}

// Logout удаляет токен. Неизвестный токен: не ошибка.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("auth.Logout: %w", err)
	}
	return nil
}

// EnsureUser создаёт пользователя с паролем, если email ещё не занят (начальный администратор).
func (s *Service) EnsureUser(ctx context.Context, u model.User, password string) error {
	u.Email = normalizeEmail(u.Email)
	if _, err := s.users.GetByEmail(ctx, u.Email); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("auth.EnsureUser: %w", err)
	}
	h, err := HashPassword(password)
	if err != nil {
		return err
	}
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.PasswordHash = h
	if err := s.users.Create(ctx, &u); err != nil {
		return fmt.Errorf("auth.EnsureUser: %w", err)
	}
	logger.Infof("auth: created user %s (%s)", u.Email, u.Role)
	return nil
}
