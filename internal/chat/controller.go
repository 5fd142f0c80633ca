package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/workspace/internal/logger"
	"github.com/workspace/internal/model"
	"github.com/workspace/internal/repository"
)

// Максимальная длина автозаголовка сессии в символах (без "...").
const titleMaxRunes = 50

// Controller держит состояние чата одного пользователя. Все поля под mu;
// обращения к хранилищам и сервису ответов выполняются без блокировки.
type Controller struct {
	deps  Deps
	clock *clock

	mu             sync.Mutex
	auth           model.AuthState
	projectID      string
	mode           model.ChatMode
	sessions       []model.ChatSession
	activeID       string
	messages       []model.ChatMessage
	newChat        bool
	sending        bool
	sendingSession string
	lastError      string
}

// NewController создаёт контроллер в режиме общего чата без проекта.
func NewController(auth model.AuthState, deps Deps) *Controller {
	return &Controller{
		deps:  deps,
		clock: &clock{now: time.Now},
		auth:  auth,
		mode:  model.ModeGlobalChat,
	}
}

// View возвращает копию текущего состояния.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{
		ProjectID:       c.projectID,
		Mode:            c.mode,
		Sessions:        append([]model.ChatSession{}, c.sessions...),
		ActiveSessionID: c.activeID,
		Messages:        append([]model.ChatMessage{}, c.messages...),
		IsSending:       c.sending,
		NewChat:         c.newChat,
		Error:           c.lastError,
	}
}

// SetScope переключает (проект, режим). При смене области очищаются активная сессия
// и сообщения, список перечитывается. Отправка, начатая в старой области, не отменяется.
func (c *Controller) SetScope(ctx context.Context, projectID string, mode model.ChatMode) []model.ChatSession {
	if !mode.Valid() {
		mode = model.ModeGlobalChat
	}
	c.mu.Lock()
	if c.projectID != projectID || c.mode != mode {
		c.projectID = projectID
		c.mode = mode
		c.sessions = nil
		c.activeID = ""
		c.messages = nil
		c.lastError = ""
	}
	c.mu.Unlock()
	return c.LoadSessions(ctx)
}

// LoadSessions перечитывает список сессий области, самые свежие первыми.
// Ошибка логируется, результат: пустой список. Без активной сессии и вне режима
// "новый чат" автоматически выбирается самая свежая.
func (c *Controller) LoadSessions(ctx context.Context) []model.ChatSession {
	c.mu.Lock()
	userID, projectID, mode := c.auth.UserID, c.projectID, c.mode
	c.mu.Unlock()

	list, err := c.deps.Sessions.List(ctx, userID, scopeProject(projectID, mode), mode)
	if err != nil {
		logger.Errorf("chat.LoadSessions user=%s: %v", userID, err)
		list = []model.ChatSession{}
	}
	sortSessions(list)

	c.mu.Lock()
	if c.projectID != projectID || c.mode != mode {
		// область сменилась во время запроса
		out := append([]model.ChatSession{}, c.sessions...)
		c.mu.Unlock()
		return out
	}
	c.sessions = list
	if c.activeID != "" && indexOf(list, c.activeID) < 0 && c.sendingSession != c.activeID {
		c.activeID = ""
		c.messages = nil
	}
	autoSelect := ""
	if c.activeID == "" && !c.newChat && len(list) > 0 {
		autoSelect = list[0].ID
		c.activeID = autoSelect
		c.messages = nil
	}
	out := append([]model.ChatSession{}, list...)
	c.mu.Unlock()

	if autoSelect != "" {
		c.loadMessages(ctx, autoSelect)
	}
	return out
}

// CreateSession создаёт сессию в текущей области и делает её активной. nil при ошибке.
func (c *Controller) CreateSession(ctx context.Context, title string) *model.ChatSession {
	s, err := c.createSession(ctx, title)
	if err != nil {
		logger.Errorf("chat.CreateSession: %v", err)
		return nil
	}
	c.mu.Lock()
	c.newChat = false
	c.mu.Unlock()
	return s
}

func (c *Controller) createSession(ctx context.Context, title string) (*model.ChatSession, error) {
	c.mu.Lock()
	userID, projectID, mode := c.auth.UserID, c.projectID, c.mode
	c.mu.Unlock()

	title = strings.TrimSpace(title)
	if title == "" {
		title = "New chat"
	}
	now := c.clock.Now()
	s := &model.ChatSession{
		ID:        uuid.New().String(),
		UserID:    userID,
		ProjectID: scopeProject(projectID, mode),
		Title:     title,
		Mode:      mode,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.deps.Sessions.Create(ctx, s); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.projectID == projectID && c.mode == mode {
		c.sessions = append([]model.ChatSession{*s}, c.sessions...)
		c.activeID = s.ID
		c.messages = nil
	}
	c.mu.Unlock()
	return s, nil
}

// RenameSession переименовывает сессию пользователя; при успехе обновляет title и updated_at локально.
func (c *Controller) RenameSession(ctx context.Context, id, title string) bool {
	title = strings.TrimSpace(title)
	if title == "" || !c.owns(ctx, id) {
		return false
	}
	at := c.clock.Now()
	if err := c.deps.Sessions.Rename(ctx, id, title, at); err != nil {
		logger.Errorf("chat.RenameSession id=%s: %v", id, err)
		return false
	}
	c.mu.Lock()
	if i := indexOf(c.sessions, id); i >= 0 {
		c.sessions[i].Title = title
		c.sessions[i].UpdatedAt = at
		sortSessions(c.sessions)
	}
	c.mu.Unlock()
	return true
}

// DeleteSession удаляет сессию. Если она была активной, активная сессия и сообщения сбрасываются.
func (c *Controller) DeleteSession(ctx context.Context, id string) bool {
	if !c.owns(ctx, id) {
		return false
	}
	if err := c.deps.Sessions.Delete(ctx, id); err != nil {
		logger.Errorf("chat.DeleteSession id=%s: %v", id, err)
		return false
	}
	c.mu.Lock()
	if i := indexOf(c.sessions, id); i >= 0 {
		c.sessions = append(c.sessions[:i], c.sessions[i+1:]...)
	}
	if c.activeID == id {
		c.activeID = ""
		c.messages = nil
	}
	c.mu.Unlock()
	return true
}

// NewChat переводит контроллер в режим "новый чат": активная сессия сбрасывается,
// следующая загрузка списка не выбирает самую свежую сессию.
func (c *Controller) NewChat() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.newChat = true
	c.activeID = ""
	c.messages = nil
	c.lastError = ""
}

// SelectSession делает сессию активной и перечитывает её сообщения. Повторный выбор
// сессии, в которую сейчас идёт отправка, не перечитывает сообщения.
func (c *Controller) SelectSession(ctx context.Context, id string) bool {
	c.mu.Lock()
	c.newChat = false
	if c.activeID == id && c.sending && c.sendingSession == id {
		c.mu.Unlock()
		return true
	}
	known := indexOf(c.sessions, id) >= 0
	c.mu.Unlock()

	if !known && !c.owns(ctx, id) {
		return false
	}

	c.mu.Lock()
	c.activeID = id
	c.messages = nil
	c.lastError = ""
	c.mu.Unlock()

	c.loadMessages(ctx, id)
	return true
}

// loadMessages перечитывает сообщения сессии и сливает их с локальными по ID:
// отправка могла добавить сообщение, пока шёл запрос.
func (c *Controller) loadMessages(ctx context.Context, sessionID string) {
	msgs, err := c.deps.Messages.ListBySession(ctx, sessionID)
	if err != nil {
		logger.Errorf("chat.loadMessages session=%s: %v", sessionID, err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeID != sessionID {
		return
	}
	c.messages = mergeMessages(msgs, c.messages)
}

// owns проверяет, что сессия принадлежит пользователю контроллера.
func (c *Controller) owns(ctx context.Context, id string) bool {
	c.mu.Lock()
	userID := c.auth.UserID
	if indexOf(c.sessions, id) >= 0 {
		c.mu.Unlock()
		return true
	}
	c.mu.Unlock()

	s, err := c.deps.Sessions.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.Errorf("chat.owns id=%s: %v", id, err)
		}
		return false
	}
	return s.UserID == userID
}

// participantID возвращает участника из AuthState или находит его по email и запоминает.
func (c *Controller) participantID(ctx context.Context) (string, error) {
	c.mu.Lock()
	pid, email := c.auth.ParticipantID, c.auth.Email
	c.mu.Unlock()
	if pid != "" {
		return pid, nil
	}
	if c.deps.Participants == nil || email == "" {
		return "", fmt.Errorf("participant is not resolved for the current user")
	}
	p, err := c.deps.Participants.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("resolve participant %s: %w", email, err)
	}
	c.mu.Lock()
	c.auth.ParticipantID = p.ID
	c.mu.Unlock()
	return p.ID, nil
}

// SessionTitle: заголовок новой сессии по первому сообщению: первые 50 символов и "..." при обрезке.
func SessionTitle(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= titleMaxRunes {
		return text
	}
	return string([]rune(text)[:titleMaxRunes]) + "..."
}

// Сессии общего чата не привязаны к проекту.
func scopeProject(projectID string, mode model.ChatMode) string {
	if mode == model.ModeProjectChat {
		return projectID
	}
	return ""
}

func indexOf(list []model.ChatSession, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func sortSessions(list []model.ChatSession) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].UpdatedAt.After(list[j].UpdatedAt) })
}

func mergeMessages(loaded, local []model.ChatMessage) []model.ChatMessage {
	seen := make(map[string]struct{}, len(loaded))
	out := make([]model.ChatMessage, 0, len(loaded)+len(local))
	for _, m := range loaded {
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	for _, m := range local {
		if _, ok := seen[m.ID]; !ok {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
