package chat

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/workspace/internal/completion"
	"github.com/workspace/internal/logger"
	"github.com/workspace/internal/metrics"
	"github.com/workspace/internal/model"
)

// SendResult: итог отправки. Непустой Error означает, что ответ ассистента не сохранён.
type SendResult struct {
	SessionID        string             `json:"session_id,omitempty"`
	UserMessage      *model.ChatMessage `json:"user_message,omitempty"`
	AssistantMessage *model.ChatMessage `json:"assistant_message,omitempty"`
	Error            string             `json:"error,omitempty"`
}

// Send отправляет сообщение в активную сессию (или создаёт её по тексту сообщения),
// сохраняет реплику пользователя, вызывает сервис ответов и сохраняет ответ.
// Пустой текст и повторная отправка во время текущей отклоняются без побочных эффектов.
func (c *Controller) Send(ctx context.Context, text string) (SendResult, error) {
	defer logger.DeferLogDuration("chat.Send", time.Now())()

	text = strings.TrimSpace(text)
	if text == "" {
		return SendResult{}, ErrBlankMessage
	}

	c.mu.Lock()
	if c.sending {
		c.mu.Unlock()
		return SendResult{}, ErrSendInProgress
	}
	c.sending = true
	c.newChat = false
	c.lastError = ""
	sessionID := c.activeID
	c.sendingSession = sessionID
	projectID, mode := c.projectID, c.mode
	c.mu.Unlock()

	outcome := "ok"
	defer func() {
		c.mu.Lock()
		c.sending = false
		c.sendingSession = ""
		c.mu.Unlock()
		metrics.ChatSends.WithLabelValues(string(mode), outcome).Inc()
	}()

	fail := func(res SendResult, msg string) (SendResult, error) {
		outcome = "error"
		res.Error = msg
		c.setError(sessionID, msg)
		return res, nil
	}

	if sessionID == "" {
		s, err := c.createSession(ctx, SessionTitle(text))
		if err != nil {
			logger.Errorf("chat.Send create session: %v", err)
			outcome = "aborted"
			c.setError("", "Failed to create chat session")
			return SendResult{Error: "Failed to create chat session"}, nil
		}
		sessionID = s.ID
		c.mu.Lock()
		c.sendingSession = sessionID
		c.mu.Unlock()
	}
	res := SendResult{SessionID: sessionID}

	userMsg := &model.ChatMessage{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      model.RoleUser,
		Content:   text,
		CreatedAt: c.clock.Now(),
	}
	if err := c.deps.Messages.Create(ctx, userMsg); err != nil {
		logger.Errorf("chat.Send save user message session=%s: %v", sessionID, err)
		outcome = "aborted"
		res.Error = "Failed to save message"
		c.setError(sessionID, res.Error)
		return res, nil
	}
	res.UserMessage = userMsg

	prior, ok := c.appendIfActive(*userMsg)
	if !ok {
		stored, err := c.deps.Messages.ListBySession(ctx, sessionID)
		if err != nil {
			logger.Errorf("chat.Send history session=%s: %v", sessionID, err)
		}
		prior = prior[:0]
		for _, m := range stored {
			if m.ID != userMsg.ID {
				prior = append(prior, m)
			}
		}
	}
	history := append(model.ToHistory(prior), model.HistoryItem{Role: model.RoleUser, Content: text})

	reply := c.complete(ctx, projectID, mode, text, history)
	if reply.Failed() {
		return fail(res, reply.Error)
	}

	assistantMsg := &model.ChatMessage{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      model.RoleAssistant,
		Content:   reply.Message,
		CreatedAt: c.clock.Now(),
	}
	if err := c.deps.Messages.Create(ctx, assistantMsg); err != nil {
		logger.Errorf("chat.Send save assistant message session=%s: %v", sessionID, err)
		return fail(res, "Failed to save assistant reply")
	}
	res.AssistantMessage = assistantMsg
	c.appendIfActive(*assistantMsg)

	at := c.clock.Now()
	if err := c.deps.Sessions.Touch(ctx, sessionID, at); err != nil {
		logger.Errorf("chat.Send touch session=%s: %v", sessionID, err)
	} else {
		c.mu.Lock()
		if i := indexOf(c.sessions, sessionID); i >= 0 {
			c.sessions[i].UpdatedAt = at
			sortSessions(c.sessions)
		}
		c.mu.Unlock()
	}
	return res, nil
}

func (c *Controller) complete(ctx context.Context, projectID string, mode model.ChatMode, text string, history []model.HistoryItem) completion.Result {
	if mode == model.ModeProjectChat {
		pid, err := c.participantID(ctx)
		if err != nil {
			logger.Errorf("chat.Send: %v", err)
			return completion.Result{Error: "Participant not found for the current user"}
		}
		return c.deps.Completer.ProjectChat(ctx, pid, projectID, text, history)
	}
	return c.deps.Completer.UniversalChat(ctx, projectID, text, history)
}

// appendIfActive добавляет сообщение локально, только если его сессия всё ещё активна.
// Возвращает сообщения, предшествовавшие добавленному.
func (c *Controller) appendIfActive(m model.ChatMessage) ([]model.ChatMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeID != m.SessionID {
		return nil, false
	}
	prior := append([]model.ChatMessage{}, c.messages...)
	for _, existing := range c.messages {
		if existing.ID == m.ID {
			return prior, true
		}
	}
	c.messages = append(c.messages, m)
	return prior, true
}

// setError показывает ошибку, если пользователь всё ещё смотрит на эту сессию.
func (c *Controller) setError(sessionID, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sessionID == "" || c.activeID == sessionID {
		c.lastError = msg
	}
}
