// Package completion: клиент сервиса ответов: проектный чат (POST {base}/chat)
// и общий чат (POST {base}/chat/universal). Ошибки сети и не-2xx ответы не
// возвращаются как error, а превращаются в Result{Message: "", Error: ...}.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/workspace/internal/logger"
	"github.com/workspace/internal/metrics"
	"github.com/workspace/internal/model"
)

// Result: ответ сервиса. Непустой Error означает неудачу, Message тогда пуст.
type Result struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Failed сообщает, что вызов завершился ошибкой.
func (r Result) Failed() bool { return r.Error != "" }

type projectRequest struct {
	ParticipantID       string              `json:"participant_id"`
	Message             string              `json:"message"`
	ConversationHistory []model.HistoryItem `json:"conversation_history"`
	ProjectID           *string             `json:"project_id"`
	EnableTools         bool                `json:"enable_tools"`
}

type universalRequest struct {
	Message             string              `json:"message"`
	ConversationHistory []model.HistoryItem `json:"conversation_history"`
	ProjectID           *string             `json:"project_id"`
}

// Сервис отвечает либо {message}, либо {response}; ошибки: {detail} или {error}.
type chatResponse struct {
	Message  string `json:"message"`
	Response string `json:"response"`
	Detail   any    `json:"detail"`
	Error    string `json:"error"`
}

const maxResponseBody = 4 << 20

type Client struct {
	baseURL     string
	httpClient  *http.Client
	enableTools bool
}

// NewClient создаёт клиент; timeout <= 0: 90 секунд (ответы с инструментами бывают долгими).
func NewClient(baseURL string, timeout time.Duration, enableTools bool) *Client {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		enableTools: enableTools,
	}
}

// ProjectChat вызывает проектный вариант; participantID обязателен.
func (c *Client) ProjectChat(ctx context.Context, participantID, projectID, message string, history []model.HistoryItem) Result {
	if participantID == "" {
		return Result{Error: "participant is not resolved for the current user"}
	}
	return c.post(ctx, "project", "/chat", projectRequest{
		ParticipantID:       participantID,
		Message:             message,
		ConversationHistory: history,
		ProjectID:           optional(projectID),
		EnableTools:         c.enableTools,
	})
}

// UniversalChat вызывает общий вариант (без участника).
func (c *Client) UniversalChat(ctx context.Context, projectID, message string, history []model.HistoryItem) Result {
	return c.post(ctx, "universal", "/chat/universal", universalRequest{
		Message:             message,
		ConversationHistory: history,
		ProjectID:           optional(projectID),
	})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (c *Client) post(ctx context.Context, variant, path string, payload any) (res Result) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if res.Failed() {
			outcome = "error"
		}
		metrics.CompletionLatency.WithLabelValues(variant, outcome).Observe(time.Since(start).Seconds())
		logger.LogDuration("completion."+variant, start)
	}()

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Error: fmt.Sprintf("encode request: %v", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return Result{Error: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Errorf("completion %s: %v", variant, err)
		return Result{Error: "chat service unavailable: " + err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return Result{Error: fmt.Sprintf("read response: %v", err)}
	}
	var parsed chatResponse
	jsonErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("chat service returned status %d", resp.StatusCode)
		if jsonErr == nil {
			if detail := errorText(parsed); detail != "" {
				msg += ": " + detail
			}
		}
		logger.Errorf("completion %s: %s", variant, msg)
		return Result{Error: msg}
	}
	if jsonErr != nil {
		return Result{Error: "chat service returned invalid JSON"}
	}
	text := parsed.Message
	if text == "" {
		text = parsed.Response
	}
	if text == "" {
		return Result{Error: "chat service returned an empty reply"}
	}
	return Result{Message: text}
}

func errorText(r chatResponse) string {
	if r.Error != "" {
		return r.Error
	}
	switch d := r.Detail.(type) {
	case string:
		return d
	case nil:
		return ""
	default:
		b, _ := json.Marshal(d)
		return string(b)
	}
}
