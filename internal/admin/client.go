// Package admin: управление проектами и документами через внешний сервис
// и назначение команды проекта (участники и руководители отделов).
package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/workspace/internal/logger"
	"github.com/workspace/internal/model"
)

const maxResponseBody = 1 << 20

// Result: итог вызова сервиса проектов. Ошибки сети и HTTP не выходят за клиент.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func failed(format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

// Upload: документ для загрузки в проект.
type Upload struct {
	ProjectID   string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Document: ответ сервиса после загрузки.
type Document struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Filename  string `json:"filename"`
	Status    string `json:"status,omitempty"`
}

// Client вызывает сервис проектов: POST /projects/create, GET/PUT /projects/{id},
// POST /documents/upload.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) CreateProject(ctx context.Context, in ProjectInput) (*model.Project, Result) {
	defer logger.DeferLogDuration("admin.CreateProject", time.Now())()
	var p projectEnvelope
	res := c.doJSON(ctx, http.MethodPost, "/projects/create", in, &p)
	return p.project(), res
}

func (c *Client) GetProject(ctx context.Context, id string) (*model.Project, Result) {
	defer logger.DeferLogDuration("admin.GetProject", time.Now())()
	var p projectEnvelope
	res := c.doJSON(ctx, http.MethodGet, "/projects/"+url.PathEscape(id), nil, &p)
	return p.project(), res
}

func (c *Client) UpdateProject(ctx context.Context, id string, in ProjectInput) (*model.Project, Result) {
	defer logger.DeferLogDuration("admin.UpdateProject", time.Now())()
	var p projectEnvelope
	res := c.doJSON(ctx, http.MethodPut, "/projects/"+url.PathEscape(id), in, &p)
	return p.project(), res
}

// UploadDocument отправляет файл multipart-формой (поля file и project_id).
func (c *Client) UploadDocument(ctx context.Context, u Upload) (*Document, Result) {
	defer logger.DeferLogDuration("admin.UploadDocument", time.Now())()
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeUpload(mw, u)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/documents/upload", pr)
	if err != nil {
		pr.Close()
		return nil, failed("build request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var doc Document
	res := c.do(req, &doc)
	if !res.Success {
		return nil, res
	}
	if doc.ProjectID == "" {
		doc.ProjectID = u.ProjectID
	}
	if doc.Filename == "" {
		doc.Filename = u.Filename
	}
	return &doc, res
}

func writeUpload(mw *multipart.Writer, u Upload) error {
	if err := mw.WriteField("project_id", u.ProjectID); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("file", u.Filename)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, u.Body)
	return err
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) Result {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return failed("encode request: %v", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return failed("build request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) Result {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Errorf("admin %s %s: %v", req.Method, req.URL.Path, err)
		return failed("project service unavailable: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return failed("read response: %v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("project service returned status %d", resp.StatusCode)
		var e struct {
			Error  string `json:"error"`
			Detail string `json:"detail"`
		}
		if json.Unmarshal(raw, &e) == nil {
			if e.Error != "" {
				msg += ": " + e.Error
			} else if e.Detail != "" {
				msg += ": " + e.Detail
			}
		}
		logger.Errorf("admin %s %s: %s", req.Method, req.URL.Path, msg)
		return Result{Error: msg}
	}
	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return failed("project service returned invalid JSON")
		}
	}
	return Result{Success: true}
}

// projectEnvelope принимает и {"project": {...}}, и проект верхним уровнем.
type projectEnvelope struct {
	model.Project
	Wrapped *model.Project `json:"project"`
}

func (e *projectEnvelope) project() *model.Project {
	if e.Wrapped != nil {
		return e.Wrapped
	}
	if e.ID == "" {
		return nil
	}
	p := e.Project
	return &p
}
