// Package client 是 cvBuilder HTTP API 的 Go 客户端，cvctl 通过它读写模板。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cvBuilder/internal/cv"
	"cvBuilder/internal/editor"
	"cvBuilder/internal/templates"
)

// ErrNotFound 表示服务端返回 404。
var ErrNotFound = errors.New("not found")

// StatusError 是非 2xx 响应。
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api status %d", e.StatusCode)
	}
	return fmt.Sprintf("api status %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Client 访问 /v1 下的模板、渲染与资源接口。
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option 配置 Client。
type Option func(*Client)

// WithHTTPClient 替换底层 http.Client。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New 返回指向 baseURL（如 http://localhost:8080）的客户端。
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type templateDetail struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	LayoutJSON string `json:"layoutJson"`
	ThemeJSON  string `json:"themeJson"`
	PreviewURL string `json:"previewUrl"`
}

// List 列出模板摘要。
func (c *Client) List(ctx context.Context) ([]templates.Summary, error) {
	var out struct {
		Items []templates.Summary `json:"items"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/templates", nil, "", &out); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return out.Items, nil
}

// FetchTemplate 读取模板并严格解析布局与主题。
func (c *Client) FetchTemplate(ctx context.Context, id string) (editor.Template, error) {
	var detail templateDetail
	if err := c.doJSON(ctx, http.MethodGet, "/v1/templates/"+url.PathEscape(id), nil, "", &detail); err != nil {
		return editor.Template{}, fmt.Errorf("fetch template %s: %w", id, err)
	}
	layout, err := cv.ParseLayout([]byte(detail.LayoutJSON))
	if err != nil {
		return editor.Template{}, fmt.Errorf("template %s: %w", id, err)
	}
	theme, err := cv.ParseTheme([]byte(detail.ThemeJSON))
	if err != nil {
		return editor.Template{}, fmt.Errorf("template %s: %w", id, err)
	}
	return editor.Template{
		ID:         detail.ID,
		Name:       detail.Name,
		Layout:     layout,
		Theme:      theme,
		PreviewURL: detail.PreviewURL,
	}, nil
}

// CreateTemplate 新建模板并返回 ID。
func (c *Client) CreateTemplate(ctx context.Context, tpl editor.Template, preview []byte) (string, error) {
	id, err := c.sendTemplate(ctx, http.MethodPost, "/v1/templates", tpl, preview)
	if err != nil {
		return "", fmt.Errorf("create template: %w", err)
	}
	return id, nil
}

// UpdateTemplate 覆盖已有模板。
func (c *Client) UpdateTemplate(ctx context.Context, id string, tpl editor.Template, preview []byte) (string, error) {
	saved, err := c.sendTemplate(ctx, http.MethodPut, "/v1/templates/"+url.PathEscape(id), tpl, preview)
	if err != nil {
		return "", fmt.Errorf("update template %s: %w", id, err)
	}
	return saved, nil
}

// DeleteTemplate 删除模板。
func (c *Client) DeleteTemplate(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/v1/templates/"+url.PathEscape(id), nil, "", nil); err != nil {
		return fmt.Errorf("delete template %s: %w", id, err)
	}
	return nil
}

// Render 让服务端渲染文档；format 为 json 或 html，返回原始响应体。
func (c *Client) Render(ctx context.Context, layout cv.Layout, theme cv.Theme, content cv.Content, format string) ([]byte, error) {
	payload, err := json.Marshal(map[string]any{
		"layout":  layout,
		"theme":   theme,
		"content": content,
	})
	if err != nil {
		return nil, fmt.Errorf("encode render request: %w", err)
	}
	target := "/v1/render?format=" + url.QueryEscape(format)
	body, err := c.do(ctx, http.MethodPost, target, bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return body, nil
}

// UploadAvatar 上传头像，返回可写入内容映射的对象键。
func (c *Client) UploadAvatar(ctx context.Context, filename string, data []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("build avatar form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("build avatar form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build avatar form: %w", err)
	}

	var out struct {
		ObjectKey string `json:"objectKey"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/assets/avatar", &buf, mw.FormDataContentType(), &out); err != nil {
		return "", fmt.Errorf("upload avatar: %w", err)
	}
	return out.ObjectKey, nil
}

func (c *Client) sendTemplate(ctx context.Context, method, path string, tpl editor.Template, preview []byte) (string, error) {
	layoutJSON, err := json.Marshal(tpl.Layout)
	if err != nil {
		return "", fmt.Errorf("encode layout: %w", err)
	}
	themeJSON, err := json.Marshal(tpl.Theme)
	if err != nil {
		return "", fmt.Errorf("encode theme: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"name", tpl.Name},
		{"layoutJson", string(layoutJSON)},
		{"themeJson", string(themeJSON)},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return "", fmt.Errorf("build template form: %w", err)
		}
	}
	if len(preview) > 0 {
		part, err := mw.CreateFormFile("preview", "preview.png")
		if err != nil {
			return "", fmt.Errorf("build template form: %w", err)
		}
		if _, err := part.Write(preview); err != nil {
			return "", fmt.Errorf("build template form: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build template form: %w", err)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, method, path, &buf, mw.FormDataContentType(), &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	data, err := c.do(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}
