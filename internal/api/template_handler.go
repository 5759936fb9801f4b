package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cvBuilder/internal/api/middleware"
	"cvBuilder/internal/cv"
	"cvBuilder/internal/editor"
	"cvBuilder/internal/templates"
)

// TemplateRepository 是模板接口依赖的持久化能力。
type TemplateRepository interface {
	editor.Loader
	editor.Persister
	List(ctx context.Context) ([]templates.Summary, error)
	DeleteTemplate(ctx context.Context, id string) error
}

// TemplateHandler 负责模板相关的 API。
type TemplateHandler struct {
	repo            TemplateRepository
	maxPreviewBytes int64
	onDelete        func(ctx context.Context, id string) error
}

// NewTemplateHandler 返回 TemplateHandler；onDelete 在模板删除后调用，可为 nil。
func NewTemplateHandler(repo TemplateRepository, maxPreviewBytes int64, onDelete func(ctx context.Context, id string) error) *TemplateHandler {
	return &TemplateHandler{repo: repo, maxPreviewBytes: maxPreviewBytes, onDelete: onDelete}
}

type templateDetailResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	LayoutJSON string `json:"layoutJson"`
	ThemeJSON  string `json:"themeJson"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

var errUploadTooLarge = errors.New("uploaded file too large")

// GET /v1/templates
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	items, err := h.repo.List(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to list templates")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GET /v1/templates/:id
// layoutJson/themeJson 以 JSON 文本返回，客户端按不透明字符串处理。
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	tpl, err := h.repo.FetchTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "failed to query template")
		return
	}
	resp, err := toDetailResponse(tpl)
	if err != nil {
		respondError(c, err, "failed to encode template")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// POST /v1/templates
// multipart：name、layoutJson、themeJson，可选 preview（PNG）。
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	tpl, preview, ok := h.bindTemplateForm(c)
	if !ok {
		return
	}
	id, err := h.repo.CreateTemplate(c.Request.Context(), tpl, preview)
	if err != nil {
		respondError(c, err, "failed to create template")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// PUT /v1/templates/:id
func (h *TemplateHandler) UpdateTemplate(c *gin.Context) {
	tpl, preview, ok := h.bindTemplateForm(c)
	if !ok {
		return
	}
	id, err := h.repo.UpdateTemplate(c.Request.Context(), c.Param("id"), tpl, preview)
	if err != nil {
		respondError(c, err, "failed to update template")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// DELETE /v1/templates/:id
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	id := c.Param("id")
	if err := h.repo.DeleteTemplate(c.Request.Context(), id); err != nil {
		respondError(c, err, "failed to delete template")
		return
	}
	if h.onDelete != nil {
		if err := h.onDelete(c.Request.Context(), id); err != nil {
			middleware.LoggerFromContext(c).Warn("cleanup after template delete failed",
				slog.String("template_id", id),
				slog.Any("error", err),
			)
		}
	}
	c.Status(http.StatusNoContent)
}

// bindTemplateForm 严格解析 multipart 表单，失败时已写出响应。
func (h *TemplateHandler) bindTemplateForm(c *gin.Context) (editor.Template, []byte, bool) {
	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		BadRequest(c, "name is required")
		return editor.Template{}, nil, false
	}

	layout, err := cv.ParseLayout([]byte(c.PostForm("layoutJson")))
	if err != nil {
		BadRequest(c, err.Error())
		return editor.Template{}, nil, false
	}
	theme, err := cv.ParseTheme([]byte(c.PostForm("themeJson")))
	if err != nil {
		BadRequest(c, err.Error())
		return editor.Template{}, nil, false
	}

	preview, err := h.readPreview(c)
	switch {
	case errors.Is(err, errUploadTooLarge):
		TooLarge(c, err.Error())
		return editor.Template{}, nil, false
	case err != nil:
		BadRequest(c, err.Error())
		return editor.Template{}, nil, false
	}

	return editor.Template{Name: name, Layout: layout, Theme: theme}, preview, true
}

// readPreview 读取可选的 preview 文件，仅接受 PNG。
func (h *TemplateHandler) readPreview(c *gin.Context) ([]byte, error) {
	fileHeader, err := c.FormFile("preview")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("invalid preview: %w", err)
	}
	return readLimitedFile(fileHeader, h.maxPreviewBytes, "image/png")
}

func readLimitedFile(fileHeader *multipart.FileHeader, limit int64, allowed ...string) ([]byte, error) {
	if limit > 0 && fileHeader.Size > limit {
		return nil, errUploadTooLarge
	}
	f, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	detected := http.DetectContentType(data)
	for _, ct := range allowed {
		if detected == ct {
			return data, nil
		}
	}
	return nil, fmt.Errorf("unsupported file type %q", detected)
}

func toDetailResponse(tpl editor.Template) (templateDetailResponse, error) {
	layoutJSON, err := jsonText(tpl.Layout)
	if err != nil {
		return templateDetailResponse{}, err
	}
	themeJSON, err := jsonText(tpl.Theme)
	if err != nil {
		return templateDetailResponse{}, err
	}
	return templateDetailResponse{
		ID:         tpl.ID,
		Name:       tpl.Name,
		LayoutJSON: layoutJSON,
		ThemeJSON:  themeJSON,
		PreviewURL: tpl.PreviewURL,
	}, nil
}
