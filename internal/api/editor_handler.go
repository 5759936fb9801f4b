package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cvBuilder/internal/api/middleware"
	"cvBuilder/internal/cv"
	"cvBuilder/internal/draft"
	"cvBuilder/internal/editor"
	"cvBuilder/internal/metrics"
	"cvBuilder/internal/render"
)

// EditorHandler 暴露服务端编辑会话：修改即镜像草稿，保存后清理草稿。
type EditorHandler struct {
	sessions        *editor.Registry
	persister       editor.Persister
	signer          URLSigner
	maxPreviewBytes int64
}

// NewEditorHandler 返回 EditorHandler。
func NewEditorHandler(sessions *editor.Registry, persister editor.Persister, signer URLSigner, maxPreviewBytes int64) *EditorHandler {
	return &EditorHandler{
		sessions:        sessions,
		persister:       persister,
		signer:          signer,
		maxPreviewBytes: maxPreviewBytes,
	}
}

type editorStateResponse struct {
	Key        string            `json:"key"`
	TemplateID string            `json:"templateId,omitempty"`
	Source     editor.Source     `json:"source"`
	Name       string            `json:"name"`
	Layout     cv.Layout         `json:"layout"`
	Theme      cv.Theme          `json:"theme"`
	PreviewURL string            `json:"previewUrl,omitempty"`
	Issues     []cv.Issue        `json:"issues,omitempty"`
	Labels     map[string]string `json:"labels"`
}

type renameRequest struct {
	Name string `json:"name"`
}

// session 取出路径中的会话；":id" 为 "new" 表示尚未保存的新模板。
func (h *EditorHandler) session(c *gin.Context) (*editor.Session, bool) {
	s, err := h.sessions.Get(c.Request.Context(), editorID(c))
	if err != nil {
		respondError(c, err, "failed to open editor session")
		return nil, false
	}
	return s, true
}

func editorID(c *gin.Context) string {
	id := c.Param("id")
	if draft.Key(id) == draft.NewKey {
		return ""
	}
	return id
}

// GET /v1/editor/:id
func (h *EditorHandler) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, stateOf(s, nil))
}

// PATCH /v1/editor/:id/theme
// 请求体为扁平的部分主题，值按字段类型强制转换，不会因取值非法而失败。
func (h *EditorHandler) PatchTheme(c *gin.Context) {
	var partial map[string]any
	if err := c.ShouldBindJSON(&partial); err != nil {
		BadRequest(c, err.Error())
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.SetTheme(c.Request.Context(), partial)
	c.JSON(http.StatusOK, stateOf(s, nil))
}

// PUT /v1/editor/:id/name
func (h *EditorHandler) Rename(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.SetTemplateName(c.Request.Context(), req.Name)
	c.JSON(http.StatusOK, stateOf(s, nil))
}

// PUT /v1/editor/:id/layout
// 布局严格解析；重复 ID 与重复内容块只作为 issues 返回。
func (h *EditorHandler) ReplaceLayout(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		BadRequest(c, "failed to read body")
		return
	}
	layout, err := cv.ParseLayout(body)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	issues := s.MutateLayout(c.Request.Context(), layout)
	for _, issue := range issues {
		metrics.ObserveLayoutIssue(string(issue.Code))
	}
	c.JSON(http.StatusOK, stateOf(s, issues))
}

// POST /v1/editor/:id/save
// 可选 multipart 字段 preview 为前端截好的 PNG；缺省时由后台任务生成缩略图。
func (h *EditorHandler) Save(c *gin.Context) {
	var preview []byte
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fileHeader, err := c.FormFile("preview")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			BadRequest(c, fmt.Sprintf("invalid preview: %v", err))
			return
		default:
			preview, err = readLimitedFile(fileHeader, h.maxPreviewBytes, "image/png")
			if errors.Is(err, errUploadTooLarge) {
				TooLarge(c, err.Error())
				return
			}
			if err != nil {
				BadRequest(c, err.Error())
				return
			}
		}
	}

	s, ok := h.session(c)
	if !ok {
		return
	}
	id, err := h.sessions.Save(c.Request.Context(), s, h.persister, preview)
	if err != nil {
		respondError(c, err, "failed to save template")
		return
	}
	middleware.LoggerFromContext(c).Info("editor session saved", slog.String("template_id", id))
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// DELETE /v1/editor/:id/draft
// 删除草稿并丢弃内存状态，下次打开时重新从服务端加载。
func (h *EditorHandler) DiscardDraft(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Discard(c.Request.Context()); err != nil {
		respondError(c, err, "failed to discard draft")
		return
	}
	h.sessions.Forget(editorID(c))
	c.Status(http.StatusNoContent)
}

// POST /v1/editor/:id/preview[?format=json]
// 请求体为内容映射，默认返回 HTML 页面。
func (h *EditorHandler) Preview(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		BadRequest(c, "failed to read body")
		return
	}
	content, err := cv.ParseContent(orEmptyObject(body))
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}

	tree := s.Preview(content, render.WithAssetResolver(assetResolver(c, h.signer)))
	writeTree(c, tree, s.Snapshot().Name, c.DefaultQuery("format", "html"))
}

func stateOf(s *editor.Session, issues []cv.Issue) editorStateResponse {
	record := s.Snapshot()
	lang := record.Theme.Resolve().Language
	labels := make(map[string]string, len(cv.AllSections()))
	for _, section := range cv.AllSections() {
		labels[string(section)] = cv.LabelFor(section, lang)
	}
	return editorStateResponse{
		Key:        s.Key(),
		TemplateID: s.TemplateID(),
		Source:     s.Source(),
		Name:       record.Name,
		Layout:     record.Layout,
		Theme:      record.Theme,
		PreviewURL: s.PreviewURL(),
		Issues:     issues,
		Labels:     labels,
	}
}
