package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cvBuilder/internal/api/middleware"
	"cvBuilder/internal/cv"
	"cvBuilder/internal/metrics"
	"cvBuilder/internal/render"
	"cvBuilder/internal/storage"
)

// URLSigner 为对象键签发可访问的链接。
type URLSigner interface {
	PublicURL(ctx context.Context, objectKey string) (string, error)
}

// RenderHandler 将布局/主题/内容渲染为可视树或 HTML 页面。
type RenderHandler struct {
	signer URLSigner
}

// NewRenderHandler 返回 RenderHandler；signer 为 nil 时头像引用原样输出。
func NewRenderHandler(signer URLSigner) *RenderHandler {
	return &RenderHandler{signer: signer}
}

type renderRequest struct {
	Layout  json.RawMessage `json:"layout"`
	Theme   json.RawMessage `json:"theme"`
	Content json.RawMessage `json:"content"`
}

// POST /v1/render[?format=html]
func (h *RenderHandler) Render(c *gin.Context) {
	var req renderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	layout, err := cv.ParseLayout(orEmptyObject(req.Layout))
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	theme, err := cv.ParseTheme(orEmptyObject(req.Theme))
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	content, err := cv.ParseContent(orEmptyObject(req.Content))
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	tree := render.Render(layout, theme, content, render.WithAssetResolver(assetResolver(c, h.signer)))
	writeTree(c, tree, "", c.DefaultQuery("format", "json"))
}

// writeTree 按 format 输出 JSON 可视树或完整 HTML 页面。
func writeTree(c *gin.Context, tree render.Tree, title, format string) {
	if strings.EqualFold(format, "html") {
		var buf bytes.Buffer
		if err := render.WriteHTML(&buf, tree, render.PageOptions{Title: title}); err != nil {
			middleware.LoggerFromContext(c).Error("write html failed", slog.Any("error", err))
			Internal(c, "failed to render html")
			return
		}
		metrics.ObserveRender("html")
		c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
		return
	}
	metrics.ObserveRender("json")
	c.JSON(http.StatusOK, tree)
}

// assetResolver 把本服务管理的头像对象键换成签名链接，其他引用原样返回。
func assetResolver(c *gin.Context, signer URLSigner) render.AssetResolver {
	if signer == nil {
		return nil
	}
	ctx := c.Request.Context()
	log := middleware.LoggerFromContext(c)
	return func(ref string) string {
		if !storage.IsAssetKey(ref) {
			return ref
		}
		url, err := signer.PublicURL(ctx, ref)
		if err != nil {
			log.Warn("sign avatar url failed", slog.String("object_key", ref), slog.Any("error", err))
			return ""
		}
		return url
	}
}

func orEmptyObject(raw json.RawMessage) []byte {
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return []byte("{}")
	}
	return raw
}

func jsonText(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
