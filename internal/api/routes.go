package api

import (
	"github.com/gin-gonic/gin"

	"cvBuilder/internal/editor"
)

// RedisClient 是路由层用到的 Redis 能力：限流计数与通知订阅。
type RedisClient interface {
	redisRateCounter
	Subscriber
}

// Dependencies 汇总注册路由所需的组件。
type Dependencies struct {
	Templates TemplateRepository
	Sessions  *editor.Registry
	Storage   AssetStore
	Scanner   VirusScanner
	Redis     RedisClient

	MaxPreviewBytes      int64
	MaxAvatarBytes       int64
	UploadLimitPerMinute int
	AllowedOrigins       []string
}

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	templateHandler := NewTemplateHandler(deps.Templates, deps.MaxPreviewBytes, deps.Sessions.Remove)
	renderHandler := NewRenderHandler(deps.Storage)
	editorHandler := NewEditorHandler(deps.Sessions, deps.Templates, deps.Storage, deps.MaxPreviewBytes)
	assetHandler := NewAssetHandler(deps.Storage, deps.Scanner, deps.Redis, deps.MaxAvatarBytes, deps.UploadLimitPerMinute)
	wsHandler := NewWsHandler(deps.Redis, deps.AllowedOrigins)

	v1 := router.Group("/v1")
	{
		v1.GET("/ws/templates/:id", wsHandler.HandleConnection)
		v1.POST("/render", renderHandler.Render)

		templateGroup := v1.Group("/templates")
		{
			templateGroup.GET("", templateHandler.ListTemplates)
			templateGroup.POST("", templateHandler.CreateTemplate)
			templateGroup.GET("/:id", templateHandler.GetTemplate)
			templateGroup.PUT("/:id", templateHandler.UpdateTemplate)
			templateGroup.DELETE("/:id", templateHandler.DeleteTemplate)
		}

		editorGroup := v1.Group("/editor/:id")
		{
			editorGroup.GET("", editorHandler.GetSession)
			editorGroup.PATCH("/theme", editorHandler.PatchTheme)
			editorGroup.PUT("/name", editorHandler.Rename)
			editorGroup.PUT("/layout", editorHandler.ReplaceLayout)
			editorGroup.POST("/save", editorHandler.Save)
			editorGroup.DELETE("/draft", editorHandler.DiscardDraft)
			editorGroup.POST("/preview", editorHandler.Preview)
		}

		assetGroup := v1.Group("/assets")
		{
			assetGroup.POST("/avatar", assetHandler.UploadAvatar)
			assetGroup.GET("/url", assetHandler.GetAssetURL)
		}
	}
}
