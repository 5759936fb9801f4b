// Package templates 以 GORM 持久化简历模板，并负责缩略图对象的上传与清理。
package templates

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cvBuilder/internal/cv"
	"cvBuilder/internal/database"
	"cvBuilder/internal/editor"
	"cvBuilder/internal/storage"
)

var (
	ErrNotFound  = errors.New("template not found")
	ErrInvalidID = errors.New("invalid template id")
)

// ObjectStore 是仓库用到的对象存储能力。
type ObjectStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	PublicURL(ctx context.Context, objectKey string) (string, error)
	DeletePrefix(ctx context.Context, prefix string) error
}

// SnapshotQueue 在保存未附带缩略图时投递后台截图任务。
type SnapshotQueue interface {
	EnqueueSnapshot(ctx context.Context, templateID uint) error
}

// Repository 实现 editor.Loader 与 editor.Persister。
type Repository struct {
	db     *gorm.DB
	store  ObjectStore
	queue  SnapshotQueue
	logger *slog.Logger
}

// Option 配置 Repository。
type Option func(*Repository)

// WithSnapshotQueue 启用后台缩略图生成。
func WithSnapshotQueue(q SnapshotQueue) Option {
	return func(r *Repository) { r.queue = q }
}

// WithLogger 指定日志。
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRepository 返回模板仓库，store 为 nil 时不处理缩略图。
func NewRepository(db *gorm.DB, store ObjectStore, opts ...Option) *Repository {
	r := &Repository{db: db, store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Summary 是列表项。
type Summary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	PreviewURL string    `json:"previewUrl,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ParseID 将路径参数解析为主键。
func ParseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, raw)
	}
	return uint(id), nil
}

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// List 按更新时间倒序列出模板。
func (r *Repository) List(ctx context.Context) ([]Summary, error) {
	var models []database.Template
	if err := r.db.WithContext(ctx).
		Select("id", "name", "preview_object_key", "updated_at").
		Order("updated_at DESC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	items := make([]Summary, 0, len(models))
	for _, m := range models {
		items = append(items, Summary{
			ID:         formatID(m.ID),
			Name:       m.Name,
			PreviewURL: r.previewURL(ctx, m.PreviewObjectKey),
			UpdatedAt:  m.UpdatedAt,
		})
	}
	return items, nil
}

// Get 读取模板记录。
func (r *Repository) Get(ctx context.Context, id uint) (database.Template, error) {
	var model database.Template
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.Template{}, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return database.Template{}, fmt.Errorf("query template %d: %w", id, err)
	}
	return model, nil
}

// FetchTemplate 读取并解析模板文档。
func (r *Repository) FetchTemplate(ctx context.Context, id string) (editor.Template, error) {
	pk, err := ParseID(id)
	if err != nil {
		return editor.Template{}, err
	}
	model, err := r.Get(ctx, pk)
	if err != nil {
		return editor.Template{}, err
	}
	return r.toTemplate(ctx, model)
}

// Decode 将数据库记录解析为模板文档。
func Decode(model database.Template) (editor.Template, error) {
	layout, err := cv.ParseLayout(model.LayoutJSON)
	if err != nil {
		return editor.Template{}, fmt.Errorf("template %d: %w", model.ID, err)
	}
	theme, err := cv.ParseTheme(model.ThemeJSON)
	if err != nil {
		return editor.Template{}, fmt.Errorf("template %d: %w", model.ID, err)
	}
	return editor.Template{
		ID:     formatID(model.ID),
		Name:   model.Name,
		Layout: layout,
		Theme:  theme,
	}, nil
}

func (r *Repository) toTemplate(ctx context.Context, model database.Template) (editor.Template, error) {
	tpl, err := Decode(model)
	if err != nil {
		return editor.Template{}, err
	}
	tpl.PreviewURL = r.previewURL(ctx, model.PreviewObjectKey)
	return tpl, nil
}

// CreateTemplate 新建模板，返回新 ID。缩略图上传失败时整条记录回滚。
func (r *Repository) CreateTemplate(ctx context.Context, tpl editor.Template, preview []byte) (string, error) {
	layoutJSON, themeJSON, err := encodeDocuments(tpl)
	if err != nil {
		return "", err
	}
	model := database.Template{
		Name:       tpl.Name,
		LayoutJSON: layoutJSON,
		ThemeJSON:  themeJSON,
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return fmt.Errorf("create template: %w", err)
		}
		return r.storePreview(ctx, tx, model.ID, preview)
	})
	if err != nil {
		return "", err
	}

	r.scheduleSnapshot(ctx, model.ID, preview)
	return formatID(model.ID), nil
}

// UpdateTemplate 覆盖模板的名称、布局与主题；缩略图上传失败时文档保持原样。
func (r *Repository) UpdateTemplate(ctx context.Context, id string, tpl editor.Template, preview []byte) (string, error) {
	pk, err := ParseID(id)
	if err != nil {
		return "", err
	}
	layoutJSON, themeJSON, err := encodeDocuments(tpl)
	if err != nil {
		return "", err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&database.Template{}).
			Where("id = ?", pk).
			Updates(map[string]any{
				"name":        tpl.Name,
				"layout_json": layoutJSON,
				"theme_json":  themeJSON,
			})
		if result.Error != nil {
			return fmt.Errorf("update template %d: %w", pk, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %d", ErrNotFound, pk)
		}
		return r.storePreview(ctx, tx, pk, preview)
	})
	if err != nil {
		return "", err
	}

	r.scheduleSnapshot(ctx, pk, preview)
	return formatID(pk), nil
}

// DeleteTemplate 删除模板及其缩略图目录。
func (r *Repository) DeleteTemplate(ctx context.Context, id string) error {
	pk, err := ParseID(id)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Delete(&database.Template{}, pk)
	if result.Error != nil {
		return fmt.Errorf("delete template %d: %w", pk, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, pk)
	}

	if r.store != nil {
		if err := r.store.DeletePrefix(ctx, storage.TemplatePrefix(formatID(pk))); err != nil {
			r.logger.Warn("delete template preview objects failed",
				slog.Uint64("template_id", uint64(pk)),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

// SetPreviewKey 记录模板缩略图的对象键。
func (r *Repository) SetPreviewKey(ctx context.Context, id uint, objectKey string) error {
	return setPreviewKey(r.db.WithContext(ctx), id, objectKey)
}

func setPreviewKey(db *gorm.DB, id uint, objectKey string) error {
	result := db.Model(&database.Template{}).
		Where("id = ?", id).
		Update("preview_object_key", objectKey)
	if result.Error != nil {
		return fmt.Errorf("update template %d preview: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

// storePreview 在事务内上传随请求提交的缩略图并记录对象键。
func (r *Repository) storePreview(ctx context.Context, tx *gorm.DB, id uint, preview []byte) error {
	if len(preview) == 0 || r.store == nil {
		return nil
	}
	objectKey := storage.TemplatePreviewKey(formatID(id))
	if _, err := r.store.UploadFile(ctx, objectKey, bytes.NewReader(preview), int64(len(preview)), "image/png"); err != nil {
		return fmt.Errorf("upload preview for template %d: %w", id, err)
	}
	return setPreviewKey(tx, id, objectKey)
}

// scheduleSnapshot 在未提交缩略图时投递后台截图任务，需在事务提交后调用。
func (r *Repository) scheduleSnapshot(ctx context.Context, id uint, preview []byte) {
	if len(preview) > 0 || r.queue == nil {
		return
	}
	if err := r.queue.EnqueueSnapshot(ctx, id); err != nil {
		r.logger.Warn("enqueue template snapshot failed",
			slog.Uint64("template_id", uint64(id)),
			slog.Any("error", err),
		)
	}
}

func (r *Repository) previewURL(ctx context.Context, objectKey string) string {
	if objectKey == "" || r.store == nil {
		return ""
	}
	url, err := r.store.PublicURL(ctx, objectKey)
	if err != nil {
		r.logger.Warn("sign preview url failed", slog.String("object_key", objectKey), slog.Any("error", err))
		return ""
	}
	return url
}

func encodeDocuments(tpl editor.Template) (datatypes.JSON, datatypes.JSON, error) {
	layoutJSON, err := json.Marshal(tpl.Layout)
	if err != nil {
		return nil, nil, fmt.Errorf("encode layout: %w", err)
	}
	themeJSON, err := json.Marshal(tpl.Theme)
	if err != nil {
		return nil, nil, fmt.Errorf("encode theme: %w", err)
	}
	return datatypes.JSON(layoutJSON), datatypes.JSON(themeJSON), nil
}
