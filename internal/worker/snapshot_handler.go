package worker

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"

	"cvBuilder/internal/cv"
	"cvBuilder/internal/database"
	"cvBuilder/internal/errcode"
	"cvBuilder/internal/metrics"
	"cvBuilder/internal/render"
	"cvBuilder/internal/storage"
	"cvBuilder/internal/tasks"
	"cvBuilder/internal/templates"
)

// TemplateStore 读取模板并记录缩略图位置。
type TemplateStore interface {
	Get(ctx context.Context, id uint) (database.Template, error)
	SetPreviewKey(ctx context.Context, id uint, objectKey string) error
}

// ObjectStore 是缩略图任务用到的对象存储能力。
type ObjectStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	ReadObject(ctx context.Context, objectKey string) ([]byte, string, error)
}

// Capturer 将 HTML 页面截成 PNG。
type Capturer interface {
	Capture(ctx context.Context, html string) ([]byte, error)
}

// SnapshotHandler 负责消费模板缩略图任务。
type SnapshotHandler struct {
	templates       TemplateStore
	storage         ObjectStore
	capturer        Capturer
	publisher       Publisher
	logger          *slog.Logger
	sampleAvatarKey string
}

// NewSnapshotHandler 创建任务处理器。sampleAvatarKey 为空时缩略图不带头像。
func NewSnapshotHandler(
	templateStore TemplateStore,
	storageClient ObjectStore,
	capturer Capturer,
	publisher Publisher,
	logger *slog.Logger,
	sampleAvatarKey string,
) *SnapshotHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotHandler{
		templates:       templateStore,
		storage:         storageClient,
		capturer:        capturer,
		publisher:       publisher,
		logger:          logger,
		sampleAvatarKey: strings.TrimSpace(sampleAvatarKey),
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *SnapshotHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	payload, err := tasks.ParseTemplateSnapshotPayload(t)
	if err != nil {
		log.Error("unmarshal snapshot payload failed", slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("template_id", uint64(payload.TemplateID)),
	)
	log.Info("starting template snapshot task")

	model, err := h.templates.Get(ctx, payload.TemplateID)
	if err != nil {
		if errors.Is(err, templates.ErrNotFound) {
			log.Warn("template not found, skipping task")
			return nil
		}
		log.Error("query template failed", slog.Any("error", err))
		return err
	}

	defer func() {
		if retErr == nil || !(isFinalAsynqAttempt(ctx) || errors.Is(retErr, asynq.SkipRetry)) {
			return
		}
		notify := TemplateSnapshotNotifyMessage{
			Status:        StatusError,
			TemplateID:    model.ID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.Of(retErr),
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := publishNotify(ctx, h.publisher, notify); err != nil {
			log.Error("publish snapshot error notification failed", slog.Any("error", err))
		}
	}()

	tpl, err := templates.Decode(model)
	if err != nil {
		log.Error("decode template failed", slog.Any("error", err))
		return fmt.Errorf("%w: %w", asynq.SkipRetry, errcode.Wrap(errcode.InvalidTemplate, err))
	}

	content := cv.DefaultContent()
	missingAvatar := false
	if h.sampleAvatarKey != "" {
		dataURI, err := h.inlineAvatar(ctx, h.sampleAvatarKey)
		switch {
		case err == nil:
			content[cv.SectionAvatar] = dataURI
		case storage.IsNoSuchKey(err):
			missingAvatar = true
			log.Warn("sample avatar missing, continue without it", slog.String("object_key", h.sampleAvatarKey))
		default:
			log.Error("load sample avatar failed", slog.Any("error", err))
			return err
		}
	}

	tree := render.Render(tpl.Layout, tpl.Theme, content)
	var page bytes.Buffer
	if err := render.WriteHTML(&page, tree, render.PageOptions{Title: tpl.Name}); err != nil {
		log.Error("write template html failed", slog.Any("error", err))
		return err
	}

	start := time.Now()
	png, err := h.capturer.Capture(ctx, page.String())
	if err != nil {
		log.Error("capture template snapshot failed", slog.Any("error", err))
		return errcode.Wrap(errcode.CaptureFailed, err)
	}
	metrics.ObserveSnapshot(time.Since(start))

	objectKey := storage.TemplatePreviewKey(tpl.ID)
	if _, err := h.storage.UploadFile(ctx, objectKey, bytes.NewReader(png), int64(len(png)), "image/png"); err != nil {
		log.Error("upload template snapshot failed", slog.Any("error", err))
		return err
	}
	if err := h.templates.SetPreviewKey(ctx, model.ID, objectKey); err != nil {
		if errors.Is(err, templates.ErrNotFound) {
			log.Warn("template deleted during snapshot, skipping update")
			return nil
		}
		log.Error("update template preview failed", slog.Any("error", err))
		return err
	}

	notify := TemplateSnapshotNotifyMessage{
		Status:        StatusCompleted,
		TemplateID:    model.ID,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
		PreviewKey:    objectKey,
	}
	if missingAvatar {
		notify.ErrorCode = errcode.ResourceMissing
		notify.ErrorMessage = "示例头像缺失，缩略图未包含头像"
	}
	if err := publishNotify(ctx, h.publisher, notify); err != nil {
		log.Error("publish redis notification failed", slog.Any("error", err))
		return err
	}

	log.Info("template snapshot task completed")
	return nil
}

// inlineAvatar 读取头像对象并转换为 data URI，页面因此无需访问对象存储。
func (h *SnapshotHandler) inlineAvatar(ctx context.Context, objectKey string) (string, error) {
	data, contentType, err := h.storage.ReadObject(ctx, objectKey)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(contentType, "image/") {
		if guessed, ok := storage.ImageContentType(objectKey); ok {
			contentType = guessed
		} else {
			contentType = "image/png"
		}
	}
	return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data)), nil
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
