package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"

	"cvBuilder/internal/api/middleware"
	"cvBuilder/internal/storage"
)

// AssetStore 是头像接口用到的对象存储能力。
type AssetStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	PublicURL(ctx context.Context, objectKey string) (string, error)
}

// VirusScanner 扫描上传内容，发现威胁时返回 ErrInfected。
type VirusScanner interface {
	Scan(r io.Reader) error
}

// ErrInfected 表示上传内容被判定为恶意文件。
var ErrInfected = errors.New("malicious file detected")

// ClamdScanner 通过 clamd 的 INSTREAM 命令扫描。
type ClamdScanner struct {
	addr string
}

// NewClamdScanner 返回扫描器；addr 为空时返回 nil，调用方据此跳过扫描。
func NewClamdScanner(addr string) VirusScanner {
	if strings.TrimSpace(addr) == "" {
		return nil
	}
	return &ClamdScanner{addr: addr}
}

func (s *ClamdScanner) Scan(r io.Reader) error {
	abort := make(chan bool)
	defer close(abort)

	results, err := clamd.NewClamd(s.addr).ScanStream(r, abort)
	if err != nil {
		return fmt.Errorf("scan stream: %w", err)
	}
	for result := range results {
		switch result.Status {
		case clamd.RES_OK:
		case clamd.RES_FOUND:
			return fmt.Errorf("%w: %s", ErrInfected, result.Description)
		default:
			return fmt.Errorf("scan failed: %s", result.Description)
		}
	}
	return nil
}

// AssetHandler 负责头像上传与访问链接。
type AssetHandler struct {
	storage  AssetStore
	scanner  VirusScanner
	limiter  *windowLimiter
	maxBytes int64
}

// NewAssetHandler 返回 AssetHandler。scanner 或 rateCounter 为 nil 时跳过对应检查。
func NewAssetHandler(store AssetStore, scanner VirusScanner, rateCounter redisRateCounter, maxBytes int64, perMinute int) *AssetHandler {
	return &AssetHandler{
		storage:  store,
		scanner:  scanner,
		limiter:  newWindowLimiter(rateCounter, "cv:rate:avatar", perMinute, time.Minute),
		maxBytes: maxBytes,
	}
}

var avatarTypes = []string{"image/png", "image/jpeg", "image/webp"}

// POST /v1/assets/avatar
// multipart 字段 file；返回对象键与可访问链接，对象键可直接写入内容映射的 avatar。
func (h *AssetHandler) UploadAvatar(c *gin.Context) {
	log := middleware.LoggerFromContext(c)

	allowed, err := h.limiter.Allow(c.Request.Context(), c.ClientIP())
	if err != nil {
		log.Warn("avatar rate counter unavailable", slog.Any("error", err))
	}
	if !allowed {
		TooManyRequests(c, "too many uploads, try again later")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	data, err := readLimitedFile(fileHeader, h.maxBytes, avatarTypes...)
	if errors.Is(err, errUploadTooLarge) {
		TooLarge(c, err.Error())
		return
	}
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	contentType := http.DetectContentType(data)

	if h.scanner != nil {
		if err := h.scanner.Scan(bytes.NewReader(data)); err != nil {
			if errors.Is(err, ErrInfected) {
				log.Warn("infected avatar rejected", slog.Any("error", err))
				BadRequest(c, ErrInfected.Error())
				return
			}
			log.Error("scan avatar failed", slog.Any("error", err))
			Internal(c, "failed to scan file")
			return
		}
	}

	objectKey := storage.NewAvatarKey(extensionFor(contentType, fileHeader.Filename))
	if _, err := h.storage.UploadFile(c.Request.Context(), objectKey, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		log.Error("upload avatar failed", slog.Any("error", err))
		Internal(c, "failed to upload file")
		return
	}

	url, err := h.storage.PublicURL(c.Request.Context(), objectKey)
	if err != nil {
		log.Warn("sign avatar url failed", slog.Any("error", err))
	}
	c.JSON(http.StatusCreated, gin.H{"objectKey": objectKey, "url": url})
}

// GET /v1/assets/url?key=
func (h *AssetHandler) GetAssetURL(c *gin.Context) {
	objectKey := strings.TrimSpace(c.Query("key"))
	if objectKey == "" {
		BadRequest(c, "missing key")
		return
	}
	if !storage.IsAssetKey(objectKey) {
		Forbidden(c, "access denied")
		return
	}

	signedURL, err := h.storage.PublicURL(c.Request.Context(), objectKey)
	if err != nil {
		middleware.LoggerFromContext(c).Error("generate presigned url", slog.Any("error", err))
		Internal(c, "failed to generate url")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": signedURL})
}

func extensionFor(contentType, filename string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/png":
		return ".png"
	}
	return strings.ToLower(path.Ext(filename))
}
