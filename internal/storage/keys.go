package storage

import (
	"path"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	avatarPrefix    = "avatars/"
	thumbnailPrefix = "thumbnails/template/"
	maxObjectKeyLen = 200
)

// TemplatePrefix 返回模板缩略图目录。
func TemplatePrefix(templateID string) string {
	return thumbnailPrefix + templateID + "/"
}

// TemplatePreviewKey 返回模板缩略图对象键。
func TemplatePreviewKey(templateID string) string {
	return TemplatePrefix(templateID) + "preview.png"
}

// NewAvatarKey 为新上传的头像生成对象键，ext 形如 ".png"。
func NewAvatarKey(ext string) string {
	return avatarPrefix + uuid.NewString() + strings.ToLower(ext)
}

var imageExts = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

// ImageContentType 根据扩展名推断图片类型，非图片返回 false。
func ImageContentType(key string) (string, bool) {
	ct, ok := imageExts[strings.ToLower(path.Ext(strings.TrimSpace(key)))]
	return ct, ok
}

// IsAssetKey 判断对象键是否指向本服务管理的图片（头像或缩略图），拒绝路径穿越。
func IsAssetKey(key string) bool {
	if key == "" || !utf8.ValidString(key) || len(key) > maxObjectKeyLen {
		return false
	}
	if !strings.HasPrefix(key, avatarPrefix) && !strings.HasPrefix(key, thumbnailPrefix) {
		return false
	}
	if strings.Contains(key, "..") || strings.Contains(key, "\\") || strings.Contains(key, "//") {
		return false
	}
	_, ok := ImageContentType(key)
	return ok
}
