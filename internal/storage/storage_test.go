package storage

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
)

func TestIsNoSuchKey(t *testing.T) {
	wrapped := fmt.Errorf("get object: %w", minio.ErrorResponse{Code: "NoSuchKey"})
	if !IsNoSuchKey(wrapped) {
		t.Fatal("wrapped NoSuchKey should be detected")
	}
	if IsNoSuchKey(nil) || IsNoSuchKey(errors.New("connection refused")) {
		t.Fatal("unrelated errors must not be classified as missing keys")
	}
	if !IsNoSuchBucket(minio.ErrorResponse{Code: "NoSuchBucket"}) {
		t.Fatal("NoSuchBucket should be detected")
	}
}

func TestTemplateKeys(t *testing.T) {
	if got := TemplatePreviewKey("42"); got != "thumbnails/template/42/preview.png" {
		t.Fatalf("TemplatePreviewKey = %q", got)
	}
	if !strings.HasPrefix(TemplatePreviewKey("42"), TemplatePrefix("42")) {
		t.Fatal("preview key must live under the template prefix")
	}
}

func TestIsAssetKey(t *testing.T) {
	avatar := NewAvatarKey(".PNG")
	cases := []struct {
		key  string
		want bool
	}{
		{avatar, true},
		{"thumbnails/template/7/preview.png", true},
		{"avatars/../secrets.png", false},
		{"avatars//x.png", false},
		{"avatars/x.exe", false},
		{"user-assets/1/x.png", false},
		{"", false},
		{"avatars/" + strings.Repeat("a", 300) + ".png", false},
	}
	for _, tc := range cases {
		if got := IsAssetKey(tc.key); got != tc.want {
			t.Errorf("IsAssetKey(%q) = %v, want %v", tc.key, got, tc.want)
		}
	}
}

func TestImageContentType(t *testing.T) {
	if ct, ok := ImageContentType("a/b.JPG"); !ok || ct != "image/jpeg" {
		t.Fatalf("ImageContentType = %q %v", ct, ok)
	}
	if _, ok := ImageContentType("a/b.svg"); ok {
		t.Fatal("svg must not be accepted")
	}
}
