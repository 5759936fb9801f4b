package storage

import (
	"errors"
	"strings"

	"github.com/minio/minio-go/v7"
)

// errorKind 是按 S3 错误码或错误文本归类的对象存储错误。
type errorKind struct {
	codes   []string
	phrases []string
}

var (
	missingKey = errorKind{
		codes:   []string{"nosuchkey", "notfound"},
		phrases: []string{"nosuchkey", "specified key does not exist", "not found"},
	}
	missingBucket = errorKind{
		codes:   []string{"nosuchbucket"},
		phrases: []string{"nosuchbucket", "specified bucket does not exist"},
	}
)

func (k errorKind) match(err error) bool {
	if err == nil {
		return false
	}
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		code := strings.ToLower(strings.TrimSpace(resp.Code))
		for _, c := range k.codes {
			if code == c {
				return true
			}
		}
	}
	// 网关或代理可能只留下错误文本。
	lower := strings.ToLower(err.Error())
	for _, p := range k.phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// IsNoSuchKey 判断对象是否不存在。
func IsNoSuchKey(err error) bool {
	return missingKey.match(err)
}

// IsNoSuchBucket 判断 Bucket 是否不存在。
func IsNoSuchBucket(err error) bool {
	return missingBucket.match(err)
}
