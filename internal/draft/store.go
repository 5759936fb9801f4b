// Package draft 保存编辑中尚未提交的模板快照，用于崩溃/刷新后的恢复。
package draft

import (
	"context"
	"strings"
	"time"

	"cvBuilder/internal/cv"
)

// NewKey 是新建（尚未持久化）模板使用的草稿键。
const NewKey = "new"

// Record 是一次编辑中的模板记录：名称、布局与主题。
type Record struct {
	Name    string    `json:"name"`
	Layout  cv.Layout `json:"layout"`
	Theme   cv.Theme  `json:"theme"`
	SavedAt time.Time `json:"saved_at"`
}

// Store 是按模板标识划分的键值持久化能力。
// 每个键只有一个写者，后写覆盖先写。
type Store interface {
	Load(ctx context.Context, key string) (Record, bool, error)
	Save(ctx context.Context, key string, record Record) error
	Delete(ctx context.Context, key string) error
}

// Key 规范化模板标识：空串与 "new" 都映射到 NewKey。
func Key(templateID string) string {
	id := strings.TrimSpace(templateID)
	if id == "" || strings.EqualFold(id, NewKey) {
		return NewKey
	}
	return id
}
