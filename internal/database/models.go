package database

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Template 表示一份已保存的简历模板：布局与主题以 JSONB 原样存储。
type Template struct {
	gorm.Model
	Name             string         `gorm:"size:255"`
	LayoutJSON       datatypes.JSON `gorm:"type:jsonb"`
	ThemeJSON        datatypes.JSON `gorm:"type:jsonb"`
	PreviewObjectKey string         `gorm:"size:512"`
}

// Models 返回需要自动迁移的全部模型。
func Models() []any {
	return []any{&Template{}}
}
