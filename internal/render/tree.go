package render

import (
	"html/template"

	"cvBuilder/internal/cv"
)

// Weight 表示字重。
type Weight string

const (
	WeightNormal   Weight = "normal"
	WeightSemiBold Weight = "600"
	WeightBold     Weight = "bold"
)

// BlockKind 区分图片块与文本块。
type BlockKind string

const (
	BlockImage BlockKind = "image"
	BlockText  BlockKind = "text"
)

// Tree 是布局×主题×内容投影出的可视树。
type Tree struct {
	Language string    `json:"language"`
	Rows     []RowNode `json:"rows"`
}

// RowNode 是一行网格，Tracks 为该行的网格列数。
type RowNode struct {
	Key     string       `json:"key"`
	Tracks  int          `json:"tracks"`
	Columns []ColumnNode `json:"columns"`
}

// ColumnNode 占据 Span 条网格轨道，Start 为起始轨道（从 1 开始）。
type ColumnNode struct {
	Key    string  `json:"key"`
	Start  int     `json:"start"`
	Span   int     `json:"span"`
	Blocks []Block `json:"blocks"`
}

// Block 是一个内容块的渲染结果。
type Block struct {
	Section cv.SectionID `json:"section"`
	Kind    BlockKind    `json:"kind"`
	// Label 总是填充；Heading 为 nil 时它仅作为无障碍标签使用。
	Label   string   `json:"label"`
	Image   *Image   `json:"image,omitempty"`
	Heading *Heading `json:"heading,omitempty"`
	Body    *Body    `json:"body,omitempty"`
}

// Image 是头像块。
type Image struct {
	Src          string  `json:"src"`
	Size         float64 `json:"size"`
	BorderRadius float64 `json:"border_radius"`
}

// TextStyle 是文本样式，Align 为空表示继承。
type TextStyle struct {
	Color  string   `json:"color"`
	Size   float64  `json:"size"`
	Align  cv.Align `json:"align,omitempty"`
	Weight Weight   `json:"weight"`
}

// Heading 是内容块标题。
type Heading struct {
	Text  string    `json:"text"`
	Style TextStyle `json:"style"`
}

// Body 是内容块正文，Text 为原文，HTML 为轻量格式化并净化后的标记。
type Body struct {
	Text  string        `json:"text"`
	HTML  template.HTML `json:"html"`
	Style TextStyle     `json:"style"`
}
