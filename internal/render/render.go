package render

import (
	"fmt"
	"strings"

	"cvBuilder/internal/cv"
)

// AssetResolver 将头像的存储 key 转换为可访问的 URL。
type AssetResolver func(ref string) string

type options struct {
	resolveAsset AssetResolver
}

// Option 调整渲染行为。
type Option func(*options)

// WithAssetResolver 指定头像引用的解析方式；nil 表示原样输出。
func WithAssetResolver(resolver AssetResolver) Option {
	return func(o *options) {
		o.resolveAsset = resolver
	}
}

// Render 将布局、主题与内容投影为可视树。
// 纯函数：不做 I/O，不修改入参，相同输入总是得到相同输出。
func Render(layout cv.Layout, theme cv.Theme, content cv.Content, opts ...Option) Tree {
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	resolved := theme.Resolve()
	tree := Tree{
		Language: resolved.Language,
		Rows:     make([]RowNode, 0, len(layout.Rows)),
	}

	for ri, row := range layout.Rows {
		node := RowNode{
			Key:     keyOr(row.ID, fmt.Sprintf("row-%d", ri)),
			Tracks:  row.Tracks(),
			Columns: make([]ColumnNode, 0, len(row.Columns)),
		}

		start := 1
		for ci, col := range row.Columns {
			span := col.Span()
			colNode := ColumnNode{
				Key:    keyOr(col.ID, fmt.Sprintf("%s-col-%d", node.Key, ci)),
				Start:  start,
				Span:   span,
				Blocks: make([]Block, 0, len(col.Sections)),
			}
			start += span

			for _, section := range col.Sections {
				colNode.Blocks = append(colNode.Blocks, renderSection(section, resolved, content, o))
			}
			node.Columns = append(node.Columns, colNode)
		}
		tree.Rows = append(tree.Rows, node)
	}
	return tree
}

func renderSection(section cv.SectionID, theme cv.ResolvedTheme, content cv.Content, o options) Block {
	label := cv.LabelFor(section, theme.Language)
	raw := content.Get(section)

	if section == cv.SectionAvatar {
		src := strings.TrimSpace(raw)
		if src != "" && o.resolveAsset != nil {
			src = o.resolveAsset(src)
		}
		return Block{
			Section: section,
			Kind:    BlockImage,
			Label:   label,
			Image: &Image{
				Src:          src,
				Size:         theme.SizeAvatar,
				BorderRadius: theme.BorderRadiusAvatar,
			},
		}
	}

	block := Block{
		Section: section,
		Kind:    BlockText,
		Label:   label,
		Body: &Body{
			Text:  raw,
			HTML:  formatText(raw),
			Style: bodyStyle(section, theme),
		},
	}
	if heading, ok := headingStyle(section, theme); ok {
		block.Heading = &Heading{Text: label, Style: heading}
	}
	return block
}

// bodyStyle 解析正文样式：name/position 使用专属字段，其余使用基础样式。
func bodyStyle(section cv.SectionID, theme cv.ResolvedTheme) TextStyle {
	switch section {
	case cv.SectionName:
		return TextStyle{
			Color:  theme.ColorName,
			Size:   theme.SizeName,
			Align:  theme.AlignTextName,
			Weight: WeightBold,
		}
	case cv.SectionPosition:
		return TextStyle{
			Color:  theme.ColorPosition,
			Size:   theme.SizePosition,
			Align:  theme.AlignTextPosition,
			Weight: WeightSemiBold,
		}
	default:
		return TextStyle{
			Color:  theme.Color,
			Size:   theme.Size,
			Weight: WeightNormal,
		}
	}
}

// headingStyle 返回标题样式；name/position 不显示标题。
func headingStyle(section cv.SectionID, theme cv.ResolvedTheme) (TextStyle, bool) {
	switch section {
	case cv.SectionName, cv.SectionPosition:
		return TextStyle{}, false
	}
	return TextStyle{
		Color:  theme.ColorTitle,
		Size:   theme.SizeTitle,
		Align:  theme.AlignTextTitle,
		Weight: WeightBold,
	}, true
}

func keyOr(key, fallback string) string {
	if strings.TrimSpace(key) == "" {
		return fallback
	}
	return key
}
