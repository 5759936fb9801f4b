package render

import (
	"bytes"
	"html/template"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	markupOnce   sync.Once
	markdown     goldmark.Markdown
	markupPolicy *bluemonday.Policy
)

func markupEngine() (goldmark.Markdown, *bluemonday.Policy) {
	markupOnce.Do(func() {
		markdown = goldmark.New(
			goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		)

		policy := bluemonday.UGCPolicy()
		policy.RequireNoFollowOnLinks(true)
		policy.AddTargetBlankToFullyQualifiedLinks(true)
		markupPolicy = policy
	})
	return markdown, markupPolicy
}

// formatText 把正文按 Markdown 轻量格式化，并用白名单净化输出。
// 转换失败时退化为转义后的纯文本。
func formatText(text string) template.HTML {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	md, policy := markupEngine()

	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML("<p>" + template.HTMLEscapeString(text) + "</p>")
	}
	return template.HTML(strings.TrimSpace(policy.Sanitize(buf.String())))
}
