package render

import (
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"
)

// PageOptions 描述 HTML 页面的外层参数。
type PageOptions struct {
	Title string
	// MarginPx 为 A4 页边距，<=0 时使用 36。
	MarginPx int
}

const pageTemplate = `<!DOCTYPE html>
<html lang="{{.Tree.Language}}">
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
    <style>
        body { margin: 0; padding: 0; background: #ffffff; font-family: 'Inter', 'Roboto', sans-serif; }
        .a4-page { width: 794px; min-height: 1122px; margin: 0 auto; padding: {{.MarginPx}}px; box-sizing: border-box; background: #ffffff; }
        .cv-row { display: grid; column-gap: 16px; margin-bottom: 16px; }
        .cv-column { display: flex; flex-direction: column; gap: 12px; min-width: 0; }
        .cv-block h2 { margin: 0 0 6px 0; text-transform: uppercase; }
        .cv-body p { margin: 0 0 4px 0; }
        .cv-avatar { display: flex; justify-content: center; }
        .cv-avatar img, .cv-avatar .placeholder { object-fit: cover; background: #e5e7eb; }
    </style>
</head>
<body>
    <div id="a4-container" class="a4-page">
    {{- range .Tree.Rows}}
        <div class="cv-row" data-key="{{.Key}}" style="{{gridColumns .Tracks}}">
        {{- range .Columns}}
            <div class="cv-column" data-key="{{.Key}}" style="{{gridSpan .Start .Span}}">
            {{- range .Blocks}}
                {{- if eq .Kind "image"}}
                <div class="cv-block cv-avatar" data-section="{{.Section}}">
                    {{- with .Image}}
                    {{- if .Src}}
                    <img src="{{imageSrc .Src}}" alt="{{$.Tree.Language | avatarAlt}}" style="{{imageStyle .}}">
                    {{- else}}
                    <div class="placeholder" style="{{imageStyle .}}"></div>
                    {{- end}}
                    {{- end}}
                </div>
                {{- else}}
                <section class="cv-block" data-section="{{.Section}}" aria-label="{{.Label}}">
                    {{- with .Heading}}
                    <h2 style="{{textStyle .Style}}">{{.Text}}</h2>
                    {{- end}}
                    {{- with .Body}}
                    <div class="cv-body" style="{{textStyle .Style}}">{{.HTML}}</div>
                    {{- end}}
                </section>
                {{- end}}
            {{- end}}
            </div>
        {{- end}}
        </div>
    {{- end}}
    </div>
    <div id="cv-render-ready" hidden></div>
</body>
</html>
`

var pageTmpl = template.Must(template.New("cv-page").Funcs(template.FuncMap{
	"gridColumns": func(tracks int) template.CSS {
		if tracks < 1 {
			tracks = 1
		}
		return template.CSS(fmt.Sprintf("grid-template-columns: repeat(%d, minmax(0, 1fr));", tracks))
	},
	"gridSpan": func(start, span int) template.CSS {
		return template.CSS(fmt.Sprintf("grid-column: %d / span %d;", start, span))
	},
	"textStyle":  textStyleCSS,
	"imageStyle": imageStyleCSS,
	"imageSrc":   imageSrc,
	"avatarAlt": func(lang string) string {
		if lang == "en" {
			return "Avatar"
		}
		return "Ảnh đại diện"
	},
}).Parse(pageTemplate))

// WriteHTML 把可视树写成完整的 A4 HTML 页面。
func WriteHTML(w io.Writer, tree Tree, opts PageOptions) error {
	if opts.MarginPx <= 0 {
		opts.MarginPx = 36
	}
	if strings.TrimSpace(opts.Title) == "" {
		opts.Title = "CV"
	}
	data := struct {
		Tree     Tree
		Title    string
		MarginPx int
	}{Tree: tree, Title: opts.Title, MarginPx: opts.MarginPx}

	if err := pageTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("execute page template: %w", err)
	}
	return nil
}

// 颜色已在主题解析阶段校验为十六进制，数值与对齐方式均为受控值。
func textStyleCSS(style TextStyle) template.CSS {
	var b strings.Builder
	fmt.Fprintf(&b, "color: %s; font-size: %spx; font-weight: %s;", style.Color, formatNumber(style.Size), style.Weight)
	if style.Align != "" {
		fmt.Fprintf(&b, " text-align: %s;", style.Align)
	}
	return template.CSS(b.String())
}

func imageStyleCSS(img *Image) template.CSS {
	if img == nil {
		return ""
	}
	size := formatNumber(img.Size)
	return template.CSS(fmt.Sprintf("width: %spx; height: %spx; border-radius: %spx;", size, size, formatNumber(img.BorderRadius)))
}

func imageSrc(src string) template.URL {
	lower := strings.ToLower(strings.TrimSpace(src))
	switch {
	case strings.HasPrefix(lower, "data:image/"),
		strings.HasPrefix(lower, "https://"),
		strings.HasPrefix(lower, "http://"),
		strings.HasPrefix(lower, "/"):
		return template.URL(src)
	case strings.Contains(lower, ":"):
		return ""
	}
	return template.URL(src)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
