package cv

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type defaultDocument struct {
	Layout  Layout            `yaml:"layout"`
	Theme   map[string]any    `yaml:"theme"`
	Content map[string]string `yaml:"content"`
}

var (
	defaultsOnce   sync.Once
	defaultLayout  Layout
	defaultTheme   Theme
	defaultContent Content
	defaultsErr    error
)

func loadDefaults() {
	defaultsOnce.Do(func() {
		var doc defaultDocument
		if err := yaml.Unmarshal(defaultsYAML, &doc); err != nil {
			defaultsErr = fmt.Errorf("decode default template: %w", err)
			return
		}
		if err := checkLayout(doc.Layout); err != nil {
			defaultsErr = fmt.Errorf("default layout: %w", err)
			return
		}
		theme, err := ThemeFromMap(doc.Theme)
		if err != nil {
			defaultsErr = fmt.Errorf("default theme: %w", err)
			return
		}
		defaultLayout = doc.Layout
		defaultTheme = theme
		defaultContent = ContentFromMap(doc.Content)
	})
	if defaultsErr != nil {
		panic(defaultsErr)
	}
}

// DefaultLayout 返回新建模板的默认布局。
func DefaultLayout() Layout {
	loadDefaults()
	return defaultLayout.Clone()
}

// DefaultTheme 返回新建模板的默认主题。
func DefaultTheme() Theme {
	loadDefaults()
	return defaultTheme.Clone()
}

// DefaultContent 返回用于预览的示例内容。
func DefaultContent() Content {
	loadDefaults()
	return defaultContent.Clone()
}
