package cv

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformedDocument 表示布局/主题/内容 JSON 不符合结构约定。
var ErrMalformedDocument = errors.New("malformed cv document")

// ParseLayout 严格解析布局 JSON：未知字段、未知内容块与负数跨度都会被拒绝。
func ParseLayout(data []byte) (Layout, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var layout Layout
	if err := dec.Decode(&layout); err != nil {
		return Layout{}, fmt.Errorf("%w: layout: %v", ErrMalformedDocument, err)
	}
	if err := ensureEOF(dec); err != nil {
		return Layout{}, fmt.Errorf("%w: layout: %v", ErrMalformedDocument, err)
	}
	if err := checkLayout(layout); err != nil {
		return Layout{}, err
	}
	return layout, nil
}

func checkLayout(layout Layout) error {
	if layout.Columns < 0 {
		return fmt.Errorf("%w: layout columns must be non-negative", ErrMalformedDocument)
	}
	for i, row := range layout.Rows {
		if row.ColSpan < 0 {
			return fmt.Errorf("%w: row %d colSpan must be non-negative", ErrMalformedDocument, i)
		}
		for j, col := range row.Columns {
			if col.ColSpan < 0 {
				return fmt.Errorf("%w: row %d column %d colSpan must be non-negative", ErrMalformedDocument, i, j)
			}
			for _, section := range col.Sections {
				if !section.Valid() {
					return fmt.Errorf("%w: row %d column %d: unknown section %q", ErrMalformedDocument, i, j, section)
				}
			}
		}
	}
	return nil
}

// ParseTheme 严格解析主题 JSON。
func ParseTheme(data []byte) (Theme, error) {
	var theme Theme
	if err := json.Unmarshal(data, &theme); err != nil {
		if errors.Is(err, ErrMalformedDocument) {
			return Theme{}, err
		}
		return Theme{}, fmt.Errorf("%w: theme: %v", ErrMalformedDocument, err)
	}
	return theme, nil
}

// ParseContent 解析内容映射 JSON，值必须是字符串，键必须是已知内容块。
func ParseContent(data []byte) (Content, error) {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: content: %v", ErrMalformedDocument, err)
	}
	content := make(Content, len(raw))
	for key, value := range raw {
		id := SectionID(strings.TrimSpace(key))
		if !id.Valid() {
			return nil, fmt.Errorf("%w: content: unknown section %q", ErrMalformedDocument, key)
		}
		content[id] = value
	}
	return content, nil
}

func ensureEOF(dec *json.Decoder) error {
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected trailing data")
	}
	return nil
}
