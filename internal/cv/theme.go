package cv

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Align 表示文本对齐方式。
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Valid 判断对齐方式是否合法。
func (a Align) Valid() bool {
	switch a {
	case AlignLeft, AlignCenter, AlignRight:
		return true
	}
	return false
}

const (
	LanguageVI = "vi"
	LanguageEN = "en"
)

// Theme 是扁平的展示参数集合。
// 数值字段为 nil、字符串字段为空时表示"使用内置默认值"。
// Extra 保存未识别的字符串/数值键，只用于往返保真，渲染器不会解读。
type Theme struct {
	Size               *float64
	SizeTitle          *float64
	SizeName           *float64
	SizePosition       *float64
	SizeAvatar         *float64
	BorderRadiusAvatar *float64

	Color         string
	ColorTitle    string
	ColorName     string
	ColorPosition string

	AlignTextTitle    Align
	AlignTextName     Align
	AlignTextPosition Align

	Language string

	Extra map[string]any
}

const (
	keySize               = "size"
	keySizeTitle          = "sizeTitle"
	keySizeName           = "sizeName"
	keySizePosition       = "sizePosition"
	keySizeAvatar         = "sizeAvatar"
	keyBorderRadiusAvatar = "borderRadiusAvatar"
	keyColor              = "color"
	keyColorTitle         = "colorTitle"
	keyColorName          = "colorName"
	keyColorPosition      = "colorPosition"
	keyAlignTextTitle     = "alignTextTitle"
	keyAlignTextName      = "alignTextName"
	keyAlignTextPosition  = "alignTextPosition"
	keyLanguage           = "language"
)

var hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// Float 是构造数值字段的便捷函数。
func Float(v float64) *float64 {
	return &v
}

func (t *Theme) numberField(key string) (**float64, bool) {
	switch key {
	case keySize:
		return &t.Size, true
	case keySizeTitle:
		return &t.SizeTitle, true
	case keySizeName:
		return &t.SizeName, true
	case keySizePosition:
		return &t.SizePosition, true
	case keySizeAvatar:
		return &t.SizeAvatar, true
	case keyBorderRadiusAvatar:
		return &t.BorderRadiusAvatar, true
	}
	return nil, false
}

func (t *Theme) colorField(key string) (*string, bool) {
	switch key {
	case keyColor:
		return &t.Color, true
	case keyColorTitle:
		return &t.ColorTitle, true
	case keyColorName:
		return &t.ColorName, true
	case keyColorPosition:
		return &t.ColorPosition, true
	}
	return nil, false
}

func (t *Theme) alignField(key string) (*Align, bool) {
	switch key {
	case keyAlignTextTitle:
		return &t.AlignTextTitle, true
	case keyAlignTextName:
		return &t.AlignTextName, true
	case keyAlignTextPosition:
		return &t.AlignTextPosition, true
	}
	return nil, false
}

// Clone 返回独立副本。
func (t Theme) Clone() Theme {
	out := t
	for _, key := range []string{keySize, keySizeTitle, keySizeName, keySizePosition, keySizeAvatar, keyBorderRadiusAvatar} {
		src, _ := t.numberField(key)
		dst, _ := out.numberField(key)
		if *src != nil {
			v := **src
			*dst = &v
		}
	}
	if t.Extra != nil {
		out.Extra = make(map[string]any, len(t.Extra))
		for k, v := range t.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// ToMap 将主题展开为扁平映射，缺省字段不输出。
func (t Theme) ToMap() map[string]any {
	out := make(map[string]any, 16+len(t.Extra))
	for k, v := range t.Extra {
		out[k] = v
	}
	for _, key := range []string{keySize, keySizeTitle, keySizeName, keySizePosition, keySizeAvatar, keyBorderRadiusAvatar} {
		field, _ := t.numberField(key)
		if *field != nil {
			out[key] = **field
		}
	}
	for _, key := range []string{keyColor, keyColorTitle, keyColorName, keyColorPosition} {
		field, _ := t.colorField(key)
		if *field != "" {
			out[key] = *field
		}
	}
	for _, key := range []string{keyAlignTextTitle, keyAlignTextName, keyAlignTextPosition} {
		field, _ := t.alignField(key)
		if *field != "" {
			out[key] = string(*field)
		}
	}
	if t.Language != "" {
		out[keyLanguage] = t.Language
	}
	return out
}

// MarshalJSON 输出扁平 JSON，Extra 与已知字段位于同一层级。
func (t Theme) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.ToMap())
}

// UnmarshalJSON 严格解析主题，类型不符的字段会被拒绝。
func (t *Theme) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("%w: theme: %v", ErrMalformedDocument, err)
	}
	parsed, err := ThemeFromMap(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ThemeFromMap 严格地从扁平映射构造主题（网络/文件边界使用）。
func ThemeFromMap(raw map[string]any) (Theme, error) {
	var t Theme
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := t.applyStrict(key, raw[key]); err != nil {
			return Theme{}, err
		}
	}
	return t, nil
}

func (t *Theme) applyStrict(key string, value any) error {
	if field, ok := t.numberField(key); ok {
		if value == nil {
			*field = nil
			return nil
		}
		n, ok := numberValue(value)
		if !ok {
			return fmt.Errorf("%w: theme field %q must be a number", ErrMalformedDocument, key)
		}
		if n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
			return fmt.Errorf("%w: theme field %q must be non-negative", ErrMalformedDocument, key)
		}
		*field = &n
		return nil
	}
	if field, ok := t.colorField(key); ok {
		s, ok := stringValue(value)
		if !ok {
			return fmt.Errorf("%w: theme field %q must be a string", ErrMalformedDocument, key)
		}
		s = strings.TrimSpace(s)
		if s != "" && !hexColorPattern.MatchString(s) {
			return fmt.Errorf("%w: theme field %q is not a hex color: %q", ErrMalformedDocument, key, s)
		}
		*field = s
		return nil
	}
	if field, ok := t.alignField(key); ok {
		s, ok := stringValue(value)
		if !ok {
			return fmt.Errorf("%w: theme field %q must be a string", ErrMalformedDocument, key)
		}
		a := Align(strings.TrimSpace(s))
		if a != "" && !a.Valid() {
			return fmt.Errorf("%w: theme field %q must be left, center or right", ErrMalformedDocument, key)
		}
		*field = a
		return nil
	}
	if key == keyLanguage {
		s, ok := stringValue(value)
		if !ok {
			return fmt.Errorf("%w: theme field %q must be a string", ErrMalformedDocument, key)
		}
		t.Language = strings.TrimSpace(s)
		return nil
	}

	if value == nil {
		return nil
	}
	if s, ok := value.(string); ok {
		t.setExtra(key, s)
		return nil
	}
	if n, ok := numberValue(value); ok {
		t.setExtra(key, n)
		return nil
	}
	return fmt.Errorf("%w: theme extension %q must be a string or number", ErrMalformedDocument, key)
}

// Merge 将 partial 浅合并进主题：未出现的键保持不变，输入按字段类型强制转换，永不失败。
// 不可解析的数值变为 0；非法颜色、对齐方式与语言回退为默认值。
func (t Theme) Merge(partial map[string]any) Theme {
	out := t.Clone()
	for key, value := range partial {
		out.applyCoerced(key, value)
	}
	return out
}

func (t *Theme) applyCoerced(key string, value any) {
	if field, ok := t.numberField(key); ok {
		if value == nil {
			*field = nil
			return
		}
		n := coerceNumber(value)
		*field = &n
		return
	}
	if field, ok := t.colorField(key); ok {
		s, _ := stringValue(value)
		s = strings.TrimSpace(s)
		if !hexColorPattern.MatchString(s) {
			s = ""
		}
		*field = s
		return
	}
	if field, ok := t.alignField(key); ok {
		s, _ := stringValue(value)
		a := Align(strings.ToLower(strings.TrimSpace(s)))
		if !a.Valid() {
			a = ""
		}
		*field = a
		return
	}
	if key == keyLanguage {
		s, _ := stringValue(value)
		s = strings.ToLower(strings.TrimSpace(s))
		if _, ok := dictionaries[s]; !ok {
			s = ""
		}
		t.Language = s
		return
	}

	switch v := value.(type) {
	case nil:
		delete(t.Extra, key)
	case string:
		t.setExtra(key, v)
	default:
		if n, ok := numberValue(v); ok {
			t.setExtra(key, n)
		}
	}
}

func (t *Theme) setExtra(key string, value any) {
	if t.Extra == nil {
		t.Extra = make(map[string]any)
	}
	t.Extra[key] = value
}

func stringValue(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", true
	case string:
		return v, true
	}
	return "", false
}

func numberValue(value any) (float64, bool) {
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}

func coerceNumber(value any) float64 {
	n, ok := numberValue(value)
	if !ok {
		s, isString := value.(string)
		if !isString {
			return 0
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0
		}
		n = parsed
	}
	if n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return n
}

// ResolvedTheme 是已填充默认值的主题，渲染器只读取它。
type ResolvedTheme struct {
	Size               float64
	SizeTitle          float64
	SizeName           float64
	SizePosition       float64
	SizeAvatar         float64
	BorderRadiusAvatar float64

	Color         string
	ColorTitle    string
	ColorName     string
	ColorPosition string

	AlignTextTitle    Align
	AlignTextName     Align
	AlignTextPosition Align

	Language string
}

// BuiltinTheme 返回内置默认值。
func BuiltinTheme() ResolvedTheme {
	return ResolvedTheme{
		Size:               14,
		SizeTitle:          16,
		SizeName:           28,
		SizePosition:       18,
		SizeAvatar:         150,
		BorderRadiusAvatar: 100,
		Color:              "#333333",
		ColorTitle:         "#1f2937",
		ColorName:          "#111827",
		ColorPosition:      "#4b5563",
		AlignTextTitle:     AlignLeft,
		AlignTextName:      AlignCenter,
		AlignTextPosition:  AlignCenter,
		Language:           LanguageVI,
	}
}

// Resolve 用内置默认值补齐缺省字段。
func (t Theme) Resolve() ResolvedTheme {
	r := BuiltinTheme()
	pick := func(dst *float64, src *float64) {
		if src != nil && *src >= 0 && !math.IsNaN(*src) && !math.IsInf(*src, 0) {
			*dst = *src
		}
	}
	pick(&r.Size, t.Size)
	pick(&r.SizeTitle, t.SizeTitle)
	pick(&r.SizeName, t.SizeName)
	pick(&r.SizePosition, t.SizePosition)
	pick(&r.SizeAvatar, t.SizeAvatar)
	pick(&r.BorderRadiusAvatar, t.BorderRadiusAvatar)

	color := func(dst *string, src string) {
		if hexColorPattern.MatchString(src) {
			*dst = src
		}
	}
	color(&r.Color, t.Color)
	color(&r.ColorTitle, t.ColorTitle)
	color(&r.ColorName, t.ColorName)
	color(&r.ColorPosition, t.ColorPosition)

	align := func(dst *Align, src Align) {
		if src.Valid() {
			*dst = src
		}
	}
	align(&r.AlignTextTitle, t.AlignTextTitle)
	align(&r.AlignTextName, t.AlignTextName)
	align(&r.AlignTextPosition, t.AlignTextPosition)

	if _, ok := dictionaries[t.Language]; ok {
		r.Language = t.Language
	}
	return r
}
