package cv

// Content 是内容块到文本的映射；avatar 的值是图片引用（URL、data URI 或存储 key）。
type Content map[SectionID]string

// ContentFromMap 从字符串键映射构造内容，未知键被忽略。
func ContentFromMap(raw map[string]string) Content {
	out := make(Content, len(raw))
	for k, v := range raw {
		id := SectionID(k)
		if id.Valid() {
			out[id] = v
		}
	}
	return out
}

// Get 返回内容块文本，缺失时为空串。
func (c Content) Get(id SectionID) string {
	if c == nil {
		return ""
	}
	return c[id]
}

// Clone 返回独立副本。
func (c Content) Clone() Content {
	if c == nil {
		return nil
	}
	out := make(Content, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
