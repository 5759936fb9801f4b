package cv

// SectionID 标识简历中的一种内容块。
type SectionID string

const (
	SectionAvatar       SectionID = "avatar"
	SectionName         SectionID = "name"
	SectionPosition     SectionID = "position"
	SectionSummary      SectionID = "summary"
	SectionPersonalInfo SectionID = "personal_info"
	SectionSkills       SectionID = "skills"
	SectionCertificates SectionID = "certificates"
	SectionExperience   SectionID = "experience"
	SectionProjects     SectionID = "projects"
	SectionEducation    SectionID = "education"
)

var allSections = []SectionID{
	SectionAvatar,
	SectionName,
	SectionPosition,
	SectionSummary,
	SectionPersonalInfo,
	SectionSkills,
	SectionCertificates,
	SectionExperience,
	SectionProjects,
	SectionEducation,
}

// AllSections 按固定顺序返回全部内容块标识。
func AllSections() []SectionID {
	out := make([]SectionID, len(allSections))
	copy(out, allSections)
	return out
}

// Valid 判断标识是否属于封闭枚举。
func (s SectionID) Valid() bool {
	for _, known := range allSections {
		if s == known {
			return true
		}
	}
	return false
}

// Layout 描述简历的二维网格：行自上而下，列自左向右，列内内容块自上而下。
type Layout struct {
	// Columns 仅作参考，实际宽度由每行的列 colSpan 之和决定。
	Columns int   `json:"columns" yaml:"columns"`
	Rows    []Row `json:"rows" yaml:"rows"`
}

// Row 是网格中的一行。
type Row struct {
	ID      string   `json:"id" yaml:"id"`
	ColSpan int      `json:"colSpan,omitempty" yaml:"colSpan"`
	Columns []Column `json:"columns" yaml:"columns"`
}

// Column 是行内的一列，可容纳零个或多个内容块。
type Column struct {
	ID       string      `json:"id" yaml:"id"`
	ColSpan  int         `json:"colSpan,omitempty" yaml:"colSpan"`
	Sections []SectionID `json:"sections" yaml:"sections"`
}

// Span 返回列的有效宽度，未设置或非法时为 1。
func (c Column) Span() int {
	if c.ColSpan < 1 {
		return 1
	}
	return c.ColSpan
}

// Tracks 返回行的有效网格列数，与 Layout.Columns 无关。
func (r Row) Tracks() int {
	total := 0
	for _, col := range r.Columns {
		total += col.Span()
	}
	return total
}

// Clone 深拷贝布局，编辑会话持有自己的副本。
func (l Layout) Clone() Layout {
	out := Layout{Columns: l.Columns}
	if l.Rows == nil {
		return out
	}
	out.Rows = make([]Row, len(l.Rows))
	for i, row := range l.Rows {
		cloned := Row{ID: row.ID, ColSpan: row.ColSpan}
		if row.Columns != nil {
			cloned.Columns = make([]Column, len(row.Columns))
			for j, col := range row.Columns {
				cloned.Columns[j] = Column{ID: col.ID, ColSpan: col.ColSpan}
				if col.Sections != nil {
					cloned.Columns[j].Sections = append([]SectionID(nil), col.Sections...)
				}
			}
		}
		out.Rows[i] = cloned
	}
	return out
}
