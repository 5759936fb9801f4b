package cv

import "fmt"

// IssueCode 标识布局中的可疑结构。
type IssueCode string

const (
	IssueEmptyID           IssueCode = "empty_id"
	IssueDuplicateRowID    IssueCode = "duplicate_row_id"
	IssueDuplicateColumnID IssueCode = "duplicate_column_id"
	IssueDuplicateSection  IssueCode = "duplicate_section"
)

// Issue 是布局校验发现的问题。只做提示，不会修改文档。
type Issue struct {
	Code    IssueCode `json:"code"`
	Message string    `json:"message"`
	RowID   string    `json:"row_id,omitempty"`
	Column  string    `json:"column_id,omitempty"`
	Section SectionID `json:"section,omitempty"`
}

// Validate 检查行/列 ID 唯一性以及内容块重复放置。
// 重复放置会导致内容块被渲染多次，调用方自行决定是否提示用户。
func Validate(layout Layout) []Issue {
	var issues []Issue
	rowIDs := make(map[string]struct{}, len(layout.Rows))
	placed := make(map[SectionID]string)

	for ri, row := range layout.Rows {
		switch _, seen := rowIDs[row.ID]; {
		case row.ID == "":
			issues = append(issues, Issue{
				Code:    IssueEmptyID,
				Message: fmt.Sprintf("row %d has an empty id", ri),
			})
		case seen:
			issues = append(issues, Issue{
				Code:    IssueDuplicateRowID,
				Message: fmt.Sprintf("row id %q is used more than once", row.ID),
				RowID:   row.ID,
			})
		}
		rowIDs[row.ID] = struct{}{}

		colIDs := make(map[string]struct{}, len(row.Columns))
		for ci, col := range row.Columns {
			switch _, seen := colIDs[col.ID]; {
			case col.ID == "":
				issues = append(issues, Issue{
					Code:    IssueEmptyID,
					Message: fmt.Sprintf("column %d of row %q has an empty id", ci, row.ID),
					RowID:   row.ID,
				})
			case seen:
				issues = append(issues, Issue{
					Code:    IssueDuplicateColumnID,
					Message: fmt.Sprintf("column id %q is used more than once in row %q", col.ID, row.ID),
					RowID:   row.ID,
					Column:  col.ID,
				})
			}
			colIDs[col.ID] = struct{}{}

			where := row.ID + "/" + col.ID
			for _, section := range col.Sections {
				if first, dup := placed[section]; dup {
					issues = append(issues, Issue{
						Code:    IssueDuplicateSection,
						Message: fmt.Sprintf("section %q is placed in %s and %s", section, first, where),
						RowID:   row.ID,
						Column:  col.ID,
						Section: section,
					})
					continue
				}
				placed[section] = where
			}
		}
	}
	return issues
}
