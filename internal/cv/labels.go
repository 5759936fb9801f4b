package cv

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var dictionaries = map[string]map[SectionID]string{
	LanguageVI: {
		SectionAvatar:       "ẢNH ĐẠI DIỆN",
		SectionName:         "HỌ VÀ TÊN",
		SectionPosition:     "VỊ TRÍ ỨNG TUYỂN",
		SectionSummary:      "GIỚI THIỆU BẢN THÂN",
		SectionPersonalInfo: "THÔNG TIN CÁ NHÂN",
		SectionSkills:       "KỸ NĂNG",
		SectionCertificates: "CHỨNG CHỈ",
		SectionExperience:   "KINH NGHIỆM LÀM VIỆC",
		SectionProjects:     "DỰ ÁN",
		SectionEducation:    "HỌC VẤN",
	},
	LanguageEN: {
		SectionAvatar:       "AVATAR",
		SectionName:         "FULL NAME",
		SectionPosition:     "POSITION",
		SectionSummary:      "SUMMARY",
		SectionPersonalInfo: "PERSONAL INFORMATION",
		SectionSkills:       "SKILLS",
		SectionCertificates: "CERTIFICATES",
		SectionExperience:   "WORK EXPERIENCE",
		SectionProjects:     "PROJECTS",
		SectionEducation:    "EDUCATION",
	},
}

var languageTags = map[string]language.Tag{
	LanguageVI: language.Vietnamese,
	LanguageEN: language.English,
}

// Languages 返回支持的标签语言。
func Languages() []string {
	return []string{LanguageVI, LanguageEN}
}

// LabelFor 返回内容块在指定语言下的标题。
// 未知语言回退到 vi；字典中没有的标识返回其大写形式。总是返回字符串。
func LabelFor(section SectionID, lang string) string {
	dict, ok := dictionaries[lang]
	if !ok {
		lang = LanguageVI
		dict = dictionaries[LanguageVI]
	}
	if label, ok := dict[section]; ok {
		return label
	}
	// cases.Caser 带内部状态，不能跨 goroutine 共用，每次新建。
	return cases.Upper(languageTags[lang]).String(string(section))
}
