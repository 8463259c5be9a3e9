package project

import "github.com/trezcool/showcase/core/staging"

type FieldKind int

const (
	KindText FieldKind = iota + 1
	KindLongText
	KindList // comma-separated input
	KindDate // YYYY-MM-DD
	KindYear
	KindEnum
	KindImage
	KindDocument
)

func (k FieldKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindLongText:
		return "long text"
	case KindList:
		return "list"
	case KindDate:
		return "date"
	case KindYear:
		return "year"
	case KindEnum:
		return "enum"
	case KindImage:
		return "image"
	case KindDocument:
		return "document"
	default:
		return "unknown"
	}
}

// FieldSpec describes one category-specific field.
type FieldSpec struct {
	Key      string
	Label    string
	Required bool
	Kind     FieldKind
	Options  []string // KindEnum only
}

// IsFile reports whether the field holds a staged binary rather than text.
func (fs FieldSpec) IsFile() bool {
	return fs.Kind == KindImage || fs.Kind == KindDocument
}

func (fs FieldSpec) stagingKind() staging.Kind {
	if fs.Kind == KindImage {
		return staging.KindImage
	}
	return staging.KindDocument
}

var schemas = map[Category][]FieldSpec{
	CategoryCoursework: {
		{Key: "courseCode", Label: "Course code", Required: true, Kind: KindText},
		{Key: "courseName", Label: "Course name", Required: true, Kind: KindText},
		{Key: "instructor", Label: "Instructor", Kind: KindText},
		{Key: "teamMembers", Label: "Team members", Kind: KindList},
	},
	CategoryAcademic: {
		{Key: "abstract", Label: "Abstract", Required: true, Kind: KindLongText},
		{Key: "authors", Label: "Authors", Required: true, Kind: KindList},
		{Key: "publicationVenue", Label: "Publication venue", Kind: KindText},
		{Key: "publicationDate", Label: "Publication date", Kind: KindDate},
		{Key: "publishedYear", Label: "Published year", Kind: KindYear},
		{Key: "paperFile", Label: "Paper", Kind: KindDocument},
	},
	CategoryCompetition: {
		{Key: "competitionName", Label: "Competition name", Required: true, Kind: KindText},
		{Key: "competitionLevel", Label: "Competition level", Required: true, Kind: KindEnum, Options: levelOptions()},
		{Key: "achievement", Label: "Achievement", Kind: KindText},
		{Key: "teamMembers", Label: "Team members", Kind: KindList},
		{Key: "competitionYear", Label: "Competition year", Kind: KindYear},
		{Key: "certificateImage", Label: "Certificate", Kind: KindImage},
	},
}

func levelOptions() []string {
	opts := make([]string, 0, len(AllCompetitionLevels))
	for _, lvl := range AllCompetitionLevels {
		opts = append(opts, string(lvl))
	}
	return opts
}

// Schema returns the ordered category-specific fields of c, or nil for an unknown category.
func Schema(c Category) []FieldSpec {
	specs := schemas[c]
	if specs == nil {
		return nil
	}
	out := make([]FieldSpec, len(specs))
	for i, fs := range specs {
		fs.Options = append([]string(nil), fs.Options...)
		out[i] = fs
	}
	return out
}

// FieldSpecFor looks up the spec of key in the schema of c.
func FieldSpecFor(c Category, key string) (FieldSpec, bool) {
	for _, fs := range schemas[c] {
		if fs.Key == key {
			return fs, true
		}
	}
	return FieldSpec{}, false
}

// FileSlots returns the category-specific file fields of c.
func FileSlots(c Category) []FieldSpec {
	var slots []FieldSpec
	for _, fs := range schemas[c] {
		if fs.IsFile() {
			slots = append(slots, fs)
		}
	}
	return slots
}

// TextFields returns the category-specific fields of c that are not files.
func TextFields(c Category) []FieldSpec {
	var flds []FieldSpec
	for _, fs := range schemas[c] {
		if !fs.IsFile() {
			flds = append(flds, fs)
		}
	}
	return flds
}
