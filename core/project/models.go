package project

import (
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/showcase/core"
	"github.com/trezcool/showcase/core/contributor"
	"github.com/trezcool/showcase/core/staging"
)

// Categories
const (
	CategoryCoursework  Category = "coursework"
	CategoryAcademic    Category = "academic"
	CategoryCompetition Category = "competition"
)

// Statuses
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Competition levels
const (
	LevelDepartment    CompetitionLevel = "department"
	LevelFaculty       CompetitionLevel = "faculty"
	LevelUniversity    CompetitionLevel = "university"
	LevelNational      CompetitionLevel = "national"
	LevelInternational CompetitionLevel = "international"
)

var (
	AllCategories        = []Category{CategoryCoursework, CategoryAcademic, CategoryCompetition}
	AllCompetitionLevels = []CompetitionLevel{LevelDepartment, LevelFaculty, LevelUniversity, LevelNational, LevelInternational}

	ErrUnknownCategory = errors.New("unknown category")

	NowFunc = time.Now // mockable
)

type Category string

func (c Category) IsValid() bool {
	for _, cat := range AllCategories {
		if c == cat {
			return true
		}
	}
	return false
}

// ParseCategory reads a category name, ignoring case and surrounding spaces.
func ParseCategory(s string) (Category, error) {
	c := Category(core.CleanString(s, true /* lower */))
	if !c.IsValid() {
		return "", errors.Wrapf(ErrUnknownCategory, "%q", s)
	}
	return c, nil
}

type Status string

// IsFinal reports whether no transition leaves s.
func (s Status) IsFinal() bool {
	return s == StatusApproved || s == StatusRejected
}

type CompetitionLevel string

// PDF is a staged document and the name it is listed under.
type PDF struct {
	File        *staging.File
	DisplayName string
}

// ProjectDraft is an in-progress submission. Its status is implicitly pending.
type ProjectDraft struct {
	Title        string
	Description  string
	Category     Category // "" until chosen
	StudyYear    int
	AcademicYear string // e.g. 2023/2024
	Semester     int
	Visibility   bool
	Tags         []string
	CoverImage   *staging.File
	PosterImage  *staging.File
	VideoLink    null.String
	PDFFiles     []PDF
	Contributors []contributor.Ref

	Fields CategoryFields           // nil until a category is chosen
	Files  map[string]*staging.File // category-specific assets, keyed by schema key
}

// NewDraft returns an empty draft with its yearly fields defaulted from NowFunc.
func NewDraft() *ProjectDraft {
	now := NowFunc()
	return &ProjectDraft{
		StudyYear:    1,
		AcademicYear: academicYearOf(now),
		Semester:     1,
		Files:        make(map[string]*staging.File),
	}
}

// Clone returns a copy of d that shares only the staged binaries.
func (d *ProjectDraft) Clone() *ProjectDraft {
	cp := *d
	cp.Tags = append([]string(nil), d.Tags...)
	cp.PDFFiles = append([]PDF(nil), d.PDFFiles...)
	cp.Contributors = append([]contributor.Ref(nil), d.Contributors...)
	if d.Fields != nil {
		cp.Fields = d.Fields.clone()
	}
	cp.Files = make(map[string]*staging.File, len(d.Files))
	for k, f := range d.Files {
		cp.Files[k] = f
	}
	return &cp
}

// base holds the category-independent fields that are validated.
type base struct {
	Title        string        `json:"title" validate:"notblank"`
	Description  string        `json:"description" validate:"notblank"`
	Category     Category      `json:"category" validate:"required,oneof=coursework academic competition"`
	StudyYear    int           `json:"studyYear" validate:"omitempty,min=1,max=10"`
	AcademicYear string        `json:"academicYear" validate:"omitempty,academicyear"`
	Semester     int           `json:"semester" validate:"omitempty,oneof=1 2 3"`
	Tags         []string      `json:"tags" validate:"max=10,dive,max=30"`
	VideoLink    null.String   `json:"videoLink" validate:"omitempty,url"`
	CoverImage   *staging.File `json:"coverImage" validate:"required"`
}

// Validate reports every invalid field of d at once, category fields included.
func (d *ProjectDraft) Validate() error {
	b := base{
		Title:        core.CleanString(d.Title),
		Description:  core.CleanString(d.Description),
		Category:     d.Category,
		StudyYear:    d.StudyYear,
		AcademicYear: d.AcademicYear,
		Semester:     d.Semester,
		Tags:         d.Tags,
		VideoLink:    d.VideoLink,
		CoverImage:   d.CoverImage,
	}
	errs := []error{core.TranslateValidationErrors(core.Validate.Struct(b))}
	if d.Fields != nil {
		errs = append(errs, core.TranslateValidationErrors(core.Validate.Struct(d.Fields)))
	}
	return core.MergeValidationErrors(errs...)
}

// Owner is the user who submitted a project.
type Owner struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// ReviewableProject is a submitted project as the moderation queue sees it.
type ReviewableProject struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Category    Category          `json:"category"`
	Status      Status            `json:"status"`
	Tags        []string          `json:"tags"`
	Owner       Owner             `json:"owner"`
	Details     map[string]string `json:"details"` // category fields, keyed by schema key
	CreatedAt   time.Time         `json:"created_at"`
}

// CategoryFields decodes the read-only category details of p.
func (p ReviewableProject) CategoryFields() (CategoryFields, error) {
	return FromValues(p.Category, p.Details)
}

func academicYearOf(t time.Time) string {
	// academic years start in August
	start := t.Year()
	if t.Month() < time.August {
		start--
	}
	return formatAcademicYear(start)
}
