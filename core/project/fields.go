package project

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/showcase/core"
)

const dateLayout = "2006-01-02"

var ErrUnknownField = errors.New("unknown field")

// CategoryFields holds the category-specific values of a project.
// Its concrete type is selected by the category: *CourseworkFields,
// *AcademicFields or *CompetitionFields.
type CategoryFields interface {
	Category() Category

	// Set parses and stores value under the schema key. An empty value clears the field.
	Set(key, value string) error

	// Value returns the normalized value of key, "" when unset.
	Value(key string) string

	clone() CategoryFields
}

type CourseworkFields struct {
	CourseCode  string   `json:"courseCode" validate:"notblank"`
	CourseName  string   `json:"courseName" validate:"notblank"`
	Instructor  string   `json:"instructor"`
	TeamMembers []string `json:"teamMembers"`
}

type AcademicFields struct {
	Abstract         string    `json:"abstract" validate:"notblank"`
	Authors          []string  `json:"authors" validate:"notblank"`
	PublicationVenue string    `json:"publicationVenue"`
	PublicationDate  null.Time `json:"publicationDate"`
	PublishedYear    int       `json:"publishedYear" validate:"omitempty,min=1900,max=2100"`
}

type CompetitionFields struct {
	CompetitionName  string           `json:"competitionName" validate:"notblank"`
	CompetitionLevel CompetitionLevel `json:"competitionLevel" validate:"required,oneof=department faculty university national international"`
	Achievement      string           `json:"achievement"`
	TeamMembers      []string         `json:"teamMembers"`
	CompetitionYear  int              `json:"competitionYear" validate:"omitempty,min=1900,max=2100"`
}

var (
	_ CategoryFields = (*CourseworkFields)(nil)
	_ CategoryFields = (*AcademicFields)(nil)
	_ CategoryFields = (*CompetitionFields)(nil)
)

// NewCategoryFields returns empty fields for c, yearly fields defaulting to the current year.
func NewCategoryFields(c Category) (CategoryFields, error) {
	year := NowFunc().Year()
	switch c {
	case CategoryCoursework:
		return &CourseworkFields{}, nil
	case CategoryAcademic:
		return &AcademicFields{PublishedYear: year}, nil
	case CategoryCompetition:
		return &CompetitionFields{CompetitionYear: year}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownCategory, "%q", c)
	}
}

// FromValues builds the fields of c from values keyed by schema key.
// Keys outside the schema of c are ignored.
func FromValues(c Category, values map[string]string) (CategoryFields, error) {
	flds, err := NewCategoryFields(c)
	if err != nil {
		return nil, err
	}
	var errs []error
	for _, fs := range TextFields(c) {
		if v, ok := values[fs.Key]; ok {
			errs = append(errs, flds.Set(fs.Key, v))
		}
	}
	if err = core.MergeValidationErrors(errs...); err != nil {
		return nil, err
	}
	return flds, nil
}

// Coursework

func (f *CourseworkFields) Category() Category { return CategoryCoursework }

func (f *CourseworkFields) Set(key, value string) error {
	switch key {
	case "courseCode":
		f.CourseCode = core.CleanString(value)
	case "courseName":
		f.CourseName = core.CleanString(value)
	case "instructor":
		f.Instructor = core.CleanString(value)
	case "teamMembers":
		f.TeamMembers = core.SplitList(value)
	default:
		return unknownField(CategoryCoursework, key)
	}
	return nil
}

func (f *CourseworkFields) Value(key string) string {
	switch key {
	case "courseCode":
		return f.CourseCode
	case "courseName":
		return f.CourseName
	case "instructor":
		return f.Instructor
	case "teamMembers":
		return core.JoinList(f.TeamMembers)
	}
	return ""
}

func (f *CourseworkFields) clone() CategoryFields {
	cp := *f
	cp.TeamMembers = append([]string(nil), f.TeamMembers...)
	return &cp
}

// Academic

func (f *AcademicFields) Category() Category { return CategoryAcademic }

func (f *AcademicFields) Set(key, value string) error {
	value = core.CleanString(value)
	switch key {
	case "abstract":
		f.Abstract = value
	case "authors":
		f.Authors = core.SplitList(value)
	case "publicationVenue":
		f.PublicationVenue = value
	case "publicationDate":
		if value == "" {
			f.PublicationDate = null.Time{}
			return nil
		}
		t, err := time.Parse(dateLayout, value)
		if err != nil {
			return fieldError(key, "must be a date like 2024-01-31")
		}
		f.PublicationDate = null.TimeFrom(t)
	case "publishedYear":
		year, err := parseYear(key, value)
		if err != nil {
			return err
		}
		f.PublishedYear = year
	default:
		return unknownField(CategoryAcademic, key)
	}
	return nil
}

func (f *AcademicFields) Value(key string) string {
	switch key {
	case "abstract":
		return f.Abstract
	case "authors":
		return core.JoinList(f.Authors)
	case "publicationVenue":
		return f.PublicationVenue
	case "publicationDate":
		if f.PublicationDate.Valid {
			return f.PublicationDate.Time.Format(dateLayout)
		}
	case "publishedYear":
		return formatYear(f.PublishedYear)
	}
	return ""
}

func (f *AcademicFields) clone() CategoryFields {
	cp := *f
	cp.Authors = append([]string(nil), f.Authors...)
	return &cp
}

// Competition

func (f *CompetitionFields) Category() Category { return CategoryCompetition }

func (f *CompetitionFields) Set(key, value string) error {
	value = core.CleanString(value)
	switch key {
	case "competitionName":
		f.CompetitionName = value
	case "competitionLevel":
		f.CompetitionLevel = CompetitionLevel(core.CleanString(value, true /* lower */))
	case "achievement":
		f.Achievement = value
	case "teamMembers":
		f.TeamMembers = core.SplitList(value)
	case "competitionYear":
		year, err := parseYear(key, value)
		if err != nil {
			return err
		}
		f.CompetitionYear = year
	default:
		return unknownField(CategoryCompetition, key)
	}
	return nil
}

func (f *CompetitionFields) Value(key string) string {
	switch key {
	case "competitionName":
		return f.CompetitionName
	case "competitionLevel":
		return string(f.CompetitionLevel)
	case "achievement":
		return f.Achievement
	case "teamMembers":
		return core.JoinList(f.TeamMembers)
	case "competitionYear":
		return formatYear(f.CompetitionYear)
	}
	return ""
}

func (f *CompetitionFields) clone() CategoryFields {
	cp := *f
	cp.TeamMembers = append([]string(nil), f.TeamMembers...)
	return &cp
}

// helpers

func parseYear(key, value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	year, err := strconv.Atoi(value)
	if err != nil {
		return 0, fieldError(key, "must be a year like 2024")
	}
	return year, nil
}

func formatYear(year int) string {
	if year == 0 {
		return ""
	}
	return strconv.Itoa(year)
}

func fieldError(key, msg string) error {
	return core.NewValidationError(nil, core.FieldError{Field: key, Error: msg})
}

func unknownField(c Category, key string) error {
	return errors.Wrapf(ErrUnknownField, "%s has no field %q", c, key)
}
