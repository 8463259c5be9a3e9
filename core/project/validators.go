package project

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/showcase/core"
)

var (
	// custom validation tags & texts
	academicYearTag  = "academicyear"
	academicYearText = "{0} must look like 2023/2024"

	academicYearRgx = regexp.MustCompile(`^(\d{4})/(\d{4})$`)
)

func init() {
	_ = core.Validate.RegisterValidation(academicYearTag, academicYearValidation)
	core.RegisterCustomTranslation(academicYearTag, academicYearText)
}

// academicYearValidation accepts two consecutive years, e.g. 2023/2024.
func academicYearValidation(fl validator.FieldLevel) bool {
	m := academicYearRgx.FindStringSubmatch(fl.Field().String())
	if m == nil {
		return false
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	return end == start+1
}

func formatAcademicYear(start int) string {
	return fmt.Sprintf("%d/%d", start, start+1)
}
