package review

import (
	"time"

	"github.com/trezcool/showcase/core"
	"github.com/trezcool/showcase/core/project"
)

type QueryFilter struct {
	Search      string           `query:"search"`
	Category    project.Category `query:"category"`
	CreatedFrom time.Time        `query:"created_from"`
	CreatedTo   time.Time        `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Category == "" && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Category = project.Category(core.CleanString(string(qf.Category), true /* lower */))
}

// Apply returns the projects matching every set criterion of qf, in their original order.
// Search does a case-insensitive match on one of the title, description or owner name.
// The input slice is never modified.
func (qf QueryFilter) Apply(projects []project.ReviewableProject) []project.ReviewableProject {
	qf.Clean()
	filtered := make([]project.ReviewableProject, 0, len(projects))
	for _, p := range projects {
		if qf.matches(p) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

func (qf QueryFilter) matches(p project.ReviewableProject) bool {
	if qf.Search != "" &&
		!core.ContainsFold(p.Title, qf.Search) &&
		!core.ContainsFold(p.Description, qf.Search) &&
		!core.ContainsFold(p.Owner.FullName, qf.Search) {
		return false
	}
	if qf.Category != "" && p.Category != qf.Category {
		return false
	}
	if !qf.CreatedFrom.IsZero() && p.CreatedAt.Before(qf.CreatedFrom.UTC()) {
		return false
	}
	if !qf.CreatedTo.IsZero() && p.CreatedAt.After(qf.CreatedTo.UTC()) {
		return false
	}
	return true
}
