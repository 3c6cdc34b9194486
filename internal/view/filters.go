package view

import (
	"strings"

	"github.com/Joseda-hg/lazydash/internal/model"
)

// Filters holds the user-adjustable parameters of one page. Every setter
// reports whether anything changed; a change to any field other than the
// page number moves the page back to 1.
type Filters struct {
	params model.FilterParams
}

func NewFilters(initial model.FilterParams) *Filters {
	if initial.Page < 1 {
		initial.Page = 1
	}
	initial.Query = strings.TrimSpace(initial.Query)
	initial.StartDate, initial.EndDate = ordered(initial.StartDate, initial.EndDate)
	return &Filters{params: initial}
}

func (f *Filters) Params() model.FilterParams {
	return f.params
}

func (f *Filters) SetPage(page int) bool {
	if page < 1 {
		page = 1
	}
	if page == f.params.Page {
		return false
	}
	f.params.Page = page
	return true
}

func (f *Filters) SetKeyword(keyword string) bool {
	keyword = strings.TrimSpace(keyword)
	if keyword == f.params.Query {
		return false
	}
	f.params.Query = keyword
	f.params.Page = 1
	return true
}

// SetDateRange swaps a reversed range instead of rejecting it.
func (f *Filters) SetDateRange(start, end model.Date) bool {
	start, end = ordered(start, end)
	if start == f.params.StartDate && end == f.params.EndDate {
		return false
	}
	f.params.StartDate = start
	f.params.EndDate = end
	f.params.Page = 1
	return true
}

func (f *Filters) SetSortBy(sortBy string) bool {
	if sortBy == f.params.SortBy {
		return false
	}
	f.params.SortBy = sortBy
	f.params.Page = 1
	return true
}

func (f *Filters) SetMode(mode string) bool {
	if mode == f.params.Mode {
		return false
	}
	f.params.Mode = mode
	f.params.Page = 1
	return true
}

func (f *Filters) SetStatus(status string) bool {
	if status == f.params.Status {
		return false
	}
	f.params.Status = status
	f.params.Page = 1
	return true
}

func (f *Filters) SetJudgment(judgment string) bool {
	if judgment == f.params.Judgment {
		return false
	}
	f.params.Judgment = judgment
	f.params.Page = 1
	return true
}

func (f *Filters) SetKnowledgeID(id int64) bool {
	if id == f.params.KnowledgeID {
		return false
	}
	f.params.KnowledgeID = id
	f.params.Page = 1
	return true
}

func ordered(start, end model.Date) (model.Date, model.Date) {
	if !start.IsZero() && !end.IsZero() && start > end {
		return end, start
	}
	return start, end
}
