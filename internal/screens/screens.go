// Package screens defines the pages of the dashboard: which panels each one
// loads, which filters it exposes and which of them live in the address.
package screens

import (
	"strconv"
	"strings"
	"time"

	"github.com/Joseda-hg/lazydash/internal/api"
	"github.com/Joseda-hg/lazydash/internal/model"
	"github.com/Joseda-hg/lazydash/internal/view"
)

const (
	PathDashboard      = "/"
	PathKnowledgeBases = "/knowledge-bases"
	PathQueries        = "/queries"
	PathEvaluation     = "/evaluation"
)

// maxTrendDays is the longest series the backend serves.
const maxTrendDays = 90

// DatePresets are the range lengths cycled through with the date key.
var DatePresets = []int{7, 14, 30, 90}

// Deps is shared by every screen constructor.
type Deps struct {
	Client       *api.Client
	Env          view.Env
	Now          func() time.Time
	DefaultDays  int
	PollInterval time.Duration
}

func (d Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d Deps) days() int {
	if d.DefaultDays < 1 {
		return DatePresets[0]
	}
	return d.DefaultDays
}

// Screen is what the renderers need from every page.
type Screen interface {
	Title() string
	Page() *view.Page
}

// ForPath builds the screen living at path. Unknown paths report false and
// fall back to the dashboard.
func ForPath(deps Deps, path string) (Screen, bool) {
	path = view.CleanPath(path)
	switch path {
	case PathDashboard:
		return NewDashboard(deps), true
	case PathKnowledgeBases:
		return NewKnowledgeBases(deps), true
	case PathQueries:
		return NewQueries(deps), true
	case PathEvaluation:
		return NewEvaluation(deps), true
	}
	if rest, ok := strings.CutPrefix(path, PathKnowledgeBases+"/"); ok {
		if id, err := strconv.ParseInt(rest, 10, 64); err == nil && id > 0 {
			return NewKnowledgeBase(deps, id), true
		}
	}
	return NewDashboard(deps), false
}

// trendDays is the length of the selected range, capped to what the
// backend accepts.
func trendDays(p model.FilterParams) int {
	return min(p.Days(), maxTrendDays)
}

func dateScope(p model.FilterParams) model.FilterParams {
	return model.FilterParams{StartDate: p.StartDate, EndDate: p.EndDate}
}

func noScope(model.FilterParams) model.FilterParams {
	return model.FilterParams{}
}

// nextPage advances only when the listing is loaded and not on its last page.
func nextPage[T any](page *view.Page, panel *view.Panel[model.FilterParams, model.Page[T]]) bool {
	state := panel.State()
	if !state.IsLoaded() {
		return false
	}
	return page.NextPage(state.Data.PageCount())
}

// nextPreset returns the preset following the current range length.
func nextPreset(days int) int {
	for i, preset := range DatePresets {
		if preset == days {
			return DatePresets[(i+1)%len(DatePresets)]
		}
	}
	return DatePresets[0]
}

func cycle(options []string, current string) string {
	if len(options) == 0 {
		return current
	}
	for i, option := range options {
		if option == current {
			return options[(i+1)%len(options)]
		}
	}
	return options[0]
}

// withAll prepends the empty "no filter" option.
func withAll(options []string) []string {
	return append([]string{""}, options...)
}
