package model

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Injection modes reported by the backend for a query.
const (
	ModeRagRetrieval      = "rag_retrieval"
	ModeDirectInjection   = "direct_injection"
	ModeSelectedDocuments = "selected_documents"
)

// Modes lists the injection modes in display order.
var Modes = []string{ModeRagRetrieval, ModeDirectInjection, ModeSelectedDocuments}

// Date is a calendar day in YYYY-MM-DD form. The zero value means unset.
type Date string

func NewDate(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

func ParseDate(value string) (Date, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", nil
	}
	parsed, err := time.Parse(dateLayout, trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid date %q", value)
	}
	return NewDate(parsed), nil
}

func (d Date) IsZero() bool {
	return d == ""
}

func (d Date) Time() time.Time {
	parsed, err := time.Parse(dateLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func (d Date) AddDays(n int) Date {
	if d.IsZero() {
		return d
	}
	return NewDate(d.Time().AddDate(0, 0, n))
}

func (d Date) String() string {
	return string(d)
}

// DaysInRange counts the days between start and end, both inclusive.
func DaysInRange(start, end Date) int {
	if start.IsZero() || end.IsZero() {
		return 0
	}
	days := int(end.Time().Sub(start.Time()).Hours()/24) + 1
	if days < 1 {
		return 1
	}
	return days
}

// LastDays returns the range of n days ending on today.
func LastDays(today time.Time, n int) (Date, Date) {
	if n < 1 {
		n = 1
	}
	end := NewDate(today)
	return end.AddDays(-(n - 1)), end
}

// PreviousPeriod returns the range of the same length ending the day
// before start.
func PreviousPeriod(start, end Date) (Date, Date) {
	prevEnd := start.AddDays(-1)
	return prevEnd.AddDays(-(DaysInRange(start, end) - 1)), prevEnd
}

// FilterParams is the full set of user-adjustable parameters of a page.
// It is comparable so two sets can be checked for equality with ==.
type FilterParams struct {
	Page        int
	PageSize    int
	Query       string
	SortBy      string
	Mode        string
	Status      string
	Judgment    string
	StartDate   Date
	EndDate     Date
	KnowledgeID int64
}

// Days is the inclusive length of the date range.
func (p FilterParams) Days() int {
	return DaysInRange(p.StartDate, p.EndDate)
}

// Offset is the zero-based index of the first item of the current page.
func (p FilterParams) Offset() int {
	if p.Page < 1 || p.PageSize < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// Values encodes the set fields the way they appear in an address.
func (p FilterParams) Values() url.Values {
	values := url.Values{}
	if p.Page > 1 {
		values.Set("page", strconv.Itoa(p.Page))
	}
	if p.Query != "" {
		values.Set("q", p.Query)
	}
	if p.SortBy != "" {
		values.Set("sort_by", p.SortBy)
	}
	if p.Mode != "" {
		values.Set("mode", p.Mode)
	}
	if p.Status != "" {
		values.Set("status", p.Status)
	}
	if p.Judgment != "" {
		values.Set("judgment", p.Judgment)
	}
	if !p.StartDate.IsZero() {
		values.Set("start_date", p.StartDate.String())
	}
	if !p.EndDate.IsZero() {
		values.Set("end_date", p.EndDate.String())
	}
	return values
}

// MergeValues overlays the fields present in values onto p. Malformed
// entries are ignored.
func (p FilterParams) MergeValues(values url.Values) FilterParams {
	if value := strings.TrimSpace(values.Get("page")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed >= 1 {
			p.Page = parsed
		}
	}
	if values.Has("q") {
		p.Query = strings.TrimSpace(values.Get("q"))
	}
	if values.Has("sort_by") {
		p.SortBy = strings.TrimSpace(values.Get("sort_by"))
	}
	if values.Has("mode") {
		p.Mode = strings.TrimSpace(values.Get("mode"))
	}
	if values.Has("status") {
		p.Status = strings.TrimSpace(values.Get("status"))
	}
	if values.Has("judgment") {
		p.Judgment = strings.TrimSpace(values.Get("judgment"))
	}
	if parsed, err := ParseDate(values.Get("start_date")); err == nil && !parsed.IsZero() {
		p.StartDate = parsed
	}
	if parsed, err := ParseDate(values.Get("end_date")); err == nil && !parsed.IsZero() {
		p.EndDate = parsed
	}
	if p.StartDate > p.EndDate && !p.EndDate.IsZero() {
		p.StartDate, p.EndDate = p.EndDate, p.StartDate
	}
	return p
}

// Page is one page of a paginated listing as returned by the backend.
type Page[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// PageCount trusts the echoed page size.
func (p Page[T]) PageCount() int {
	return PageCount(p.Total, p.PageSize)
}

func (p Page[T]) HasNext() bool {
	return p.Page < p.PageCount()
}

func (p Page[T]) HasPrev() bool {
	return p.Page > 1
}

func PageCount(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
