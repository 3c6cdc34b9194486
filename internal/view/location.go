package view

import (
	"net/url"
	"strings"
)

// Location is the navigable address of the app: a path plus query. Filter
// changes are written back with Replace so they never add history entries;
// only navigation between screens pushes.
type Location struct {
	entries []address
}

type address struct {
	path  string
	query url.Values
}

// ParseLocation accepts "/path?query" or just "?query"; an empty string
// means the root path.
func ParseLocation(raw string) (*Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = "/"
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &Location{entries: []address{{path: CleanPath(parsed.Path), query: parsed.Query()}}}, nil
}

func NewLocation(path string, query url.Values) *Location {
	return &Location{entries: []address{{path: CleanPath(path), query: cloneValues(query)}}}
}

func (l *Location) current() address {
	return l.entries[len(l.entries)-1]
}

func (l *Location) Path() string {
	return l.current().path
}

func (l *Location) Query() url.Values {
	return cloneValues(l.current().query)
}

func (l *Location) String() string {
	cur := l.current()
	if encoded := cur.query.Encode(); encoded != "" {
		return cur.path + "?" + encoded
	}
	return cur.path
}

// HistoryLen is the number of history entries.
func (l *Location) HistoryLen() int {
	return len(l.entries)
}

func (l *Location) Push(path string, query url.Values) {
	l.entries = append(l.entries, address{path: CleanPath(path), query: cloneValues(query)})
}

func (l *Location) Replace(path string, query url.Values) {
	l.entries[len(l.entries)-1] = address{path: CleanPath(path), query: cloneValues(query)}
}

// Back pops the current entry. It reports false at the first entry.
func (l *Location) Back() bool {
	if len(l.entries) < 2 {
		return false
	}
	l.entries = l.entries[:len(l.entries)-1]
	return true
}

// Pick keeps only the listed keys of values.
func Pick(values url.Values, keys ...string) url.Values {
	out := url.Values{}
	for _, key := range keys {
		if list, ok := values[key]; ok {
			out[key] = append([]string(nil), list...)
		}
	}
	return out
}

// CleanPath gives every spelling of a path one form: a single leading
// slash and no trailing one, so "/queries/" and "queries" are "/queries".
func CleanPath(path string) string {
	return "/" + strings.Trim(strings.TrimSpace(path), "/")
}

func cloneValues(values url.Values) url.Values {
	out := make(url.Values, len(values))
	for key, list := range values {
		out[key] = append([]string(nil), list...)
	}
	return out
}
