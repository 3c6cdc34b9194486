package view

import "strings"

// FallbackError is shown when a failure carries no message of its own.
const FallbackError = "failed to fetch"

type Status int

const (
	Idle Status = iota
	Loading
	Loaded
	Failed
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// State is the committed view state of one panel. Data and Params are only
// meaningful when Status is Loaded; Err only when it is Failed. Stale marks
// loaded data that is being refetched for a newer parameter set.
type State[P any, T any] struct {
	Status Status
	Data   T
	Params P
	Err    string
	Stale  bool
}

func (s State[P, T]) IsLoaded() bool {
	return s.Status == Loaded
}

// Spinner reports whether a loading indicator should replace the panel
// content, which is only the case when there is nothing to show yet.
func (s State[P, T]) Spinner() bool {
	return s.Status == Loading
}

func errorMessage(err error) string {
	if err == nil {
		return FallbackError
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return FallbackError
}
