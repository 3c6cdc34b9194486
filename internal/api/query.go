package api

import (
	"net/url"
	"strconv"

	"github.com/Joseda-hg/lazydash/internal/model"
)

// query collects only the parameters that are actually set, so the
// backend applies its own defaults for everything else.
type query url.Values

func newQuery() query {
	return query(url.Values{})
}

func (q query) str(key, value string) query {
	if value != "" {
		url.Values(q).Set(key, value)
	}
	return q
}

func (q query) num(key string, value int) query {
	if value != 0 {
		url.Values(q).Set(key, strconv.Itoa(value))
	}
	return q
}

func (q query) id(key string, value int64) query {
	if value != 0 {
		url.Values(q).Set(key, strconv.FormatInt(value, 10))
	}
	return q
}

func (q query) date(key string, value model.Date) query {
	if !value.IsZero() {
		url.Values(q).Set(key, value.String())
	}
	return q
}

func (q query) values() url.Values {
	return url.Values(q)
}
