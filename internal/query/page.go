package query

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var (
	ErrInvalidPage   = errors.New("invalid page")
	ErrInvalidFilter = errors.New("invalid filter")
)

// FilterError names the query parameter that failed to parse.
type FilterError struct {
	Param  string
	Reason string
}

func (e *FilterError) Error() string {
	return e.Param + ": " + e.Reason
}

func (e *FilterError) Unwrap() error {
	return ErrInvalidFilter
}

// PageRequest is a 1-based page number plus a clamped page size.
type PageRequest struct {
	Number int
	Size   int
}

// ParsePage reads page and page_size the way a page-number paginator does:
// a bad or missing page_size falls back to the default and anything above the
// cap is clamped. A page that is not a positive integer is an error.
func ParsePage(rawPage, rawSize string) (PageRequest, error) {
	p := PageRequest{Number: 1, Size: DefaultPageSize}

	if s := strings.TrimSpace(rawSize); s != "" {
		n, err := strconv.Atoi(s)
		if err == nil && n > 0 {
			p.Size = min(n, MaxPageSize)
		}
	}

	if s := strings.TrimSpace(rawPage); s != "" {
		if s == "last" {
			p.Number = -1
			return p, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return PageRequest{}, ErrInvalidPage
		}
		p.Number = n
	}

	return p, nil
}

func (p PageRequest) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// Resolve turns "last" into a concrete page once the total is known and
// rejects pages past the end. Page 1 is always valid, even when empty.
func (p PageRequest) Resolve(total int) (PageRequest, error) {
	pages := PageCount(total, p.Size)

	if p.Number == -1 {
		p.Number = pages
	}

	if p.Number > pages {
		return PageRequest{}, ErrInvalidPage
	}

	return p, nil
}

func PageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

// Page is the paginated envelope returned to clients.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// NewPage fills next/previous links from the request URL, keeping every other
// query parameter intact.
func NewPage[T any](items []T, total int, req PageRequest, base *url.URL) Page[T] {
	if items == nil {
		items = []T{}
	}

	out := Page[T]{Count: total, Results: items}
	if base == nil {
		return out
	}

	if req.Number < PageCount(total, req.Size) {
		link := pageLink(base, req.Number+1)
		out.Next = &link
	}

	if req.Number > 1 {
		link := pageLink(base, req.Number-1)
		out.Previous = &link
	}

	return out
}

func pageLink(base *url.URL, page int) string {
	u := *base
	q := u.Query()

	if page == 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}

	u.RawQuery = q.Encode()
	return u.String()
}

// UUIDParam parses an optional uuid filter.
func UUIDParam(name, raw string) (*string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, &FilterError{Param: name, Reason: "must be a valid UUID"}
	}

	s := id.String()
	return &s, nil
}

// TimeParam parses an optional ISO-8601 instant. Date-only values mean
// midnight UTC.
func TimeParam(name, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}

	return nil, &FilterError{Param: name, Reason: "must be an ISO-8601 datetime"}
}
