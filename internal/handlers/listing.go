package handlers

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/wordtally/apiserver/types"
)

// PaginationMeta describes the returned window's position within the
// full matching set.
type PaginationMeta struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalRows  int  `json:"totalRows"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// FiltersMeta echoes the fuzzy filters that shaped the query.
type FiltersMeta struct {
	Username *string `json:"username"`
	Word     *string `json:"word"`
}

// SortMeta echoes the applied sort.
type SortMeta struct {
	By    string `json:"by"`
	Order string `json:"order"`
}

// Links are the hypermedia navigation URLs; following one reproduces
// an equivalent query for the target page.
type Links struct {
	Self  string  `json:"self"`
	First string  `json:"first"`
	Last  string  `json:"last"`
	Prev  *string `json:"prev,omitempty"`
	Next  *string `json:"next,omitempty"`
}

// newPaginationMeta derives the pagination metadata for a window of
// totalRows rows. totalPages is the ceiling of totalRows/limit and may
// be 0 for an empty result set.
func newPaginationMeta(q types.ListQuery, totalRows int) PaginationMeta {
	totalPages := (totalRows + q.Limit - 1) / q.Limit
	return PaginationMeta{
		Page:       q.Page,
		Limit:      q.Limit,
		TotalRows:  totalRows,
		TotalPages: totalPages,
		HasNext:    q.Page < totalPages,
		HasPrev:    q.Page > 1,
	}
}

// newLinks rebuilds the query string for self/first/last and, when the
// window has neighbors, prev/next.
func newLinks(path string, q types.ListQuery, meta PaginationMeta) Links {
	links := Links{
		Self:  pageURL(path, q, q.Page),
		First: pageURL(path, q, 1),
		Last:  pageURL(path, q, meta.TotalPages),
	}
	if meta.HasPrev {
		prev := pageURL(path, q, q.Page-1)
		links.Prev = &prev
	}
	if meta.HasNext {
		next := pageURL(path, q, q.Page+1)
		links.Next = &next
	}
	return links
}

func pageURL(path string, q types.ListQuery, page int) string {
	values := url.Values{}
	values.Set("page", strconv.Itoa(page))
	values.Set("limit", strconv.Itoa(q.Limit))
	values.Set("order", q.Order)
	if q.Username != "" {
		values.Set("username", q.Username)
	}
	if q.Word != "" {
		values.Set("word", q.Word)
	}
	return path + "?" + values.Encode()
}

// parseListQuery reads page/limit/order (and optionally the fuzzy
// filters) from the request query string. Non-numeric page/limit,
// unknown order tokens, and filter length or charset violations are
// validation failures; out-of-range numeric values are clamped later
// by the service.
func parseListQuery(rawQuery url.Values, withFilters bool) (types.ListQuery, error) {
	q := types.ListQuery{Page: 1, Limit: 10, Order: types.OrderDesc}

	if raw := strings.TrimSpace(rawQuery.Get("page")); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return types.ListQuery{}, errors.New("page must be an integer")
		}
		q.Page = page
	}

	if raw := strings.TrimSpace(rawQuery.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return types.ListQuery{}, errors.New("limit must be an integer")
		}
		q.Limit = limit
	}

	if raw := strings.TrimSpace(rawQuery.Get("order")); raw != "" {
		if raw != types.OrderAsc && raw != types.OrderDesc {
			return types.ListQuery{}, errors.New("order must be asc or desc")
		}
		q.Order = raw
	}

	if !withFilters {
		return q, nil
	}

	if username := rawQuery.Get("username"); username != "" {
		// Shorter fragments than a legal username are allowed here; a
		// two-character filter is still a useful fuzzy probe.
		if len(username) > maxUsernameLen {
			return types.ListQuery{}, errors.New("username must be at most 32 characters")
		}
		if !usernamePattern.MatchString(username) {
			return types.ListQuery{}, errors.New("username contains invalid characters")
		}
		q.Username = username
	}

	if word := rawQuery.Get("word"); word != "" {
		if len(word) > maxWordLen {
			return types.ListQuery{}, errors.New("word must be between 1 and 2000 characters")
		}
		if !usernamePattern.MatchString(word) {
			return types.ListQuery{}, errors.New("word contains invalid characters")
		}
		q.Word = word
	}

	return q, nil
}

const maxWordLen = 2000
