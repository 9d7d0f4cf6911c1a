package services

import (
	"context"
	"sort"

	"github.com/wordtally/apiserver/internal/similarity"
	"github.com/wordtally/apiserver/types"
)

const (
	// DefaultPage is used when no page parameter is supplied.
	DefaultPage = 1
	// DefaultLimit is used when no limit parameter is supplied.
	DefaultLimit = 10
	// MaxLimit caps the page size regardless of the supplied value.
	MaxLimit = 100
)

// CountRepository defines persistence operations for word counts.
type CountRepository interface {
	List(ctx context.Context, q types.ListQuery) ([]types.WordCount, int, error)
	ListUserTotals(ctx context.Context, q types.ListQuery) ([]types.UserTotal, int, error)
	ListWordTotals(ctx context.Context, q types.ListQuery) ([]types.WordTotal, int, error)
	ListWordsByUser(ctx context.Context, username string, q types.ListQuery) ([]types.WordTotal, int, error)
	ListUsersByWord(ctx context.Context, word string, q types.ListQuery) ([]types.UserTotal, int, error)
	Increment(ctx context.Context, username, word string, delta int) error
}

// ListEntry is one listing row. Similarity is set only when a fuzzy
// filter was part of the query.
type ListEntry struct {
	Username   string   `json:"username"`
	Word       string   `json:"word"`
	Count      int      `json:"count"`
	Similarity *float64 `json:"similarity,omitempty"`
}

// CounterService encapsulates the counter listing use-cases.
type CounterService struct {
	repo CountRepository
}

func NewCounterService(repo CountRepository) *CounterService {
	return &CounterService{repo: repo}
}

// Normalize forces the query window and sort order into legal ranges:
// page >= 1, limit in [1, MaxLimit], order exactly "asc" or "desc".
func Normalize(q types.ListQuery) types.ListQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = 1
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Order != types.OrderAsc && q.Order != types.OrderDesc {
		q.Order = types.OrderDesc
	}
	return q
}

// List executes the bounded counter query and returns one page of rows
// plus the total number of matching rows. When a fuzzy filter is
// present, each row is scored against the filter value (the username
// filter wins when both are given) and the page is re-sorted by
// descending similarity. The database can only do cheap wildcard
// matching, so the bigram ranking is applied to the already-limited
// page; global ranking accuracy is traded for bounded query cost.
func (s *CounterService) List(ctx context.Context, q types.ListQuery) ([]ListEntry, int, error) {
	q = Normalize(q)

	counts, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	entries := make([]ListEntry, len(counts))
	for i, wc := range counts {
		entries[i] = ListEntry{
			Username: wc.Username,
			Word:     wc.Word,
			Count:    wc.Count,
		}
	}

	if q.Username != "" || q.Word != "" {
		for i := range entries {
			var score float64
			if q.Username != "" {
				score = similarity.Score(entries[i].Username, q.Username)
			} else {
				score = similarity.Score(entries[i].Word, q.Word)
			}
			entries[i].Similarity = &score
		}
		sort.SliceStable(entries, func(i, j int) bool {
			return *entries[i].Similarity > *entries[j].Similarity
		})
	}

	return entries, total, nil
}

// ListUserTotals returns one page of per-user totals.
func (s *CounterService) ListUserTotals(ctx context.Context, q types.ListQuery) ([]types.UserTotal, int, error) {
	return s.repo.ListUserTotals(ctx, Normalize(q))
}

// ListWordTotals returns one page of per-word totals.
func (s *CounterService) ListWordTotals(ctx context.Context, q types.ListQuery) ([]types.WordTotal, int, error) {
	return s.repo.ListWordTotals(ctx, Normalize(q))
}

// ListWordsByUser returns one page of word counts for a single user.
func (s *CounterService) ListWordsByUser(ctx context.Context, username string, q types.ListQuery) ([]types.WordTotal, int, error) {
	return s.repo.ListWordsByUser(ctx, username, Normalize(q))
}

// ListUsersByWord returns one page of user counts for a single word.
func (s *CounterService) ListUsersByWord(ctx context.Context, word string, q types.ListQuery) ([]types.UserTotal, int, error) {
	return s.repo.ListUsersByWord(ctx, word, Normalize(q))
}

// Increment records delta additional uses of word by username.
func (s *CounterService) Increment(ctx context.Context, username, word string, delta int) error {
	if delta < 1 {
		delta = 1
	}
	return s.repo.Increment(ctx, username, word, delta)
}
