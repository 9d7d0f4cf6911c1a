package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/wordtally/apiserver/types"
)

// Sort directions mapped to literal SQL tokens. Anything outside this
// closed set never reaches the ORDER BY position.
var orderTokens = map[string]string{
	types.OrderAsc:  "ASC",
	types.OrderDesc: "DESC",
}

// CountRepository handles persistence for word counts.
type CountRepository struct {
	db *sql.DB
}

func NewCountRepository(db *sql.DB) *CountRepository {
	return &CountRepository{db: db}
}

// List returns one page of counter rows matching the query's filters,
// plus the total number of matching rows. Filter values are bound as
// parameters; only the direction token is interpolated, from the
// closed orderTokens set.
func (r *CountRepository) List(ctx context.Context, q types.ListQuery) ([]types.WordCount, int, error) {
	where, args := buildFilter(q)

	countQuery := `SELECT COUNT(*) FROM counts` + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(`
		SELECT id, username, word, count
		FROM counts%s
		ORDER BY count %s, word ASC, username ASC
		LIMIT $%d OFFSET $%d`,
		where, orderToken(q.Order), len(args)+1, len(args)+2)
	args = append(args, q.Limit, q.Offset())

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	counts := make([]types.WordCount, 0, q.Limit)
	for rows.Next() {
		var wc types.WordCount
		if err := rows.Scan(&wc.ID, &wc.Username, &wc.Word, &wc.Count); err != nil {
			return nil, 0, err
		}
		counts = append(counts, wc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return counts, total, nil
}

// ListUserTotals returns one page of per-user totals ordered by total.
func (r *CountRepository) ListUserTotals(ctx context.Context, q types.ListQuery) ([]types.UserTotal, int, error) {
	const countQuery = `SELECT COUNT(DISTINCT username) FROM counts`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(`
		SELECT username, SUM(count) AS total
		FROM counts
		GROUP BY username
		ORDER BY total %s, username ASC
		LIMIT $1 OFFSET $2`, orderToken(q.Order))

	rows, err := r.db.QueryContext(ctx, listQuery, q.Limit, q.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	totals := make([]types.UserTotal, 0, q.Limit)
	for rows.Next() {
		var ut types.UserTotal
		if err := rows.Scan(&ut.Username, &ut.Count); err != nil {
			return nil, 0, err
		}
		totals = append(totals, ut)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return totals, total, nil
}

// ListWordTotals returns one page of per-word totals ordered by total.
func (r *CountRepository) ListWordTotals(ctx context.Context, q types.ListQuery) ([]types.WordTotal, int, error) {
	const countQuery = `SELECT COUNT(DISTINCT word) FROM counts`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(`
		SELECT word, SUM(count) AS total
		FROM counts
		GROUP BY word
		ORDER BY total %s, word ASC
		LIMIT $1 OFFSET $2`, orderToken(q.Order))

	rows, err := r.db.QueryContext(ctx, listQuery, q.Limit, q.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	totals := make([]types.WordTotal, 0, q.Limit)
	for rows.Next() {
		var wt types.WordTotal
		if err := rows.Scan(&wt.Word, &wt.Count); err != nil {
			return nil, 0, err
		}
		totals = append(totals, wt)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return totals, total, nil
}

// ListWordsByUser returns one page of (word, count) rows for a single user.
func (r *CountRepository) ListWordsByUser(ctx context.Context, username string, q types.ListQuery) ([]types.WordTotal, int, error) {
	const countQuery = `SELECT COUNT(*) FROM counts WHERE username = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, username).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(`
		SELECT word, count
		FROM counts
		WHERE username = $1
		ORDER BY count %s, word ASC
		LIMIT $2 OFFSET $3`, orderToken(q.Order))

	rows, err := r.db.QueryContext(ctx, listQuery, username, q.Limit, q.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	totals := make([]types.WordTotal, 0, q.Limit)
	for rows.Next() {
		var wt types.WordTotal
		if err := rows.Scan(&wt.Word, &wt.Count); err != nil {
			return nil, 0, err
		}
		totals = append(totals, wt)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return totals, total, nil
}

// ListUsersByWord returns one page of (username, count) rows for a single word.
func (r *CountRepository) ListUsersByWord(ctx context.Context, word string, q types.ListQuery) ([]types.UserTotal, int, error) {
	const countQuery = `SELECT COUNT(*) FROM counts WHERE word = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, word).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(`
		SELECT username, count
		FROM counts
		WHERE word = $1
		ORDER BY count %s, username ASC
		LIMIT $2 OFFSET $3`, orderToken(q.Order))

	rows, err := r.db.QueryContext(ctx, listQuery, word, q.Limit, q.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	totals := make([]types.UserTotal, 0, q.Limit)
	for rows.Next() {
		var ut types.UserTotal
		if err := rows.Scan(&ut.Username, &ut.Count); err != nil {
			return nil, 0, err
		}
		totals = append(totals, ut)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return totals, total, nil
}

// Increment adds delta to the count for (username, word), creating the
// row when it does not exist yet.
func (r *CountRepository) Increment(ctx context.Context, username, word string, delta int) error {
	const query = `
		INSERT INTO counts (username, word, count)
		VALUES ($1, $2, $3)
		ON CONFLICT (username, word)
		DO UPDATE SET count = counts.count + EXCLUDED.count`
	_, err := r.db.ExecContext(ctx, query, username, word, delta)
	return err
}

func buildFilter(q types.ListQuery) (string, []any) {
	var predicates []string
	var args []any

	if q.Username != "" {
		args = append(args, fuzzyPattern(q.Username))
		predicates = append(predicates, fmt.Sprintf("username LIKE $%d", len(args)))
	}
	if q.Word != "" {
		args = append(args, fuzzyPattern(q.Word))
		predicates = append(predicates, fmt.Sprintf("word LIKE $%d", len(args)))
	}

	if len(predicates) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(predicates, " AND "), args
}

// fuzzyPattern intersperses LIKE wildcards between every character of
// the filter value, so "di" matches "diablo" and "radio" alike. The
// value itself is parameter-bound; handler-level length caps bound the
// pattern size.
func fuzzyPattern(value string) string {
	var b strings.Builder
	b.WriteByte('%')
	for _, r := range value {
		b.WriteRune(r)
		b.WriteByte('%')
	}
	return b.String()
}

func orderToken(order string) string {
	if token, ok := orderTokens[order]; ok {
		return token
	}
	return orderTokens[types.OrderDesc]
}
