package types

// Sort directions accepted by the listing endpoints.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// WordCount is one row of the counter table: how many times a user
// has used a word.
type WordCount struct {
	ID       int    `json:"-" db:"id"`
	Username string `json:"username" db:"username"`
	Word     string `json:"word" db:"word"`
	Count    int    `json:"count" db:"count"`
}

// UserTotal aggregates all counts for one user.
type UserTotal struct {
	Username string `json:"username" db:"username"`
	Count    int    `json:"count" db:"count"`
}

// WordTotal aggregates all counts for one word.
type WordTotal struct {
	Word  string `json:"word" db:"word"`
	Count int    `json:"count" db:"count"`
}

// ListQuery carries normalized filter, sort, and window parameters for
// the counter listing. Page and Limit are 1-based and already clamped
// by the time a query reaches the store.
type ListQuery struct {
	Page     int
	Limit    int
	Order    string
	Username string
	Word     string
}

// Offset returns the row offset for the current page.
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}
