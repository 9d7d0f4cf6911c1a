package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wordtally/apiserver/internal/services"
	"github.com/wordtally/apiserver/internal/token"
	"github.com/wordtally/apiserver/types"
)

type fakeCountRepo struct {
	rows       []types.WordCount
	userTotals []types.UserTotal
	wordTotals []types.WordTotal
	total      int
	err        error
	listCalls  int
}

func (f *fakeCountRepo) List(ctx context.Context, q types.ListQuery) ([]types.WordCount, int, error) {
	f.listCalls++
	return f.rows, f.total, f.err
}

func (f *fakeCountRepo) ListUserTotals(ctx context.Context, q types.ListQuery) ([]types.UserTotal, int, error) {
	return f.userTotals, f.total, f.err
}

func (f *fakeCountRepo) ListWordTotals(ctx context.Context, q types.ListQuery) ([]types.WordTotal, int, error) {
	return f.wordTotals, f.total, f.err
}

func (f *fakeCountRepo) ListWordsByUser(ctx context.Context, username string, q types.ListQuery) ([]types.WordTotal, int, error) {
	return f.wordTotals, f.total, f.err
}

func (f *fakeCountRepo) ListUsersByWord(ctx context.Context, word string, q types.ListQuery) ([]types.UserTotal, int, error) {
	return f.userTotals, f.total, f.err
}

func (f *fakeCountRepo) Increment(ctx context.Context, username, word string, delta int) error {
	return f.err
}

func newCounterRouter(t *testing.T, repo *fakeCountRepo) (*chi.Mux, *http.Cookie) {
	t.Helper()
	codec, err := token.NewCodec([]byte("test-secret"))
	require.NoError(t, err)
	signed, err := codec.Issue(1, "tester", types.RoleUser)
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Route("/counter", func(r chi.Router) {
		CounterRouter(r, services.NewCounterService(repo), RequireAuth(codec))
	})
	return router, &http.Cookie{Name: AuthCookieName, Value: signed}
}

func doRequest(router *chi.Mux, target string, cookie *http.Cookie) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	router.ServeHTTP(rec, req)
	return rec
}

func TestCounterRequiresAuth(t *testing.T) {
	repo := &fakeCountRepo{}
	router, _ := newCounterRouter(t, repo)

	for _, target := range []string{
		"/counter",
		"/counter/users",
		"/counter/words",
		"/counter/users/diablo",
		"/counter/words/hello",
	} {
		rec := doRequest(router, target, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}
	assert.Zero(t, repo.listCalls, "store must not be touched without auth")
}

func TestCounterListScenario(t *testing.T) {
	// 108 matching rows, window page=2 limit=3.
	repo := &fakeCountRepo{
		rows: []types.WordCount{
			{Username: "dimitri", Word: "hello", Count: 80},
			{Username: "di", Word: "world", Count: 70},
			{Username: "candide", Word: "hey", Count: 60},
		},
		total: 108,
	}
	router, cookie := newCounterRouter(t, repo)

	rec := doRequest(router, "/counter?page=2&limit=3&username=di", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CounterResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	require.Len(t, resp.Data, 3)
	for _, row := range resp.Data {
		require.NotNil(t, row.Similarity, "each row carries a similarity score")
	}
	// Re-ranked by descending similarity.
	assert.Equal(t, "di", resp.Data[0].Username)
	for i := 1; i < len(resp.Data); i++ {
		assert.LessOrEqual(t, *resp.Data[i].Similarity, *resp.Data[i-1].Similarity)
	}

	assert.Equal(t, 2, resp.Meta.Pagination.Page)
	assert.Equal(t, 3, resp.Meta.Pagination.Limit)
	assert.Equal(t, 108, resp.Meta.Pagination.TotalRows)
	assert.Equal(t, 36, resp.Meta.Pagination.TotalPages)
	assert.True(t, resp.Meta.Pagination.HasNext)
	assert.True(t, resp.Meta.Pagination.HasPrev)

	require.NotNil(t, resp.Meta.Filters.Username)
	assert.Equal(t, "di", *resp.Meta.Filters.Username)
	assert.Nil(t, resp.Meta.Filters.Word)
	assert.Equal(t, "count", resp.Meta.Sort.By)
	assert.Equal(t, types.OrderDesc, resp.Meta.Sort.Order)

	assert.Contains(t, resp.Links.Self, "page=2")
	assert.Contains(t, resp.Links.Last, "page=36")
	require.NotNil(t, resp.Links.Next)
	assert.Contains(t, *resp.Links.Next, "page=3")
}

func TestCounterListNoFilter(t *testing.T) {
	repo := &fakeCountRepo{
		rows: []types.WordCount{
			{Username: "alice", Word: "hello", Count: 9},
			{Username: "bob", Word: "world", Count: 4},
		},
		total: 2,
	}
	router, cookie := newCounterRouter(t, repo)

	rec := doRequest(router, "/counter", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CounterResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	require.Len(t, resp.Data, 2)
	// Store order (descending count) stands; no similarity attached.
	assert.Equal(t, "alice", resp.Data[0].Username)
	assert.Nil(t, resp.Data[0].Similarity)
	assert.Nil(t, resp.Meta.Filters.Username)
	assert.Nil(t, resp.Meta.Filters.Word)
	assert.Nil(t, resp.Links.Prev)
	assert.Nil(t, resp.Links.Next)
}

func TestCounterListClampsWindow(t *testing.T) {
	repo := &fakeCountRepo{total: 0}
	router, cookie := newCounterRouter(t, repo)

	rec := doRequest(router, "/counter?page=-5&limit=500", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CounterResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Meta.Pagination.Page)
	assert.Equal(t, 100, resp.Meta.Pagination.Limit)
}

func TestCounterListValidation(t *testing.T) {
	repo := &fakeCountRepo{}
	router, cookie := newCounterRouter(t, repo)

	for _, target := range []string{
		"/counter?page=abc",
		"/counter?limit=abc",
		"/counter?order=sideways",
		"/counter?username=bad+name",
		"/counter?word=he%25llo",
	} {
		rec := doRequest(router, target, cookie)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
	assert.Zero(t, repo.listCalls, "invalid queries never reach the store")
}

func TestCounterListStoreFailure(t *testing.T) {
	repo := &fakeCountRepo{err: errors.New("connection refused")}
	router, cookie := newCounterRouter(t, repo)

	rec := doRequest(router, "/counter", cookie)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.NotContains(t, body.Message, "connection refused")
}

func TestCounterUserTotals(t *testing.T) {
	repo := &fakeCountRepo{
		userTotals: []types.UserTotal{
			{Username: "alice", Count: 40},
			{Username: "bob", Count: 12},
		},
		total: 2,
	}
	router, cookie := newCounterRouter(t, repo)

	rec := doRequest(router, "/counter/users?order=desc", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp UserTotalsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "alice", resp.Data[0].Username)
	assert.Equal(t, 40, resp.Data[0].Count)
	assert.Equal(t, "count", resp.Meta.Sort.By)
}

func TestCounterWordsByUserValidatesUsername(t *testing.T) {
	repo := &fakeCountRepo{}
	router, cookie := newCounterRouter(t, repo)

	rec := doRequest(router, "/counter/users/ab", cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
