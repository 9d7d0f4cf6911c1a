package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wordtally/apiserver/internal/services"
	"github.com/wordtally/apiserver/types"
)

// CounterHandler provides the counter listing endpoints.
type CounterHandler struct {
	counterService *services.CounterService
}

// NewCounterHandler constructs a handler with the provided service.
func NewCounterHandler(counterService *services.CounterService) *CounterHandler {
	return &CounterHandler{counterService: counterService}
}

// CounterRouter registers counter routes on the given router. Every
// route is gated by the auth middleware.
func CounterRouter(r chi.Router, counterService *services.CounterService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewCounterHandler(counterService)

	r.Use(authMiddleware)
	r.Get("/", handler.List)
	r.Get("/users", handler.ListUsers)
	r.Get("/words", handler.ListWords)
	r.Get("/users/{username}", handler.ListWordsByUser)
	r.Get("/words/{word}", handler.ListUsersByWord)
}

// List returns one filtered, sorted page of counter rows with
// pagination metadata and navigation links.
func (h *CounterHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r.URL.Query(), true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q = services.Normalize(q)

	entries, total, err := h.counterService.List(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list counts")
		return
	}

	meta := newPaginationMeta(q, total)
	writeJSON(w, http.StatusOK, CounterResponse{
		Data: entries,
		Meta: CounterMeta{
			Pagination: meta,
			Filters:    FiltersMeta{Username: optional(q.Username), Word: optional(q.Word)},
			Sort:       SortMeta{By: "count", Order: q.Order},
		},
		Links: newLinks(r.URL.Path, q, meta),
	})
}

// ListUsers returns one page of per-user totals.
func (h *CounterHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r.URL.Query(), false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q = services.Normalize(q)

	totals, total, err := h.counterService.ListUserTotals(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list user totals")
		return
	}

	meta := newPaginationMeta(q, total)
	writeJSON(w, http.StatusOK, UserTotalsResponse{
		Data:  totals,
		Meta:  aggregateMeta(q, meta),
		Links: newLinks(r.URL.Path, q, meta),
	})
}

// ListWords returns one page of per-word totals.
func (h *CounterHandler) ListWords(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r.URL.Query(), false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q = services.Normalize(q)

	totals, total, err := h.counterService.ListWordTotals(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list word totals")
		return
	}

	meta := newPaginationMeta(q, total)
	writeJSON(w, http.StatusOK, WordTotalsResponse{
		Data:  totals,
		Meta:  aggregateMeta(q, meta),
		Links: newLinks(r.URL.Path, q, meta),
	})
}

// ListWordsByUser returns one page of word counts for one user.
func (h *CounterHandler) ListWordsByUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if msg := validateUsername(username); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	q, err := parseListQuery(r.URL.Query(), false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q = services.Normalize(q)

	totals, total, err := h.counterService.ListWordsByUser(r.Context(), username, q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list words for user")
		return
	}

	meta := newPaginationMeta(q, total)
	writeJSON(w, http.StatusOK, WordTotalsResponse{
		Data:  totals,
		Meta:  aggregateMeta(q, meta),
		Links: newLinks(r.URL.Path, q, meta),
	})
}

// ListUsersByWord returns one page of user counts for one word.
func (h *CounterHandler) ListUsersByWord(w http.ResponseWriter, r *http.Request) {
	word := chi.URLParam(r, "word")
	if word == "" || len(word) > maxWordLen || !usernamePattern.MatchString(word) {
		writeError(w, http.StatusBadRequest, "word contains invalid characters")
		return
	}

	q, err := parseListQuery(r.URL.Query(), false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q = services.Normalize(q)

	totals, total, err := h.counterService.ListUsersByWord(r.Context(), word, q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users for word")
		return
	}

	meta := newPaginationMeta(q, total)
	writeJSON(w, http.StatusOK, UserTotalsResponse{
		Data:  totals,
		Meta:  aggregateMeta(q, meta),
		Links: newLinks(r.URL.Path, q, meta),
	})
}

// CounterMeta is the metadata block of the full listing response.
type CounterMeta struct {
	Pagination PaginationMeta `json:"pagination"`
	Filters    FiltersMeta    `json:"filters"`
	Sort       SortMeta       `json:"sort"`
}

// AggregateMeta is the metadata block of the aggregate listings, which
// carry no fuzzy filters.
type AggregateMeta struct {
	Pagination PaginationMeta `json:"pagination"`
	Sort       SortMeta       `json:"sort"`
}

// CounterResponse is the full listing payload.
type CounterResponse struct {
	Data  []services.ListEntry `json:"data"`
	Meta  CounterMeta          `json:"meta"`
	Links Links                `json:"links"`
}

// UserTotalsResponse is the per-user aggregate payload.
type UserTotalsResponse struct {
	Data  []types.UserTotal `json:"data"`
	Meta  AggregateMeta     `json:"meta"`
	Links Links             `json:"links"`
}

// WordTotalsResponse is the per-word aggregate payload.
type WordTotalsResponse struct {
	Data  []types.WordTotal `json:"data"`
	Meta  AggregateMeta     `json:"meta"`
	Links Links             `json:"links"`
}

func aggregateMeta(q types.ListQuery, pagination PaginationMeta) AggregateMeta {
	return AggregateMeta{
		Pagination: pagination,
		Sort:       SortMeta{By: "count", Order: q.Order},
	}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
