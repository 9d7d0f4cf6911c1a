package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/wordtally/apiserver/internal/services"
	"github.com/wordtally/apiserver/internal/store"
	"github.com/wordtally/apiserver/internal/token"
	"github.com/wordtally/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// AuthCookieName is the cookie carrying the signed token.
const AuthCookieName = "Authorization"

const (
	minUsernameLen = 3
	maxUsernameLen = 32
	minPasswordLen = 6
	maxPasswordLen = 128
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9\-_]*$`)
	passwordPattern = regexp.MustCompile(`^[a-zA-Z0-9\-_!@#$%^&*()]*$`)
)

// AuthHandler provides credential endpoints and the auth middleware.
type AuthHandler struct {
	userService *services.UserService
	codec       *token.Codec
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, codec *token.Codec) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		codec:       codec,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, userService *services.UserService, codec *token.Codec) {
	handler := NewAuthHandler(userService, codec)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.With(handler.RequireAuth).Get("/token", handler.Token)
	r.With(handler.RequireAuth).Patch("/password", handler.ChangePassword)
	r.With(handler.RequireAuth).Patch("/username", handler.ChangeUsername)
}

// RequireAuth enforces cookie authentication and injects the verified
// claims into the request context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return requireAuth(h.codec)(next)
}

// RequireAuth constructs auth middleware for other routers.
func RequireAuth(codec *token.Codec) func(http.Handler) http.Handler {
	return requireAuth(codec)
}

// requireAuth is a pure gate over the wrapped handler: it reads the
// auth cookie, verifies the token, and either attaches the claims to
// the request context or short-circuits with 401. "No token" and "bad
// token" share one outcome kind; the cause never reaches the client
// beyond a human-readable message.
func requireAuth(codec *token.Codec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(AuthCookieName)
			if err != nil || strings.TrimSpace(cookie.Value) == "" {
				writeError(w, http.StatusUnauthorized, "Must login.")
				return
			}

			claims, err := codec.Verify(cookie.Value)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Must login.")
				return
			}

			ctx := context.WithValue(r.Context(), contextClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Register creates a new user account, issues a token, and sets the
// auth cookie.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateCredentials(req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if _, err := h.userService.GetByUsername(r.Context(), req.Username); err == nil {
		writeError(w, http.StatusConflict, "username already exists")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	user, err := h.userService.Create(r.Context(), types.User{
		Username:     req.Username,
		Role:         types.RoleUser,
		PasswordHash: string(hashed),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	if err := h.setAuthCookie(w, user); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}
	writeJSON(w, http.StatusCreated, UserResponse{ID: user.ID, Username: user.Username, Role: user.Role})
}

// Login verifies credentials, issues a token, and sets the auth cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	user, err := h.userService.GetByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := h.setAuthCookie(w, user); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{ID: user.ID, Username: user.Username, Role: user.Role})
}

// Token returns the identity of the presented token, with account
// creation time.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Must login.")
		return
	}

	user, err := h.userService.GetByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "Must login.")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, UserTimestampResponse{
		ID:        user.ID,
		Username:  user.Username,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
}

// ChangePassword updates the caller's password after re-verifying the
// current one.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Must login.")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validatePassword(req.NewPassword); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	user, err := h.userService.GetByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update password")
		return
	}
	if err := h.userService.ChangePassword(r.Context(), user.ID, string(hashed)); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update password")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ChangeUsername updates the caller's username after re-verifying the
// password, and re-issues the cookie so the embedded username stays
// current.
func (h *AuthHandler) ChangeUsername(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Must login.")
		return
	}

	var req ChangeUsernameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateUsername(req.Username); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	user, err := h.userService.GetByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if _, err := h.userService.GetByUsername(r.Context(), req.Username); err == nil {
		writeError(w, http.StatusConflict, "username already exists")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "failed to update username")
		return
	}

	if err := h.userService.ChangeUsername(r.Context(), user.ID, req.Username); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update username")
		return
	}

	user.Username = req.Username
	if err := h.setAuthCookie(w, user); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{ID: user.ID, Username: user.Username, Role: user.Role})
}

func (h *AuthHandler) setAuthCookie(w http.ResponseWriter, user types.User) error {
	signed, err := h.codec.Issue(user.ID, user.Username, user.Role)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(token.DefaultTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type ChangeUsernameRequest struct {
	Password string `json:"password"`
	Username string `json:"username"`
}

type UserResponse struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type UserTimestampResponse struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
}

func validateCredentials(req CredentialsRequest) string {
	if msg := validateUsername(req.Username); msg != "" {
		return msg
	}
	return validatePassword(req.Password)
}

func validateUsername(username string) string {
	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return "username must be between 3 and 32 characters"
	}
	if !usernamePattern.MatchString(username) {
		return "username contains invalid characters"
	}
	return ""
}

func validatePassword(password string) string {
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return "password must be between 6 and 128 characters"
	}
	if !passwordPattern.MatchString(password) {
		return "password contains invalid characters"
	}
	return ""
}
