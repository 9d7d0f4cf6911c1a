package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wordtally/apiserver/internal/services"
	"github.com/wordtally/apiserver/internal/store"
	"github.com/wordtally/apiserver/internal/token"
	"github.com/wordtally/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

type fakeUserRepo struct {
	users   map[string]types.User
	nextID  int
	queries int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]types.User{}, nextID: 1}
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	f.queries++
	for _, user := range f.users {
		if user.ID == id {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (types.User, error) {
	f.queries++
	if user, ok := f.users[username]; ok {
		return user, nil
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	f.queries++
	user.ID = f.nextID
	f.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	f.users[user.Username] = user
	return user, nil
}

func (f *fakeUserRepo) UpdateUsername(ctx context.Context, id int, username string) error {
	f.queries++
	for old, user := range f.users {
		if user.ID == id {
			delete(f.users, old)
			user.Username = username
			f.users[username] = user
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeUserRepo) UpdatePasswordHash(ctx context.Context, id int, passwordHash string) error {
	f.queries++
	for name, user := range f.users {
		if user.ID == id {
			user.PasswordHash = passwordHash
			f.users[name] = user
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeUserRepo) Delete(ctx context.Context, id int) error {
	f.queries++
	for name, user := range f.users {
		if user.ID == id {
			delete(f.users, name)
			return nil
		}
	}
	return store.ErrNotFound
}

func newTestCodec(t *testing.T) *token.Codec {
	t.Helper()
	codec, err := token.NewCodec([]byte("test-secret"))
	require.NoError(t, err)
	return codec
}

func seedUser(t *testing.T, repo *fakeUserRepo, username, password, role string) types.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user, err := repo.Create(context.Background(), types.User{
		Username:     username,
		Role:         role,
		PasswordHash: string(hashed),
	})
	require.NoError(t, err)
	repo.queries = 0
	return user
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestRequireAuthMissingCookie(t *testing.T) {
	codec := newTestCodec(t)
	repo := newFakeUserRepo()

	invoked := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		invoked = true
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/counter", nil)
	RequireAuth(codec)(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, invoked, "wrapped handler must not run")
	assert.Zero(t, repo.queries, "store must not be touched")

	body := decodeError(t, rec)
	assert.Equal(t, "Unauthorized", body.Error)
	assert.NotEmpty(t, body.Message)
}

func TestRequireAuthBadToken(t *testing.T) {
	codec := newTestCodec(t)

	invoked := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		invoked = true
	})

	for _, value := range []string{"garbage", "a.b.c", ""} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/counter", nil)
		req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: value})
		RequireAuth(codec)(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Unauthorized", decodeError(t, rec).Error)
	}
	assert.False(t, invoked)
}

func TestRequireAuthExpiredToken(t *testing.T) {
	expiredCodec, err := token.NewCodecWithTTL([]byte("test-secret"), -time.Hour)
	require.NoError(t, err)
	signed, err := expiredCodec.Issue(1, "alice", types.RoleUser)
	require.NoError(t, err)

	codec := newTestCodec(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/counter", nil)
	req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: signed})

	RequireAuth(codec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("wrapped handler must not run")
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthValidToken(t *testing.T) {
	codec := newTestCodec(t)
	signed, err := codec.Issue(7, "diablo", types.RoleModerator)
	require.NoError(t, err)

	var got token.Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := claimsFromContext(r.Context())
		require.NoError(t, err)
		got = claims
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/counter", nil)
	req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: signed})
	RequireAuth(codec)(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, got.UserID)
	assert.Equal(t, "diablo", got.Username)
	assert.Equal(t, types.RoleModerator, got.Role)
}

func TestRegisterSetsCookieAndReturnsUser(t *testing.T) {
	codec := newTestCodec(t)
	repo := newFakeUserRepo()
	handler := NewAuthHandler(services.NewUserService(repo), codec)

	body, _ := json.Marshal(CredentialsRequest{Username: "diablo", Password: "secret123"})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
	handler.Register(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp UserResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "diablo", resp.Username)
	assert.Equal(t, types.RoleUser, resp.Role)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, AuthCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	claims, err := codec.Verify(cookies[0].Value)
	require.NoError(t, err)
	assert.Equal(t, resp.ID, claims.UserID)
	assert.Equal(t, "diablo", claims.Username)
}

func TestRegisterValidation(t *testing.T) {
	codec := newTestCodec(t)
	handler := NewAuthHandler(services.NewUserService(newFakeUserRepo()), codec)

	tests := []CredentialsRequest{
		{Username: "ab", Password: "secret123"},
		{Username: "diablo", Password: "short"},
		{Username: "bad name", Password: "secret123"},
	}
	for _, req := range tests {
		body, _ := json.Marshal(req)
		rec := httptest.NewRecorder()
		handler.Register(rec, httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	codec := newTestCodec(t)
	repo := newFakeUserRepo()
	seedUser(t, repo, "diablo", "secret123", types.RoleUser)
	handler := NewAuthHandler(services.NewUserService(repo), codec)

	body, _ := json.Marshal(CredentialsRequest{Username: "diablo", Password: "secret123"})
	rec := httptest.NewRecorder()
	handler.Register(rec, httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body)))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLogin(t *testing.T) {
	codec := newTestCodec(t)
	repo := newFakeUserRepo()
	seedUser(t, repo, "diablo", "secret123", types.RoleUser)
	handler := NewAuthHandler(services.NewUserService(repo), codec)

	t.Run("success", func(t *testing.T) {
		body, _ := json.Marshal(CredentialsRequest{Username: "diablo", Password: "secret123"})
		rec := httptest.NewRecorder()
		handler.Login(rec, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body)))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, rec.Result().Cookies(), 1)
	})

	t.Run("wrong password", func(t *testing.T) {
		body, _ := json.Marshal(CredentialsRequest{Username: "diablo", Password: "wrongpass"})
		rec := httptest.NewRecorder()
		handler.Login(rec, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body)))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("unknown user", func(t *testing.T) {
		body, _ := json.Marshal(CredentialsRequest{Username: "nobody", Password: "secret123"})
		rec := httptest.NewRecorder()
		handler.Login(rec, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body)))

		// Same outcome as a wrong password.
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestChangePassword(t *testing.T) {
	codec := newTestCodec(t)
	repo := newFakeUserRepo()
	user := seedUser(t, repo, "diablo", "secret123", types.RoleUser)
	handler := NewAuthHandler(services.NewUserService(repo), codec)

	body, _ := json.Marshal(ChangePasswordRequest{CurrentPassword: "secret123", NewPassword: "evenmoresecret"})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/auth/password", bytes.NewReader(body))
	req = req.WithContext(context.WithValue(req.Context(), contextClaimsKey, token.Claims{
		UserID: user.ID, Username: user.Username, Role: user.Role,
	}))
	handler.ChangePassword(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)

	stored, err := repo.GetByUsername(context.Background(), "diablo")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("evenmoresecret")))
}

func TestChangeUsernameReissuesCookie(t *testing.T) {
	codec := newTestCodec(t)
	repo := newFakeUserRepo()
	user := seedUser(t, repo, "diablo", "secret123", types.RoleUser)
	handler := NewAuthHandler(services.NewUserService(repo), codec)

	body, _ := json.Marshal(ChangeUsernameRequest{Password: "secret123", Username: "lilith"})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/auth/username", bytes.NewReader(body))
	req = req.WithContext(context.WithValue(req.Context(), contextClaimsKey, token.Claims{
		UserID: user.ID, Username: user.Username, Role: user.Role,
	}))
	handler.ChangeUsername(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	claims, err := codec.Verify(cookies[0].Value)
	require.NoError(t, err)
	assert.Equal(t, "lilith", claims.Username)
}
