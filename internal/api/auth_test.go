package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flack-chat/flack-server/internal/config"
	"github.com/flack-chat/flack-server/internal/database"
	"github.com/flack-chat/flack-server/internal/storage"
	"github.com/flack-chat/flack-server/internal/testutil"
	"github.com/flack-chat/flack-server/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestApp(t *testing.T, db database.FlackRepository, store storage.FileStore) (*FlackApp, *http.ServeMux) {
	t.Helper()

	cfg, err := config.NewConfig("localhost:8080", "postgres://test", []string{"http://localhost:3000"})
	assert.NoError(t, err)

	mux := http.NewServeMux()
	app := NewFlackApp(mux, testutil.TestLogger(t), nil, db, nil, store, cfg)

	return app, mux
}

func Test_requestToken(t *testing.T) {
	t.Run("query parameter", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/rooms?token=abc123", nil)
		assert.Equal(t, "abc123", requestToken(r))
	})

	t.Run("authorization header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
		r.Header.Set("Authorization", "Token abc123")
		assert.Equal(t, "abc123", requestToken(r))
	})

	t.Run("query parameter wins over header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/rooms?token=fromquery", nil)
		r.Header.Set("Authorization", "Token fromheader")
		assert.Equal(t, "fromquery", requestToken(r))
	})

	t.Run("bearer scheme is not accepted", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
		r.Header.Set("Authorization", "Bearer abc123")
		assert.Empty(t, requestToken(r))
	})

	t.Run("absent token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
		assert.Empty(t, requestToken(r))
	})
}

func Test_newTokenKey(t *testing.T) {
	key := newTokenKey()
	assert.Len(t, key, 32)
	assert.NotContains(t, key, "-")
	assert.NotEqual(t, key, newTokenKey(), "keys must be unique per call")
}

func Test_passwordHashing(t *testing.T) {
	hash, err := hashPassword("hunter2")
	assert.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)

	assert.True(t, verifyPassword(hash, "hunter2"))
	assert.False(t, verifyPassword(hash, "hunter3"))
}

func TestFlackApp_Register(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db := &database.MockFlackRepository{}
		db.On("CreateAccount", mock.Anything, mock.MatchedBy(func(p database.CreateAccountParams) bool {
			return p.Username == "alice" && p.Email == "alice@example.com" &&
				verifyPassword(p.PasswordHash, "hunter2")
		})).Return(database.User{Id: 1, Username: "alice", Email: "alice@example.com"}, nil)
		_, mux := newTestApp(t, db, nil)

		body, _ := json.Marshal(RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "hunter2"})
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body)))

		assert.Equal(t, http.StatusCreated, w.Code)

		var user types.User
		assert.NoError(t, json.NewDecoder(w.Body).Decode(&user))
		assert.Equal(t, 1, user.Id)
		assert.Equal(t, "alice", user.Username)
		db.AssertExpectations(t)
	})

	t.Run("missing fields", func(t *testing.T) {
		db := &database.MockFlackRepository{}
		_, mux := newTestApp(t, db, nil)

		body, _ := json.Marshal(RegisterRequest{Username: "alice"})
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		db.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything)
	})

	t.Run("malformed body", func(t *testing.T) {
		_, mux := newTestApp(t, &database.MockFlackRepository{}, nil)

		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader([]byte("{"))))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestFlackApp_Login(t *testing.T) {
	hash, err := hashPassword("hunter2")
	assert.NoError(t, err)

	t.Run("success returns a token", func(t *testing.T) {
		db := &database.MockFlackRepository{}
		db.On("GetAccountByUsername", mock.Anything, "alice").
			Return(database.User{Id: 1, Username: "alice", PasswordHash: hash}, nil)
		db.On("GetOrCreateToken", mock.Anything, 1, mock.AnythingOfType("string")).
			Return(database.Token{Key: "tok123", AccountId: 1}, nil)
		_, mux := newTestApp(t, db, nil)

		body, _ := json.Marshal(LoginRequest{Username: "alice", Password: "hunter2"})
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))

		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Message string `json:"message"`
			User    struct {
				Name string `json:"name"`
				Id   int    `json:"id"`
			} `json:"user"`
			Token string `json:"token"`
		}
		assert.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "success", resp.Message)
		assert.Equal(t, "alice", resp.User.Name)
		assert.Equal(t, 1, resp.User.Id)
		assert.Equal(t, "tok123", resp.Token)
		db.AssertExpectations(t)
	})

	t.Run("wrong password", func(t *testing.T) {
		db := &database.MockFlackRepository{}
		db.On("GetAccountByUsername", mock.Anything, "alice").
			Return(database.User{Id: 1, Username: "alice", PasswordHash: hash}, nil)
		_, mux := newTestApp(t, db, nil)

		body, _ := json.Marshal(LoginRequest{Username: "alice", Password: "wrong"})
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		db.AssertNotCalled(t, "GetOrCreateToken", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown user", func(t *testing.T) {
		db := &database.MockFlackRepository{}
		db.On("GetAccountByUsername", mock.Anything, "ghost").
			Return(database.User{}, sql.ErrNoRows)
		_, mux := newTestApp(t, db, nil)

		body, _ := json.Marshal(LoginRequest{Username: "ghost", Password: "hunter2"})
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("empty credentials", func(t *testing.T) {
		_, mux := newTestApp(t, &database.MockFlackRepository{}, nil)

		body, _ := json.Marshal(LoginRequest{})
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestFlackApp_TokenAuth(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		_, mux := newTestApp(t, &database.MockFlackRepository{}, nil)

		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/rooms", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown token", func(t *testing.T) {
		db := &database.MockFlackRepository{}
		db.On("GetAccountByToken", mock.Anything, "bogus").
			Return(database.User{}, sql.ErrNoRows)
		_, mux := newTestApp(t, db, nil)

		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/rooms?token=bogus", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token attaches the user", func(t *testing.T) {
		db := &database.MockFlackRepository{}
		db.On("GetAccountByToken", mock.Anything, "tok123").
			Return(database.User{Id: 1, Username: "alice"}, nil)
		db.On("ListRoomsByParticipant", mock.Anything, 1, mock.Anything, true).
			Return([]database.Room{}, nil)
		_, mux := newTestApp(t, db, nil)

		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/rooms?token=tok123", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		db.AssertExpectations(t)
	})
}

func Test_resolveToken(t *testing.T) {
	app, _ := newTestApp(t, &database.MockFlackRepository{}, nil)

	_, err := app.resolveToken(context.Background(), "")
	assert.Error(t, err)
	assert.EqualError(t, err, "token not provided")
}

func Test_userContext(t *testing.T) {
	ctx := context.Background()

	_, ok := UserFrom(ctx)
	assert.False(t, ok)

	user := types.User{Id: 1, Username: "alice"}
	got, ok := UserFrom(WithUser(ctx, user))
	assert.True(t, ok)
	assert.Equal(t, user, got)
}

func TestApiError(t *testing.T) {
	err := NewInternalServerError(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, err.StatusCode)
	assert.Equal(t, "internal server error: boom", err.Error())
	assert.EqualError(t, errors.Unwrap(err), "boom")

	assert.Equal(t, "not found", NewNotFoundError().Error())
}
