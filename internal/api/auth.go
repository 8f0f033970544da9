package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/flack-chat/flack-server/internal/database"
	"github.com/flack-chat/flack-server/internal/types"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const userKey contextKey = "user"

func WithUser(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func UserFrom(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(userKey).(types.User)
	return user, ok
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// requestToken pulls the bearer token from the query string, falling back to
// an "Authorization: Token <key>" header.
func requestToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	auth := r.Header.Get("Authorization")
	if key, ok := strings.CutPrefix(auth, "Token "); ok {
		return key
	}

	return ""
}

// resolveToken maps an opaque token to a user, consulting the cache before
// the database.
func (s *FlackApp) resolveToken(ctx context.Context, token string) (types.User, error) {
	if token == "" {
		return types.User{}, errors.New("token not provided")
	}

	if user, err := s.tokens.GetUser(ctx, token); err == nil && user != nil {
		return *user, nil
	}

	dbUser, err := s.db.GetAccountByToken(ctx, token)
	if err != nil {
		return types.User{}, err
	}

	user := types.User{
		Id:       dbUser.Id,
		Username: dbUser.Username,
		Email:    dbUser.Email,
	}

	if err := s.tokens.SetUser(ctx, token, user); err != nil {
		s.log.Println("token cache set:", err)
	}

	return user, nil
}

func (s *FlackApp) tokenAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.resolveToken(r.Context(), requestToken(r))
		if err != nil {
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		next(w, r.WithContext(WithUser(r.Context(), user)))
	}
}

func (s *FlackApp) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	newUser, err := s.db.CreateAccount(r.Context(), database.CreateAccountParams{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: pwdHash,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, types.User{
		Id:        newUser.Id,
		Username:  newUser.Username,
		Email:     newUser.Email,
		CreatedAt: newUser.CreatedAt,
	})
}

func (s *FlackApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&lr); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if lr.Username == "" || lr.Password == "" {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbUser, err := s.db.GetAccountByUsername(r.Context(), lr.Username)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !verifyPassword(dbUser.PasswordHash, lr.Password) {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	token, err := s.db.GetOrCreateToken(r.Context(), dbUser.Id, newTokenKey())
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user := types.User{
		Id:       dbUser.Id,
		Username: dbUser.Username,
	}

	if err := s.tokens.SetUser(r.Context(), token.Key, user); err != nil {
		s.log.Println("token cache set:", err)
	}

	s.writeJson(w, http.StatusOK, map[string]any{
		"message": "success",
		"user": map[string]any{
			"name": user.Username,
			"id":   user.Id,
		},
		"token": token.Key,
	})
}

// newTokenKey builds an opaque bearer token.
func newTokenKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func hashPassword(passwd string) (string, error) {
	passwdHash, err := bcrypt.GenerateFromPassword([]byte(passwd), bcrypt.DefaultCost)
	return string(passwdHash), err
}

func verifyPassword(passwdHash, passwd string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(passwd))
	return err == nil
}
