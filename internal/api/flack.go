package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/flack-chat/flack-server/internal/cache"
	"github.com/flack-chat/flack-server/internal/config"
	"github.com/flack-chat/flack-server/internal/database"
	"github.com/flack-chat/flack-server/internal/server"
	"github.com/flack-chat/flack-server/internal/storage"
	"github.com/gorilla/handlers"
)

type FlackApp struct {
	log            *log.Logger
	db             database.FlackRepository
	tokens         *cache.TokenCache
	store          storage.FileStore
	mux            *http.Server
	cs             *server.ChatServer
	allowedOrigins []string
}

func NewFlackApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db database.FlackRepository,
	tokens *cache.TokenCache, store storage.FileStore, cfg *config.Config) *FlackApp {
	s := &FlackApp{
		log:            logger,
		db:             db,
		tokens:         tokens,
		store:          store,
		cs:             cs,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("POST /api/auth/register", s.register)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.Handle("GET /api/users", s.tokenAuth(s.listUsers))
	mux.Handle("GET /api/rooms", s.tokenAuth(s.listRooms))
	mux.Handle("GET /api/messages", s.tokenAuth(s.listMessages))
	mux.Handle("GET /api/files", s.tokenAuth(s.listFiles))
	mux.Handle("PUT /api/files", s.tokenAuth(s.uploadFile))
	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *FlackApp) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				var panicError error
				switch e := err.(type) {
				case error:
					panicError = e
				default:
					panicError = fmt.Errorf("%v", e)
				}
				s.log.Printf("panic: %v", panicError)
				errResp := NewInternalServerError(panicError)
				w.Header().Set("Connection", "close")
				s.writeJson(w, errResp.StatusCode, errResp)
				return
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (s *FlackApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *FlackApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
