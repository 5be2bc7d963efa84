// Package http is the API surface: route registration, middleware
// chain, authentication and the JSON boundary.
package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"splitperfect/internal/auth"
	"splitperfect/internal/config"
	"splitperfect/internal/log"
	"splitperfect/internal/metrics"
	"splitperfect/internal/middleware/ratelimit"
	"splitperfect/internal/middleware/security"
	"splitperfect/internal/middleware/trace"
	"splitperfect/internal/services"
	"splitperfect/internal/storage"
)

type Server struct {
	httpServer *http.Server

	rooms    *services.RoomService
	bills    *services.BillService
	store    storage.Store
	jwt      *auth.JWTManager
	verifier auth.GoogleVerifier

	limiter     *ratelimit.Limiter
	logger      *log.Logger
	frontendURL string
	maxUpload   int64
}

// Deps carries everything the server needs; the cmd entrypoint wires
// it from config.
type Deps struct {
	Config   *config.Config
	Rooms    *services.RoomService
	Bills    *services.BillService
	Store    storage.Store
	JWT      *auth.JWTManager
	Verifier auth.GoogleVerifier
	Metrics  *metrics.Metrics
	Logger   *log.Logger
}

func NewServer(deps Deps) *Server {
	s := &Server{
		rooms:       deps.Rooms,
		bills:       deps.Bills,
		store:       deps.Store,
		jwt:         deps.JWT,
		verifier:    deps.Verifier,
		limiter:     ratelimit.NewLimiter(deps.Config.RequestsPerMinute),
		logger:      deps.Logger.WithComponent(log.ComponentHTTP),
		frontendURL: deps.Config.FrontendURL,
		maxUpload:   deps.Config.MaxUploadSize,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.Handle("GET /metrics", deps.Metrics.Handler())

	mux.HandleFunc("POST /auth/google", s.handleGoogleAuth)
	mux.HandleFunc("GET /auth/me", s.authed(s.handleMe))

	mux.HandleFunc("POST /rooms", s.authed(s.handleCreateRoom))
	mux.HandleFunc("POST /rooms/join", s.authed(s.handleJoinRoom))
	mux.HandleFunc("GET /rooms", s.authed(s.handleListRooms))
	mux.HandleFunc("GET /rooms/{id}", s.authed(s.handleGetRoom))
	mux.HandleFunc("GET /rooms/{id}/summary", s.authed(s.handleRoomSummary))
	mux.HandleFunc("DELETE /rooms/{id}", s.authed(s.handleDeleteRoom))

	mux.HandleFunc("POST /bills/upload", s.authed(s.handleUploadReceipt))
	mux.HandleFunc("POST /bills/parse", s.authed(s.handleParseReceipt))
	mux.HandleFunc("GET /bills/parse/{key}", s.authed(s.handleParsedReceipt))
	mux.HandleFunc("POST /bills/items", s.authed(s.handleCreateBill))
	mux.HandleFunc("GET /bills/room/{id}", s.authed(s.handleRoomBills))
	mux.HandleFunc("GET /bills/{id}", s.authed(s.handleGetBill))
	mux.HandleFunc("DELETE /bills/{id}", s.authed(s.handleDeleteBill))

	var observe trace.Observer
	if deps.Metrics != nil {
		observe = deps.Metrics.ObserveRequest
	}

	var handler http.Handler = mux
	handler = s.cors(handler)
	handler = s.limiter.Middleware(trace.ClientIP)(handler)
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = trace.New(deps.Logger, observe).Handler(handler)

	s.httpServer = &http.Server{
		Addr:              ":" + deps.Config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("server listening", "addr", s.httpServer.Addr, log.FieldOperation, log.OpStartup)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the full middleware chain for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userContextKey struct{}

// authed validates the bearer token and stores the user id in the
// request context.
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			respondServiceError(w, auth.ErrMissingToken)
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			respondServiceError(w, auth.ErrInvalidToken)
			return
		}

		claims, err := s.jwt.Validate(token)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			respondServiceError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey{}, userID)
		next(w, r.WithContext(ctx))
	}
}

func currentUserID(r *http.Request) int64 {
	id, _ := r.Context().Value(userContextKey{}).(int64)
	return id
}

// cors admits the configured frontend origin.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && origin == s.frontendURL {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Max-Age", "600")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
