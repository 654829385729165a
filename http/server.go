package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"asocialoud/domain"
)

// Server provides the http surface of the app: routing, request parsing and
// response encoding. All the actual semantics live behind the domain service
// interfaces it holds.
type Server struct {
	router *mux.Router
	server *http.Server

	ms domain.MemberService
	fs domain.FollowService
	ds domain.FeedService
}

// NewServer returns a new instance of the server, registers all necessary
// routes and gives their handlers access to the services passed in.
func NewServer(ms domain.MemberService, fs domain.FollowService, ds domain.FeedService) *Server {
	s := &Server{
		router: mux.NewRouter(),
		ms:     ms,
		fs:     fs,
		ds:     ds,
	}

	s.registerMemberRoutes(s.router)
	s.registerFollowRoutes(s.router)
	s.registerFeedRoutes(s.router)

	// Middleware that runs on every request.
	s.router.Use(requestLogger, newRateLimiter().middleware, setContentTypeJSON)
	return s
}

// Handler returns the server's routing tree, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts to listen and serve on the specified port until the context is
// canceled, then drains in-flight requests before returning.
func (s *Server) Run(ctx context.Context, port int, clientURL string) error {
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{clientURL}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	s.server = &http.Server{
		Addr:    ":" + strconv.Itoa(port),
		Handler: cors(s.router),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", s.server.Addr)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

// The setContentTypeJSON middleware sets the content type to "application/json".
func setContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
