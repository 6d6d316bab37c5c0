package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"true-north/internal/logging"
	"true-north/internal/metrics"
	"true-north/internal/model"
	"true-north/internal/service"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Catalog is the part of the catalog service exposed over HTTP.
type Catalog interface {
	ListAll(ctx context.Context) ([]model.Challenge, error)
	Create(ctx context.Context, input service.ChallengeInput) (*model.Challenge, error)
}

// Server is the admin and ops HTTP surface.
type Server struct {
	db      Pinger
	catalog Catalog
	token   string
	limiter *rateLimiter
	log     *logrus.Entry
	handler http.Handler
	httpSrv *http.Server
}

type Option func(*Server)

// WithTrustedProxies lists peer IPs whose X-Forwarded-For header is honoured.
func WithTrustedProxies(ips ...string) Option {
	return func(s *Server) { s.limiter.trust(ips...) }
}

func NewServer(addr, token string, db Pinger, catalog Catalog, opts ...Option) *Server {
	s := &Server{
		db:      db,
		catalog: catalog,
		token:   token,
		limiter: newRateLimiter(5, 30),
		log:     logging.Component("admin"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = s.routes()
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.limiter.middleware)
	r.Use(monitor)

	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/challenges", s.listChallenges).Methods(http.MethodGet)
	api.Handle("/challenges", s.requireToken(http.HandlerFunc(s.createChallenge))).Methods(http.MethodPost)

	return handlers.CombinedLoggingHandler(logging.Logger.Writer(), r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	go s.limiter.cleanup(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.httpSrv.Addr).Info("admin server listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("admin server stopped")
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		s.log.WithError(err).Warn("health check failed")
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": "database connection failed"})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "true-north"})
}

func (s *Server) listChallenges(w http.ResponseWriter, r *http.Request) {
	challenges, err := s.catalog.ListAll(r.Context())
	if err != nil {
		s.log.WithError(err).Error("list challenges")
		respondWithError(w, statusFor(err), "failed to load challenges")
		return
	}
	groups := service.GroupByCategory(challenges)
	if groups == nil {
		groups = []service.CategoryGroup{}
	}
	respondWithJSON(w, http.StatusOK, groups)
}

func (s *Server) createChallenge(w http.ResponseWriter, r *http.Request) {
	var input service.ChallengeInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ch, err := s.catalog.Create(r.Context(), input)
	if err != nil {
		status := statusFor(err)
		if status != http.StatusBadRequest {
			s.log.WithError(err).Error("create challenge")
			respondWithError(w, status, "failed to create challenge")
			return
		}
		s.log.WithError(err).Warn("create challenge")
		respondWithError(w, status, err.Error())
		return
	}
	s.log.WithFields(logrus.Fields{"challenge_id": ch.ID, "category": ch.Category}).Info("challenge created")
	respondWithJSON(w, http.StatusCreated, ch)
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			metrics.AuthRejections.WithLabelValues("admin_disabled").Inc()
			respondWithError(w, http.StatusUnauthorized, "admin API disabled")
			return
		}
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			metrics.AuthRejections.WithLabelValues("admin_token").Inc()
			respondWithError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
