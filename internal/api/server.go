package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/JustinTDCT/SerialDesk/internal/cache"
	"github.com/JustinTDCT/SerialDesk/internal/config"
	"github.com/JustinTDCT/SerialDesk/internal/db"
	"github.com/JustinTDCT/SerialDesk/internal/httputil"
	"github.com/JustinTDCT/SerialDesk/internal/jobs"
	"github.com/JustinTDCT/SerialDesk/internal/logger"
	"github.com/JustinTDCT/SerialDesk/internal/metrics"
	"github.com/JustinTDCT/SerialDesk/internal/repository"
	"github.com/JustinTDCT/SerialDesk/internal/store"
	"github.com/JustinTDCT/SerialDesk/internal/upload"
	"github.com/JustinTDCT/SerialDesk/internal/version"
)

// Deps are the collaborators a Server is built from. Cache may be nil.
type Deps struct {
	Config      *config.Config
	Provider    db.Provider
	Logger      *logger.Logger
	Metrics     *metrics.Metrics
	Cache       *cache.SnapshotCache
	Maintenance jobs.Dispatcher
	Version     version.Info
}

type Server struct {
	config      *config.Config
	provider    db.Provider
	log         *logger.Logger
	metrics     *metrics.Metrics
	cache       *cache.SnapshotCache
	maintenance jobs.Dispatcher
	uploads     *upload.Store
	limiter     *ipLimiter
	proxies     []netip.Prefix
	version     version.Info
	router      *http.ServeMux
	httpServer  *http.Server
	started     time.Time
}

func NewServer(d Deps) *Server {
	s := &Server{
		config:      d.Config,
		provider:    d.Provider,
		log:         d.Logger.Named("api"),
		metrics:     d.Metrics,
		cache:       d.Cache,
		maintenance: d.Maintenance,
		uploads:     upload.NewStore(d.Config.UploadDir, d.Config.UploadURLPrefix),
		limiter:     newIPLimiter(d.Config.WriteRateLimit, d.Config.WriteRateBurst),
		proxies:     parseTrustedProxies(d.Config.TrustedProxies, d.Logger),
		version:     d.Version,
		router:      http.NewServeMux(),
		started:     time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Entities
	s.router.Handle("/api/channels", s.dispatch(methods{
		http.MethodGet:    s.withDB(s.handleGetChannels),
		http.MethodPost:   s.withDB(s.handleCreateChannel),
		http.MethodPut:    s.withDB(s.handleUpdateChannel),
		http.MethodDelete: s.withDB(s.handleDeleteChannel),
	}))
	s.router.Handle("/api/serials", s.dispatch(methods{
		http.MethodGet:    s.withDB(s.handleGetSerials),
		http.MethodPost:   s.withDB(s.handleCreateSerial),
		http.MethodPut:    s.withDB(s.handleUpdateSerial),
		http.MethodDelete: s.withDB(s.handleDeleteSerial),
	}))
	s.router.Handle("/api/episodes", s.dispatch(methods{
		http.MethodGet:    s.withDB(s.handleGetEpisodes),
		http.MethodPost:   s.withDB(s.handleCreateEpisode),
		http.MethodPut:    s.withDB(s.handleUpdateEpisode),
		http.MethodDelete: s.withDB(s.handleDeleteEpisode),
	}))
	s.router.Handle("/api/notices", s.dispatch(methods{
		http.MethodGet:    s.withDB(s.handleGetNotices),
		http.MethodPost:   s.withDB(s.handleCreateNotice),
		http.MethodPut:    s.withDB(s.handleUpdateNotice),
		http.MethodDelete: s.withDB(s.handleDeleteNotice),
	}))
	s.router.Handle("/api/admob-ads", s.dispatch(methods{
		http.MethodGet: s.withDB(s.handleGetAds),
		http.MethodPut: s.withDB(s.handleUpdateAd),
	}))

	// Aggregate snapshot for the consumer app
	s.router.Handle("/api/get-all-data", s.dispatch(methods{
		http.MethodGet: s.withDB(s.handleGetAllData),
	}))

	// Operations
	health := s.dispatch(methods{http.MethodGet: s.handleHealth})
	s.router.Handle("/health", health)
	s.router.Handle("/api/health", health)
	s.router.Handle("/api/status", s.dispatch(methods{http.MethodGet: s.handleStatus}))
	s.router.Handle("/api/upload", s.dispatch(methods{http.MethodPost: s.handleUpload}))
	s.router.Handle("/api/maintenance/report", s.dispatch(methods{
		http.MethodGet:  s.withDB(s.handleMaintenanceReport),
		http.MethodPost: s.handleRunMaintenance,
	}))
	s.router.Handle("/api/maintenance/{task}", s.dispatch(methods{
		http.MethodPost: s.handleRunMaintenance,
	}))
	if s.metrics != nil {
		s.router.Handle("GET /metrics", s.metrics.Handler())
	}

	// Uploaded images and other static files
	s.router.Handle("GET /assets/", http.FileServer(http.Dir(s.config.StaticDir)))
}

// ──────────────────── Dispatch ────────────────────

type methods map[string]http.HandlerFunc

var methodOrder = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}

// dispatch routes by request method and answers anything else with 405 and
// an Allow header.
func (s *Server) dispatch(m methods) http.Handler {
	allowed := make([]string, 0, len(m))
	for _, method := range methodOrder {
		if _, ok := m[method]; ok {
			allowed = append(allowed, method)
		}
	}
	allow := strings.Join(allowed, ", ")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := m[r.Method]
		if !ok {
			w.Header().Set("Allow", allow)
			httputil.Error(w, http.StatusMethodNotAllowed, fmt.Sprintf("Method %s Not Allowed", r.Method))
			return
		}
		h(w, r)
	})
}

type dbHandlerFunc func(w http.ResponseWriter, r *http.Request, database store.Database)

// withDB acquires a database handle for the request and releases it
// afterwards. DB_OPERATION_TIMEOUT bounds the request context when set.
func (s *Server) withDB(next dbHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.config.DBOperationTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.config.DBOperationTimeout)
			defer cancel()
			r = r.WithContext(ctx)
		}

		h, err := s.provider.Acquire(ctx)
		if err != nil {
			s.requestLog(r).Error("database connection failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "Database connection failed")
			return
		}
		defer func() {
			if err := s.provider.Release(context.WithoutCancel(ctx), h); err != nil {
				s.requestLog(r).Warn("database release failed", "error", err)
			}
		}()
		next(w, r, h)
	}
}

// fail maps an accessor error onto a status and envelope. entity is the
// display name ("Channel"), op the verb used in generic failures.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, entity, op string) {
	var validation *repository.ValidationError
	var duplicate *repository.DuplicateError
	switch {
	case errors.As(err, &validation):
		httputil.Error(w, http.StatusBadRequest, validation.Error())
	case errors.As(err, &duplicate):
		httputil.Error(w, http.StatusBadRequest, duplicate.Error())
	case errors.Is(err, repository.ErrNotFound):
		httputil.Error(w, http.StatusNotFound, entity+" not found")
	case db.IsConnectionError(err):
		s.requestLog(r).Error("database connection failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "Database connection failed")
	default:
		s.requestLog(r).Error("request failed", "entity", entity, "op", op, "error", err)
		httputil.Error(w, http.StatusInternalServerError, fmt.Sprintf("Failed to %s %s", op, strings.ToLower(entity)))
	}
}

func (s *Server) requestLog(r *http.Request) *logger.Logger {
	return logger.FromContext(r.Context(), s.log)
}

// invalidate drops the cached snapshot after a successful write.
func (s *Server) invalidate(ctx context.Context) {
	s.cache.Invalidate(context.WithoutCancel(ctx))
}

// ──────────────────── Lifecycle ────────────────────

// Handler wraps the router with the global middleware chain.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = s.rateLimitMiddleware(h)
	h = s.corsMiddleware(h)
	h = s.securityHeadersMiddleware(h)
	h = s.metricsMiddleware(h)
	h = s.requestLogMiddleware(h)
	h = s.recoverMiddleware(h)
	return h
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.log.Info("http server listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
