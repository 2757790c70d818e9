package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"vendorplan/internal/capture"
	"vendorplan/internal/config"
	"vendorplan/internal/ics"
	appLog "vendorplan/internal/log"
	"vendorplan/internal/mail"
	"vendorplan/internal/planner"
	"vendorplan/internal/route"
	"vendorplan/internal/source"
)

//go:embed templates/*.html
var templateFS embed.FS

// Server exposes the planner session over HTTP: the HTML page, the JSON
// view model, downloads and redirects.
type Server struct {
	cfg     *config.Config
	planner *planner.Planner
	loader  source.Loader
	capture capture.Func
	router  chi.Router
	page    *template.Template
}

// NewServer constructs a new Server. loader is used by /api/reload and
// shot by /snapshot.png; either may be nil, which disables the endpoint.
func NewServer(cfg *config.Config, p *planner.Planner, loader source.Loader, shot capture.Func) *Server {
	s := &Server{
		cfg:     cfg,
		planner: p,
		loader:  loader,
		capture: shot,
		router:  chi.NewRouter(),
		page: template.Must(template.New("index.html").
			Funcs(template.FuncMap{"pathID": url.PathEscape}).
			ParseFS(templateFS, "templates/index.html")),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	return requestLogger(h)
}

// StartServer runs an HTTP server bound to cfg.Listen until ctx is
// cancelled, then shuts it down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, s *Server) error {
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	r := s.router

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleIndex)
	r.Get("/clear", s.handleClear)

	r.Route("/events/{id}", func(r chi.Router) {
		r.Post("/route", s.handleToggleRoute)
		r.Get("/calendar.ics", s.handleCalendar)
		r.Get("/mail", s.handleMail)
	})

	r.Get("/route", s.handleRoute)
	r.Get("/route/calendar.ics", s.handleRouteCalendar)
	r.Get("/snapshot.png", s.handleSnapshot)

	r.Route("/api", func(r chi.Router) {
		r.Get("/view", s.handleAPIView)
		r.Put("/criteria", s.handleAPISetCriteria)
		r.Delete("/criteria", s.handleAPIClearCriteria)
		r.Post("/selection/{id}", s.handleAPIToggleSelection)
		r.Get("/route", s.handleAPIRoute)
		r.Post("/reload", s.handleAPIReload)
	})
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Blank credentials count as disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Vendor Planner", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestLogger tags every request with an id (kept from X-Request-ID when
// the client sends one) and logs it once the handler returns.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		logf := appLog.Info
		if r.URL.Path == "/health" {
			logf = appLog.Debug
		}
		logf("http request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, planner.ErrUnknownEvent),
		errors.Is(err, ics.ErrNoStart),
		errors.Is(err, mail.ErrNoOrganizerEmail):
		return http.StatusNotFound
	case errors.Is(err, route.ErrEmptyRoute):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// errorText is the message shown to the user for err.
func errorText(err error) string {
	if errors.Is(err, route.ErrEmptyRoute) {
		return route.EmptyRouteMessage
	}
	return err.Error()
}

// selfURL is the address a local headless browser uses to reach this
// server.
func (s *Server) selfURL() string {
	host, port, err := net.SplitHostPort(s.cfg.Listen)
	if err != nil {
		return "http://" + s.cfg.Listen + "/"
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
