package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"medcal/internal/backend"
	"medcal/internal/calendar"
	"medcal/internal/config"
	"medcal/internal/course"
	appLog "medcal/internal/log"
	"medcal/internal/model"
)

// Calendar is the event store the API reads from and submits to.
type Calendar interface {
	Snapshot() calendar.Snapshot
	Refresh(ctx context.Context) error
	Submit(ctx context.Context, sub course.Submission) (*model.CourseRecord, error)
	OffsetMinutes() int
}

// DrugCatalog is the backend's drug list.
type DrugCatalog interface {
	Drugs(ctx context.Context) ([]model.Drug, error)
	CreateDrug(ctx context.Context, in model.DrugInput) (*model.Drug, error)
	UpdateDrug(ctx context.Context, id model.ID, in model.DrugInput) (*model.Drug, error)
	DeleteDrug(ctx context.Context, id model.ID) error
}

// Identity exposes the logged-in backend session.
type Identity interface {
	Session() *backend.Session
}

// Server provides the local HTTP API over one user's calendar.
type Server struct {
	cfg    *config.Config
	cal    Calendar
	drugs  DrugCatalog
	id     Identity
	router chi.Router
}

func NewServer(cfg *config.Config, cal Calendar, drugs DrugCatalog, id Identity) *Server {
	s := &Server{
		cfg:   cfg,
		cal:   cal,
		drugs: drugs,
		id:    id,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		r.Use(s.basicAuthMiddleware)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/calendar.ics", s.handleICS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/events", s.handleEvents)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/courses", s.handleCreateCourse)

		r.Get("/drugs", s.handleListDrugs)
		r.Group(func(r chi.Router) {
			r.Use(s.requireSuperuser)
			r.Post("/drugs", s.handleCreateDrug)
			r.Put("/drugs/{id}", s.handleUpdateDrug)
			r.Delete("/drugs/{id}", s.handleDeleteDrug)
		})
	})
	return r
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware guards everything except /health.
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
			w.Header().Set("WWW-Authenticate", `Basic realm="medcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireSuperuser rejects catalog changes from regular users before they
// reach the backend.
func (s *Server) requireSuperuser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := s.id.Session()
		if sess == nil {
			writeError(w, http.StatusUnauthorized, "not logged in to the backend")
			return
		}
		if !sess.User.IsSuperuser {
			writeError(w, http.StatusForbidden, "drug catalog changes require a superuser")
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

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeFieldError(w http.ResponseWriter, field, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Field: field})
}
