// Package httpadmin exposes the broker's management surface: health,
// prometheus metrics, login, ACL inspection, and per-key dispatch status.
package httpadmin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shareleaderd/broker/internal/acl"
	"github.com/shareleaderd/broker/internal/dispatch"
	"github.com/shareleaderd/broker/internal/jwtauth"
	"github.com/shareleaderd/broker/internal/model"
)

// Server is the admin HTTP surface.
type Server struct {
	router     chi.Router
	supervisor *dispatch.Supervisor
	jwt        *jwtauth.Manager
	acl        *acl.Checker
	log        *slog.Logger
}

// New builds a Server wired to its collaborators. supervisor, jwt, and acl
// may each be nil, disabling the endpoints that depend on them. gatherer is
// the prometheus registry the dispatch counters were registered on; nil falls
// back to the default registry.
func New(supervisor *dispatch.Supervisor, jwt *jwtauth.Manager, aclChecker *acl.Checker, gatherer prometheus.Gatherer, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{supervisor: supervisor, jwt: jwt, acl: aclChecker, log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Post("/login", s.handleLogin)
	r.Get("/acl", s.handleACL)
	r.Get("/dispatch/{group}/{topic}", s.handleDispatchStatus)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type loginRequest struct {
	Subject string `json:"subject"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.jwt == nil {
		http.Error(w, "authentication not configured", http.StatusServiceUnavailable)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Subject == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	token, err := s.jwt.Generate(req.Subject)
	if err != nil {
		s.log.Error("issue token failed", "error", err)
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

// handleACL reports whether the caller-supplied resource/topic/action combo
// (via query params) is allowed, rather than dumping the full entry set.
func (s *Server) handleACL(w http.ResponseWriter, r *http.Request) {
	if s.acl == nil {
		http.Error(w, "acl not configured", http.StatusServiceUnavailable)
		return
	}
	q := r.URL.Query()
	resourceName := q.Get("resource_name")
	topic := q.Get("topic")
	ip := q.Get("ip")
	resourceType := acl.ResourceClientID
	if strings.EqualFold(q.Get("resource_type"), "user") {
		resourceType = acl.ResourceUser
	}
	action := acl.ActionAll
	switch strings.ToLower(q.Get("action")) {
	case "publish":
		action = acl.ActionPublish
	case "subscribe":
		action = acl.ActionSubscribe
	}

	allowed := s.acl.Allowed(resourceType, resourceName, topic, ip, action)
	writeJSON(w, http.StatusOK, map[string]any{"allowed": allowed})
}

type dispatchStatusView struct {
	Group   string `json:"group"`
	Topic   string `json:"topic"`
	Running bool   `json:"running"`
}

func (s *Server) handleDispatchStatus(w http.ResponseWriter, r *http.Request) {
	if s.supervisor == nil {
		http.Error(w, "dispatch supervisor not configured", http.StatusServiceUnavailable)
		return
	}
	key := model.ShareLeaderKey{
		GroupName: chi.URLParam(r, "group"),
		TopicID:   chi.URLParam(r, "topic"),
	}
	writeJSON(w, http.StatusOK, dispatchStatusView{
		Group:   key.GroupName,
		Topic:   key.TopicID,
		Running: s.supervisor.Running(key),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
