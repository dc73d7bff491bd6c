// Package httpapi serves the mount daemon's JSON admin/status API:
// login, current position/mode, and alignment-point/session-event
// history.
package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/skywatch/altaz-mount/internal/auth"
	"github.com/skywatch/altaz-mount/internal/controller"
	"github.com/skywatch/altaz-mount/internal/metrics"
	db "github.com/skywatch/altaz-mount/internal/store"
)

// loginRateLimit caps login attempts across all callers, a coarse guard
// against credential-stuffing since there is no per-IP bucket here.
const loginRateLimit = 2 // requests per second

type contextKey string

const (
	ctxUserID   contextKey = "user_id"
	ctxUsername contextKey = "username"
	ctxRole     contextKey = "role"
)

// Server holds the admin HTTP API and its dependencies.
type Server struct {
	router       *chi.Mux
	authSvc      *auth.Service
	userRepo     *db.UserRepository
	alignRepo    *db.AlignmentRepository
	ctrl         *controller.Controller
	loginLimiter *rate.Limiter
}

// NewServer builds the admin API router. alignRepo may be nil when
// persistence is disabled; history endpoints then report it as
// unavailable instead of erroring.
func NewServer(authSvc *auth.Service, userRepo *db.UserRepository, alignRepo *db.AlignmentRepository, ctrl *controller.Controller) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		authSvc:      authSvc,
		userRepo:     userRepo,
		alignRepo:    alignRepo,
		ctrl:         ctrl,
		loginLimiter: rate.NewLimiter(rate.Limit(loginRateLimit), 1),
	}
	s.setupRoutes()
	return s
}

// Handler returns the configured http.Handler, for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Compress(5))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleGetCurrentUser)
			r.Get("/status", s.handleGetStatus)
			r.Get("/alignment/points", s.handleGetAlignmentPoints)
			r.Post("/alignment/points/{id}/retire", s.handleRetireAlignmentPoint)
			r.Get("/events", s.handleGetEvents)
		})
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "missing authorization header", http.StatusUnauthorized)
			return
		}

		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
			return
		}

		claims, err := s.authSvc.ValidateToken(token)
		if err != nil {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxUsername, claims.Username)
		ctx = context.WithValue(ctx, ctxRole, claims.Role)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.loginLimiter.Allow() {
		http.Error(w, "too many login attempts, try again shortly", http.StatusTooManyRequests)
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := s.userRepo.GetByUsername(r.Context(), req.Username)
	if err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err := s.authSvc.ComparePassword(user.PasswordHash, req.Password); err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if !user.IsActive {
		http.Error(w, "account is disabled", http.StatusForbidden)
		return
	}

	token, err := s.authSvc.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		http.Error(w, "failed to generate token", http.StatusInternalServerError)
		return
	}
	_ = s.userRepo.UpdateLastLogin(r.Context(), user.ID)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user": map[string]interface{}{
			"id":       user.ID,
			"username": user.Username,
			"role":     user.Role,
		},
	})
}

func (s *Server) handleGetCurrentUser(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":       r.Context().Value(ctxUserID),
		"username": r.Context().Value(ctxUsername),
		"role":     r.Context().Value(ctxRole),
	})
}

// handleGetStatus reports the live mount state: mode, fused RaDec, and
// the observer location.
func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	raDec := s.ctrl.GetRaDec()
	loc := s.ctrl.ObserverLocation()

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"mode": s.ctrl.Mode().String(),
		"raDec": map[string]interface{}{
			"rightAscensionDeg": raDec.RightAscension * 15,
			"declinationDeg":    raDec.Declination,
		},
		"observer": map[string]interface{}{
			"latitude":  loc.Latitude,
			"longitude": loc.Longitude,
		},
	})
}

func (s *Server) handleGetAlignmentPoints(w http.ResponseWriter, r *http.Request) {
	if s.alignRepo == nil {
		http.Error(w, "persistence is disabled", http.StatusServiceUnavailable)
		return
	}
	points, err := s.alignRepo.LoadActivePoints(r.Context())
	if err != nil {
		log.Printf("httpapi: load alignment points: %v", err)
		http.Error(w, "failed to load alignment points", http.StatusInternalServerError)
		return
	}

	if residual, err := s.alignRepo.MeanResidualDegrees(r.Context()); err == nil {
		metrics.UpdateAlignment(len(points), residual)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"points": points,
		"count":  len(points),
	})
}

func (s *Server) handleRetireAlignmentPoint(w http.ResponseWriter, r *http.Request) {
	if r.Context().Value(ctxRole) != auth.RoleAdmin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if s.alignRepo == nil {
		http.Error(w, "persistence is disabled", http.StatusServiceUnavailable)
		return
	}

	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "invalid point id", http.StatusBadRequest)
		return
	}

	if err := s.alignRepo.RetirePoint(r.Context(), id); err != nil {
		log.Printf("httpapi: retire alignment point %d: %v", id, err)
		http.Error(w, "failed to retire alignment point", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	if s.alignRepo == nil {
		http.Error(w, "persistence is disabled", http.StatusServiceUnavailable)
		return
	}

	since := time.Now().Add(-24 * time.Hour)
	if v := r.URL.Query().Get("sinceMinutes"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil {
			since = time.Now().Add(-time.Duration(minutes) * time.Minute)
		}
	}

	events, err := s.alignRepo.RecentEvents(r.Context(), since)
	if err != nil {
		log.Printf("httpapi: recent events: %v", err)
		http.Error(w, "failed to load events", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("httpapi: encode response: %v", err)
	}
}
