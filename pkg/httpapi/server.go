// Package httpapi serves the KinkOS JSON API used by the member portal and
// the front-desk tablet.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/woodshed-orlando/kinkos/internal/config"
	"github.com/woodshed-orlando/kinkos/pkg/core/model"
	"github.com/woodshed-orlando/kinkos/pkg/core/services"
	"github.com/woodshed-orlando/kinkos/pkg/db"
)

const requestTimeout = 30 * time.Second

// Server holds the dependencies shared by every handler
type Server struct {
	store    db.Database
	notifier services.StaffNotifier
	cfg      *config.Config
	logger   *zap.Logger
}

// NewServer creates the API server. notifier may be nil when Slack is not configured.
func NewServer(store db.Database, notifier services.StaffNotifier, cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// Routes builds the router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authenticate)

		// Identity only: the member record may not exist yet
		r.Post("/members/register", s.handleRegister)
		r.Post("/me", s.handleRegister)

		r.Group(func(r chi.Router) {
			r.Use(s.requireMember)

			r.Get("/me", s.handleMe)
			r.Put("/me/profile", s.handleUpdateProfile)
			r.Get("/me/signups", s.handleMySignups)
			r.Post("/me/waivers", s.handleSignWaiver)

			r.Get("/shifts", s.handleListShifts)
			r.Post("/shifts/{shiftID}/signup", s.handleSignUp)
			r.Delete("/shifts/{shiftID}/signup", s.handleCancelSignup)

			r.Get("/announcements", s.handleListAnnouncements)
			r.Post("/announcements/{announcementID}/read", s.handleMarkRead)
			r.Get("/resources", s.handleListResources)
			r.Get("/contacts", s.handleContacts)

			r.Route("/desk", func(r chi.Router) {
				r.Use(requireRole(model.RoleVolunteer))
				r.Get("/members", s.handleSearchMembers)
				r.Get("/occupancy", s.handleOccupancy)
				r.Get("/checkins", s.handleActiveCheckIns)
				r.Post("/checkins", s.handleCheckIn)
				r.Post("/checkins/{checkInID}/checkout", s.handleCheckOut)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(requireAdmin)
				r.Get("/stats", s.handleAdminStats)
				r.Post("/shifts", s.handleCreateShift)
				r.Put("/members/{memberID}/role", s.handleSetRole)
				r.Post("/members/{memberID}/transitions", s.handleTransition)
				r.Post("/announcements", s.handleCreateAnnouncement)
			})
		})
	})

	return r
}

// requestLogger logs one line per request with chi's request ID
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("HTTP request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
