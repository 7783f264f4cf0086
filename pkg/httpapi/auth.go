package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/woodshed-orlando/kinkos/pkg/core/model"
	"github.com/woodshed-orlando/kinkos/pkg/core/policy"
	"github.com/woodshed-orlando/kinkos/pkg/db"
)

type contextKey int

const (
	authIDKey contextKey = iota
	memberKey
)

var (
	errUnauthorized  = errors.New("Authentication required")
	errNotRegistered = errors.New("No member profile for this account. Register first")
)

// authenticate verifies the HS256 bearer token and stores its subject, the
// identity provider's user ID, in the request context
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, errUnauthorized)
			return
		}

		token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
			return []byte(s.cfg.JWTSecret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			s.logger.Debug("Rejected bearer token", zap.Error(err))
			writeError(w, http.StatusUnauthorized, errUnauthorized)
			return
		}

		subject, err := token.Claims.GetSubject()
		if err != nil || subject == "" {
			writeError(w, http.StatusUnauthorized, errUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), authIDKey, subject)))
	})
}

// requireMember loads the member for the authenticated identity
func (s *Server) requireMember(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		member, err := s.store.GetMemberByAuthID(r.Context(), authID(r))
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusForbidden, errNotRegistered)
			return
		}
		if err != nil {
			s.internalError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), memberKey, member)))
	})
}

// requireRole admits members whose role is at least min
func requireRole(min model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !currentMember(r).Role.AtLeast(min) {
				writeError(w, http.StatusForbidden, policy.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !currentMember(r).Role.IsAdmin() {
			writeError(w, http.StatusForbidden, policy.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func authID(r *http.Request) string {
	id, _ := r.Context().Value(authIDKey).(string)
	return id
}

// currentMember is only valid behind requireMember
func currentMember(r *http.Request) *model.Member {
	m, _ := r.Context().Value(memberKey).(*model.Member)
	return m
}
