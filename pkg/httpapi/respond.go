package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/woodshed-orlando/kinkos/pkg/core/policy"
)

const maxBodyBytes = 1 << 20

var errInternal = errors.New("Something went wrong. Please try again")

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps service errors onto HTTP status codes. Unknown errors are 500.
func statusFor(err error) int {
	var denied *policy.CheckInDeniedError
	switch {
	case errors.Is(err, policy.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, policy.ErrForbidden), errors.As(err, &denied):
		return http.StatusForbidden
	case errors.Is(err, policy.ErrShiftNotFound),
		errors.Is(err, policy.ErrSignupNotFound),
		errors.Is(err, policy.ErrMemberNotFound),
		errors.Is(err, policy.ErrCheckInNotFound),
		errors.Is(err, policy.ErrAnnouncementNotFound):
		return http.StatusNotFound
	case errors.Is(err, policy.ErrShiftFull),
		errors.Is(err, policy.ErrAlreadySignedUp),
		errors.Is(err, policy.ErrAlreadyCheckedIn):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError writes a service error. Internal details are logged, never returned.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.internalError(w, r, err)
		return
	}
	writeError(w, status, err)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("Request failed",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	writeError(w, http.StatusInternalServerError, errInternal)
}

// decodeBody reads a JSON request body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: malformed JSON body: %v", policy.ErrInvalidRequest, err)
	}
	return nil
}
