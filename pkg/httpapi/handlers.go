package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/woodshed-orlando/kinkos/pkg/core/lifecycle"
	"github.com/woodshed-orlando/kinkos/pkg/core/model"
	"github.com/woodshed-orlando/kinkos/pkg/core/policy"
	"github.com/woodshed-orlando/kinkos/pkg/core/services"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg services.Registration
	if err := decodeBody(r, &reg); err != nil {
		s.respondError(w, r, err)
		return
	}
	reg.AuthID = authID(r)

	member, created, err := services.RegisterMember(r.Context(), s.store, s.logger, reg)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, member)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentMember(r))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var update model.ProfileUpdate
	if err := decodeBody(r, &update); err != nil {
		s.respondError(w, r, err)
		return
	}

	member, err := services.UpdateProfile(r.Context(), s.store, s.logger, currentMember(r).ID, update)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (s *Server) handleMySignups(w http.ResponseWriter, r *http.Request) {
	signups, err := services.MySignups(r.Context(), s.store, s.logger, currentMember(r).ID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, signups)
}

func (s *Server) handleSignWaiver(w http.ResponseWriter, r *http.Request) {
	var sub policy.WaiverSubmission
	if err := decodeBody(r, &sub); err != nil {
		s.respondError(w, r, err)
		return
	}
	// Members only ever sign for themselves
	sub.MemberID = currentMember(r).ID

	result, err := services.SignWaiver(r.Context(), s.store, s.logger, sub)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleListShifts(w http.ResponseWriter, r *http.Request) {
	shifts, err := services.ListShifts(r.Context(), s.store, s.logger, currentMember(r).ID, r.URL.Query().Get("filter"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shifts)
}

type signUpRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	signup, err := services.SignUp(r.Context(), s.store, s.logger, chi.URLParam(r, "shiftID"), currentMember(r).ID, strings.TrimSpace(req.Notes))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, signup)
}

func (s *Server) handleCancelSignup(w http.ResponseWriter, r *http.Request) {
	if err := services.CancelSignup(r.Context(), s.store, s.logger, chi.URLParam(r, "shiftID"), currentMember(r).ID); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListAnnouncements(w http.ResponseWriter, r *http.Request) {
	announcements, err := services.ListAnnouncements(r.Context(), s.store, currentMember(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, announcements)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	err := services.MarkAnnouncementRead(r.Context(), s.store, chi.URLParam(r, "announcementID"), currentMember(r).ID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	resources, err := services.ListResources(r.Context(), s.store, currentMember(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resources)
}

func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := services.Contacts(r.Context(), s.store)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (s *Server) handleSearchMembers(w http.ResponseWriter, r *http.Request) {
	results, err := services.SearchMembers(r.Context(), s.store, s.logger, r.URL.Query().Get("q"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleOccupancy(w http.ResponseWriter, r *http.Request) {
	status, err := services.Occupancy(r.Context(), s.store, s.cfg)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleActiveCheckIns(w http.ResponseWriter, r *http.Request) {
	checkIns, err := services.ActiveCheckIns(r.Context(), s.store)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkIns)
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	var req services.CheckInRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	req.CheckedInBy = currentMember(r).ID

	result, err := services.CheckIn(r.Context(), s.store, s.notifier, s.cfg, s.logger, req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	checkIn, err := services.CheckOut(r.Context(), s.store, s.logger, chi.URLParam(r, "checkInID"), currentMember(r).ID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkIn)
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := services.GetAdminStats(r.Context(), s.store)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type createShiftRequest struct {
	services.ShiftRequest
	// RRule repeats the shift, e.g. "FREQ=WEEKLY;COUNT=8"
	RRule string `json:"rrule"`
}

func (s *Server) handleCreateShift(w http.ResponseWriter, r *http.Request) {
	var req createShiftRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	createdBy := currentMember(r).ID

	if req.RRule == "" {
		shift, err := services.CreateShift(r.Context(), s.store, s.cfg, s.logger, createdBy, req.ShiftRequest)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, []model.Shift{*shift})
		return
	}

	shifts, err := services.CreateRecurringShifts(r.Context(), s.store, s.cfg, s.logger, createdBy, req.ShiftRequest, req.RRule)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, shifts)
}

type setRoleRequest struct {
	Role model.Role `json:"role"`
}

func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	var req setRoleRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	member, err := services.SetRole(r.Context(), s.store, s.logger, currentMember(r), chi.URLParam(r, "memberID"), req.Role)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

type transitionRequest struct {
	Transition lifecycle.Transition `json:"transition"`
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	member, err := services.TransitionMember(r.Context(), s.store, s.logger, currentMember(r), chi.URLParam(r, "memberID"), req.Transition)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (s *Server) handleCreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req services.AnnouncementRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	announcement, err := services.CreateAnnouncement(r.Context(), s.store, s.notifier, s.logger, currentMember(r).ID, req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, announcement)
}
