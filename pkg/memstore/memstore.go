// Package memstore is an in-memory implementation of db.Database, used by
// tests and by `serve --in-memory` for local development.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/woodshed-orlando/kinkos/pkg/core/model"
	"github.com/woodshed-orlando/kinkos/pkg/db"
)

// Store holds all records in memory. A single mutex serialises every
// operation, so the capacity checks inside inserts are atomic.
type Store struct {
	mu            sync.Mutex
	members       []model.Member
	shifts        []model.Shift
	signups       []model.ShiftSignup
	waivers       []model.Waiver
	checkIns      []model.CheckIn
	announcements []model.Announcement
	reads         map[string]map[string]time.Time // announcement -> member -> read_at
	resources     []model.Resource
}

var _ db.Database = (*Store)(nil)

// New creates an empty store
func New() *Store {
	return &Store{
		reads: make(map[string]map[string]time.Time),
	}
}

// AddResource seeds a resource. Resources are curated outside the application.
func (s *Store) AddResource(r model.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources = append(s.resources, r)
}

func (s *Store) memberIndex(id string) int {
	return slices.IndexFunc(s.members, func(m model.Member) bool { return m.ID == id })
}

// GetMember retrieves a member by ID
func (s *Store) GetMember(ctx context.Context, id string) (*model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.memberIndex(id)
	if i < 0 {
		return nil, db.ErrNotFound
	}
	m := s.members[i]
	return &m, nil
}

// GetMemberByAuthID retrieves a member by the identity provider's subject
func (s *Store) GetMemberByAuthID(ctx context.Context, authID string) (*model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.members {
		if m.AuthID == authID {
			return &m, nil
		}
	}
	return nil, db.ErrNotFound
}

// InsertMember inserts a new member record
func (s *Store) InsertMember(ctx context.Context, member *model.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.members {
		if m.ID == member.ID || (member.AuthID != "" && m.AuthID == member.AuthID) {
			return fmt.Errorf("member %s: %w", member.ID, db.ErrConflict)
		}
	}
	s.members = append(s.members, *member)
	return nil
}

// SearchMembers matches display name, legal name or email case-insensitively
func (s *Store) SearchMembers(ctx context.Context, query string, limit int) ([]model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := strings.ToLower(strings.TrimSpace(query))
	var out []model.Member
	for _, m := range s.members {
		if q == "" ||
			strings.Contains(strings.ToLower(m.DisplayName), q) ||
			strings.Contains(strings.ToLower(m.LegalName), q) ||
			strings.Contains(strings.ToLower(m.Email), q) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListContacts returns active members who opted into the directory
func (s *Store) ListContacts(ctx context.Context) ([]model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Member
	for _, m := range s.members {
		if m.Status == model.StatusActive && m.ShowInContacts {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

// ListMembersByIDs returns the members that exist among ids
func (s *Store) ListMembersByIDs(ctx context.Context, ids []string) ([]model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Member
	for _, m := range s.members {
		if slices.Contains(ids, m.ID) {
			out = append(out, m)
		}
	}
	return out, nil
}

// UpdateMemberProfile overwrites the member-editable fields
func (s *Store) UpdateMemberProfile(ctx context.Context, id string, update model.ProfileUpdate, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.memberIndex(id)
	if i < 0 {
		return db.ErrNotFound
	}
	update.Apply(&s.members[i])
	s.members[i].UpdatedAt = at
	return nil
}

// SetMemberRole changes a member's role
func (s *Store) SetMemberRole(ctx context.Context, id string, role model.Role, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.memberIndex(id)
	if i < 0 {
		return db.ErrNotFound
	}
	s.members[i].Role = role
	s.members[i].UpdatedAt = at
	return nil
}

// UpdateMemberStatus moves a member between statuses if it is still in from
func (s *Store) UpdateMemberStatus(ctx context.Context, id string, from, to model.Status, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.memberIndex(id)
	if i < 0 {
		return false, db.ErrNotFound
	}
	if s.members[i].Status != from {
		return false, nil
	}
	s.members[i].Status = to
	s.members[i].UpdatedAt = at
	if to == model.StatusActive && s.members[i].MemberSince == nil {
		since := at
		s.members[i].MemberSince = &since
	}
	return true, nil
}

// CountMembers counts members, optionally restricted to one status
func (s *Store) CountMembers(ctx context.Context, status model.Status) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, m := range s.members {
		if status == "" || m.Status == status {
			count++
		}
	}
	return count, nil
}

// GetShift retrieves a shift by ID
func (s *Store) GetShift(ctx context.Context, id string) (*model.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sh := range s.shifts {
		if sh.ID == id {
			return &sh, nil
		}
	}
	return nil, db.ErrNotFound
}

// ListShiftsFrom returns shifts starting at or after from, ordered by start time
func (s *Store) ListShiftsFrom(ctx context.Context, from time.Time) ([]model.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Shift
	for _, sh := range s.shifts {
		if !sh.StartTime.Before(from) {
			out = append(out, sh)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// InsertShifts inserts shift records
func (s *Store) InsertShifts(ctx context.Context, shifts []model.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shifts = append(s.shifts, shifts...)
	return nil
}

// CountShiftsFrom counts shifts starting at or after from
func (s *Store) CountShiftsFrom(ctx context.Context, from time.Time, status model.ShiftStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, sh := range s.shifts {
		if !sh.StartTime.Before(from) && (status == "" || sh.Status == status) {
			count++
		}
	}
	return count, nil
}

// ListShiftSignups returns every signup for a shift, cancelled ones included
func (s *Store) ListShiftSignups(ctx context.Context, shiftID string) ([]model.ShiftSignup, error) {
	return s.ListSignupsForShifts(ctx, []string{shiftID})
}

// ListSignupsForShifts returns every signup for the given shifts
func (s *Store) ListSignupsForShifts(ctx context.Context, shiftIDs []string) ([]model.ShiftSignup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.ShiftSignup
	for _, su := range s.signups {
		if slices.Contains(shiftIDs, su.ShiftID) {
			out = append(out, su)
		}
	}
	return out, nil
}

// ListMemberSignups returns every signup a member has made
func (s *Store) ListMemberSignups(ctx context.Context, memberID string) ([]model.ShiftSignup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.ShiftSignup
	for _, su := range s.signups {
		if su.MemberID == memberID {
			out = append(out, su)
		}
	}
	return out, nil
}

// InsertSignup checks capacity and duplication under the store lock
func (s *Store) InsertSignup(ctx context.Context, signup *model.ShiftSignup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.shifts, func(sh model.Shift) bool { return sh.ID == signup.ShiftID })
	if i < 0 {
		return db.ErrNotFound
	}

	active := 0
	duplicate := false
	for _, su := range s.signups {
		if su.ShiftID != signup.ShiftID || !su.IsActive() {
			continue
		}
		if su.MemberID == signup.MemberID {
			duplicate = true
		}
		active++
	}
	if active >= s.shifts[i].Capacity() {
		return db.ErrCapacityReached
	}
	if duplicate {
		return db.ErrConflict
	}

	s.signups = append(s.signups, *signup)
	return nil
}

// CancelSignup soft-deletes an active signup
func (s *Store) CancelSignup(ctx context.Context, signupID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.signups {
		if s.signups[i].ID == signupID && s.signups[i].IsActive() {
			cancelled := at
			s.signups[i].CancelledAt = &cancelled
			return nil
		}
	}
	return db.ErrNotFound
}

// InsertWaiver inserts a waiver record
func (s *Store) InsertWaiver(ctx context.Context, waiver *model.Waiver) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.waivers = append(s.waivers, *waiver)
	return nil
}

func (s *Store) latestWaivers() map[string]model.Waiver {
	latest := make(map[string]model.Waiver)
	for _, w := range s.waivers {
		if cur, ok := latest[w.MemberID]; !ok || w.SignedDate.After(cur.SignedDate) {
			latest[w.MemberID] = w
		}
	}
	return latest
}

// LatestWaiver returns the member's most recently signed waiver
func (s *Store) LatestWaiver(ctx context.Context, memberID string) (*model.Waiver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.latestWaivers()[memberID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &w, nil
}

// LatestWaivers returns the latest waiver per member for the given members
func (s *Store) LatestWaivers(ctx context.Context, memberIDs []string) (map[string]model.Waiver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]model.Waiver)
	for id, w := range s.latestWaivers() {
		if slices.Contains(memberIDs, id) {
			out[id] = w
		}
	}
	return out, nil
}

// ListLatestWaiversExpiring returns latest waivers whose validity ends in [from, to]
func (s *Store) ListLatestWaiversExpiring(ctx context.Context, from, to time.Time) ([]model.Waiver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Waiver
	for _, w := range s.latestWaivers() {
		if !w.ValidUntil.Before(from) && !w.ValidUntil.After(to) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ValidUntil.Before(out[j].ValidUntil) })
	return out, nil
}

// InsertCheckIn enforces one open check-in per member and the occupancy ceiling
func (s *Store) InsertCheckIn(ctx context.Context, checkIn *model.CheckIn, maxOccupancy int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	occupancy := 0
	for _, c := range s.checkIns {
		if !c.IsActive() {
			continue
		}
		if c.MemberID == checkIn.MemberID {
			return db.ErrConflict
		}
		if c.CountsTowardCapacity {
			occupancy++
		}
	}
	if checkIn.CountsTowardCapacity && occupancy >= maxOccupancy {
		return db.ErrCapacityReached
	}

	s.checkIns = append(s.checkIns, *checkIn)
	return nil
}

// CloseCheckIn stamps the checkout time on an open check-in
func (s *Store) CloseCheckIn(ctx context.Context, checkInID, checkedOutBy string, at time.Time) (*model.CheckIn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.checkIns {
		if s.checkIns[i].ID == checkInID && s.checkIns[i].IsActive() {
			out := at
			s.checkIns[i].CheckOutTime = &out
			s.checkIns[i].CheckedOutBy = checkedOutBy
			c := s.checkIns[i]
			return &c, nil
		}
	}
	return nil, db.ErrNotFound
}

// CountOccupancy counts open check-ins that count toward capacity
func (s *Store) CountOccupancy(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, c := range s.checkIns {
		if c.IsActive() && c.CountsTowardCapacity {
			count++
		}
	}
	return count, nil
}

// ListActiveCheckIns returns open check-ins, newest first
func (s *Store) ListActiveCheckIns(ctx context.Context) ([]model.CheckIn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.CheckIn
	for _, c := range s.checkIns {
		if c.IsActive() {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CheckInTime.After(out[j].CheckInTime) })
	return out, nil
}

// InsertAnnouncement inserts an announcement record
func (s *Store) InsertAnnouncement(ctx context.Context, announcement *model.Announcement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.announcements = append(s.announcements, *announcement)
	return nil
}

// ListVisibleAnnouncements returns announcements inside their publication window
func (s *Store) ListVisibleAnnouncements(ctx context.Context, now time.Time) ([]model.Announcement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Announcement
	for _, a := range s.announcements {
		if a.VisibleAt(now) {
			out = append(out, a)
		}
	}
	return out, nil
}

// ListReadAnnouncementIDs returns the announcements a member has read
func (s *Store) ListReadAnnouncementIDs(ctx context.Context, memberID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for annID, readers := range s.reads {
		if _, ok := readers[memberID]; ok {
			ids = append(ids, annID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// MarkAnnouncementRead records a read receipt once
func (s *Store) MarkAnnouncementRead(ctx context.Context, announcementID, memberID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !slices.ContainsFunc(s.announcements, func(a model.Announcement) bool { return a.ID == announcementID }) {
		return db.ErrNotFound
	}
	readers, ok := s.reads[announcementID]
	if !ok {
		readers = make(map[string]time.Time)
		s.reads[announcementID] = readers
	}
	if _, ok := readers[memberID]; !ok {
		readers[memberID] = at
	}
	return nil
}

// ListActiveResources returns active resources ordered by sort order then title
func (s *Store) ListActiveResources(ctx context.Context) ([]model.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Resource
	for _, r := range s.resources {
		if r.IsActive {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Title < out[j].Title
	})
	return out, nil
}
