package model

import (
	"slices"
	"time"
)

// Role is a member's access level. Roles are ordered: member < volunteer < lead < admin < owner.
type Role string

const (
	RoleMember    Role = "member"
	RoleVolunteer Role = "volunteer"
	RoleLead      Role = "lead"
	RoleAdmin     Role = "admin"
	RoleOwner     Role = "owner"
)

var roleRank = map[Role]int{
	RoleMember:    0,
	RoleVolunteer: 1,
	RoleLead:      2,
	RoleAdmin:     3,
	RoleOwner:     4,
}

func (r Role) IsValid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r grants at least the access of required.
// Unknown roles never satisfy any requirement.
func (r Role) AtLeast(required Role) bool {
	rank, ok := roleRank[r]
	if !ok {
		return false
	}
	return rank >= roleRank[required]
}

// IsAdmin reports whether r may use the admin area
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleOwner
}

// RoleAllowed reports whether role is in the allow list. An empty list allows everyone.
func RoleAllowed(allowed []Role, role Role) bool {
	return len(allowed) == 0 || slices.Contains(allowed, role)
}

// Status is a member's standing, independent of role
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusInactive  Status = "inactive"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusSuspended, StatusInactive:
		return true
	}
	return false
}

// Member represents a venue member
type Member struct {
	ID                           string     `json:"id"`
	AuthID                       string     `json:"auth_id"`
	Email                        string     `json:"email"`
	DisplayName                  string     `json:"display_name"`
	LegalName                    string     `json:"legal_name,omitempty"`
	Pronouns                     string     `json:"pronouns,omitempty"`
	Phone                        string     `json:"phone,omitempty"`
	AvatarURL                    string     `json:"avatar_url,omitempty"`
	Bio                          string     `json:"bio,omitempty"`
	Role                         Role       `json:"role"`
	Status                       Status     `json:"status"`
	MemberSince                  *time.Time `json:"member_since,omitempty"`
	EmergencyContactName         string     `json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone        string     `json:"emergency_contact_phone,omitempty"`
	EmergencyContactRelationship string     `json:"emergency_contact_relationship,omitempty"`
	ShowInContacts               bool       `json:"show_in_contacts"`
	ShowPhone                    bool       `json:"show_phone"`
	ShowEmail                    bool       `json:"show_email"`
	CreatedAt                    time.Time  `json:"created_at"`
	UpdatedAt                    time.Time  `json:"updated_at"`
}

// ProfileUpdate holds the member-editable profile fields
type ProfileUpdate struct {
	DisplayName                  string `json:"display_name" validate:"required,min=2,max=80"`
	LegalName                    string `json:"legal_name" validate:"max=120"`
	Pronouns                     string `json:"pronouns" validate:"max=40"`
	Phone                        string `json:"phone" validate:"max=40"`
	Bio                          string `json:"bio" validate:"max=1000"`
	EmergencyContactName         string `json:"emergency_contact_name" validate:"max=120"`
	EmergencyContactPhone        string `json:"emergency_contact_phone" validate:"max=40"`
	EmergencyContactRelationship string `json:"emergency_contact_relationship" validate:"max=60"`
	ShowInContacts               bool   `json:"show_in_contacts"`
	ShowPhone                    bool   `json:"show_phone"`
	ShowEmail                    bool   `json:"show_email"`
}

// Apply copies the update onto m
func (p ProfileUpdate) Apply(m *Member) {
	m.DisplayName = p.DisplayName
	m.LegalName = p.LegalName
	m.Pronouns = p.Pronouns
	m.Phone = p.Phone
	m.Bio = p.Bio
	m.EmergencyContactName = p.EmergencyContactName
	m.EmergencyContactPhone = p.EmergencyContactPhone
	m.EmergencyContactRelationship = p.EmergencyContactRelationship
	m.ShowInContacts = p.ShowInContacts
	m.ShowPhone = p.ShowPhone
	m.ShowEmail = p.ShowEmail
}

// Contact is the directory view of a member. Phone and email are blank
// unless the member opted to show them.
type Contact struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Pronouns    string `json:"pronouns,omitempty"`
	Role        Role   `json:"role"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	Bio         string `json:"bio,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// ContactFor builds the directory entry for m, honouring its visibility flags
func ContactFor(m Member) Contact {
	c := Contact{
		ID:          m.ID,
		DisplayName: m.DisplayName,
		Pronouns:    m.Pronouns,
		Role:        m.Role,
		Bio:         m.Bio,
		AvatarURL:   m.AvatarURL,
	}
	if m.ShowPhone {
		c.Phone = m.Phone
	}
	if m.ShowEmail {
		c.Email = m.Email
	}
	return c
}

type ShiftStatus string

const (
	ShiftOpen      ShiftStatus = "open"
	ShiftFull      ShiftStatus = "full"
	ShiftCompleted ShiftStatus = "completed"
	ShiftCancelled ShiftStatus = "cancelled"
)

// Shift is a scheduled volunteer time slot
type Shift struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	Description   string      `json:"description,omitempty"`
	Location      string      `json:"location"`
	StartTime     time.Time   `json:"start_time"`
	EndTime       time.Time   `json:"end_time"`
	MinVolunteers int         `json:"min_volunteers"`
	MaxVolunteers int         `json:"max_volunteers"`
	Status        ShiftStatus `json:"status"`
	CreatedBy     string      `json:"created_by,omitempty"`
	LeadVolunteer string      `json:"lead_volunteer,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Capacity is the static upper bound on active signups
func (s Shift) Capacity() int {
	return s.MaxVolunteers
}

// ShiftSignup is a member's claim on a shift slot. A nil CancelledAt means active.
type ShiftSignup struct {
	ID          string     `json:"id"`
	ShiftID     string     `json:"shift_id"`
	MemberID    string     `json:"member_id"`
	SignedUpAt  time.Time  `json:"signed_up_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

func (s ShiftSignup) IsActive() bool {
	return s.CancelledAt == nil
}

// ShiftSummary is a shift as seen by one member
type ShiftSummary struct {
	Shift
	ActiveSignups int  `json:"active_signups"`
	SignedUp      bool `json:"signed_up"`
}

// SpotsLeft never goes below zero, even if capacity was overshot
func (s ShiftSummary) SpotsLeft() int {
	return max(s.Capacity()-s.ActiveSignups, 0)
}

// Waiver is one signing event of the annual waiver
type Waiver struct {
	ID                     string    `json:"id"`
	MemberID               string    `json:"member_id"`
	Initials               string    `json:"initials"`
	Signature              string    `json:"signature"`
	SignedDate             time.Time `json:"signed_date"`
	ValidUntil             time.Time `json:"valid_until"`
	BylawsAgreed           bool      `json:"bylaws_agreed"`
	LiabilityReleaseAgreed bool      `json:"liability_release_agreed"`
	DungeonRulesAgreed     bool      `json:"dungeon_rules_agreed"`
	CodeOfConductAgreed    bool      `json:"code_of_conduct_agreed"`
}

const CheckInTypeSocialVisit = "social_visit"

// CheckIn admits a member to the venue. A nil CheckOutTime means the member is inside.
type CheckIn struct {
	ID                   string     `json:"id"`
	MemberID             string     `json:"member_id"`
	CheckInType          string     `json:"check_in_type"`
	CheckedInBy          string     `json:"checked_in_by,omitempty"`
	CountsTowardCapacity bool       `json:"counts_toward_capacity"`
	CheckInTime          time.Time  `json:"check_in_time"`
	CheckOutTime         *time.Time `json:"check_out_time,omitempty"`
	CheckedOutBy         string     `json:"checked_out_by,omitempty"`
}

func (c CheckIn) IsActive() bool {
	return c.CheckOutTime == nil
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var priorityRank = map[Priority]int{
	PriorityLow:    0,
	PriorityNormal: 1,
	PriorityHigh:   2,
	PriorityUrgent: 3,
}

// Rank orders priorities from low (0) to urgent (3)
func (p Priority) Rank() int {
	return priorityRank[p]
}

// Announcement is a time-bounded notice to members
type Announcement struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Priority    Priority   `json:"priority"`
	IsPublished bool       `json:"is_published"`
	PublishAt   time.Time  `json:"publish_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	TargetRoles []Role     `json:"target_roles,omitempty"`
	CreatedBy   string     `json:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// VisibleAt reports whether the announcement is inside its publication window
func (a Announcement) VisibleAt(now time.Time) bool {
	if !a.IsPublished || a.PublishAt.After(now) {
		return false
	}
	return a.ExpiresAt == nil || a.ExpiresAt.After(now)
}

// AnnouncementView is an announcement with the viewer's read state
type AnnouncementView struct {
	Announcement
	IsRead bool `json:"is_read"`
}

type ResourceCategory string

const (
	CategoryPolicies ResourceCategory = "policies"
	CategoryTraining ResourceCategory = "training"
	CategoryForms    ResourceCategory = "forms"
	CategoryLinks    ResourceCategory = "links"
	CategoryOther    ResourceCategory = "other"
)

// Resource is a document or link shared with members
type Resource struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Description   string           `json:"description,omitempty"`
	URL           string           `json:"url,omitempty"`
	Category      ResourceCategory `json:"category"`
	IsActive      bool             `json:"is_active"`
	SortOrder     int              `json:"sort_order"`
	RequiredRoles []Role           `json:"required_roles,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}
