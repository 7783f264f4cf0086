package policy

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/woodshed-orlando/kinkos/pkg/core/model"
)

const DefaultExpiryWarningDays = 30

// WaiverSubmission is what a member fills in when signing the annual waiver
type WaiverSubmission struct {
	MemberID               string `json:"member_id" validate:"required"`
	Initials               string `json:"initials" validate:"min=2,max=10"`
	Signature              string `json:"signature" validate:"min=3,max=200"`
	BylawsAgreed           bool   `json:"bylaws_agreed" validate:"eq=true"`
	LiabilityReleaseAgreed bool   `json:"liability_release_agreed" validate:"eq=true"`
	DungeonRulesAgreed     bool   `json:"dungeon_rules_agreed" validate:"eq=true"`
	CodeOfConductAgreed    bool   `json:"code_of_conduct_agreed" validate:"eq=true"`
}

// WaiverValidUntil returns signed plus one calendar year. A Feb 29 signing
// expires on Feb 28 of the following year rather than rolling into March.
func WaiverValidUntil(signed time.Time) time.Time {
	y, m, d := signed.Date()
	h, mi, s := signed.Clock()
	until := time.Date(y+1, m, d, h, mi, s, signed.Nanosecond(), signed.Location())
	if until.Month() != m {
		until = until.AddDate(0, 0, -until.Day())
	}
	return until
}

// IsWaiverExpired reports whether now is past validUntil. The expiry instant itself is still valid.
func IsWaiverExpired(validUntil, now time.Time) bool {
	return now.After(validUntil)
}

// IsWaiverExpiringSoon reports whether the waiver is still valid but expires within days
func IsWaiverExpiringSoon(validUntil, now time.Time, days int) bool {
	if days <= 0 {
		days = DefaultExpiryWarningDays
	}
	soon := validUntil.AddDate(0, 0, -days)
	return !IsWaiverExpired(validUntil, now) && now.After(soon)
}

// LatestWaiver returns the most recently signed waiver, or nil
func LatestWaiver(waivers []model.Waiver) *model.Waiver {
	var latest *model.Waiver
	for i := range waivers {
		if latest == nil || waivers[i].SignedDate.After(latest.SignedDate) {
			latest = &waivers[i]
		}
	}
	return latest
}

// HasValidWaiver checks the member's most recent waiver only
func HasValidWaiver(latest *model.Waiver, now time.Time) bool {
	return latest != nil && !IsWaiverExpired(latest.ValidUntil, now)
}

// ValidateInitials compares the supplied initials against the first letter of
// each word of the legal name, ignoring case and whitespace.
func ValidateInitials(legalName, initials string) bool {
	if strings.TrimSpace(legalName) == "" || initials == "" {
		return false
	}

	var expected strings.Builder
	for _, part := range strings.Fields(legalName) {
		r, _ := utf8.DecodeRuneInString(part)
		expected.WriteRune(unicode.ToUpper(r))
	}

	normalized := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, initials)

	return normalized == expected.String()
}
