package policy

import (
	"fmt"

	"github.com/woodshed-orlando/kinkos/pkg/core/model"
)

const (
	DefaultMaxOccupancy     = 140
	DefaultWarningThreshold = 0.9
)

// CheckInDecision is the outcome of CanCheckIn. Reason is empty when allowed.
type CheckInDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// CanCheckIn decides whether a member may be admitted. Checks run in a fixed
// order and the first failure wins: suspended, inactive, waiver, occupancy.
// A non-positive maxOccupancy falls back to DefaultMaxOccupancy.
func CanCheckIn(member *model.Member, hasValidWaiver bool, currentOccupancy, maxOccupancy int) CheckInDecision {
	if maxOccupancy <= 0 {
		maxOccupancy = DefaultMaxOccupancy
	}

	if member.Status == model.StatusSuspended {
		return CheckInDecision{Reason: "Member is suspended and cannot check in"}
	}

	if member.Status == model.StatusInactive {
		return CheckInDecision{Reason: "Membership is inactive."}
	}

	if !hasValidWaiver {
		return CheckInDecision{Reason: "Valid waiver required. Please sign a new waiver"}
	}

	if currentOccupancy >= maxOccupancy {
		return CheckInDecision{
			Reason: fmt.Sprintf("Venue is at capacity (%d). Please wait for someone to check out", maxOccupancy),
		}
	}

	return CheckInDecision{Allowed: true}
}

// IsApproachingCapacity is a display hint only; it never blocks a check-in
func IsApproachingCapacity(currentOccupancy, maxOccupancy int, threshold float64) bool {
	if maxOccupancy <= 0 {
		maxOccupancy = DefaultMaxOccupancy
	}
	if threshold <= 0 {
		threshold = DefaultWarningThreshold
	}
	return float64(currentOccupancy) >= float64(maxOccupancy)*threshold
}
