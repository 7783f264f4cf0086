// Package lifecycle is the member status state machine.
//
//	pending ──complete_waiver──▶ active
//	pending, active ──suspend──▶ suspended
//	suspended ──reinstate──▶ active
//	active, suspended ──deactivate──▶ inactive
//	inactive ──renew──▶ active
//
// complete_waiver is passive: firing it from any state other than pending
// leaves the status unchanged instead of failing, because signing a waiver
// is always allowed and only promotes pending members.
package lifecycle

import (
	"fmt"
	"sort"

	"github.com/woodshed-orlando/kinkos/pkg/core/model"
)

type Transition string

const (
	CompleteWaiver Transition = "complete_waiver"
	Suspend        Transition = "suspend"
	Reinstate      Transition = "reinstate"
	Deactivate     Transition = "deactivate"
	Renew          Transition = "renew"
)

var edges = map[Transition]map[model.Status]model.Status{
	CompleteWaiver: {
		model.StatusPending: model.StatusActive,
	},
	Suspend: {
		model.StatusPending: model.StatusSuspended,
		model.StatusActive:  model.StatusSuspended,
	},
	Reinstate: {
		model.StatusSuspended: model.StatusActive,
	},
	Deactivate: {
		model.StatusActive:    model.StatusInactive,
		model.StatusSuspended: model.StatusInactive,
	},
	Renew: {
		model.StatusInactive: model.StatusActive,
	},
}

var passive = map[Transition]bool{
	CompleteWaiver: true,
}

// InvalidTransitionError is returned when a transition has no edge from the current status
type InvalidTransitionError struct {
	From       model.Status
	Transition Transition
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a member who is %s", e.Transition, e.From)
}

func (t Transition) IsValid() bool {
	_, ok := edges[t]
	return ok
}

// Fire computes the status reached by applying t to from. changed is false
// when a passive transition does not apply.
func Fire(from model.Status, t Transition) (to model.Status, changed bool, err error) {
	targets, ok := edges[t]
	if !ok {
		return from, false, fmt.Errorf("unknown transition %q", t)
	}

	to, ok = targets[from]
	if !ok {
		if passive[t] {
			return from, false, nil
		}
		return from, false, &InvalidTransitionError{From: from, Transition: t}
	}

	return to, true, nil
}

// Available lists the transitions that can fire from the given status, sorted by name
func Available(from model.Status) []Transition {
	var out []Transition
	for t, targets := range edges {
		if _, ok := targets[from]; ok {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
