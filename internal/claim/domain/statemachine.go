package domain

import (
	"fmt"
	"math"
	"time"
)

type Event string

const (
	EventValidate Event = "validate"
	EventSubmit   Event = "submit"
	EventEdit     Event = "edit"
)

type GuardName string

const (
	GuardAppointmentMatches  GuardName = "appointment_matches"
	GuardHasDiseases         GuardName = "has_diseases"
	GuardHasItems            GuardName = "has_items"
	GuardTotalsMatch         GuardName = "totals_match"
	GuardSubmitPeriodOpen    GuardName = "submit_period_open"
	GuardNoDraftItems        GuardName = "no_draft_items"
	GuardUniqueAuthorization GuardName = "unique_authorization"
)

// GuardInput is everything the guards look at. The service loads it before
// firing an event so guards stay free of storage.
type GuardInput struct {
	Claim       *Claim
	Appointment *Appointment

	SubmitClaimMonth int
	SubmitClaimYear  int

	// OpenClaimsWithAuthorization counts unsubmitted claims of the patient
	// sharing the claim's authorization and card number, the claim included.
	OpenClaimsWithAuthorization int64
}

// GuardError reports the first guard that blocked a transition.
type GuardError struct {
	Guard   GuardName
	Message string
}

func (e *GuardError) Error() string { return fmt.Sprintf("%s: %s", e.Guard, e.Message) }

func (e *GuardError) Unwrap() error { return ErrGuardFailed }

type guard func(in GuardInput) error

type transition struct {
	from   []Status
	to     Status
	guards []GuardName
}

var guards = map[GuardName]guard{
	GuardAppointmentMatches:  appointmentMatches,
	GuardHasDiseases:         hasDiseases,
	GuardHasItems:            hasItems,
	GuardTotalsMatch:         totalsMatch,
	GuardSubmitPeriodOpen:    submitPeriodOpen,
	GuardNoDraftItems:        noDraftItems,
	GuardUniqueAuthorization: uniqueAuthorization,
}

var transitions = map[Event]transition{
	EventValidate: {
		from:   []Status{StatusDraft, StatusValidated},
		to:     StatusValidated,
		guards: []GuardName{GuardAppointmentMatches, GuardHasDiseases, GuardHasItems, GuardTotalsMatch},
	},
	EventSubmit: {
		from: []Status{StatusValidated},
		to:   StatusSubmitted,
		guards: []GuardName{
			GuardHasDiseases, GuardHasItems, GuardTotalsMatch,
			GuardSubmitPeriodOpen, GuardNoDraftItems, GuardUniqueAuthorization,
		},
	},
	EventEdit: {
		from: []Status{StatusDraft, StatusValidated},
		to:   StatusDraft,
	},
}

// Fire checks that event may leave the claim's current status and that every
// guard of the transition passes, returning the next status.
func Fire(event Event, in GuardInput) (Status, error) {
	t, ok := transitions[event]
	if !ok {
		return "", fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, event)
	}
	current := in.Claim.Status
	if current == StatusSubmitted {
		return "", ErrClaimSubmitted
	}
	allowed := false
	for _, s := range t.from {
		if s == current {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", fmt.Errorf("%w: cannot %s a %s claim", ErrInvalidTransition, event, current)
	}
	for _, name := range t.guards {
		if err := guards[name](in); err != nil {
			return "", err
		}
	}
	return t.to, nil
}

// Guards lists the guard names checked by event.
func Guards(event Event) []GuardName {
	return append([]GuardName(nil), transitions[event].guards...)
}

// CheckAppointment runs the appointment_matches guard alone. It is used
// before a claim exists.
func CheckAppointment(in GuardInput) error { return appointmentMatches(in) }

func appointmentMatches(in GuardInput) error {
	a := in.Appointment
	if a == nil || a.Cancelled {
		return &GuardError{Guard: GuardAppointmentMatches, Message: fmt.Sprintf("appointment %s not found", in.Claim.Appointment)}
	}
	if a.AuthorizationNumber != in.Claim.AuthorizationNo {
		return &GuardError{Guard: GuardAppointmentMatches, Message: fmt.Sprintf(
			"authorization number %s differs from %s on appointment %s", in.Claim.AuthorizationNo, a.AuthorizationNumber, a.Name)}
	}
	if a.CardNo != in.Claim.CardNo {
		return &GuardError{Guard: GuardAppointmentMatches, Message: fmt.Sprintf(
			"card number %s differs from %s on appointment %s", in.Claim.CardNo, a.CardNo, a.Name)}
	}
	return nil
}

func hasDiseases(in GuardInput) error {
	if len(in.Claim.Diseases) == 0 {
		return &GuardError{Guard: GuardHasDiseases, Message: "add at least one disease code"}
	}
	return nil
}

func hasItems(in GuardInput) error {
	if len(in.Claim.Items) == 0 {
		return &GuardError{Guard: GuardHasItems, Message: "add at least one item"}
	}
	return nil
}

func totalsMatch(in GuardInput) error {
	if !AmountsEqual(in.Claim.TotalAmount, ItemsTotal(in.Claim.Items)) {
		return &GuardError{Guard: GuardTotalsMatch, Message: "total amount does not match the total of the items"}
	}
	return nil
}

func submitPeriodOpen(in GuardInput) error {
	if in.SubmitClaimMonth == 0 || in.SubmitClaimYear == 0 {
		return &GuardError{Guard: GuardSubmitPeriodOpen, Message: "submit claim month and year are not configured"}
	}
	if in.Claim.ClaimMonth != in.SubmitClaimMonth || in.Claim.ClaimYear != in.SubmitClaimYear {
		return &GuardError{Guard: GuardSubmitPeriodOpen, Message: fmt.Sprintf(
			"claim period %s %d is not the open submit period %s %d",
			time.Month(in.Claim.ClaimMonth), in.Claim.ClaimYear, time.Month(in.SubmitClaimMonth), in.SubmitClaimYear)}
	}
	return nil
}

func noDraftItems(in GuardInput) error {
	for i, item := range in.Claim.Items {
		if item.Status == ItemDraft {
			return &GuardError{Guard: GuardNoDraftItems, Message: fmt.Sprintf(
				"item %s in row %d is still in draft", item.ItemCode, i+1)}
		}
	}
	return nil
}

func uniqueAuthorization(in GuardInput) error {
	if in.OpenClaimsWithAuthorization > 1 {
		return &GuardError{Guard: GuardUniqueAuthorization, Message: fmt.Sprintf(
			"authorization number %s is used by %d open claims, merge them first",
			in.Claim.AuthorizationNo, in.OpenClaimsWithAuthorization)}
	}
	return nil
}

// ItemsTotal sums the claimed amounts.
func ItemsTotal(items []ClaimItem) float64 {
	var total float64
	for _, item := range items {
		total += item.AmountClaimed
	}
	return RoundAmount(total)
}

func RoundAmount(v float64) float64 { return math.Round(v*100) / 100 }

func AmountsEqual(a, b float64) bool { return math.Abs(a-b) < 0.005 }
