// Package domain contains the core entities of the veterinary diagnostic
// laboratory: test catalog definitions, categorized result sets, diagnostic
// reports, consultation requests and gallery items.
//
// The category set of a result set is deliberately open. Keys come from the
// loaded catalog schema, so adding a diagnostic section is a data change.
package domain

import (
	"errors"
	"strings"
)

// CategoryKey identifies one diagnostic section of a report, for example
// "clinicalPathology" or "parasitology".
type CategoryKey string

// String returns the string representation of the key.
func (k CategoryKey) String() string {
	return string(k)
}

// ReportStatus is the informational completion label of a report.
type ReportStatus string

const (
	PENDING   ReportStatus = "Pending"
	COMPLETED ReportStatus = "Completed"
)

// Species of the animal under investigation.
type Species string

const (
	BOVINE  Species = "Bovine"
	CAPRINE Species = "Caprine"
	OVINE   Species = "Ovine"
	EQUINE  Species = "Equine"
	AVIAN   Species = "Avian"
	CANINE  Species = "Canine"
	OTHER   Species = "Other"
)

// Sex of the animal.
type Sex string

const (
	MALE    Sex = "Male"
	FEMALE  Sex = "Female"
	UNKNOWN Sex = "Unknown"
)

// Urgency of a consultation request.
type Urgency string

const (
	ROUTINE   Urgency = "Routine"
	URGENT    Urgency = "Urgent"
	EMERGENCY Urgency = "Emergency"
)

// ConsultationStatus tracks a consultation request through review.
type ConsultationStatus string

const (
	SUBMITTED ConsultationStatus = "Submitted"
	REVIEWED  ConsultationStatus = "Reviewed"
	CLOSED    ConsultationStatus = "Closed"
)

// Validation errors for enumerated fields
var (
	ErrInvalidStatus  = errors.New("invalid report status")
	ErrInvalidSpecies = errors.New("invalid species")
	ErrInvalidSex     = errors.New("invalid sex")
	ErrInvalidUrgency = errors.New("invalid urgency")
)

// IsValid reports whether the status is one of the known labels.
func (s ReportStatus) IsValid() bool {
	switch s {
	case PENDING, COMPLETED:
		return true
	default:
		return false
	}
}

// IsValid reports whether the species is supported.
func (s Species) IsValid() bool {
	switch s {
	case BOVINE, CAPRINE, OVINE, EQUINE, AVIAN, CANINE, OTHER:
		return true
	default:
		return false
	}
}

// IsSmallRuminant is true for goats and sheep, which the dashboard groups.
func (s Species) IsSmallRuminant() bool {
	return s == CAPRINE || s == OVINE
}

// IsValid reports whether the sex is one of the known values.
func (s Sex) IsValid() bool {
	switch s {
	case MALE, FEMALE, UNKNOWN:
		return true
	default:
		return false
	}
}

// IsValid reports whether the urgency is one of the known levels.
func (u Urgency) IsValid() bool {
	switch u {
	case ROUTINE, URGENT, EMERGENCY:
		return true
	default:
		return false
	}
}

// IsValid reports whether the consultation status is known.
func (s ConsultationStatus) IsValid() bool {
	switch s {
	case SUBMITTED, REVIEWED, CLOSED:
		return true
	default:
		return false
	}
}

// ParseSpecies matches a species name case-insensitively.
func ParseSpecies(s string) (Species, error) {
	for _, sp := range AllSpecies() {
		if strings.EqualFold(strings.TrimSpace(s), string(sp)) {
			return sp, nil
		}
	}
	return "", NewValidationError("species", ErrInvalidSpecies.Error(), s)
}

// ParseUrgency matches an urgency level case-insensitively. Empty means ROUTINE.
func ParseUrgency(s string) (Urgency, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ROUTINE, nil
	}
	for _, u := range []Urgency{ROUTINE, URGENT, EMERGENCY} {
		if strings.EqualFold(s, string(u)) {
			return u, nil
		}
	}
	return "", NewValidationError("urgency", ErrInvalidUrgency.Error(), s)
}

// AllSpecies lists the supported species in display order.
func AllSpecies() []Species {
	return []Species{BOVINE, CAPRINE, OVINE, EQUINE, AVIAN, CANINE, OTHER}
}
