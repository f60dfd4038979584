package domain

import (
	"strconv"
	"strings"
	"time"
)

// Kind distinguishes the three delivery shapes a Schedule can take.
type Kind string

const (
	KindInstant Kind = "instant"
	KindOnce    Kind = "once"
	KindDaily   Kind = "daily"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindInstant, KindOnce, KindDaily:
		return true
	}
	return false
}

// Status tracks the campaign-level state machine.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// AudienceKind selects between the unconditional and filtered audiences.
type AudienceKind string

const (
	AudienceAll      AudienceKind = "all"
	AudienceFiltered AudienceKind = "filtered"
)

func (a AudienceKind) IsValid() bool {
	switch a {
	case AudienceAll, AudienceFiltered:
		return true
	}
	return false
}

// Gender and Platform are closed enumerations usable as filter sub-fields.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformWeb     Platform = "web"
)

// AgeRange is an inclusive [Min, Max] bound, 13 <= Min <= Max <= 120.
type AgeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func (r AgeRange) valid() bool {
	return r.Min >= 13 && r.Max <= 120 && r.Min <= r.Max
}

// Filter is the optional audience predicate. At least one sub-field must be
// non-empty when a Schedule's audience kind is AudienceFiltered.
type Filter struct {
	Genders   []Gender   `json:"genders,omitempty"`
	Platforms []Platform `json:"platforms,omitempty"`
	AgeRange  *AgeRange  `json:"ageRange,omitempty"`
}

func (f *Filter) empty() bool {
	return f == nil || (len(f.Genders) == 0 && len(f.Platforms) == 0 && f.AgeRange == nil)
}

func (f *Filter) valid() bool {
	if f == nil {
		return true
	}
	if f.AgeRange != nil && !f.AgeRange.valid() {
		return false
	}
	return true
}

// Schedule is the campaign definition.
type Schedule struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Message   string       `json:"message"`
	Kind      Kind         `json:"kind"`
	LocalTime string       `json:"localTime,omitempty"` // "HH:MM", required iff daily
	FireAt    *time.Time   `json:"fireAt,omitempty"`    // required iff once
	Audience  AudienceKind `json:"audience"`
	Filter    *Filter      `json:"filter,omitempty"`
	Category  string       `json:"category"`

	Status   Status `json:"status"`
	IsActive bool   `json:"isActive"`

	TotalTargeted int        `json:"totalTargeted"`
	SuccessCount  int        `json:"successCount"`
	FailureCount  int        `json:"failureCount"`
	LastRunAt     *time.Time `json:"lastRunAt,omitempty"`
	LastRunStatus *string    `json:"lastRunStatus,omitempty"`
	FailureReason *string    `json:"failureReason,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateScheduleRequest is the inbound payload for POST /schedules.
// Struct-tag validation (non-domain-specific shape checks) is enforced by
// go-playground/validator at the API boundary; the cross-field rules below
// (kind-dependent required fields, filter non-emptiness, fireAt horizon)
// are domain logic and live in Validate.
type CreateScheduleRequest struct {
	Title     string       `json:"title" validate:"required,max=65"`
	Message   string       `json:"message" validate:"required,max=240"`
	Kind      Kind         `json:"kind" validate:"required"`
	LocalTime string       `json:"localTime,omitempty"`
	FireAt    *time.Time   `json:"fireAt,omitempty"`
	Audience  AudienceKind `json:"audience" validate:"required"`
	Filter    *Filter      `json:"filter,omitempty"`
	Category  string       `json:"category"`
}

// Validate enforces the cross-field invariants that cannot be expressed
// as independent struct tags.
func (r *CreateScheduleRequest) Validate(now time.Time) error {
	if len(r.Title) == 0 || len(r.Title) > 65 {
		return ErrInvalidTitle
	}
	if len(r.Message) == 0 || len(r.Message) > 240 {
		return ErrInvalidMessage
	}
	if !r.Kind.IsValid() {
		return ErrInvalidKind
	}
	if !r.Audience.IsValid() {
		return ErrInvalidAudience
	}
	if r.Audience == AudienceFiltered {
		if r.Filter.empty() {
			return ErrInvalidAudience
		}
		if !r.Filter.valid() {
			return ErrInvalidAgeRange
		}
	}

	switch r.Kind {
	case KindDaily:
		if !ValidLocalTime(r.LocalTime) {
			return ErrInvalidLocalTime
		}
	case KindOnce:
		if r.FireAt == nil || !r.FireAt.After(now) {
			return ErrInvalidFireAt
		}
	}
	return nil
}

// ValidLocalTime reports whether s is a strict 24-hour "HH:MM" clock time,
// e.g. "09:00" or "23:59"; "24:00" and "9:5" are both rejected.
func ValidLocalTime(s string) bool {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return false
	}
	if len(parts[0]) != 2 || len(parts[1]) != 2 {
		return false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return false
	}
	return true
}

// UpdateStatusRequest is the inbound payload for POST /schedules/{id}/status.
type UpdateStatusRequest struct {
	IsActive bool `json:"isActive"`
}

// ScheduleListFilter holds query parameters for GET /schedules.
type ScheduleListFilter struct {
	Status *Status
	Kind   *Kind
	Search string
	Page   int
	Limit  int
}
