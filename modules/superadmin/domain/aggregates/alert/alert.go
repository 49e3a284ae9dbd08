// Package alert holds system-wide banners shown on every tenant's dashboard.
package alert

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/pkg/serrors"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

var AllSeverities = []Severity{SeverityInfo, SeverityWarning, SeverityCritical}

func (s Severity) IsValid() bool {
	return slices.Contains(AllSeverities, s)
}

// Rank orders severities from most to least urgent.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

var (
	ErrAlertNotFound = serrors.NewError(serrors.SystemAlertNotFound, "system alert not found", "Errors.SystemAlertNotFound")
	ErrInvalidWindow = serrors.NewError(serrors.Validation, "active to must be after active from", "Errors.AlertWindow")
)

type Option func(a *SystemAlert)

func WithID(id uuid.UUID) Option {
	return func(a *SystemAlert) {
		a.id = id
	}
}

func WithCreatedAt(t time.Time) Option {
	return func(a *SystemAlert) {
		a.createdAt = t
	}
}

func WithUpdatedAt(t time.Time) Option {
	return func(a *SystemAlert) {
		a.updatedAt = t
	}
}

type SystemAlert struct {
	id         uuid.UUID
	message    string
	severity   Severity
	activeFrom time.Time
	activeTo   *time.Time
	createdAt  time.Time
	updatedAt  time.Time
}

func New(message string, severity Severity, activeFrom time.Time, activeTo *time.Time, opts ...Option) (*SystemAlert, error) {
	a := &SystemAlert{id: uuid.New(), createdAt: time.Now()}
	if err := a.Update(message, severity, activeFrom, activeTo); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Update replaces the content and the activity window. A zero activeFrom
// means now.
func (a *SystemAlert) Update(message string, severity Severity, activeFrom time.Time, activeTo *time.Time) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return serrors.FieldError("Message", "required")
	}
	if !severity.IsValid() {
		return serrors.FieldError("Severity", "unknown severity")
	}
	if activeFrom.IsZero() {
		activeFrom = time.Now()
	}
	if activeTo != nil && !activeTo.After(activeFrom) {
		return ErrInvalidWindow
	}
	a.message = message
	a.severity = severity
	a.activeFrom = activeFrom
	a.activeTo = activeTo
	a.updatedAt = time.Now()
	return nil
}

func (a *SystemAlert) ID() uuid.UUID         { return a.id }
func (a *SystemAlert) Message() string       { return a.message }
func (a *SystemAlert) Severity() Severity    { return a.severity }
func (a *SystemAlert) ActiveFrom() time.Time { return a.activeFrom }
func (a *SystemAlert) ActiveTo() *time.Time  { return a.activeTo }
func (a *SystemAlert) CreatedAt() time.Time  { return a.createdAt }
func (a *SystemAlert) UpdatedAt() time.Time  { return a.updatedAt }

// IsActive reports whether now falls inside [activeFrom, activeTo).
func (a *SystemAlert) IsActive(now time.Time) bool {
	if now.Before(a.activeFrom) {
		return false
	}
	return a.activeTo == nil || now.Before(*a.activeTo)
}

type Snapshot struct {
	ID         uuid.UUID  `json:"id"`
	Message    string     `json:"message"`
	Severity   Severity   `json:"severity"`
	ActiveFrom time.Time  `json:"activeFrom"`
	ActiveTo   *time.Time `json:"activeTo,omitempty"`
}

func (a *SystemAlert) Snapshot() Snapshot {
	return Snapshot{
		ID:         a.id,
		Message:    a.message,
		Severity:   a.severity,
		ActiveFrom: a.activeFrom,
		ActiveTo:   a.activeTo,
	}
}

// Sort orders alerts by severity, then by start time.
func Sort(alerts []*SystemAlert) {
	slices.SortStableFunc(alerts, func(a, b *SystemAlert) int {
		if d := a.severity.Rank() - b.severity.Rank(); d != 0 {
			return d
		}
		return a.activeFrom.Compare(b.activeFrom)
	})
}
