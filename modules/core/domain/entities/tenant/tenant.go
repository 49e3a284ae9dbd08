package tenant

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/pkg/serrors"
)

type Feature string

const (
	FeatureNotifications Feature = "notifications"
	FeatureAlerts        Feature = "alerts"
	FeatureAudit         Feature = "audit"
	FeatureExport        Feature = "export"
	FeatureMfaDevices    Feature = "mfa_devices"
)

var AllFeatures = []Feature{
	FeatureNotifications,
	FeatureAlerts,
	FeatureAudit,
	FeatureExport,
	FeatureMfaDevices,
}

func (f Feature) IsValid() bool {
	return slices.Contains(AllFeatures, f)
}

var ErrUnknownFeature = serrors.NewError(serrors.Validation, "unknown tenant feature", "Errors.UnknownFeature")

type Tenant struct {
	id        uuid.UUID
	name      string
	domain    string
	isActive  bool
	features  map[Feature]struct{}
	createdAt time.Time
	updatedAt time.Time
}

type Option func(*Tenant)

func WithID(id uuid.UUID) Option {
	return func(t *Tenant) {
		t.id = id
	}
}

func WithDomain(domain string) Option {
	return func(t *Tenant) {
		t.domain = NormalizeDomain(domain)
	}
}

func WithIsActive(isActive bool) Option {
	return func(t *Tenant) {
		t.isActive = isActive
	}
}

// WithFeatures sets features without validation; used when loading from storage.
func WithFeatures(features []Feature) Option {
	return func(t *Tenant) {
		t.features = make(map[Feature]struct{}, len(features))
		for _, f := range features {
			t.features[f] = struct{}{}
		}
	}
}

func WithCreatedAt(createdAt time.Time) Option {
	return func(t *Tenant) {
		t.createdAt = createdAt
	}
}

func WithUpdatedAt(updatedAt time.Time) Option {
	return func(t *Tenant) {
		t.updatedAt = updatedAt
	}
}

func New(name string, opts ...Option) *Tenant {
	t := &Tenant{
		id:        uuid.New(),
		name:      strings.TrimSpace(name),
		isActive:  true,
		features:  map[Feature]struct{}{},
		createdAt: time.Now(),
		updatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NormalizeDomain lowercases a host name and strips any port.
func NormalizeDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if i := strings.LastIndexByte(domain, ':'); i >= 0 && !strings.Contains(domain[i:], "]") {
		domain = domain[:i]
	}
	return domain
}

func (t *Tenant) ID() uuid.UUID {
	return t.id
}

func (t *Tenant) Name() string {
	return t.name
}

func (t *Tenant) Domain() string {
	return t.domain
}

func (t *Tenant) IsActive() bool {
	return t.isActive
}

func (t *Tenant) CreatedAt() time.Time {
	return t.createdAt
}

func (t *Tenant) UpdatedAt() time.Time {
	return t.updatedAt
}

func (t *Tenant) Equal(other *Tenant) bool {
	return other != nil && t.id == other.id
}

func (t *Tenant) HasFeature(f Feature) bool {
	_, ok := t.features[f]
	return ok
}

// Features returns the enabled features in declaration order.
func (t *Tenant) Features() []Feature {
	out := make([]Feature, 0, len(t.features))
	for _, f := range AllFeatures {
		if t.HasFeature(f) {
			out = append(out, f)
		}
	}
	return out
}

func (t *Tenant) SetName(name string) {
	t.name = strings.TrimSpace(name)
	t.updatedAt = time.Now()
}

func (t *Tenant) SetDomain(domain string) {
	t.domain = NormalizeDomain(domain)
	t.updatedAt = time.Now()
}

func (t *Tenant) SetActive(active bool) {
	t.isActive = active
	t.updatedAt = time.Now()
}

// SetFeatures replaces the feature set and reports what changed.
func (t *Tenant) SetFeatures(features []Feature) (added, removed []Feature, err error) {
	next := make(map[Feature]struct{}, len(features))
	for _, f := range features {
		if !f.IsValid() {
			return nil, nil, serrors.FieldError("features", "unknown feature "+string(f))
		}
		next[f] = struct{}{}
	}
	for _, f := range AllFeatures {
		_, had := t.features[f]
		_, has := next[f]
		switch {
		case has && !had:
			added = append(added, f)
		case had && !has:
			removed = append(removed, f)
		}
	}
	t.features = next
	if len(added) > 0 || len(removed) > 0 {
		t.updatedAt = time.Now()
	}
	return added, removed, nil
}

// Snapshot is the audit and API view of a tenant.
type Snapshot struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Domain   string    `json:"domain"`
	IsActive bool      `json:"isActive"`
	Features []Feature `json:"features"`
}

func (t *Tenant) Snapshot() Snapshot {
	return Snapshot{
		ID:       t.id,
		Name:     t.name,
		Domain:   t.domain,
		IsActive: t.isActive,
		Features: t.Features(),
	}
}
