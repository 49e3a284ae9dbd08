package role

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/pkg/serrors"
)

const AdministratorsRoleName = "Administrators"

type Option func(r *role)

func WithID(id uuid.UUID) Option {
	return func(r *role) {
		r.id = id
	}
}

func WithTenantID(id uuid.UUID) Option {
	return func(r *role) {
		r.tenantID = id
	}
}

func WithDescription(description string) Option {
	return func(r *role) {
		r.description = strings.TrimSpace(description)
	}
}

// WithResources sets resources without validation; used when loading from storage.
func WithResources(resources []Resource) Option {
	return func(r *role) {
		r.resources = resources
	}
}

func WithCreatedAt(t time.Time) Option {
	return func(r *role) {
		r.createdAt = t
	}
}

func WithUpdatedAt(t time.Time) Option {
	return func(r *role) {
		r.updatedAt = t
	}
}

type Role interface {
	ID() uuid.UUID
	TenantID() uuid.UUID
	Name() string
	Description() string
	Resources() []Resource
	Can(resource Resource) bool
	CreatedAt() time.Time
	UpdatedAt() time.Time

	SetName(name string) Role
	SetDescription(description string) Role
	SetResources(resources []Resource) (next Role, added, removed []Resource, err error)
	Snapshot() Snapshot
}

func New(name string, opts ...Option) Role {
	r := &role{
		id:        uuid.New(),
		name:      strings.TrimSpace(name),
		createdAt: time.Now(),
		updatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type role struct {
	id          uuid.UUID
	tenantID    uuid.UUID
	name        string
	description string
	resources   []Resource
	createdAt   time.Time
	updatedAt   time.Time
}

func (r *role) ID() uuid.UUID {
	return r.id
}

func (r *role) TenantID() uuid.UUID {
	return r.tenantID
}

func (r *role) Name() string {
	return r.name
}

func (r *role) Description() string {
	return r.description
}

func (r *role) Resources() []Resource {
	return slices.Clone(r.resources)
}

func (r *role) Can(resource Resource) bool {
	return slices.Contains(r.resources, resource)
}

func (r *role) CreatedAt() time.Time {
	return r.createdAt
}

func (r *role) UpdatedAt() time.Time {
	return r.updatedAt
}

func (r *role) touched() *role {
	c := *r
	c.resources = slices.Clone(r.resources)
	c.updatedAt = time.Now()
	return &c
}

func (r *role) SetName(name string) Role {
	c := r.touched()
	c.name = strings.TrimSpace(name)
	return c
}

func (r *role) SetDescription(description string) Role {
	c := r.touched()
	c.description = strings.TrimSpace(description)
	return c
}

// SetResources reconciles the granted resources. Unknown resources are rejected.
func (r *role) SetResources(resources []Resource) (Role, []Resource, []Resource, error) {
	next := make([]Resource, 0, len(resources))
	for _, res := range resources {
		if !res.IsValid() {
			return nil, nil, nil, serrors.FieldError("Resources", "unknown resource "+string(res))
		}
		if !slices.Contains(next, res) {
			next = append(next, res)
		}
	}
	var added, removed []Resource
	for _, res := range next {
		if !r.Can(res) {
			added = append(added, res)
		}
	}
	for _, res := range r.resources {
		if !slices.Contains(next, res) {
			removed = append(removed, res)
		}
	}
	if len(added) == 0 && len(removed) == 0 {
		return r, nil, nil, nil
	}
	c := r.touched()
	c.resources = next
	return c, added, removed, nil
}

type Snapshot struct {
	ID          uuid.UUID  `json:"id"`
	TenantID    uuid.UUID  `json:"tenantId"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Resources   []Resource `json:"resources"`
}

func (r *role) Snapshot() Snapshot {
	return Snapshot{
		ID:          r.id,
		TenantID:    r.tenantID,
		Name:        r.name,
		Description: r.description,
		Resources:   r.Resources(),
	}
}
