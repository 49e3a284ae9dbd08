package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/role"
	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/user"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/eventbus"
	"github.com/iota-uz/admin-portal/pkg/mediator"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

var (
	ErrRoleNameTaken = serrors.NewError(serrors.Conflict, "a role with this name already exists", "Errors.RoleNameTaken")
	ErrRoleInUse     = serrors.NewError(serrors.Conflict, "role is assigned to users", "Errors.RoleInUse")
)

type CreateRole struct {
	mediator.CommandBase
	Name        string          `validate:"required,max=100"`
	Description string          `validate:"max=500"`
	Resources   []role.Resource `validate:"dive,required"`
}

type UpdateRole struct {
	mediator.CommandBase
	ID          uuid.UUID `validate:"required"`
	Name        string    `validate:"required,max=100"`
	Description string    `validate:"max=500"`
}

type SetRoleResources struct {
	mediator.CommandBase
	RoleID    uuid.UUID       `validate:"required"`
	Resources []role.Resource `validate:"dive,required"`
}

type DeleteRole struct {
	mediator.CommandBase
	RoleID uuid.UUID `validate:"required"`
}

type GetRole struct {
	ID uuid.UUID
}

type ListRoles struct{}

type RoleChange = mediator.Change[role.Snapshot]

type RoleService struct {
	repo       role.Repository
	userRepo   user.Repository
	authorizer Authorizer
	publisher  eventbus.EventBus
}

func NewRoleService(repo role.Repository, userRepo user.Repository, authorizer Authorizer, publisher eventbus.EventBus) *RoleService {
	return &RoleService{
		repo:       repo,
		userRepo:   userRepo,
		authorizer: authorizer,
		publisher:  publisher,
	}
}

func (s *RoleService) Register(m *mediator.Mediator) {
	mediator.Register(m, s.Create)
	mediator.Register(m, s.Update)
	mediator.Register(m, s.SetResources)
	mediator.Register(m, s.Delete)
	mediator.Register(m, s.Get)
	mediator.Register(m, s.List)
}

func (s *RoleService) Get(ctx context.Context, q GetRole) (role.Role, error) {
	if err := authorizeResource(ctx, s.authorizer, role.ResourceRolesRead); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, q.ID)
}

func (s *RoleService) List(ctx context.Context, _ ListRoles) ([]role.Role, error) {
	if err := authorizeResource(ctx, s.authorizer, role.ResourceRolesRead); err != nil {
		return nil, err
	}
	return s.repo.GetAll(ctx)
}

func (s *RoleService) Create(ctx context.Context, cmd CreateRole) (RoleChange, error) {
	if err := authorizeResource(ctx, s.authorizer, role.ResourceRolesWrite); err != nil {
		return RoleChange{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return RoleChange{}, err
	}
	if err := s.ensureNameFree(ctx, cmd.Name, uuid.Nil); err != nil {
		return RoleChange{}, err
	}
	r := role.New(cmd.Name, role.WithTenantID(tenantID), role.WithDescription(cmd.Description))
	r, _, _, err = r.SetResources(cmd.Resources)
	if err != nil {
		return RoleChange{}, err
	}
	created, err := s.repo.Create(ctx, r)
	if err != nil {
		return RoleChange{}, err
	}
	s.authorizer.Invalidate(tenantID)
	mediator.Raise(ctx, s.publisher, &role.CreatedEvent{Result: created.Snapshot()})
	return RoleChange{ID: created.ID().String(), After: created.Snapshot()}, nil
}

func (s *RoleService) Update(ctx context.Context, cmd UpdateRole) (RoleChange, error) {
	if err := authorizeResource(ctx, s.authorizer, role.ResourceRolesWrite); err != nil {
		return RoleChange{}, err
	}
	existing, err := s.repo.GetByID(ctx, cmd.ID)
	if err != nil {
		return RoleChange{}, err
	}
	if cmd.Name != existing.Name() {
		if err := s.ensureNameFree(ctx, cmd.Name, existing.ID()); err != nil {
			return RoleChange{}, err
		}
	}
	return s.save(ctx, existing, existing.SetName(cmd.Name).SetDescription(cmd.Description))
}

func (s *RoleService) SetResources(ctx context.Context, cmd SetRoleResources) (RoleChange, error) {
	if err := authorizeResource(ctx, s.authorizer, role.ResourceRolesWrite); err != nil {
		return RoleChange{}, err
	}
	existing, err := s.repo.GetByID(ctx, cmd.RoleID)
	if err != nil {
		return RoleChange{}, err
	}
	next, added, removed, err := existing.SetResources(cmd.Resources)
	if err != nil {
		return RoleChange{}, err
	}
	if len(added) == 0 && len(removed) == 0 {
		return RoleChange{ID: existing.ID().String(), Before: existing.Snapshot(), After: existing.Snapshot()}, nil
	}
	return s.save(ctx, existing, next)
}

func (s *RoleService) Delete(ctx context.Context, cmd DeleteRole) (RoleChange, error) {
	if err := authorizeResource(ctx, s.authorizer, role.ResourceRolesWrite); err != nil {
		return RoleChange{}, err
	}
	existing, err := s.repo.GetByID(ctx, cmd.RoleID)
	if err != nil {
		return RoleChange{}, err
	}
	assigned, err := s.userRepo.CountByRole(ctx, existing.ID())
	if err != nil {
		return RoleChange{}, err
	}
	if assigned > 0 {
		return RoleChange{}, ErrRoleInUse
	}
	if err := s.repo.Delete(ctx, existing.ID()); err != nil {
		return RoleChange{}, err
	}
	s.authorizer.Invalidate(existing.TenantID())
	mediator.Raise(ctx, s.publisher, &role.DeletedEvent{Result: existing.Snapshot()})
	return RoleChange{ID: existing.ID().String(), Before: existing.Snapshot()}, nil
}

func (s *RoleService) save(ctx context.Context, before, next role.Role) (RoleChange, error) {
	updated, err := s.repo.Update(ctx, next)
	if err != nil {
		return RoleChange{}, err
	}
	s.authorizer.Invalidate(updated.TenantID())
	mediator.Raise(ctx, s.publisher, &role.UpdatedEvent{Before: before.Snapshot(), Result: updated.Snapshot()})
	return RoleChange{ID: updated.ID().String(), Before: before.Snapshot(), After: updated.Snapshot()}, nil
}

func (s *RoleService) ensureNameFree(ctx context.Context, name string, exclude uuid.UUID) error {
	taken, err := s.repo.NameExists(ctx, name, exclude)
	if err != nil {
		return err
	}
	if taken {
		return serrors.FieldError("Name", ErrRoleNameTaken.Message)
	}
	return nil
}
