package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/role"
	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/user"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/eventbus"
	"github.com/iota-uz/admin-portal/pkg/mediator"
	"github.com/iota-uz/admin-portal/pkg/outbox"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

var (
	ErrEmailTaken         = serrors.NewError(serrors.Conflict, "email is already in use", "Errors.EmailTaken")
	ErrCannotModifySelf   = serrors.NewError(serrors.Forbidden, "you cannot do this to your own account", "Errors.CannotModifySelf")
	ErrCannotDeleteAdmin  = serrors.NewError(serrors.Forbidden, "superadmin accounts cannot be deleted", "Errors.CannotDeleteSuperadmin")
	ErrLastUser           = serrors.NewError(serrors.LastAdmin, "the last user of a tenant cannot be deleted", "Errors.LastUser")
	ErrWrongPassword      = serrors.NewError(serrors.AuthenticationFailed, "current password is incorrect", "Errors.WrongPassword")
	errUnknownRoleMessage = "one or more roles do not exist"
)

type UserCreatedPayload struct {
	UserID    uuid.UUID `json:"userId"`
	TenantID  uuid.UUID `json:"tenantId"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	Language  string    `json:"language"`
}

type CreateUser struct {
	mediator.CommandBase
	Email      string      `validate:"required,email,max=255"`
	FirstName  string      `validate:"required,max=100"`
	LastName   string      `validate:"required,max=100"`
	Password   string      `validate:"required,min=8,max=72"`
	UILanguage string      `validate:"omitempty,oneof=en ru uz"`
	RoleIDs    []uuid.UUID `validate:"dive,required"`
}

func (c CreateUser) Redacted() any {
	c.Password = ""
	return c
}

type UpdateUser struct {
	mediator.CommandBase
	ID         uuid.UUID `validate:"required"`
	Email      string    `validate:"required,email,max=255"`
	FirstName  string    `validate:"required,max=100"`
	LastName   string    `validate:"required,max=100"`
	UILanguage string    `validate:"required,oneof=en ru uz"`
}

type SetUserRoles struct {
	mediator.CommandBase
	UserID  uuid.UUID   `validate:"required"`
	RoleIDs []uuid.UUID `validate:"dive,required"`
}

type SetUserActive struct {
	mediator.CommandBase
	UserID uuid.UUID `validate:"required"`
	Active bool
}

type UnlockUser struct {
	mediator.CommandBase
	UserID uuid.UUID `validate:"required"`
}

type DeleteUser struct {
	mediator.CommandBase
	UserID uuid.UUID `validate:"required"`
}

// ChangePassword applies to the signed-in user.
type ChangePassword struct {
	mediator.CommandBase
	CurrentPassword string `validate:"required"`
	NewPassword     string `validate:"required,min=8,max=72,nefield=CurrentPassword"`
}

func (c ChangePassword) Redacted() any {
	return struct{}{}
}

type GetUser struct {
	ID uuid.UUID
}

type UserChange = mediator.Change[user.Snapshot]

type UserService struct {
	repo       user.Repository
	roleRepo   role.Repository
	sessions   *SessionService
	authorizer Authorizer
	publisher  eventbus.EventBus
}

func NewUserService(
	repo user.Repository,
	roleRepo role.Repository,
	sessions *SessionService,
	authorizer Authorizer,
	publisher eventbus.EventBus,
) *UserService {
	return &UserService{
		repo:       repo,
		roleRepo:   roleRepo,
		sessions:   sessions,
		authorizer: authorizer,
		publisher:  publisher,
	}
}

func (s *UserService) Register(m *mediator.Mediator) {
	mediator.Register(m, s.Create)
	mediator.Register(m, s.Update)
	mediator.Register(m, s.SetRoles)
	mediator.Register(m, s.SetActive)
	mediator.Register(m, s.Unlock)
	mediator.Register(m, s.Delete)
	mediator.Register(m, s.ChangePassword)
	mediator.Register(m, s.Get)
}

func (s *UserService) Get(ctx context.Context, q GetUser) (user.User, error) {
	if err := authorizeResource(ctx, s.authorizer, role.ResourceUsersRead); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, q.ID)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *UserService) Create(ctx context.Context, cmd CreateUser) (UserChange, error) {
	if err := authorizeResource(ctx, s.authorizer, role.ResourceUsersWrite); err != nil {
		return UserChange{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return UserChange{}, err
	}
	email, err := user.NormalizeEmail(cmd.Email)
	if err != nil {
		return UserChange{}, err
	}
	if err := s.ensureEmailFree(ctx, email, uuid.Nil); err != nil {
		return UserChange{}, err
	}
	if err := s.ensureRolesExist(ctx, cmd.RoleIDs); err != nil {
		return UserChange{}, err
	}
	lang := user.UILanguageEN
	if cmd.UILanguage != "" {
		lang = user.UILanguage(cmd.UILanguage)
	}
	u := user.New(email, cmd.FirstName, cmd.LastName,
		user.WithTenantID(tenantID),
		user.WithUILanguage(lang),
	)
	u, _, _ = u.SetRoles(cmd.RoleIDs)
	u, err = u.SetPassword(cmd.Password)
	if err != nil {
		return UserChange{}, err
	}

	created, err := s.repo.Create(ctx, u)
	if err != nil {
		return UserChange{}, err
	}
	if err := outbox.Enqueue(ctx, outbox.TopicUserCreated, UserCreatedPayload{
		UserID:    created.ID(),
		TenantID:  created.TenantID(),
		Email:     created.Email(),
		FirstName: created.FirstName(),
		Language:  string(created.UILanguage()),
	}); err != nil {
		return UserChange{}, err
	}
	s.authorizer.Invalidate(tenantID)
	mediator.Raise(ctx, s.publisher, &user.CreatedEvent{Result: created.Snapshot()})
	return UserChange{ID: created.ID().String(), After: created.Snapshot()}, nil
}

func (s *UserService) Update(ctx context.Context, cmd UpdateUser) (UserChange, error) {
	if err := authorizeResource(ctx, s.authorizer, role.ResourceUsersWrite); err != nil {
		return UserChange{}, err
	}
	email, err := user.NormalizeEmail(cmd.Email)
	if err != nil {
		return UserChange{}, err
	}
	existing, err := s.repo.GetByID(ctx, cmd.ID)
	if err != nil {
		return UserChange{}, err
	}
	if email != existing.Email() {
		if err := s.ensureEmailFree(ctx, email, existing.ID()); err != nil {
			return UserChange{}, err
		}
	}
	next := existing.
		SetEmail(email).
		SetName(cmd.FirstName, cmd.LastName).
		SetUILanguage(user.UILanguage(cmd.UILanguage))
	return s.save(ctx, existing, next)
}

func (s *UserService) SetRoles(ctx context.Context, cmd SetUserRoles) (UserChange, error) {
	if err := authorizeResource(ctx, s.authorizer, role.ResourceUsersWrite); err != nil {
		return UserChange{}, err
	}
	existing, err := s.repo.GetByID(ctx, cmd.UserID)
	if err != nil {
		return UserChange{}, err
	}
	if err := s.ensureRolesExist(ctx, cmd.RoleIDs); err != nil {
		return UserChange{}, err
	}
	next, added, removed := existing.SetRoles(cmd.RoleIDs)
	if len(added) == 0 && len(removed) == 0 {
		return UserChange{ID: existing.ID().String(), Before: existing.Snapshot(), After: existing.Snapshot()}, nil
	}
	change, err := s.save(ctx, existing, next)
	if err != nil {
		return UserChange{}, err
	}
	s.authorizer.Invalidate(existing.TenantID())
	return change, nil
}

func (s *UserService) SetActive(ctx context.Context, cmd SetUserActive) (UserChange, error) {
	if err := authorizeResource(ctx, s.authorizer, role.ResourceUsersWrite); err != nil {
		return UserChange{}, err
	}
	if err := s.ensureNotSelf(ctx, cmd.UserID); err != nil {
		return UserChange{}, err
	}
	existing, err := s.repo.GetByID(ctx, cmd.UserID)
	if err != nil {
		return UserChange{}, err
	}
	change, err := s.save(ctx, existing, existing.SetActive(cmd.Active))
	if err != nil {
		return UserChange{}, err
	}
	if !cmd.Active {
		if err := s.sessions.RevokeUser(ctx, existing.ID()); err != nil {
			return UserChange{}, err
		}
	}
	return change, nil
}

func (s *UserService) Unlock(ctx context.Context, cmd UnlockUser) (UserChange, error) {
	if err := authorizeResource(ctx, s.authorizer, role.ResourceUsersWrite); err != nil {
		return UserChange{}, err
	}
	existing, err := s.repo.GetByID(ctx, cmd.UserID)
	if err != nil {
		return UserChange{}, err
	}
	return s.save(ctx, existing, existing.Unlock())
}

func (s *UserService) Delete(ctx context.Context, cmd DeleteUser) (UserChange, error) {
	if err := authorizeResource(ctx, s.authorizer, role.ResourceUsersWrite); err != nil {
		return UserChange{}, err
	}
	if err := s.ensureNotSelf(ctx, cmd.UserID); err != nil {
		return UserChange{}, err
	}
	existing, err := s.repo.GetByID(ctx, cmd.UserID)
	if err != nil {
		return UserChange{}, err
	}
	if existing.IsSuperadmin() {
		return UserChange{}, ErrCannotDeleteAdmin
	}
	count, err := s.repo.Count(ctx)
	if err != nil {
		return UserChange{}, err
	}
	if count <= 1 {
		return UserChange{}, ErrLastUser
	}
	if err := s.repo.Delete(ctx, existing.ID()); err != nil {
		return UserChange{}, err
	}
	s.authorizer.Invalidate(existing.TenantID())
	mediator.Raise(ctx, s.publisher, &user.DeletedEvent{Result: existing.Snapshot()})
	return UserChange{ID: existing.ID().String(), Before: existing.Snapshot()}, nil
}

func (s *UserService) ChangePassword(ctx context.Context, cmd ChangePassword) (UserChange, error) {
	current, err := composables.UseUser(ctx)
	if err != nil {
		return UserChange{}, serrors.NewError(serrors.Unauthenticated, "sign in required", "Errors.Unauthenticated")
	}
	existing, err := s.repo.GetByID(ctx, current.ID())
	if err != nil {
		return UserChange{}, err
	}
	if !existing.CheckPassword(cmd.CurrentPassword) {
		return UserChange{}, ErrWrongPassword
	}
	next, err := existing.SetPassword(cmd.NewPassword)
	if err != nil {
		return UserChange{}, err
	}
	return s.save(ctx, existing, next)
}

func (s *UserService) save(ctx context.Context, before, next user.User) (UserChange, error) {
	updated, err := s.repo.Update(ctx, next)
	if err != nil {
		return UserChange{}, err
	}
	mediator.Raise(ctx, s.publisher, &user.UpdatedEvent{Before: before.Snapshot(), Result: updated.Snapshot()})
	return UserChange{ID: updated.ID().String(), Before: before.Snapshot(), After: updated.Snapshot()}, nil
}

func (s *UserService) ensureEmailFree(ctx context.Context, email string, exclude uuid.UUID) error {
	taken, err := s.repo.EmailExists(ctx, email, exclude)
	if err != nil {
		return err
	}
	if taken {
		return serrors.FieldError("Email", ErrEmailTaken.Message)
	}
	return nil
}

func (s *UserService) ensureRolesExist(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	roles, err := s.roleRepo.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	found := make(map[uuid.UUID]bool, len(roles))
	for _, r := range roles {
		found[r.ID()] = true
	}
	for _, id := range ids {
		if !found[id] {
			return serrors.FieldError("RoleIDs", errUnknownRoleMessage)
		}
	}
	return nil
}

func (s *UserService) ensureNotSelf(ctx context.Context, id uuid.UUID) error {
	if current, err := composables.UseUser(ctx); err == nil && current.ID() == id {
		return ErrCannotModifySelf
	}
	return nil
}
