package services

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/role"
	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/user"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/session"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	"github.com/iota-uz/admin-portal/pkg/authz"
	"github.com/iota-uz/admin-portal/pkg/cache"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/eventbus"
	"github.com/iota-uz/admin-portal/pkg/mailer"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

// fakeTx satisfies pgx.Tx for InTx and records statements sent through Exec.
type fakeTx struct {
	pgx.Tx
	mu        sync.Mutex
	execs     []fakeExec
	commits   int
	rollbacks int
	commitErr error
}

type fakeExec struct {
	sql  string
	args []any
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) { return f, nil }

func (f *fakeTx) Commit(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return f.commitErr
	}
	f.commits++
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rollbacks++
	return nil
}

func (f *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, fakeExec{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeTx) outboxTopics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var topics []string
	for _, e := range f.execs {
		if strings.Contains(e.sql, "INSERT INTO outbox") {
			topics = append(topics, e.args[1].(string))
		}
	}
	return topics
}

func (f *fakeTx) outboxPayload(topic string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.execs {
		if strings.Contains(e.sql, "INSERT INTO outbox") && e.args[1] == topic {
			switch payload := e.args[2].(type) {
			case json.RawMessage:
				return payload
			case []byte:
				return payload
			}
		}
	}
	return nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]user.User
}

func newFakeUserRepo(users ...user.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[uuid.UUID]user.User{}}
	for _, u := range users {
		r.users[u.ID()] = u
	}
	return r
}

func (r *fakeUserRepo) get(id uuid.UUID) user.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id]
}

func (r *fakeUserRepo) scoped(ctx context.Context, u user.User) bool {
	tenantID, err := composables.UseTenantID(ctx)
	return err == nil && u.TenantID() == tenantID
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || !r.scoped(ctx, u) {
		return nil, user.ErrUserNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email() == email && r.scoped(ctx, u) {
			return u, nil
		}
	}
	return nil, user.ErrUserNotFound
}

func (r *fakeUserRepo) EmailExists(ctx context.Context, email string, exclude uuid.UUID) (bool, error) {
	u, err := r.GetByEmail(ctx, email)
	if err != nil {
		return false, nil
	}
	return u.ID() != exclude, nil
}

func (r *fakeUserRepo) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if r.scoped(ctx, u) {
			n++
		}
	}
	return n, nil
}

func (r *fakeUserRepo) CountByRole(ctx context.Context, roleID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if r.scoped(ctx, u) && slices.Contains(u.RoleIDs(), roleID) {
			n++
		}
	}
	return n, nil
}

func (r *fakeUserRepo) Create(_ context.Context, u user.User) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID()] = u
	return u, nil
}

func (r *fakeUserRepo) Update(_ context.Context, u user.User) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID()]; !ok {
		return nil, user.ErrUserNotFound
	}
	r.users[u.ID()] = u
	return u, nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return user.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

type fakeRoleRepo struct {
	mu    sync.Mutex
	roles map[uuid.UUID]role.Role
}

func newFakeRoleRepo(roles ...role.Role) *fakeRoleRepo {
	r := &fakeRoleRepo{roles: map[uuid.UUID]role.Role{}}
	for _, rl := range roles {
		r.roles[rl.ID()] = rl
	}
	return r
}

func (r *fakeRoleRepo) GetByID(_ context.Context, id uuid.UUID) (role.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rl, ok := r.roles[id]
	if !ok {
		return nil, role.ErrRoleNotFound
	}
	return rl, nil
}

func (r *fakeRoleRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]role.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []role.Role
	for _, id := range ids {
		if rl, ok := r.roles[id]; ok {
			out = append(out, rl)
		}
	}
	return out, nil
}

func (r *fakeRoleRepo) GetAll(context.Context) ([]role.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]role.Role, 0, len(r.roles))
	for _, rl := range r.roles {
		out = append(out, rl)
	}
	return out, nil
}

func (r *fakeRoleRepo) NameExists(_ context.Context, name string, exclude uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rl := range r.roles {
		if strings.EqualFold(rl.Name(), name) && rl.ID() != exclude {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRoleRepo) Create(_ context.Context, rl role.Role) (role.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[rl.ID()] = rl
	return rl, nil
}

func (r *fakeRoleRepo) Update(ctx context.Context, rl role.Role) (role.Role, error) {
	return r.Create(ctx, rl)
}

func (r *fakeRoleRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.roles, id)
	return nil
}

type fakeTenantRepo struct {
	mu      sync.Mutex
	tenants map[uuid.UUID]*tenant.Tenant
	reads   int
}

func newFakeTenantRepo(tenants ...*tenant.Tenant) *fakeTenantRepo {
	r := &fakeTenantRepo{tenants: map[uuid.UUID]*tenant.Tenant{}}
	for _, t := range tenants {
		r.tenants[t.ID()] = t
	}
	return r
}

func (r *fakeTenantRepo) GetByID(_ context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	t, ok := r.tenants[id]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	return t, nil
}

func (r *fakeTenantRepo) GetByDomain(_ context.Context, domain string) (*tenant.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	for _, t := range r.tenants {
		if t.Domain() == domain {
			return t, nil
		}
	}
	return nil, tenant.ErrTenantNotFound
}

func (r *fakeTenantRepo) List(context.Context) ([]*tenant.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*tenant.Tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		out = append(out, t)
	}
	return out, nil
}

func (r *fakeTenantRepo) DomainExists(_ context.Context, domain string, exclude uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tenants {
		if t.Domain() == domain && t.ID() != exclude {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeTenantRepo) Create(_ context.Context, t *tenant.Tenant) (*tenant.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants[t.ID()] = t
	return t, nil
}

func (r *fakeTenantRepo) Update(ctx context.Context, t *tenant.Tenant) (*tenant.Tenant, error) {
	return r.Create(ctx, t)
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string]*session.Session{}}
}

func (r *fakeSessionRepo) GetByToken(_ context.Context, token string) (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return s, nil
}

func (r *fakeSessionRepo) Create(_ context.Context, s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.Token] = s
	return nil
}

func (r *fakeSessionRepo) Delete(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, token)
	return nil
}

func (r *fakeSessionRepo) DeleteByUser(_ context.Context, userID uuid.UUID) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var tokens []string
	for token, s := range r.sessions {
		if s.UserID == userID {
			tokens = append(tokens, token)
			delete(r.sessions, token)
		}
	}
	return tokens, nil
}

func (r *fakeSessionRepo) DeleteByTenant(_ context.Context, tenantID uuid.UUID) ([]session.Revoked, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var revoked []session.Revoked
	for token, s := range r.sessions {
		if s.TenantID == tenantID {
			revoked = append(revoked, session.Revoked{Token: token, UserID: s.UserID})
			delete(r.sessions, token)
		}
	}
	return revoked, nil
}

func (r *fakeSessionRepo) DeleteExpired(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for token, s := range r.sessions {
		if s.IsExpired() {
			delete(r.sessions, token)
			n++
		}
	}
	return n, nil
}

func (r *fakeSessionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

type fakeAuthorizer struct {
	mu          sync.Mutex
	denied      map[string]bool
	invalidated []uuid.UUID
}

func (a *fakeAuthorizer) Authorize(_ context.Context, _ uuid.UUID, req authz.Request) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.denied[req.Object+"."+req.Action] {
		return serrors.NewError(serrors.Forbidden, "forbidden", "Errors.Forbidden")
	}
	return nil
}

func (a *fakeAuthorizer) Invalidate(tenantID uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.invalidated = append(a.invalidated, tenantID)
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Mail
}

func (m *fakeMailer) Send(_ context.Context, mail mailer.Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, mail)
	return nil
}

func (m *fakeMailer) last() mailer.Mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return mailer.Mail{}
	}
	return m.sent[len(m.sent)-1]
}

// recorder collects events of type T published on bus.
type recorder[T any] struct {
	mu     sync.Mutex
	events []*T
}

func record[T any](bus eventbus.EventBus) *recorder[T] {
	r := &recorder[T]{}
	bus.Subscribe(func(_ context.Context, e *T) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, e)
	})
	return r
}

func (r *recorder[T]) all() []*T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func newTestBus() eventbus.EventBus {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return eventbus.NewEventPublisher(logger)
}

func newTestCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.NewMemory(cache.MemoryOptions{NumCounters: 1000, MaxCost: 1 << 20})
	require.NoError(t, err)
	return c
}

func newTestUser(t *testing.T, tenantID uuid.UUID, email string, opts ...user.Option) user.User {
	t.Helper()
	opts = append([]user.Option{user.WithTenantID(tenantID)}, opts...)
	u, err := user.New(email, "Test", "User", opts...).SetPassword("correct-horse")
	require.NoError(t, err)
	return u
}

func testContext(tx *fakeTx, tenantID uuid.UUID) context.Context {
	ctx := composables.WithTx(context.Background(), tx)
	return composables.WithTenantID(ctx, tenantID)
}

