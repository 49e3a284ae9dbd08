package authz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RoleGrant is one role with the resources it holds.
type RoleGrant struct {
	RoleID    uuid.UUID
	Resources []string
}

// Membership assigns a user to a role.
type Membership struct {
	UserID uuid.UUID
	RoleID uuid.UUID
}

// PolicySource loads a tenant's grants from storage.
type PolicySource interface {
	TenantPolicy(ctx context.Context, tenantID uuid.UUID) ([]RoleGrant, []Membership, error)
}

type Config struct {
	Mode   Mode
	Source PolicySource
	Logger *logrus.Logger
}

// Service enforces role resources. Tenant policies load lazily on first use
// and are dropped by Invalidate whenever roles or memberships change.
type Service struct {
	mode     Mode
	source   PolicySource
	enforcer *casbin.SyncedEnforcer
	logger   *logrus.Entry

	mu     sync.Mutex
	loaded map[uuid.UUID]bool
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("authz: policy source is required")
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeEnforce
	}
	m, err := model.NewModelFromString(rbacWithDomains)
	if err != nil {
		return nil, fmt.Errorf("authz: invalid model: %w", err)
	}
	enf, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("authz: failed to initialize enforcer: %w", err)
	}
	logger := logrus.WithField("component", "authz")
	if cfg.Logger != nil {
		logger = cfg.Logger.WithField("component", "authz")
	}
	return &Service{
		mode:     cfg.Mode,
		source:   cfg.Source,
		enforcer: enf,
		logger:   logger,
		loaded:   make(map[uuid.UUID]bool),
	}, nil
}

// Authorize returns a Forbidden error when the request is denied in enforce mode.
func (s *Service) Authorize(ctx context.Context, tenantID uuid.UUID, req Request) error {
	if s.mode == ModeDisabled {
		return nil
	}
	allowed, err := s.Check(ctx, tenantID, req)
	if err != nil {
		return err
	}
	if allowed {
		return nil
	}
	fields := logrus.Fields{
		"subject": req.Subject,
		"domain":  req.Domain,
		"object":  req.Object,
		"action":  req.Action,
		"mode":    s.mode,
	}
	if s.mode == ModeShadow {
		s.logger.WithContext(ctx).WithFields(fields).Warn("authz shadow deny")
		return nil
	}
	s.logger.WithContext(ctx).WithFields(fields).Info("authz denied request")
	return forbiddenError(req)
}

func (s *Service) Check(ctx context.Context, tenantID uuid.UUID, req Request) (bool, error) {
	if err := s.ensureLoaded(ctx, tenantID); err != nil {
		return false, err
	}
	start := time.Now()
	allowed, err := s.enforcer.Enforce(req.Subject, req.Domain, req.Object, req.Action)
	if err != nil {
		return false, fmt.Errorf("authz: enforce failed: %w", err)
	}
	recordDecision(s.mode, allowed, time.Since(start))
	return allowed, nil
}

// Resources lists which of candidates the user holds, for rendering navigation.
func (s *Service) Resources(ctx context.Context, tenantID, userID uuid.UUID, candidates []string) ([]string, error) {
	out := make([]string, 0, len(candidates))
	for _, res := range candidates {
		ok, err := s.Check(ctx, tenantID, NewRequest(tenantID, userID, res))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, res)
		}
	}
	return out, nil
}

// Invalidate drops the tenant's loaded policy.
func (s *Service) Invalidate(tenantID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded[tenantID] {
		return
	}
	dom := DomainForTenant(tenantID)
	if _, err := s.enforcer.RemoveFilteredPolicy(1, dom); err != nil {
		s.logger.WithError(err).Warn("authz: failed to drop tenant policies")
	}
	if _, err := s.enforcer.RemoveFilteredGroupingPolicy(2, dom); err != nil {
		s.logger.WithError(err).Warn("authz: failed to drop tenant groupings")
	}
	delete(s.loaded, tenantID)
}

func (s *Service) ensureLoaded(ctx context.Context, tenantID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded[tenantID] {
		return nil
	}

	grants, members, err := s.source.TenantPolicy(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("authz: load tenant policy: %w", err)
	}
	dom := DomainForTenant(tenantID)
	var policies [][]string
	for _, g := range grants {
		for _, res := range g.Resources {
			obj, act := SplitResource(res)
			policies = append(policies, []string{SubjectForRole(g.RoleID), dom, obj, act})
		}
	}
	groupings := make([][]string, 0, len(members))
	for _, m := range members {
		groupings = append(groupings, []string{SubjectForUser(m.UserID), SubjectForRole(m.RoleID), dom})
	}
	if len(policies) > 0 {
		if _, err := s.enforcer.AddPolicies(policies); err != nil {
			return fmt.Errorf("authz: add policies: %w", err)
		}
	}
	if len(groupings) > 0 {
		if _, err := s.enforcer.AddGroupingPolicies(groupings); err != nil {
			return fmt.Errorf("authz: add groupings: %w", err)
		}
	}
	s.loaded[tenantID] = true
	metricsSingleton().loads.Inc()
	return nil
}
