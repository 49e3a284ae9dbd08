package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/pkg/authz"
	"github.com/iota-uz/admin-portal/pkg/composables"
)

// PolicySource feeds the authorizer with a tenant's role resources and memberships.
type PolicySource struct{}

func NewPolicySource() *PolicySource {
	return &PolicySource{}
}

func (s *PolicySource) TenantPolicy(ctx context.Context, tenantID uuid.UUID) ([]authz.RoleGrant, []authz.Membership, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, nil, err
	}

	rows, err := tx.Query(ctx, rolePolicyGrantsQuery, tenantID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to query role grants")
	}
	byRole := make(map[uuid.UUID]*authz.RoleGrant)
	var order []uuid.UUID
	for rows.Next() {
		var roleID uuid.UUID
		var resource string
		if err := rows.Scan(&roleID, &resource); err != nil {
			rows.Close()
			return nil, nil, errors.Wrap(err, "failed to scan role grant")
		}
		g, ok := byRole[roleID]
		if !ok {
			g = &authz.RoleGrant{RoleID: roleID}
			byRole[roleID] = g
			order = append(order, roleID)
		}
		g.Resources = append(g.Resources, resource)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	grants := make([]authz.RoleGrant, 0, len(order))
	for _, id := range order {
		grants = append(grants, *byRole[id])
	}

	rows, err = tx.Query(ctx, rolePolicyMembersQuery, tenantID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to query memberships")
	}
	defer rows.Close()
	var members []authz.Membership
	for rows.Next() {
		var m authz.Membership
		if err := rows.Scan(&m.UserID, &m.RoleID); err != nil {
			return nil, nil, errors.Wrap(err, "failed to scan membership")
		}
		members = append(members, m)
	}
	return grants, members, rows.Err()
}
