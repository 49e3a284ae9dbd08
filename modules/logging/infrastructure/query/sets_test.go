package query

import (
	"context"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/odata"
)

var limits = odata.Limits{PageSize: 25, MaxPageSize: 100}

func TestAuditLogsSetIsTenantScoped(t *testing.T) {
	tenantID := uuid.New()
	ctx := composables.WithTenantID(context.Background(), tenantID)

	opts, err := odata.ParseOptions(url.Values{
		"$filter": {`succeeded = false AND request:"User"`},
	}, limits)
	require.NoError(t, err)

	q, err := odata.Compile(ctx, AuditLogsSet(), opts)
	require.NoError(t, err)

	assert.Equal(t, []any{tenantID, false, "%User%"}, q.Args)
	assert.Contains(t, q.SelectSQL(), "a.tenant_id = $1")
	assert.Contains(t, q.SelectSQL(), "ORDER BY a.created_at DESC, a.id")
}

func TestAuthLogsSetHidesUserID(t *testing.T) {
	ctx := composables.WithTenantID(context.Background(), uuid.New())
	opts, err := odata.ParseOptions(url.Values{"$select": {"userId"}}, limits)
	require.NoError(t, err)

	_, err = odata.Compile(ctx, AuthLogsSet(), opts)
	require.Error(t, err)
}

func TestLogSetsRequireTenant(t *testing.T) {
	for _, set := range []*odata.EntitySet{AuditLogsSet(), AuthLogsSet()} {
		_, err := odata.Compile(context.Background(), set, &odata.Options{Top: 10})
		assert.Error(t, err, set.Name)
	}
}

func TestChangesAreNotFilterable(t *testing.T) {
	ctx := composables.WithTenantID(context.Background(), uuid.New())
	opts, err := odata.ParseOptions(url.Values{"$filter": {`changes:"x"`}}, limits)
	require.NoError(t, err)

	_, err = odata.Compile(ctx, AuditLogsSet(), opts)
	require.Error(t, err)
}
