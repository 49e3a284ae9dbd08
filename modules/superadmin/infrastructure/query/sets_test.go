package query

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/admin-portal/pkg/odata"
)

func TestTenantsSetIsGlobal(t *testing.T) {
	opts, err := odata.ParseOptions(url.Values{
		"$filter":  {`isActive = true AND domain:"acme"`},
		"$orderby": {"userCount desc"},
	}, odata.Limits{PageSize: 25, MaxPageSize: 100})
	require.NoError(t, err)

	q, err := odata.Compile(context.Background(), TenantsSet(), opts)
	require.NoError(t, err)

	assert.Equal(t, []any{true, "%acme%"}, q.Args)
	assert.NotContains(t, q.SelectSQL(), "tenant_id = $")
	assert.Contains(t, q.SelectSQL(), "ORDER BY (SELECT count(*) FROM users u WHERE u.tenant_id = t.id) DESC")
}

func TestAlertsSetRejectsUnknownField(t *testing.T) {
	opts, err := odata.ParseOptions(url.Values{"$filter": {`tenantId = "x"`}}, odata.Limits{PageSize: 25, MaxPageSize: 100})
	require.NoError(t, err)

	_, err = odata.Compile(context.Background(), AlertsSet(), opts)
	require.Error(t, err)
}
