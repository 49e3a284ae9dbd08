package controllers_test

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	"github.com/iota-uz/admin-portal/modules/core/presentation/controllers"
	"github.com/iota-uz/admin-portal/pkg/configuration"
	"github.com/iota-uz/admin-portal/pkg/odata"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

type recordedQuery struct {
	queries []*odata.Query
}

// run compiles the query for real so option errors surface as they would in
// production, then answers with two canned rows.
func (rq *recordedQuery) run(ctx context.Context, set *odata.EntitySet, opts *odata.Options) (*odata.Result, error) {
	q, err := odata.Compile(ctx, set, opts)
	if err != nil {
		return nil, err
	}
	rq.queries = append(rq.queries, q)
	res := &odata.Result{
		Columns: q.Columns,
		Rows: []odata.Row{
			{"email": "ann@acme.test", "isActive": true},
			{"email": "bob@acme.test", "isActive": false},
		},
	}
	if opts.Count {
		total := int64(42)
		res.Count = &total
	}
	return res, nil
}

func (rq *recordedQuery) last(t *testing.T) *odata.Query {
	t.Helper()
	require.NotEmpty(t, rq.queries)
	return rq.queries[len(rq.queries)-1]
}

func portalUsersSet() *odata.EntitySet {
	return &odata.EntitySet{
		Name: "users",
		From: "users u",
		Fields: []odata.Field{
			{Name: "email", Column: "u.email", Type: odata.String, ExportName: "Email"},
			{Name: "isActive", Column: "u.is_active", Type: odata.Bool, ExportName: "Active"},
			{Name: "password", Column: "u.password", Hidden: true, NoFilter: true, NoSort: true},
		},
		DefaultOrder: "u.email ASC",
	}
}

func globalTenantsSet() *odata.EntitySet {
	return &odata.EntitySet{
		Name:       "tenants",
		From:       "tenants t",
		Fields:     []odata.Field{{Name: "name", Column: "t.name", Type: odata.String}},
		Superadmin: true,
	}
}

type odataFixture struct {
	tenant  *tenant.Tenant
	queries *recordedQuery
	ctrl    *controllers.ODataController
}

func newODataFixture(features ...tenant.Feature) *odataFixture {
	app := newApp()
	app.OData().Register(portalUsersSet(), globalTenantsSet())
	queries := &recordedQuery{}
	ctrl := controllers.NewODataControllerWithOptions(app, controllers.ODataOptions{
		Authz: allowAll{},
		Conf: &configuration.Configuration{
			Origin:        "https://portal.test",
			PageSize:      25,
			MaxPageSize:   100,
			MaxExportRows: 1000,
		},
		Query: queries.run,
		Now:   func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	}).(*controllers.ODataController)
	return &odataFixture{
		tenant:  tenant.New("Acme", tenant.WithFeatures(features)),
		queries: queries,
		ctrl:    ctrl,
	}
}

func (f *odataFixture) get(path string) *httptest.ResponseRecorder {
	r := newRouter(f.ctrl, signedIn(tenantUser(f.tenant), f.tenant))
	return do(r, httptest.NewRequest(http.MethodGet, path, nil))
}

func TestODataController_Collection(t *testing.T) {
	f := newODataFixture()

	rr := f.get("/odata/users?$select=email&$orderby=email%20desc&$top=5&$count=true")

	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "https://portal.test/odata/$metadata#users", body["@odata.context"])
	assert.InDelta(t, 42, body["@odata.count"], 0)
	require.Len(t, body["value"], 2)

	q := f.queries.last(t)
	assert.Equal(t, 5, q.Limit)
	assert.Equal(t, "ORDER BY u.email DESC", q.OrderBy)
	require.Len(t, q.Columns, 1)
	assert.Equal(t, "email", q.Columns[0].Name)
}

func TestODataController_CollectionWithoutCount(t *testing.T) {
	f := newODataFixture()

	rr := f.get("/odata/users")

	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.NotContains(t, body, "@odata.count")
	assert.Equal(t, 25, f.queries.last(t).Limit)
}

func TestODataController_Filtered(t *testing.T) {
	f := newODataFixture()

	rr := f.get(`/odata/users/Filtered?$filter=isActive%20%3D%20true&$top=1000`)

	require.Equal(t, http.StatusOK, rr.Code)
	env := decodeEnvelope(t, rr)
	require.True(t, env.IsSuccess)
	data, ok := env.Data.(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 42, data["total"], 0)
	assert.Len(t, data["items"], 2)

	q := f.queries.last(t)
	assert.Equal(t, 100, q.Limit, "page size is capped")
	assert.Equal(t, []string{"u.is_active = $1"}, q.Where)
}

func TestODataController_RejectsBadOptions(t *testing.T) {
	cases := []struct {
		name  string
		path  string
		field string
	}{
		{"unknown filter field", `/odata/users?$filter=nope%20%3D%20%22x%22`, "$filter"},
		{"hidden filter field", `/odata/users/Filtered?$filter=password%20%3D%20%22x%22`, "$filter"},
		{"malformed orderby", `/odata/users?$orderby=email%20sideways`, "$orderby"},
		{"unsortable field", `/odata/users/Filtered?$orderby=password`, "$orderby"},
		{"hidden select", `/odata/users?$select=password`, "$select"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newODataFixture()

			rr := f.get(tc.path)

			require.Equal(t, http.StatusBadRequest, rr.Code)
			env := decodeEnvelope(t, rr)
			require.False(t, env.IsSuccess)
			assert.Equal(t, string(serrors.Validation), env.Error.Code)
			assert.Contains(t, env.Error.Fields, tc.field)
			assert.Empty(t, f.queries.queries)
		})
	}
}

func TestODataController_FilteredExport(t *testing.T) {
	f := newODataFixture(tenant.FeatureExport)

	rr := f.get(`/odata/users/FilteredExport?$filter=isActive&$top=5&$skip=10&$count=true`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="users-20240501-120000.csv"`, rr.Header().Get("Content-Disposition"))

	records, err := csv.NewReader(rr.Body).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Email", "Active"},
		{"ann@acme.test", "true"},
		{"bob@acme.test", "false"},
	}, records)

	q := f.queries.last(t)
	assert.Equal(t, 1000, q.Limit, "paging is replaced by the export cap")
	assert.Zero(t, q.Offset)
	assert.Equal(t, []string{"u.is_active"}, q.Where)
}

func TestODataController_FilteredExportNeedsFeature(t *testing.T) {
	f := newODataFixture()

	rr := f.get(`/odata/users/FilteredExport`)

	require.Equal(t, http.StatusForbidden, rr.Code)
	assert.Empty(t, f.queries.queries)
}

func TestODataController_SuperadminSets(t *testing.T) {
	t.Run("hidden from tenant users", func(t *testing.T) {
		f := newODataFixture()

		rr := f.get("/odata/tenants")
		require.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, string(serrors.NotFound), decodeEnvelope(t, rr).Error.Code)

		rr = f.get("/odata/$metadata")
		require.Equal(t, http.StatusOK, rr.Code)
		var body struct {
			Value []struct {
				Name string `json:"name"`
			} `json:"value"`
		}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		require.Len(t, body.Value, 1)
		assert.Equal(t, "users", body.Value[0].Name)
		assert.Empty(t, f.queries.queries)
	})

	t.Run("served to superadmins", func(t *testing.T) {
		f := newODataFixture()
		r := newRouter(f.ctrl, signedIn(superadmin(), nil))

		rr := do(r, httptest.NewRequest(http.MethodGet, "/odata/tenants", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		require.Len(t, f.queries.queries, 1)
	})
}

func TestODataController_RequiresSignIn(t *testing.T) {
	f := newODataFixture()
	r := newRouter(f.ctrl)

	rr := do(r, httptest.NewRequest(http.MethodGet, "/odata/users", nil))

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, f.queries.queries)
}
