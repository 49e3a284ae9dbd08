package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	"github.com/iota-uz/admin-portal/pkg/application"
	"github.com/iota-uz/admin-portal/pkg/authz"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/configuration"
	"github.com/iota-uz/admin-portal/pkg/export"
	"github.com/iota-uz/admin-portal/pkg/httpapi"
	"github.com/iota-uz/admin-portal/pkg/middleware"
	"github.com/iota-uz/admin-portal/pkg/odata"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

var ErrEntitySetNotFound = serrors.NewError(serrors.NotFound, "entity set not found", "Errors.EntitySetNotFound")

type metadataField struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Filter   bool   `json:"filterable"`
	Sortable bool   `json:"sortable"`
}

type metadataSet struct {
	Name   string          `json:"name"`
	Fields []metadataField `json:"fields"`
}

// ODataController serves the registered entity sets as OData collections,
// portal grid listings and file exports.
type ODataController struct {
	app   application.Application
	authz middleware.ResourceChecker
	conf  *configuration.Configuration
	query QueryFunc
	now   func() time.Time
}

// QueryFunc executes a compiled entity set query.
type QueryFunc func(ctx context.Context, set *odata.EntitySet, opts *odata.Options) (*odata.Result, error)

type ODataOptions struct {
	Authz middleware.ResourceChecker
	Conf  *configuration.Configuration
	Query QueryFunc
	Now   func() time.Time
}

func NewODataController(app application.Application) application.Controller {
	return NewODataControllerWithOptions(app, ODataOptions{
		Authz: app.Service(authz.Service{}).(*authz.Service),
		Conf:  configuration.Use(),
	})
}

func NewODataControllerWithOptions(app application.Application, opts ODataOptions) application.Controller {
	if opts.Query == nil {
		opts.Query = odata.Run
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ODataController{
		app:   app,
		authz: opts.Authz,
		conf:  opts.Conf,
		query: opts.Query,
		now:   opts.Now,
	}
}

func (c *ODataController) Key() string {
	return "/odata"
}

func (c *ODataController) Register(r *mux.Router) {
	router := r.PathPrefix("/odata").Subrouter()
	router.Use(middleware.RedirectNotAuthenticated())
	router.HandleFunc("/$metadata", c.Metadata).Methods(http.MethodGet)
	router.HandleFunc("/{set}", c.Collection).Methods(http.MethodGet)
	router.HandleFunc("/{set}/Filtered", c.Filtered).Methods(http.MethodGet)
	router.HandleFunc("/{set}/FilteredExport", c.FilteredExport).Methods(http.MethodGet)
}

// resolve finds the set named in the path and checks the caller may read it.
func (c *ODataController) resolve(r *http.Request) (*odata.EntitySet, error) {
	set, ok := c.app.OData().Get(mux.Vars(r)["set"])
	if !ok {
		return nil, ErrEntitySetNotFound
	}
	if err := c.allowed(r, set); err != nil {
		return nil, err
	}
	return set, nil
}

func (c *ODataController) allowed(r *http.Request, set *odata.EntitySet) error {
	ctx := r.Context()
	u, err := composables.UseUser(ctx)
	if err != nil {
		return middleware.ErrNotAuthenticated
	}
	if u.IsSuperadmin() {
		return nil
	}
	if set.Superadmin {
		// Global sets are invisible to tenant users.
		return ErrEntitySetNotFound
	}
	if set.Feature != "" && !c.hasFeature(r, tenant.Feature(set.Feature)) {
		return middleware.ErrForbidden
	}
	if set.Resource != "" {
		return c.authz.Authorize(ctx, u.TenantID(), authz.NewRequest(u.TenantID(), u.ID(), set.Resource))
	}
	return nil
}

func (c *ODataController) hasFeature(r *http.Request, f tenant.Feature) bool {
	t, err := composables.UseTenant(r.Context())
	return err == nil && t.HasFeature(f)
}

func (c *ODataController) limits() odata.Limits {
	return odata.Limits{PageSize: c.conf.PageSize, MaxPageSize: c.conf.MaxPageSize}
}

func (c *ODataController) run(r *http.Request, set *odata.EntitySet, opts *odata.Options) (*odata.Result, error) {
	return c.query(r.Context(), set, opts)
}

func (c *ODataController) Metadata(w http.ResponseWriter, r *http.Request) {
	sets := make([]metadataSet, 0)
	for _, name := range c.app.OData().Names() {
		set, _ := c.app.OData().Get(name)
		if c.allowed(r, set) != nil {
			continue
		}
		ms := metadataSet{Name: set.Name}
		for _, f := range set.Visible() {
			ms.Fields = append(ms.Fields, metadataField{Name: f.Name, Label: f.Label(), Filter: !f.NoFilter, Sortable: !f.NoSort})
		}
		sets = append(sets, ms)
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"value": sets})
}

// Collection answers with the OData JSON shape.
func (c *ODataController) Collection(w http.ResponseWriter, r *http.Request) {
	set, err := c.resolve(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	opts, err := odata.ParseOptions(r.URL.Query(), c.limits())
	if err != nil {
		respondError(w, r, err)
		return
	}
	res, err := c.run(r, set, opts)
	if err != nil {
		respondError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, odata.NewResponse(c.conf.Origin, set, res))
}

// Filtered answers with the portal grid listing inside the envelope. The
// total is always counted.
func (c *ODataController) Filtered(w http.ResponseWriter, r *http.Request) {
	set, err := c.resolve(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	opts, err := odata.ParseOptions(r.URL.Query(), c.limits())
	if err != nil {
		respondError(w, r, err)
		return
	}
	opts.Count = true
	res, err := c.run(r, set, opts)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, odata.NewListing(res), nil)
}

// FilteredExport streams the filtered rows as CSV or, with format=xlsx, as
// an Excel workbook. Paging options are ignored up to the export cap.
func (c *ODataController) FilteredExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	set, err := c.resolve(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if u, _ := composables.UseUser(ctx); u != nil && !u.IsSuperadmin() && !c.hasFeature(r, tenant.FeatureExport) {
		respondError(w, r, middleware.ErrForbidden)
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	values := r.URL.Query()
	values.Del("$top")
	values.Del("$skip")
	values.Del("$count")
	opts, err := odata.ParseOptions(values, c.limits())
	if err != nil {
		respondError(w, r, err)
		return
	}
	opts.Top = c.conf.MaxExportRows
	res, err := c.run(r, set, opts)
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+format.Filename(set.Name, c.now())+`"`)
	if err := export.Write(w, format, export.FromResult(set.Name, res)); err != nil {
		composables.UseLogger(ctx).WithError(err).WithField("set", set.Name).Error("failed to write export")
		return
	}
	composables.UseLogger(ctx).WithField("set", set.Name).WithField("rows", len(res.Rows)).Info("export written")
}
