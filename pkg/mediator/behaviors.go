package mediator

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/wI2L/jsondiff"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

func Tracing() Behavior {
	tracer := otel.Tracer("github.com/iota-uz/admin-portal/pkg/mediator")
	return func(ctx context.Context, req any, next Next) (any, error) {
		ctx, span := tracer.Start(ctx, "mediator."+Name(req))
		defer span.End()
		span.SetAttributes(
			attribute.String("mediator.request", Name(req)),
			attribute.Bool("mediator.command", IsCommand(req)),
		)
		res, err := next(ctx, req)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(serrors.CodeOf(err)))
		}
		return res, err
	}
}

func Logging() Behavior {
	return func(ctx context.Context, req any, next Next) (any, error) {
		start := time.Now()
		res, err := next(ctx, req)
		logger := composables.UseLogger(ctx).WithField("request", Name(req)).WithField("duration", time.Since(start).String())
		switch serrors.CodeOf(err) {
		case "":
			logger.Debug("request handled")
		case serrors.Internal, serrors.SavingChanges:
			logger.WithError(err).Error("request failed")
		default:
			logger.WithError(err).Info("request rejected")
		}
		return res, err
	}
}

type metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediator",
			Name:      "requests_total",
			Help:      "Total number of mediator requests by outcome code.",
		}, []string{"request", "outcome"}),
		latency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mediator",
			Name:      "request_duration_seconds",
			Help:      "Mediator request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"request"}),
	}
})

func Metrics() Behavior {
	m := metricsSingleton()
	return func(ctx context.Context, req any, next Next) (any, error) {
		start := time.Now()
		res, err := next(ctx, req)
		outcome := "ok"
		if err != nil {
			outcome = string(serrors.CodeOf(err))
		}
		m.requests.WithLabelValues(Name(req), outcome).Inc()
		m.latency.WithLabelValues(Name(req)).Observe(time.Since(start).Seconds())
		return res, err
	}
}

// Validator is implemented by requests with rules beyond struct tags.
type Validator interface {
	Validate(ctx context.Context) error
}

type StructValidator struct {
	validate *validator.Validate
	trans    ut.Translator
}

func NewStructValidator() *StructValidator {
	locale := en.New()
	uni := ut.New(locale, locale)
	trans, _ := uni.GetTranslator("en")
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := entranslations.RegisterDefaultTranslations(v, trans); err != nil {
		panic(err)
	}
	return &StructValidator{validate: v, trans: trans}
}

// Struct validates tags on s and returns *serrors.ValidationError on failure.
func (sv *StructValidator) Struct(s any) error {
	t := reflect.TypeOf(s)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	err := sv.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !asValidationErrors(err, &verrs) {
		return err
	}
	out := serrors.NewValidationError()
	for _, fe := range verrs {
		out.Add(fe.Field(), fe.Translate(sv.trans))
	}
	return out
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	v, ok := err.(validator.ValidationErrors) //nolint:errorlint
	if ok {
		*target = v
	}
	return ok
}

func Validation(sv *StructValidator) Behavior {
	return func(ctx context.Context, req any, next Next) (any, error) {
		if err := sv.Struct(req); err != nil {
			return nil, err
		}
		if v, ok := req.(Validator); ok {
			if err := v.Validate(ctx); err != nil {
				return nil, err
			}
		}
		return next(ctx, req)
	}
}

// TxRunner runs fn in a unit of work.
type TxRunner func(ctx context.Context, fn func(context.Context) error) error

// Transaction wraps commands in a single transaction. Queries pass through.
func Transaction(run TxRunner) Behavior {
	if run == nil {
		run = composables.InTx
	}
	return func(ctx context.Context, req any, next Next) (any, error) {
		if !IsCommand(req) {
			return next(ctx, req)
		}
		var res any
		err := run(ctx, func(txCtx context.Context) error {
			var err error
			res, err = next(txCtx, req)
			return err
		})
		return res, err
	}
}

type AuditEntry struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	UserID    uuid.UUID
	Request   string
	EntityID  string
	Succeeded bool
	ErrorCode string
	Changes   json.RawMessage
	Payload   json.RawMessage
	IP        string
	CreatedAt time.Time
}

type AuditStore interface {
	Record(ctx context.Context, entry *AuditEntry) error
}

// Sensitive is implemented by requests whose payload must not be stored verbatim.
type Sensitive interface {
	Redacted() any
}

// Audit records every command outcome. It must run outside Transaction so
// failed commands are recorded after their rollback.
func Audit(store AuditStore) Behavior {
	return func(ctx context.Context, req any, next Next) (any, error) {
		if !IsCommand(req) {
			return next(ctx, req)
		}
		res, err := next(ctx, req)

		entry := &AuditEntry{
			ID:        uuid.New(),
			Request:   Name(req),
			Succeeded: err == nil,
			ErrorCode: string(serrors.CodeOf(err)),
			CreatedAt: time.Now(),
		}
		if tenantID, tErr := composables.UseTenantID(ctx); tErr == nil {
			entry.TenantID = tenantID
		}
		if u, uErr := composables.UseUser(ctx); uErr == nil {
			entry.UserID = u.ID()
			if entry.TenantID == uuid.Nil {
				entry.TenantID = u.TenantID()
			}
		}
		if ip, ok := composables.UseIP(ctx); ok {
			entry.IP = ip
		}
		payload := req
		if s, ok := req.(Sensitive); ok {
			payload = s.Redacted()
		}
		entry.Payload, _ = json.Marshal(payload)
		if a, ok := res.(Audited); ok && err == nil {
			entry.EntityID = a.AuditID()
			before, after := a.Snapshots()
			if patch, dErr := jsondiff.Compare(before, after); dErr == nil {
				entry.Changes, _ = json.Marshal(patch)
			}
		}

		if recErr := store.Record(ctx, entry); recErr != nil {
			composables.UseLogger(ctx).WithError(recErr).WithField("request", entry.Request).Error("failed to record audit entry")
		}
		return res, err
	}
}
