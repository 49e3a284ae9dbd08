package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image/png"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/user"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	"github.com/iota-uz/admin-portal/pkg/cache"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/eventbus"
	"github.com/iota-uz/admin-portal/pkg/mediator"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

const enrolmentTTL = 10 * time.Minute

var (
	ErrSetupExpired     = serrors.NewError(serrors.MfaChallengeExpired, "setup expired, start again", "Errors.MfaSetupExpired")
	ErrDevicesDisabled  = serrors.NewError(serrors.Forbidden, "security keys are not enabled for this organization", "Errors.DevicesDisabled")
	ErrNotAuthenticated = serrors.NewError(serrors.Unauthenticated, "sign in required", "Errors.Unauthenticated")
)

type BeginAuthenticatorAppSetup struct {
	mediator.CommandBase
}

type AuthenticatorAppSetup struct {
	Secret string `json:"secret"`
	URL    string `json:"url"`
	QRCode string `json:"qrCode"`
}

type ConfirmAuthenticatorApp struct {
	mediator.CommandBase
	Code string `validate:"required,len=6,numeric"`
}

type RemoveAuthenticatorApp struct {
	mediator.CommandBase
}

type BeginDeviceRegistration struct {
	mediator.CommandBase
}

type FinishDeviceRegistration struct {
	mediator.CommandBase
	Name     string          `validate:"max=100"`
	Response json.RawMessage `validate:"required"`
}

func (c FinishDeviceRegistration) Redacted() any {
	return struct{ Name string }{Name: c.Name}
}

// UpdateProfile lets the signed-in user edit their own name and language.
type UpdateProfile struct {
	mediator.CommandBase
	FirstName  string `validate:"required,max=100"`
	LastName   string `validate:"required,max=100"`
	UILanguage string `validate:"required,oneof=en ru uz"`
}

type RemoveDevice struct {
	mediator.CommandBase
	ID uuid.UUID `validate:"required"`
}

type RenameDevice struct {
	mediator.CommandBase
	ID   uuid.UUID `validate:"required"`
	Name string    `validate:"required,max=100"`
}

// AccountService manages the second factors of the signed-in user.
type AccountService struct {
	users     user.Repository
	tenants   *TenantService
	cache     cache.Cache
	webAuthn  WebAuthnProvider
	parser    WebAuthnParser
	publisher eventbus.EventBus
	issuer    string
	now       func() time.Time
}

func NewAccountService(
	users user.Repository,
	tenants *TenantService,
	c cache.Cache,
	webAuthn WebAuthnProvider,
	parser WebAuthnParser,
	publisher eventbus.EventBus,
	issuer string,
) *AccountService {
	if parser == nil {
		parser = NewWebAuthnParser()
	}
	return &AccountService{
		users:     users,
		tenants:   tenants,
		cache:     cache.Prefixed(c, "account"),
		webAuthn:  webAuthn,
		parser:    parser,
		publisher: publisher,
		issuer:    issuer,
		now:       time.Now,
	}
}

func (s *AccountService) Register(m *mediator.Mediator) {
	mediator.Register(m, s.BeginAppSetup)
	mediator.Register(m, s.ConfirmApp)
	mediator.Register(m, s.RemoveApp)
	mediator.Register(m, s.BeginDeviceRegistration)
	mediator.Register(m, s.FinishDeviceRegistration)
	mediator.Register(m, s.RemoveDevice)
	mediator.Register(m, s.RenameDevice)
	mediator.Register(m, s.UpdateProfile)
}

func (s *AccountService) currentUser(ctx context.Context) (user.User, error) {
	current, err := composables.UseUser(ctx)
	if err != nil {
		return nil, ErrNotAuthenticated
	}
	return s.users.GetByID(ctx, current.ID())
}

func (s *AccountService) BeginAppSetup(ctx context.Context, _ BeginAuthenticatorAppSetup) (AuthenticatorAppSetup, error) {
	u, err := s.currentUser(ctx)
	if err != nil {
		return AuthenticatorAppSetup{}, err
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: u.Email(),
	})
	if err != nil {
		return AuthenticatorAppSetup{}, errors.Wrap(err, "generate totp key")
	}
	img, err := key.Image(200, 200)
	if err != nil {
		return AuthenticatorAppSetup{}, errors.Wrap(err, "render totp qr code")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return AuthenticatorAppSetup{}, errors.Wrap(err, "encode totp qr code")
	}
	if err := cache.SetJSON(ctx, s.cache, pendingAppKey(u.ID()), key.Secret(), enrolmentTTL); err != nil {
		return AuthenticatorAppSetup{}, err
	}
	return AuthenticatorAppSetup{
		Secret: key.Secret(),
		URL:    key.URL(),
		QRCode: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

func (s *AccountService) ConfirmApp(ctx context.Context, cmd ConfirmAuthenticatorApp) (UserChange, error) {
	u, err := s.currentUser(ctx)
	if err != nil {
		return UserChange{}, err
	}
	secret, err := cache.GetJSON[string](ctx, s.cache, pendingAppKey(u.ID()))
	if errors.Is(err, cache.ErrMiss) {
		return UserChange{}, ErrSetupExpired
	}
	if err != nil {
		return UserChange{}, err
	}
	ok, err := totp.ValidateCustom(cmd.Code, secret, s.now(), totpOpts)
	if err != nil || !ok {
		return UserChange{}, serrors.FieldError("Code", ErrInvalidCode.Message)
	}
	change, err := s.save(ctx, u, u.SetAuthenticator(secret, s.now()))
	if err != nil {
		return UserChange{}, err
	}
	if err := s.cache.Delete(ctx, pendingAppKey(u.ID())); err != nil {
		composables.UseLogger(ctx).WithError(err).Warn("pending totp secret not cleared")
	}
	return change, nil
}

func (s *AccountService) RemoveApp(ctx context.Context, _ RemoveAuthenticatorApp) (UserChange, error) {
	u, err := s.currentUser(ctx)
	if err != nil {
		return UserChange{}, err
	}
	return s.save(ctx, u, u.RemoveAuthenticator())
}

func (s *AccountService) BeginDeviceRegistration(ctx context.Context, _ BeginDeviceRegistration) (*protocol.CredentialCreation, error) {
	u, err := s.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.ensureDevicesEnabled(ctx, u); err != nil {
		return nil, err
	}
	waUser := newWebAuthnUser(u)
	var opts []webauthn.RegistrationOption
	if len(waUser.credentials) > 0 {
		opts = append(opts, webauthn.WithExclusions(waUser.descriptors()))
	}
	creation, sessionData, err := s.webAuthn.BeginRegistration(waUser, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "begin webauthn registration")
	}
	if err := cache.SetJSON(ctx, s.cache, registrationKey(u.ID()), sessionData, enrolmentTTL); err != nil {
		return nil, errors.Wrap(err, "store webauthn session")
	}
	return creation, nil
}

func (s *AccountService) FinishDeviceRegistration(ctx context.Context, cmd FinishDeviceRegistration) (UserChange, error) {
	u, err := s.currentUser(ctx)
	if err != nil {
		return UserChange{}, err
	}
	if err := s.ensureDevicesEnabled(ctx, u); err != nil {
		return UserChange{}, err
	}
	sessionData, err := cache.Take[webauthn.SessionData](ctx, s.cache, registrationKey(u.ID()))
	if errors.Is(err, cache.ErrMiss) {
		return UserChange{}, ErrSetupExpired
	}
	if err != nil {
		return UserChange{}, err
	}
	parsed, err := s.parser.ParseCredentialCreationResponseBytes(cmd.Response)
	if err != nil {
		return UserChange{}, serrors.FieldError("Response", "security key response could not be read")
	}
	credential, err := s.webAuthn.CreateCredential(newWebAuthnUser(u), sessionData, parsed)
	if err != nil {
		composables.UseLogger(ctx).WithError(err).Info("webauthn registration rejected")
		return UserChange{}, serrors.FieldError("Response", "security key was not accepted")
	}
	if _, exists := u.DeviceByCredential(credential.ID); exists {
		return UserChange{}, serrors.FieldError("Response", "security key is already registered")
	}
	raw, err := json.Marshal(credential)
	if err != nil {
		return UserChange{}, errors.Wrap(err, "encode credential")
	}
	device := user.NewDevice(cmd.Name, credential.ID, raw, credential.Authenticator.SignCount)
	return s.save(ctx, u, u.AddDevice(device))
}

func (s *AccountService) RemoveDevice(ctx context.Context, cmd RemoveDevice) (UserChange, error) {
	u, err := s.currentUser(ctx)
	if err != nil {
		return UserChange{}, err
	}
	next, err := u.RemoveDevice(cmd.ID)
	if err != nil {
		return UserChange{}, err
	}
	return s.save(ctx, u, next)
}

func (s *AccountService) RenameDevice(ctx context.Context, cmd RenameDevice) (UserChange, error) {
	u, err := s.currentUser(ctx)
	if err != nil {
		return UserChange{}, err
	}
	next, err := u.RenameDevice(cmd.ID, cmd.Name)
	if err != nil {
		return UserChange{}, err
	}
	return s.save(ctx, u, next)
}

func (s *AccountService) UpdateProfile(ctx context.Context, cmd UpdateProfile) (UserChange, error) {
	u, err := s.currentUser(ctx)
	if err != nil {
		return UserChange{}, err
	}
	next := u.SetName(cmd.FirstName, cmd.LastName).SetUILanguage(user.UILanguage(cmd.UILanguage))
	return s.save(ctx, u, next)
}

func (s *AccountService) ensureDevicesEnabled(ctx context.Context, u user.User) error {
	if u.IsSuperadmin() {
		return nil
	}
	t, err := s.tenants.GetByID(ctx, u.TenantID())
	if err != nil {
		return err
	}
	if !t.HasFeature(tenant.FeatureMfaDevices) {
		return ErrDevicesDisabled
	}
	return nil
}

func (s *AccountService) save(ctx context.Context, before, next user.User) (UserChange, error) {
	updated, err := s.users.Update(ctx, next)
	if err != nil {
		return UserChange{}, err
	}
	mediator.Raise(ctx, s.publisher, &user.UpdatedEvent{Before: before.Snapshot(), Result: updated.Snapshot()})
	return UserChange{ID: updated.ID().String(), Before: before.Snapshot(), After: updated.Snapshot()}, nil
}

func pendingAppKey(userID uuid.UUID) string {
	return "totp:pending:" + userID.String()
}

func registrationKey(userID uuid.UUID) string {
	return "webauthn:register:" + userID.String()
}
