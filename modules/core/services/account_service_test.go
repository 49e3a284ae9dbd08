package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/user"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

type accountFixture struct {
	tenant   *tenant.Tenant
	actor    user.User
	users    *fakeUserRepo
	webAuthn *fakeWebAuthn
	service  *AccountService
}

func newAccountFixture(t *testing.T, features ...tenant.Feature) *accountFixture {
	t.Helper()
	tn := tenant.New("Acme", tenant.WithDomain("acme.test"), tenant.WithFeatures(features))
	actor := newTestUser(t, tn.ID(), "jane@acme.test")
	f := &accountFixture{
		tenant:   tn,
		actor:    actor,
		users:    newFakeUserRepo(actor),
		webAuthn: &fakeWebAuthn{},
	}
	c := newTestCache(t)
	bus := newTestBus()
	tenants := NewTenantService(newFakeTenantRepo(tn), c, &fakeAuthorizer{}, bus)
	f.service = NewAccountService(f.users, tenants, c, f.webAuthn, fakeParser{}, bus, "Acme Portal")
	return f
}

func (f *accountFixture) ctx() context.Context {
	return composables.WithUser(testContext(&fakeTx{}, f.tenant.ID()), f.actor)
}

func TestAccountService_AuthenticatorApp(t *testing.T) {
	t.Parallel()

	f := newAccountFixture(t)

	_, err := f.service.ConfirmApp(f.ctx(), ConfirmAuthenticatorApp{Code: "123456"})
	require.ErrorIs(t, err, ErrSetupExpired)

	setup, err := f.service.BeginAppSetup(f.ctx(), BeginAuthenticatorAppSetup{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(setup.URL, "otpauth://totp/"))
	assert.True(t, strings.HasPrefix(setup.QRCode, "data:image/png;base64,"))
	assert.False(t, f.users.get(f.actor.ID()).HasAuthenticatorApp(), "secret stays pending until confirmed")

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	change, err := f.service.ConfirmApp(f.ctx(), ConfirmAuthenticatorApp{Code: code})
	require.NoError(t, err)
	assert.True(t, change.After.AppEnrolled)
	assert.Equal(t, setup.Secret, f.users.get(f.actor.ID()).AuthenticatorSecret())

	change, err = f.service.RemoveApp(f.ctx(), RemoveAuthenticatorApp{})
	require.NoError(t, err)
	assert.False(t, change.After.AppEnrolled)
}

func TestAccountService_Devices(t *testing.T) {
	t.Parallel()

	t.Run("feature disabled", func(t *testing.T) {
		f := newAccountFixture(t)
		_, err := f.service.BeginDeviceRegistration(f.ctx(), BeginDeviceRegistration{})
		assert.Equal(t, serrors.Forbidden, serrors.CodeOf(err))
	})

	t.Run("register rename remove", func(t *testing.T) {
		f := newAccountFixture(t, tenant.FeatureMfaDevices)
		f.webAuthn.credential = &webauthn.Credential{ID: []byte("cred-9"), PublicKey: []byte("pk")}

		_, err := f.service.FinishDeviceRegistration(f.ctx(), FinishDeviceRegistration{Response: []byte(`{}`)})
		require.ErrorIs(t, err, ErrSetupExpired)

		_, err = f.service.BeginDeviceRegistration(f.ctx(), BeginDeviceRegistration{})
		require.NoError(t, err)
		change, err := f.service.FinishDeviceRegistration(f.ctx(), FinishDeviceRegistration{Name: "Laptop", Response: []byte(`{}`)})
		require.NoError(t, err)
		assert.Equal(t, []string{"Laptop"}, change.After.Devices)

		device := f.users.get(f.actor.ID()).Devices()[0]
		assert.Equal(t, []byte("cred-9"), device.CredentialID)

		change, err = f.service.RenameDevice(f.ctx(), RenameDevice{ID: device.ID, Name: "Desk key"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Desk key"}, change.After.Devices)

		_, err = f.service.RemoveDevice(f.ctx(), RemoveDevice{ID: uuid.New()})
		require.ErrorIs(t, err, user.ErrDeviceNotFound)

		change, err = f.service.RemoveDevice(f.ctx(), RemoveDevice{ID: device.ID})
		require.NoError(t, err)
		assert.Empty(t, change.After.Devices)
	})
}

func TestAccountService_UpdateProfile(t *testing.T) {
	t.Parallel()

	f := newAccountFixture(t)
	change, err := f.service.UpdateProfile(f.ctx(), UpdateProfile{FirstName: "Janet", LastName: "Doe", UILanguage: "uz"})
	require.NoError(t, err)

	stored := f.users.get(f.actor.ID())
	assert.Equal(t, "Janet", stored.FirstName())
	assert.Equal(t, user.UILanguageUZ, stored.UILanguage())
	assert.Equal(t, f.actor.ID().String(), change.ID)

	_, err = f.service.UpdateProfile(testContext(&fakeTx{}, f.tenant.ID()), UpdateProfile{FirstName: "x", LastName: "y", UILanguage: "en"})
	require.ErrorIs(t, err, ErrNotAuthenticated)
}
