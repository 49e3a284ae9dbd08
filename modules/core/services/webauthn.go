package services

import (
	"encoding/json"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/user"
	"github.com/iota-uz/admin-portal/pkg/configuration"
)

// WebAuthnProvider is the subset of *webauthn.WebAuthn used for security keys.
type WebAuthnProvider interface {
	BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error)
	CreateCredential(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)
	BeginLogin(user webauthn.User, opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	ValidateLogin(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error)
}

// WebAuthnParser decodes browser ceremony responses.
type WebAuthnParser interface {
	ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error)
	ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error)
}

type defaultWebAuthnParser struct{}

func (defaultWebAuthnParser) ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error) {
	return protocol.ParseCredentialCreationResponseBytes(data)
}

func (defaultWebAuthnParser) ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error) {
	return protocol.ParseCredentialRequestResponseBytes(data)
}

func NewWebAuthnParser() WebAuthnParser {
	return defaultWebAuthnParser{}
}

func NewWebAuthn(opts configuration.AuthOptions) (*webauthn.WebAuthn, error) {
	return webauthn.New(&webauthn.Config{
		RPID:          opts.WebAuthnRPID,
		RPDisplayName: opts.WebAuthnRPDisplayName,
		RPOrigins:     opts.WebAuthnOrigins,
	})
}

// webAuthnUser adapts a user and its registered devices to webauthn.User.
type webAuthnUser struct {
	u           user.User
	credentials []webauthn.Credential
}

func newWebAuthnUser(u user.User) *webAuthnUser {
	creds := make([]webauthn.Credential, 0, len(u.Devices()))
	for _, d := range u.Devices() {
		var c webauthn.Credential
		if err := json.Unmarshal(d.Credential, &c); err != nil {
			continue
		}
		c.Authenticator.SignCount = d.SignCount
		creds = append(creds, c)
	}
	return &webAuthnUser{u: u, credentials: creds}
}

func (w *webAuthnUser) WebAuthnID() []byte {
	id := w.u.ID()
	return id[:]
}

func (w *webAuthnUser) WebAuthnName() string {
	return w.u.Email()
}

func (w *webAuthnUser) WebAuthnDisplayName() string {
	return w.u.FullName()
}

func (w *webAuthnUser) WebAuthnCredentials() []webauthn.Credential {
	return w.credentials
}

func (w *webAuthnUser) descriptors() []protocol.CredentialDescriptor {
	return webauthn.Credentials(w.credentials).CredentialDescriptors()
}
