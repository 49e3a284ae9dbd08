package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/user"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/session"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	"github.com/iota-uz/admin-portal/pkg/cache"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/configuration"
	"github.com/iota-uz/admin-portal/pkg/eventbus"
	"github.com/iota-uz/admin-portal/pkg/mailer"
	"github.com/iota-uz/admin-portal/pkg/outbox"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

const (
	MethodPassword = "password"
	MethodApp      = "app"
	MethodEmail    = "email"
	MethodDevice   = "device"
)

var (
	ErrInvalidCredentials = serrors.NewError(serrors.AuthenticationFailed, "invalid email or password", "Errors.InvalidCredentials")
	ErrAccountLocked      = serrors.NewError(serrors.AccountLocked, "account is temporarily locked", "Errors.AccountLocked")
	ErrAccountDisabled    = serrors.NewError(serrors.AccountDisabled, "account is disabled", "Errors.AccountDisabled")
	ErrInvalidCode        = serrors.NewError(serrors.MfaCodeInvalid, "verification code is invalid", "Errors.MfaCodeInvalid")
	ErrWrongStage         = serrors.NewError(serrors.Forbidden, "this verification method is not available", "Errors.MfaWrongStage")
	ErrResetTokenInvalid  = serrors.NewError(serrors.PasswordResetInvalid, "reset link is invalid or expired", "Errors.PasswordResetInvalid")
)

// totpOpts matches what authenticator apps assume for otpauth URLs without
// explicit parameters. One step of skew tolerates clock drift.
var totpOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// dummyHash keeps unknown-email sign-ins as slow as bad-password ones.
var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	return h
})

type PasswordResetPayload struct {
	UserID    uuid.UUID `json:"userId"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	Language  string    `json:"language"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type codeChallenge struct {
	Hash      string    `json:"hash"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type resetTicket struct {
	UserID   uuid.UUID `json:"userId"`
	TenantID uuid.UUID `json:"tenantId"`
}

type AuthServiceOptions struct {
	Users     user.Repository
	Tenants   *TenantService
	Sessions  *SessionService
	Signer    *PartialSigner
	Cache     cache.Cache
	Mailer    mailer.Mailer
	WebAuthn  WebAuthnProvider
	Parser    WebAuthnParser
	Publisher eventbus.EventBus
	Auth      configuration.AuthOptions
	Origin    string
}

type AuthService struct {
	users     user.Repository
	tenants   *TenantService
	sessions  *SessionService
	signer    *PartialSigner
	cache     cache.Cache
	mailer    mailer.Mailer
	webAuthn  WebAuthnProvider
	parser    WebAuthnParser
	publisher eventbus.EventBus
	opts      configuration.AuthOptions
	origin    string
	now       func() time.Time
}

func NewAuthService(o AuthServiceOptions) *AuthService {
	parser := o.Parser
	if parser == nil {
		parser = NewWebAuthnParser()
	}
	return &AuthService{
		users:     o.Users,
		tenants:   o.Tenants,
		sessions:  o.Sessions,
		signer:    o.Signer,
		cache:     cache.Prefixed(o.Cache, "auth"),
		mailer:    o.Mailer,
		webAuthn:  o.WebAuthn,
		parser:    parser,
		publisher: o.Publisher,
		opts:      o.Auth,
		origin:    strings.TrimSuffix(o.Origin, "/"),
		now:       time.Now,
	}
}

// SignIn checks the password of a user in the tenant carried by ctx and
// starts the second factor. The returned token goes into the login-partial cookie.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (token string, partial PartialSignIn, err error) {
	defer func() { recordSignIn(err) }()

	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return "", PartialSignIn{}, err
	}
	t, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return "", PartialSignIn{}, err
	}
	if !t.IsActive() {
		return "", PartialSignIn{}, ErrAccountDisabled
	}

	normalized, err := user.NormalizeEmail(email)
	if err != nil {
		return "", PartialSignIn{}, ErrInvalidCredentials
	}
	u, err := s.users.GetByEmail(ctx, normalized)
	if errors.Is(err, user.ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return "", PartialSignIn{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", PartialSignIn{}, err
	}

	now := s.now()
	if u.IsLocked(now) {
		return "", PartialSignIn{}, ErrAccountLocked
	}
	if !u.CheckPassword(password) {
		return "", PartialSignIn{}, s.failPassword(ctx, u, now)
	}
	if !u.IsActive() {
		return "", PartialSignIn{}, ErrAccountDisabled
	}
	if u.FailedAttempts() > 0 {
		if u, err = s.users.Update(ctx, u.Unlock()); err != nil {
			return "", PartialSignIn{}, err
		}
	}

	token, partial, err = s.signer.Issue(u.ID(), u.TenantID(), stageFor(u))
	if err != nil {
		return "", PartialSignIn{}, errors.Wrap(err, "sign partial token")
	}
	if partial.Stage == MfaStageEmail {
		if err := s.sendEmailCode(ctx, u, partial); err != nil {
			return "", PartialSignIn{}, err
		}
	}
	return token, partial, nil
}

func (s *AuthService) failPassword(ctx context.Context, u user.User, now time.Time) error {
	next := u.RegisterFailedAttempt(s.opts.LockoutMaxAttempts, s.opts.LockoutDuration, now)
	if _, err := s.users.Update(ctx, next); err != nil {
		return err
	}
	s.publishFailure(ctx, next, MethodPassword)
	if next.IsLocked(now) {
		return ErrAccountLocked
	}
	return ErrInvalidCredentials
}

func (s *AuthService) publishFailure(ctx context.Context, u user.User, method string) {
	ip, _ := composables.UseIP(ctx)
	ua, _ := composables.UseUserAgent(ctx)
	s.publisher.Publish(ctx, &user.SignInFailedEvent{
		Snapshot:  u.Snapshot(),
		Method:    method,
		IP:        ip,
		UserAgent: ua,
		At:        s.now(),
	})
}

// stageFor prefers the strongest factor the user has enrolled.
func stageFor(u user.User) MfaStage {
	switch {
	case len(u.Devices()) > 0:
		return MfaStageDevice
	case u.HasAuthenticatorApp():
		return MfaStageApp
	default:
		return MfaStageEmail
	}
}

// Partial parses a login-partial token and checks it belongs to the tenant in
// ctx and has not been used or exhausted.
func (s *AuthService) Partial(ctx context.Context, token string) (PartialSignIn, error) {
	partial, err := s.signer.Parse(token)
	if err != nil {
		return PartialSignIn{}, err
	}
	if tenantID, err := composables.UseTenantID(ctx); err != nil || tenantID != partial.TenantID {
		return PartialSignIn{}, ErrChallengeExpired
	}
	_, err = s.cache.Get(ctx, partialDoneKey(partial))
	if err == nil {
		return PartialSignIn{}, ErrChallengeExpired
	}
	if !errors.Is(err, cache.ErrMiss) {
		return PartialSignIn{}, err
	}
	return partial, nil
}

// consume marks the challenge of partial as finished. Only the first caller
// gets true, so one token completes at most one sign-in.
func (s *AuthService) consume(ctx context.Context, partial PartialSignIn) (bool, error) {
	n, err := s.cache.Incr(ctx, partialDoneKey(partial), partialTTL(partial))
	if err != nil {
		return false, errors.Wrap(err, "consume sign-in challenge")
	}
	return n == 1, nil
}

// exhaust ends a challenge after too many wrong codes.
func (s *AuthService) exhaust(ctx context.Context, partial PartialSignIn) error {
	if err := s.cache.Delete(ctx, emailCodeKey(partial)); err != nil {
		return err
	}
	if _, err := s.consume(ctx, partial); err != nil {
		return err
	}
	return ErrChallengeExpired
}

// attempt counts one code guess for stage. Attempts survive a resent code.
func (s *AuthService) attempt(ctx context.Context, partial PartialSignIn, stage MfaStage) (int64, error) {
	n, err := s.cache.Incr(ctx, attemptsKey(partial, stage), partialTTL(partial))
	if err != nil {
		return 0, errors.Wrap(err, "count verification attempt")
	}
	return n, nil
}

func (s *AuthService) partialUser(ctx context.Context, token string, stage MfaStage) (PartialSignIn, user.User, error) {
	partial, err := s.Partial(ctx, token)
	if err != nil {
		return PartialSignIn{}, nil, err
	}
	if partial.Stage != stage {
		return PartialSignIn{}, nil, ErrWrongStage
	}
	u, err := s.users.GetByID(ctx, partial.UserID)
	if errors.Is(err, user.ErrUserNotFound) {
		return PartialSignIn{}, nil, ErrChallengeExpired
	}
	if err != nil {
		return PartialSignIn{}, nil, err
	}
	if !u.IsActive() {
		return PartialSignIn{}, nil, ErrAccountDisabled
	}
	if u.IsLocked(s.now()) {
		return PartialSignIn{}, nil, ErrAccountLocked
	}
	return partial, u, nil
}

// SwitchToEmail moves a device or app challenge to an emailed code.
func (s *AuthService) SwitchToEmail(ctx context.Context, token string) (string, PartialSignIn, error) {
	partial, err := s.Partial(ctx, token)
	if err != nil {
		return "", PartialSignIn{}, err
	}
	if partial.Stage == MfaStageEmail {
		return "", PartialSignIn{}, ErrWrongStage
	}
	_, u, err := s.partialUser(ctx, token, partial.Stage)
	if err != nil {
		return "", PartialSignIn{}, err
	}
	next, partial, err := s.signer.Advance(partial, MfaStageEmail)
	if err != nil {
		return "", PartialSignIn{}, errors.Wrap(err, "sign partial token")
	}
	if err := s.sendEmailCode(ctx, u, partial); err != nil {
		return "", PartialSignIn{}, err
	}
	return next, partial, nil
}

// ResendEmailCode replaces the code of an email challenge. Wrong guesses
// made against earlier codes still count.
func (s *AuthService) ResendEmailCode(ctx context.Context, token string) (PartialSignIn, error) {
	partial, u, err := s.partialUser(ctx, token, MfaStageEmail)
	if err != nil {
		return PartialSignIn{}, err
	}
	if err := s.sendEmailCode(ctx, u, partial); err != nil {
		return PartialSignIn{}, err
	}
	return partial, nil
}

func (s *AuthService) sendEmailCode(ctx context.Context, u user.User, partial PartialSignIn) error {
	code, err := randomDigits(6)
	if err != nil {
		return errors.Wrap(err, "generate email code")
	}
	expiresAt := s.now().Add(s.opts.EmailCodeTTL)
	if partial.ExpiresAt.Before(expiresAt) {
		expiresAt = partial.ExpiresAt
	}
	challenge := codeChallenge{Hash: hashSecret(code), ExpiresAt: expiresAt}
	if err := cache.SetJSON(ctx, s.cache, emailCodeKey(partial), challenge, max(time.Until(expiresAt), time.Second)); err != nil {
		return errors.Wrap(err, "store email code")
	}
	return s.mailer.Send(ctx, mailer.Mail{
		To:      []string{u.Email()},
		Subject: "Your sign-in code",
		Body: fmt.Sprintf(
			"Hello %s,\n\nYour sign-in code is %s. It expires in %d minutes.\n\nIf you did not try to sign in, change your password.",
			u.FirstName(), code, int(s.opts.EmailCodeTTL.Minutes()),
		),
	})
}

func (s *AuthService) VerifyEmailCode(ctx context.Context, token, code string) (sess *session.Session, err error) {
	defer func() { recordChallenge(MfaStageEmail, err) }()

	partial, u, err := s.partialUser(ctx, token, MfaStageEmail)
	if err != nil {
		return nil, err
	}
	key := emailCodeKey(partial)
	challenge, err := cache.GetJSON[codeChallenge](ctx, s.cache, key)
	if errors.Is(err, cache.ErrMiss) {
		return nil, ErrChallengeExpired
	}
	if err != nil {
		return nil, err
	}
	// The attempt is counted before the comparison so parallel guesses
	// cannot share one slot.
	attempts, err := s.attempt(ctx, partial, MfaStageEmail)
	if err != nil {
		return nil, err
	}
	limit := int64(s.opts.EmailCodeMaxAttempts)
	if attempts > limit {
		return nil, s.exhaust(ctx, partial)
	}
	if subtle.ConstantTimeCompare([]byte(challenge.Hash), []byte(hashSecret(strings.TrimSpace(code)))) != 1 {
		s.publishFailure(ctx, u, MethodEmail)
		if attempts >= limit {
			return nil, s.exhaust(ctx, partial)
		}
		return nil, ErrInvalidCode
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		return nil, err
	}
	return s.complete(ctx, partial, u, MethodEmail)
}

func (s *AuthService) VerifyAppCode(ctx context.Context, token, code string) (sess *session.Session, err error) {
	defer func() { recordChallenge(MfaStageApp, err) }()

	partial, u, err := s.partialUser(ctx, token, MfaStageApp)
	if err != nil {
		return nil, err
	}
	if !u.HasAuthenticatorApp() {
		return nil, ErrWrongStage
	}
	attempts, err := s.attempt(ctx, partial, MfaStageApp)
	if err != nil {
		return nil, err
	}
	limit := int64(s.opts.EmailCodeMaxAttempts)
	if attempts > limit {
		return nil, s.exhaust(ctx, partial)
	}

	code = strings.TrimSpace(code)
	replayKey := "totp:used:" + u.ID().String() + ":" + code
	_, replayErr := s.cache.Get(ctx, replayKey)
	ok, validateErr := totp.ValidateCustom(code, u.AuthenticatorSecret(), s.now(), totpOpts)
	if validateErr != nil || !ok || replayErr == nil {
		s.publishFailure(ctx, u, MethodApp)
		if attempts >= limit {
			return nil, s.exhaust(ctx, partial)
		}
		return nil, ErrInvalidCode
	}
	if err := s.cache.Set(ctx, replayKey, []byte{1}, time.Duration(3*totpOpts.Period)*time.Second); err != nil {
		return nil, err
	}
	return s.complete(ctx, partial, u, MethodApp)
}

// BeginDeviceAssertion returns the WebAuthn request options for the browser.
func (s *AuthService) BeginDeviceAssertion(ctx context.Context, token string) (*protocol.CredentialAssertion, error) {
	partial, u, err := s.partialUser(ctx, token, MfaStageDevice)
	if err != nil {
		return nil, err
	}
	waUser := newWebAuthnUser(u)
	if len(waUser.credentials) == 0 {
		return nil, ErrWrongStage
	}
	assertion, sessionData, err := s.webAuthn.BeginLogin(waUser)
	if err != nil {
		return nil, errors.Wrap(err, "begin webauthn login")
	}
	if err := cache.SetJSON(ctx, s.cache, deviceLoginKey(partial), sessionData, partialTTL(partial)); err != nil {
		return nil, errors.Wrap(err, "store webauthn session")
	}
	return assertion, nil
}

func (s *AuthService) VerifyDeviceAssertion(ctx context.Context, token string, response []byte) (sess *session.Session, err error) {
	defer func() { recordChallenge(MfaStageDevice, err) }()

	partial, u, err := s.partialUser(ctx, token, MfaStageDevice)
	if err != nil {
		return nil, err
	}
	sessionData, err := cache.Take[webauthn.SessionData](ctx, s.cache, deviceLoginKey(partial))
	if errors.Is(err, cache.ErrMiss) {
		return nil, ErrChallengeExpired
	}
	if err != nil {
		return nil, err
	}
	parsed, err := s.parser.ParseCredentialRequestResponseBytes(response)
	if err != nil {
		return nil, ErrInvalidCode
	}
	credential, err := s.webAuthn.ValidateLogin(newWebAuthnUser(u), sessionData, parsed)
	if err != nil {
		composables.UseLogger(ctx).WithError(err).Info("webauthn assertion rejected")
		s.publishFailure(ctx, u, MethodDevice)
		return nil, ErrInvalidCode
	}
	u, err = u.TouchDevice(credential.ID, credential.Authenticator.SignCount, s.now())
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, partial, u, MethodDevice)
}

// complete finishes a sign-in: the challenge is consumed, then the login is
// recorded and a session issued in one transaction, then
// session.CreatedEvent is published.
func (s *AuthService) complete(ctx context.Context, partial PartialSignIn, u user.User, method string) (*session.Session, error) {
	first, err := s.consume(ctx, partial)
	if err != nil {
		return nil, err
	}
	if !first {
		return nil, ErrChallengeExpired
	}
	ip, _ := composables.UseIP(ctx)
	ua, _ := composables.UseUserAgent(ctx)
	sess, err := composables.InTxResult(ctx, func(txCtx context.Context) (*session.Session, error) {
		if _, err := s.users.Update(txCtx, u.RecordLogin(ip, s.now())); err != nil {
			return nil, err
		}
		return s.sessions.Create(txCtx, &session.CreateDTO{
			UserID:    u.ID(),
			TenantID:  u.TenantID(),
			IP:        ip,
			UserAgent: ua,
		})
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, &session.CreatedEvent{Result: *sess, Method: method})
	return sess, nil
}

// Authorize resolves a session token to its session and user.
func (s *AuthService) Authorize(ctx context.Context, token string) (*session.Session, user.User, error) {
	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if tenantID, err := composables.UseTenantID(ctx); err == nil && tenantID != sess.TenantID {
		return nil, nil, session.ErrSessionNotFound
	}
	t, err := composables.UseTenant(ctx)
	if err != nil || t.ID() != sess.TenantID {
		t, err = s.tenants.GetByID(ctx, sess.TenantID)
		if errors.Is(err, tenant.ErrTenantNotFound) {
			return nil, nil, session.ErrSessionNotFound
		}
		if err != nil {
			return nil, nil, err
		}
	}
	if !t.IsActive() {
		return nil, nil, ErrAccountDisabled
	}
	u, err := s.users.GetByID(composables.WithTenantID(ctx, sess.TenantID), sess.UserID)
	if errors.Is(err, user.ErrUserNotFound) {
		return nil, nil, session.ErrSessionNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if !u.IsActive() {
		return nil, nil, ErrAccountDisabled
	}
	return sess, u, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, token)
}

// RequestPasswordReset never reveals whether email belongs to a user.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	normalized, err := user.NormalizeEmail(email)
	if err != nil {
		return nil
	}
	u, err := s.users.GetByEmail(ctx, normalized)
	if errors.Is(err, user.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !u.IsActive() {
		return nil
	}
	token, err := randomToken()
	if err != nil {
		return errors.Wrap(err, "generate reset token")
	}
	expiresAt := s.now().Add(s.opts.PasswordResetTTL)
	err = composables.InTx(ctx, func(txCtx context.Context) error {
		return outbox.Enqueue(txCtx, outbox.TopicPasswordResetRequested, PasswordResetPayload{
			UserID:    u.ID(),
			Email:     u.Email(),
			FirstName: u.FirstName(),
			Language:  string(u.UILanguage()),
			Token:     token,
			ExpiresAt: expiresAt,
		})
	})
	if err != nil {
		return err
	}
	// Stored after commit so a rolled back request leaves no usable token.
	ticket := resetTicket{UserID: u.ID(), TenantID: u.TenantID()}
	if err := cache.SetJSON(ctx, s.cache, resetKey(token), ticket, s.opts.PasswordResetTTL); err != nil {
		return errors.Wrap(err, "store reset token")
	}
	return nil
}

// ResetURL is the link mailed for a reset token.
func (s *AuthService) ResetURL(token string) string {
	return s.origin + "/reset-password?token=" + token
}

// ResetPassword consumes token, sets the password, unlocks the account and
// signs the user out everywhere.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	if err := user.ValidatePassword(password); err != nil {
		return err
	}
	ticket, err := cache.GetJSON[resetTicket](ctx, s.cache, resetKey(token))
	if errors.Is(err, cache.ErrMiss) {
		return ErrResetTokenInvalid
	}
	if err != nil {
		return err
	}
	if tenantID, err := composables.UseTenantID(ctx); err == nil && tenantID != ticket.TenantID {
		return ErrResetTokenInvalid
	}
	ctx = composables.WithTenantID(ctx, ticket.TenantID)
	err = composables.InTx(ctx, func(txCtx context.Context) error {
		u, err := s.users.GetByID(txCtx, ticket.UserID)
		if errors.Is(err, user.ErrUserNotFound) {
			return ErrResetTokenInvalid
		}
		if err != nil {
			return err
		}
		next, err := u.SetPassword(password)
		if err != nil {
			return err
		}
		if _, err := s.users.Update(txCtx, next.Unlock()); err != nil {
			return err
		}
		return s.sessions.RevokeUser(txCtx, u.ID())
	})
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, resetKey(token))
}

func emailCodeKey(p PartialSignIn) string {
	return "mfa:email:" + p.ChallengeID
}

func attemptsKey(p PartialSignIn, stage MfaStage) string {
	return "mfa:attempts:" + string(stage) + ":" + p.ChallengeID
}

func partialDoneKey(p PartialSignIn) string {
	return "mfa:done:" + p.ChallengeID
}

// partialTTL keeps challenge state until the token expires. It never
// returns a non-positive TTL, which the drivers read as "keep forever".
func partialTTL(p PartialSignIn) time.Duration {
	return max(time.Until(p.ExpiresAt), time.Second)
}

func deviceLoginKey(p PartialSignIn) string {
	return "webauthn:login:" + p.ChallengeID
}

func resetKey(token string) string {
	return "reset:" + hashSecret(token)
}

func hashSecret(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}

func randomDigits(n int) (string, error) {
	var b strings.Builder
	ten := big.NewInt(10)
	for range n {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
