package controllers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/admin-portal/modules/core/domain/entities/session"
	"github.com/iota-uz/admin-portal/modules/core/presentation/controllers"
	"github.com/iota-uz/admin-portal/modules/core/services"
	"github.com/iota-uz/admin-portal/pkg/configuration"
)

// stubAuth hands out partial tokens by stage and completes any challenge
// whose code is "123456".
type stubAuth struct {
	partials  map[string]services.PartialSignIn
	signIns   []string
	verified  []string
	resends   int
	loggedOut []string
}

func newStubAuth() *stubAuth {
	return &stubAuth{partials: map[string]services.PartialSignIn{}}
}

func (s *stubAuth) issue(stage services.MfaStage) string {
	token := "partial-" + string(stage)
	s.partials[token] = services.PartialSignIn{ChallengeID: token, Stage: stage, ExpiresAt: time.Now().Add(time.Minute)}
	return token
}

func (s *stubAuth) SignIn(_ context.Context, email, password string) (string, services.PartialSignIn, error) {
	s.signIns = append(s.signIns, email)
	if password != "correct horse" {
		return "", services.PartialSignIn{}, services.ErrInvalidCredentials
	}
	token := s.issue(services.MfaStageApp)
	return token, s.partials[token], nil
}

func (s *stubAuth) Partial(_ context.Context, token string) (services.PartialSignIn, error) {
	p, ok := s.partials[token]
	if !ok {
		return services.PartialSignIn{}, services.ErrChallengeExpired
	}
	return p, nil
}

func (s *stubAuth) SwitchToEmail(ctx context.Context, token string) (string, services.PartialSignIn, error) {
	if _, err := s.Partial(ctx, token); err != nil {
		return "", services.PartialSignIn{}, err
	}
	delete(s.partials, token)
	next := s.issue(services.MfaStageEmail)
	return next, s.partials[next], nil
}

func (s *stubAuth) ResendEmailCode(ctx context.Context, token string) (services.PartialSignIn, error) {
	p, err := s.Partial(ctx, token)
	if err != nil {
		return p, err
	}
	if p.Stage != services.MfaStageEmail {
		return services.PartialSignIn{}, services.ErrWrongStage
	}
	s.resends++
	return p, nil
}

func (s *stubAuth) verify(ctx context.Context, token, code string, stage services.MfaStage) (*session.Session, error) {
	p, err := s.Partial(ctx, token)
	if err != nil {
		return nil, err
	}
	if p.Stage != stage {
		return nil, services.ErrWrongStage
	}
	if code != "123456" {
		return nil, services.ErrInvalidCode
	}
	delete(s.partials, token)
	s.verified = append(s.verified, token)
	return &session.Session{Token: "sid-" + token}, nil
}

func (s *stubAuth) VerifyEmailCode(ctx context.Context, token, code string) (*session.Session, error) {
	return s.verify(ctx, token, code, services.MfaStageEmail)
}

func (s *stubAuth) VerifyAppCode(ctx context.Context, token, code string) (*session.Session, error) {
	return s.verify(ctx, token, code, services.MfaStageApp)
}

func (s *stubAuth) BeginDeviceAssertion(context.Context, string) (*protocol.CredentialAssertion, error) {
	return nil, services.ErrWrongStage
}

func (s *stubAuth) VerifyDeviceAssertion(context.Context, string, []byte) (*session.Session, error) {
	return nil, services.ErrWrongStage
}

func (s *stubAuth) Logout(_ context.Context, token string) error {
	s.loggedOut = append(s.loggedOut, token)
	return nil
}

func (s *stubAuth) RequestPasswordReset(context.Context, string) error { return nil }

func (s *stubAuth) ResetPassword(context.Context, string, string) error { return nil }

func authOptions() configuration.AuthOptions {
	return configuration.AuthOptions{
		SessionDuration:  24 * time.Hour,
		SidCookieKey:     "sid",
		PartialCookieKey: "login-partial",
		PartialSignInTTL: 10 * time.Minute,
	}
}

func newLoginRouter(auth *stubAuth) http.Handler {
	return newRouter(controllers.NewLoginController(newApp(), controllers.LoginControllerOptions{
		Auth:          authOptions(),
		Secure:        true,
		Authenticator: auth,
	}))
}

func postForm(path string, form url.Values, cookies ...*http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func partialCookie(token string) *http.Cookie {
	return &http.Cookie{Name: "login-partial", Value: token}
}

func cookieNamed(t *testing.T, rr *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	require.Failf(t, "cookie not set", "no %q cookie in response", name)
	return nil
}

func TestLoginController_PasswordStep(t *testing.T) {
	auth := newStubAuth()
	r := newLoginRouter(auth)

	rr := do(r, postForm("/login?next=%2Fusers", url.Values{
		"Email":    {"ann@acme.test"},
		"Password": {"correct horse"},
	}))

	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login/mfa/app?next=%2Fusers", rr.Header().Get("Location"))
	c := cookieNamed(t, rr, "login-partial")
	assert.Equal(t, "partial-app", c.Value)
	assert.Equal(t, 600, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, []string{"ann@acme.test"}, auth.signIns)
	for _, c := range rr.Result().Cookies() {
		assert.NotEqual(t, "sid", c.Name, "no session before the second factor")
	}
}

func TestLoginController_ChallengeRedirectsToCurrentStage(t *testing.T) {
	auth := newStubAuth()
	token := auth.issue(services.MfaStageApp)
	r := newLoginRouter(auth)

	req := httptest.NewRequest(http.MethodGet, "/login/mfa/email?next=%2Faudit", nil)
	req.AddCookie(partialCookie(token))
	rr := do(r, req)

	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login/mfa/app?next=%2Faudit", rr.Header().Get("Location"))
}

func TestLoginController_ExpiredChallengeRestarts(t *testing.T) {
	r := newLoginRouter(newStubAuth())

	req := httptest.NewRequest(http.MethodGet, "/login/mfa/app", nil)
	req.AddCookie(partialCookie("partial-gone"))
	rr := do(r, req)

	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
	assert.Equal(t, -1, cookieNamed(t, rr, "login-partial").MaxAge)
}

func TestLoginController_CodeCompletesSignIn(t *testing.T) {
	cases := []struct {
		name     string
		next     string
		location string
	}{
		{"local next", "/users?page=2", "/users?page=2"},
		{"no next", "", "/"},
		{"offsite next", "//evil.test/x", "/"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			auth := newStubAuth()
			token := auth.issue(services.MfaStageApp)
			r := newLoginRouter(auth)

			path := "/login/mfa/app"
			if tc.next != "" {
				path += "?next=" + url.QueryEscape(tc.next)
			}
			rr := do(r, postForm(path, url.Values{"Code": {"123456"}}, partialCookie(token)))

			require.Equal(t, http.StatusFound, rr.Code)
			assert.Equal(t, tc.location, rr.Header().Get("Location"))
			sid := cookieNamed(t, rr, "sid")
			assert.Equal(t, "sid-"+token, sid.Value)
			assert.Equal(t, int((24 * time.Hour).Seconds()), sid.MaxAge)
			assert.True(t, sid.HttpOnly)
			assert.Equal(t, -1, cookieNamed(t, rr, "login-partial").MaxAge)
			assert.Equal(t, []string{token}, auth.verified)
		})
	}
}

func TestLoginController_CodeOnFinishedChallengeRestarts(t *testing.T) {
	auth := newStubAuth()
	r := newLoginRouter(auth)

	rr := do(r, postForm("/login/mfa/email", url.Values{"Code": {"123456"}}, partialCookie("partial-email")))

	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
	assert.Equal(t, -1, cookieNamed(t, rr, "login-partial").MaxAge)
	for _, c := range rr.Result().Cookies() {
		assert.NotEqual(t, "sid", c.Name)
	}
	assert.Empty(t, auth.verified)
}

func TestLoginController_SwitchAndResendEmail(t *testing.T) {
	auth := newStubAuth()
	appToken := auth.issue(services.MfaStageApp)
	r := newLoginRouter(auth)

	rr := do(r, postForm("/login/mfa/email/resend", nil, partialCookie(appToken)))
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login/mfa/email", rr.Header().Get("Location"))
	assert.Zero(t, auth.resends, "resend needs the email stage")

	rr = do(r, postForm("/login/mfa/email/send", nil, partialCookie(appToken)))
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login/mfa/email", rr.Header().Get("Location"))
	emailToken := cookieNamed(t, rr, "login-partial").Value
	assert.Equal(t, "partial-email", emailToken)

	rr = do(r, postForm("/login/mfa/email/resend", nil, partialCookie(emailToken)))
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login/mfa/email", rr.Header().Get("Location"))
	assert.Equal(t, 1, auth.resends)

	rr = do(r, postForm("/login/mfa/email/send", nil, partialCookie(appToken)))
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"), "the replaced token is spent")
}

func TestLoginController_Logout(t *testing.T) {
	auth := newStubAuth()
	r := newLoginRouter(auth)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "sid-1"})
	rr := do(r, req)

	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
	assert.Equal(t, []string{"sid-1"}, auth.loggedOut)
	assert.Equal(t, -1, cookieNamed(t, rr, "sid").MaxAge)
	assert.Equal(t, -1, cookieNamed(t, rr, "login-partial").MaxAge)
}
