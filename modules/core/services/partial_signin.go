package services

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/pkg/serrors"
)

// MfaStage is the second factor a partially signed-in user must satisfy.
type MfaStage string

const (
	MfaStageDevice MfaStage = "device"
	MfaStageApp    MfaStage = "app"
	MfaStageEmail  MfaStage = "email"
)

func (s MfaStage) IsValid() bool {
	return s == MfaStageDevice || s == MfaStageApp || s == MfaStageEmail
}

var ErrChallengeExpired = serrors.NewError(serrors.MfaChallengeExpired, "sign-in challenge expired, sign in again", "Errors.MfaChallengeExpired")

// PartialSignIn is carried by the login-partial cookie between the password
// step and the second factor.
type PartialSignIn struct {
	ChallengeID string
	UserID      uuid.UUID
	TenantID    uuid.UUID
	Stage       MfaStage
	ExpiresAt   time.Time
}

type partialClaims struct {
	jwt.RegisteredClaims
	TenantID string   `json:"tid"`
	Stage    MfaStage `json:"stage"`
}

// PartialSigner issues and verifies HS256 partial sign-in tokens.
type PartialSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewPartialSigner(key string, ttl time.Duration) *PartialSigner {
	return &PartialSigner{key: []byte(key), ttl: ttl, now: time.Now}
}

func (p *PartialSigner) TTL() time.Duration {
	return p.ttl
}

func (p *PartialSigner) Issue(userID, tenantID uuid.UUID, stage MfaStage) (string, PartialSignIn, error) {
	now := p.now()
	partial := PartialSignIn{
		ChallengeID: uuid.NewString(),
		UserID:      userID,
		TenantID:    tenantID,
		Stage:       stage,
		ExpiresAt:   now.Add(p.ttl),
	}
	token, err := p.sign(partial, now)
	return token, partial, err
}

// Advance re-signs partial for a new stage under the same challenge id and expiry.
func (p *PartialSigner) Advance(partial PartialSignIn, stage MfaStage) (string, PartialSignIn, error) {
	partial.Stage = stage
	token, err := p.sign(partial, p.now())
	return token, partial, err
}

func (p *PartialSigner) sign(partial PartialSignIn, now time.Time) (string, error) {
	claims := partialClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        partial.ChallengeID,
			Subject:   partial.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(partial.ExpiresAt),
		},
		TenantID: partial.TenantID.String(),
		Stage:    partial.Stage,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.key)
}

// Parse verifies token. Any failure, expiry included, is ErrChallengeExpired.
func (p *PartialSigner) Parse(token string) (PartialSignIn, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return PartialSignIn{}, ErrChallengeExpired
	}
	var claims partialClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return p.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return PartialSignIn{}, ErrChallengeExpired
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return PartialSignIn{}, ErrChallengeExpired
	}
	tenantID, err := uuid.Parse(claims.TenantID)
	if err != nil || claims.ID == "" || !claims.Stage.IsValid() {
		return PartialSignIn{}, ErrChallengeExpired
	}
	return PartialSignIn{
		ChallengeID: claims.ID,
		UserID:      userID,
		TenantID:    tenantID,
		Stage:       claims.Stage,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}
