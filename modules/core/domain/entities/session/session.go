package session

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
)

type Session struct {
	Token     string
	UserID    uuid.UUID
	TenantID  uuid.UUID
	IP        string
	UserAgent string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type CreateDTO struct {
	UserID    uuid.UUID
	TenantID  uuid.UUID
	IP        string
	UserAgent string
}

// ToEntity issues a session with a random 256-bit token.
func (d *CreateDTO) ToEntity(duration time.Duration) (*Session, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	now := time.Now()
	return &Session{
		Token:     base64.RawURLEncoding.EncodeToString(buf),
		UserID:    d.UserID,
		TenantID:  d.TenantID,
		IP:        d.IP,
		UserAgent: d.UserAgent,
		ExpiresAt: now.Add(duration),
		CreatedAt: now,
	}, nil
}

func (s *Session) IsExpired() bool {
	return !s.ExpiresAt.After(time.Now())
}
