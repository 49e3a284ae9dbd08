package user

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/pkg/serrors"
)

var ErrDeviceNotFound = serrors.NewError(serrors.DeviceNotFound, "device not found", "Errors.DeviceNotFound")

// Device is a registered WebAuthn authenticator. Credential holds the
// library's serialized credential record.
type Device struct {
	ID           uuid.UUID
	Name         string
	CredentialID []byte
	Credential   json.RawMessage
	SignCount    uint32
	CreatedAt    time.Time
	LastUsedAt   *time.Time
}

func NewDevice(name string, credentialID []byte, credential json.RawMessage, signCount uint32) Device {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Security key"
	}
	return Device{
		ID:           uuid.New(),
		Name:         name,
		CredentialID: credentialID,
		Credential:   credential,
		SignCount:    signCount,
		CreatedAt:    time.Now(),
	}
}

func (d Device) Matches(credentialID []byte) bool {
	return bytes.Equal(d.CredentialID, credentialID)
}
