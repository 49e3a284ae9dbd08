package user

import (
	"net/mail"
	"strings"

	"github.com/iota-uz/admin-portal/pkg/serrors"
)

type UILanguage string

const (
	UILanguageEN UILanguage = "en"
	UILanguageRU UILanguage = "ru"
	UILanguageUZ UILanguage = "uz"
)

func NewUILanguage(l string) (UILanguage, error) {
	language := UILanguage(l)
	if !language.IsValid() {
		return "", serrors.FieldError("UILanguage", "invalid language")
	}
	return language, nil
}

func (l UILanguage) IsValid() bool {
	switch l {
	case UILanguageEN, UILanguageRU, UILanguageUZ:
		return true
	}
	return false
}

type Type string

const (
	TypeUser       Type = "user"
	TypeSuperadmin Type = "superadmin"
)

func (t Type) IsValid() bool {
	return t == TypeUser || t == TypeSuperadmin
}

// NormalizeEmail lowercases and validates an address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", serrors.FieldError("Email", "invalid email address")
	}
	return email, nil
}

const (
	PasswordMinLength = 8
	// bcrypt ignores input past 72 bytes.
	PasswordMaxLength = 72
)

func ValidatePassword(password string) error {
	switch {
	case len(password) < PasswordMinLength:
		return serrors.FieldError("Password", "password must be at least 8 characters")
	case len(password) > PasswordMaxLength:
		return serrors.FieldError("Password", "password must be at most 72 bytes")
	}
	return nil
}
