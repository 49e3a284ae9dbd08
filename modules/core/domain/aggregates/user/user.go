package user

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type Option func(u *user)

func WithID(id uuid.UUID) Option {
	return func(u *user) {
		u.id = id
	}
}

func WithTenantID(id uuid.UUID) Option {
	return func(u *user) {
		u.tenantID = id
	}
}

func WithType(t Type) Option {
	return func(u *user) {
		u.typ = t
	}
}

// WithPasswordHash sets an already hashed password.
func WithPasswordHash(hash string) Option {
	return func(u *user) {
		u.password = hash
	}
}

func WithUILanguage(l UILanguage) Option {
	return func(u *user) {
		u.uiLanguage = l
	}
}

func WithIsActive(active bool) Option {
	return func(u *user) {
		u.isActive = active
	}
}

func WithLockout(failedAttempts int, lockedUntil *time.Time) Option {
	return func(u *user) {
		u.failedAttempts = failedAttempts
		u.lockedUntil = lockedUntil
	}
}

func WithAuthenticator(secret string, enrolledAt *time.Time) Option {
	return func(u *user) {
		u.authenticatorSecret = secret
		u.authenticatorEnrolledAt = enrolledAt
	}
}

func WithDevices(devices []Device) Option {
	return func(u *user) {
		u.devices = devices
	}
}

func WithRoleIDs(ids []uuid.UUID) Option {
	return func(u *user) {
		u.roleIDs = ids
	}
}

func WithLastLogin(at *time.Time, ip string) Option {
	return func(u *user) {
		u.lastLogin = at
		u.lastIP = ip
	}
}

func WithCreatedAt(t time.Time) Option {
	return func(u *user) {
		u.createdAt = t
	}
}

func WithUpdatedAt(t time.Time) Option {
	return func(u *user) {
		u.updatedAt = t
	}
}

// User is immutable; setters return a modified copy.
type User interface {
	ID() uuid.UUID
	TenantID() uuid.UUID
	Type() Type
	IsSuperadmin() bool
	Email() string
	FirstName() string
	LastName() string
	FullName() string
	Password() string
	UILanguage() UILanguage
	IsActive() bool
	FailedAttempts() int
	LockedUntil() *time.Time
	IsLocked(now time.Time) bool
	AuthenticatorSecret() string
	AuthenticatorEnrolledAt() *time.Time
	HasAuthenticatorApp() bool
	Devices() []Device
	Device(id uuid.UUID) (Device, bool)
	DeviceByCredential(credentialID []byte) (Device, bool)
	RoleIDs() []uuid.UUID
	LastLogin() *time.Time
	LastIP() string
	CreatedAt() time.Time
	UpdatedAt() time.Time

	CheckPassword(password string) bool
	SetPassword(password string) (User, error)
	SetName(firstName, lastName string) User
	SetEmail(email string) User
	SetUILanguage(l UILanguage) User
	SetActive(active bool) User
	SetRoles(ids []uuid.UUID) (next User, added, removed []uuid.UUID)
	RegisterFailedAttempt(maxAttempts int, lockFor time.Duration, now time.Time) User
	Unlock() User
	SetAuthenticator(secret string, enrolledAt time.Time) User
	RemoveAuthenticator() User
	AddDevice(d Device) User
	RemoveDevice(id uuid.UUID) (User, error)
	RenameDevice(id uuid.UUID, name string) (User, error)
	TouchDevice(credentialID []byte, signCount uint32, now time.Time) (User, error)
	RecordLogin(ip string, at time.Time) User
	Snapshot() Snapshot
}

// New builds a user. Email is stored lowercased; callers validate it first.
func New(email, firstName, lastName string, opts ...Option) User {
	u := &user{
		id:         uuid.New(),
		typ:        TypeUser,
		email:      strings.ToLower(strings.TrimSpace(email)),
		firstName:  strings.TrimSpace(firstName),
		lastName:   strings.TrimSpace(lastName),
		uiLanguage: UILanguageEN,
		isActive:   true,
		createdAt:  time.Now(),
		updatedAt:  time.Now(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

type user struct {
	id                      uuid.UUID
	tenantID                uuid.UUID
	typ                     Type
	email                   string
	firstName               string
	lastName                string
	password                string
	uiLanguage              UILanguage
	isActive                bool
	failedAttempts          int
	lockedUntil             *time.Time
	authenticatorSecret     string
	authenticatorEnrolledAt *time.Time
	devices                 []Device
	roleIDs                 []uuid.UUID
	lastLogin               *time.Time
	lastIP                  string
	createdAt               time.Time
	updatedAt               time.Time
}

func (u *user) clone() *user {
	c := *u
	c.devices = slices.Clone(u.devices)
	c.roleIDs = slices.Clone(u.roleIDs)
	return &c
}

func (u *user) touched() *user {
	c := u.clone()
	c.updatedAt = time.Now()
	return c
}

func (u *user) ID() uuid.UUID {
	return u.id
}

func (u *user) TenantID() uuid.UUID {
	return u.tenantID
}

func (u *user) Type() Type {
	return u.typ
}

func (u *user) IsSuperadmin() bool {
	return u.typ == TypeSuperadmin
}

func (u *user) Email() string {
	return u.email
}

func (u *user) FirstName() string {
	return u.firstName
}

func (u *user) LastName() string {
	return u.lastName
}

func (u *user) FullName() string {
	return strings.TrimSpace(u.firstName + " " + u.lastName)
}

func (u *user) Password() string {
	return u.password
}

func (u *user) UILanguage() UILanguage {
	return u.uiLanguage
}

func (u *user) IsActive() bool {
	return u.isActive
}

func (u *user) FailedAttempts() int {
	return u.failedAttempts
}

func (u *user) LockedUntil() *time.Time {
	return u.lockedUntil
}

func (u *user) IsLocked(now time.Time) bool {
	return u.lockedUntil != nil && now.Before(*u.lockedUntil)
}

func (u *user) AuthenticatorSecret() string {
	return u.authenticatorSecret
}

func (u *user) AuthenticatorEnrolledAt() *time.Time {
	return u.authenticatorEnrolledAt
}

func (u *user) HasAuthenticatorApp() bool {
	return u.authenticatorSecret != "" && u.authenticatorEnrolledAt != nil
}

func (u *user) Devices() []Device {
	return slices.Clone(u.devices)
}

func (u *user) Device(id uuid.UUID) (Device, bool) {
	for _, d := range u.devices {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}

func (u *user) DeviceByCredential(credentialID []byte) (Device, bool) {
	for _, d := range u.devices {
		if d.Matches(credentialID) {
			return d, true
		}
	}
	return Device{}, false
}

func (u *user) RoleIDs() []uuid.UUID {
	return slices.Clone(u.roleIDs)
}

func (u *user) LastLogin() *time.Time {
	return u.lastLogin
}

func (u *user) LastIP() string {
	return u.lastIP
}

func (u *user) CreatedAt() time.Time {
	return u.createdAt
}

func (u *user) UpdatedAt() time.Time {
	return u.updatedAt
}

func (u *user) CheckPassword(password string) bool {
	if u.password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.password), []byte(password)) == nil
}

func (u *user) SetPassword(password string) (User, error) {
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	c := u.touched()
	c.password = string(hash)
	return c, nil
}

func (u *user) SetName(firstName, lastName string) User {
	c := u.touched()
	c.firstName = strings.TrimSpace(firstName)
	c.lastName = strings.TrimSpace(lastName)
	return c
}

func (u *user) SetEmail(email string) User {
	c := u.touched()
	c.email = strings.ToLower(strings.TrimSpace(email))
	return c
}

func (u *user) SetUILanguage(l UILanguage) User {
	c := u.touched()
	c.uiLanguage = l
	return c
}

func (u *user) SetActive(active bool) User {
	c := u.touched()
	c.isActive = active
	return c
}

func (u *user) SetRoles(ids []uuid.UUID) (User, []uuid.UUID, []uuid.UUID) {
	var added, removed []uuid.UUID
	next := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if slices.Contains(next, id) {
			continue
		}
		next = append(next, id)
		if !slices.Contains(u.roleIDs, id) {
			added = append(added, id)
		}
	}
	for _, id := range u.roleIDs {
		if !slices.Contains(next, id) {
			removed = append(removed, id)
		}
	}
	if len(added) == 0 && len(removed) == 0 {
		return u, nil, nil
	}
	c := u.touched()
	c.roleIDs = next
	return c, added, removed
}

// RegisterFailedAttempt counts a bad password and locks the account once
// maxAttempts is reached. The counter restarts after the lock.
func (u *user) RegisterFailedAttempt(maxAttempts int, lockFor time.Duration, now time.Time) User {
	c := u.touched()
	c.failedAttempts++
	if maxAttempts > 0 && c.failedAttempts >= maxAttempts {
		until := now.Add(lockFor)
		c.lockedUntil = &until
		c.failedAttempts = 0
	}
	return c
}

func (u *user) Unlock() User {
	c := u.touched()
	c.failedAttempts = 0
	c.lockedUntil = nil
	return c
}

func (u *user) SetAuthenticator(secret string, enrolledAt time.Time) User {
	c := u.touched()
	c.authenticatorSecret = secret
	c.authenticatorEnrolledAt = &enrolledAt
	return c
}

func (u *user) RemoveAuthenticator() User {
	c := u.touched()
	c.authenticatorSecret = ""
	c.authenticatorEnrolledAt = nil
	return c
}

func (u *user) AddDevice(d Device) User {
	c := u.touched()
	c.devices = append(c.devices, d)
	return c
}

func (u *user) RemoveDevice(id uuid.UUID) (User, error) {
	idx := slices.IndexFunc(u.devices, func(d Device) bool { return d.ID == id })
	if idx < 0 {
		return nil, ErrDeviceNotFound
	}
	c := u.touched()
	c.devices = slices.Delete(c.devices, idx, idx+1)
	return c, nil
}

func (u *user) RenameDevice(id uuid.UUID, name string) (User, error) {
	idx := slices.IndexFunc(u.devices, func(d Device) bool { return d.ID == id })
	if idx < 0 {
		return nil, ErrDeviceNotFound
	}
	c := u.touched()
	c.devices[idx].Name = strings.TrimSpace(name)
	return c, nil
}

func (u *user) TouchDevice(credentialID []byte, signCount uint32, now time.Time) (User, error) {
	idx := slices.IndexFunc(u.devices, func(d Device) bool { return d.Matches(credentialID) })
	if idx < 0 {
		return nil, ErrDeviceNotFound
	}
	c := u.clone()
	c.devices[idx].SignCount = signCount
	c.devices[idx].LastUsedAt = &now
	return c, nil
}

// RecordLogin stores the successful sign-in and clears the lockout state.
func (u *user) RecordLogin(ip string, at time.Time) User {
	c := u.clone()
	c.lastLogin = &at
	c.lastIP = ip
	c.failedAttempts = 0
	c.lockedUntil = nil
	return c
}

// Snapshot is the audit and API view of a user. It never carries secrets.
type Snapshot struct {
	ID          uuid.UUID   `json:"id"`
	TenantID    uuid.UUID   `json:"tenantId"`
	Type        Type        `json:"type"`
	Email       string      `json:"email"`
	FirstName   string      `json:"firstName"`
	LastName    string      `json:"lastName"`
	UILanguage  UILanguage  `json:"uiLanguage"`
	IsActive    bool        `json:"isActive"`
	IsLocked    bool        `json:"isLocked"`
	AppEnrolled bool        `json:"appEnrolled"`
	Devices     []string    `json:"devices"`
	RoleIDs     []uuid.UUID `json:"roleIds"`
	LastLogin   *time.Time  `json:"lastLogin,omitempty"`
}

func (u *user) Snapshot() Snapshot {
	devices := make([]string, 0, len(u.devices))
	for _, d := range u.devices {
		devices = append(devices, d.Name)
	}
	return Snapshot{
		ID:          u.id,
		TenantID:    u.tenantID,
		Type:        u.typ,
		Email:       u.email,
		FirstName:   u.firstName,
		LastName:    u.lastName,
		UILanguage:  u.uiLanguage,
		IsActive:    u.isActive,
		IsLocked:    u.IsLocked(time.Now()),
		AppEnrolled: u.HasAuthenticatorApp(),
		Devices:     devices,
		RoleIDs:     u.RoleIDs(),
		LastLogin:   u.lastLogin,
	}
}
