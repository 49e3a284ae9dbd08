package authz

import (
	"strings"

	"github.com/google/uuid"
)

const (
	subjectUserPrefix = "user"
	rolePrefix        = "role"
	subjectSeparator  = ":"
	objectSeparator   = "."
)

type Mode string

const (
	ModeDisabled Mode = "disabled"
	ModeShadow   Mode = "shadow"
	ModeEnforce  Mode = "enforce"
)

// Request is one casbin evaluation: may subject perform action on object in domain.
type Request struct {
	Subject string
	Domain  string
	Object  string
	Action  string
}

func SubjectForUser(userID uuid.UUID) string {
	return subjectUserPrefix + subjectSeparator + userID.String()
}

func SubjectForRole(roleID uuid.UUID) string {
	return rolePrefix + subjectSeparator + roleID.String()
}

func DomainForTenant(tenantID uuid.UUID) string {
	return tenantID.String()
}

// SplitResource turns "users.write" into ("users", "write").
func SplitResource(resource string) (object, action string) {
	idx := strings.LastIndex(resource, objectSeparator)
	if idx < 0 {
		return resource, "*"
	}
	return resource[:idx], resource[idx+1:]
}

// NewRequest builds the request for userID holding resource inside tenantID.
func NewRequest(tenantID, userID uuid.UUID, resource string) Request {
	object, action := SplitResource(resource)
	return Request{
		Subject: SubjectForUser(userID),
		Domain:  DomainForTenant(tenantID),
		Object:  object,
		Action:  action,
	}
}
