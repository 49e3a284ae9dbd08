package dtos

import (
	"github.com/iota-uz/admin-portal/pkg/mediator"
)

var validate = mediator.NewStructValidator()

type LoginDTO struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// Ok returns *serrors.ValidationError keyed by field name when the form is incomplete.
func (d *LoginDTO) Ok() error {
	return validate.Struct(d)
}

type CodeDTO struct {
	Code string `validate:"required,len=6,numeric"`
}

func (d *CodeDTO) Ok() error {
	return validate.Struct(d)
}

type ForgotPasswordDTO struct {
	Email string `validate:"required,email"`
}

func (d *ForgotPasswordDTO) Ok() error {
	return validate.Struct(d)
}

type ResetPasswordDTO struct {
	Token           string `validate:"required"`
	Password        string `validate:"required,min=8,max=72"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
}

func (d *ResetPasswordDTO) Ok() error {
	return validate.Struct(d)
}
