package echoapi

import (
	"github.com/shule-app/shule/core"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) Validate() error {
	r.Email = core.CleanString(r.Email, true /* lower */)
	return core.Validate.Struct(r)
}

type SignupRequest struct {
	Email    string                 `json:"email" validate:"required"`
	Password string                 `json:"password" validate:"required"`
	Metadata map[string]interface{} `json:"metadata"`
}

func (r *SignupRequest) Validate() error {
	r.Email = core.CleanString(r.Email, true /* lower */)
	return core.Validate.Struct(r)
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (r *RefreshRequest) Validate() error {
	return core.Validate.Struct(r)
}

type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (r *PasswordResetRequest) Validate() error {
	r.Email = core.CleanString(r.Email, true /* lower */)
	return core.Validate.Struct(r)
}

type PasswordResetConfirmRequest struct {
	UID      string `json:"uid" validate:"required"`
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (r *PasswordResetConfirmRequest) Validate() error {
	return core.Validate.Struct(r)
}

type ProfileUpdateRequest struct {
	Metadata map[string]interface{} `json:"metadata" validate:"required"`
}

func (r *ProfileUpdateRequest) Validate() error {
	return core.Validate.Struct(r)
}

type ProvisionRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (r *ProvisionRequest) Validate() error {
	r.Email = core.CleanString(r.Email, true /* lower */)
	return core.Validate.Struct(r)
}
