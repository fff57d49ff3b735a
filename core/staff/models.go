package staff

import (
	"time"

	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/easyspeak/console/core"
	"github.com/easyspeak/console/core/access"
)

// Profile is a registered staff member, keyed by the authenticated
// principal's stable ID. One profile per principal.
type Profile struct {
	UID            string             `json:"uid"`
	Email          string             `json:"email"` // lowercased
	Name           string             `json:"name"`
	Role           string             `json:"role"`
	OrganizationID string             `json:"organization_id"`
	SchoolScope    access.SchoolScope `json:"schools"`
	PasswordHash   []byte             `json:"-"` // only set for manual (invite-code) registrations
	LastLogin      null.Time          `json:"last_login,omitempty"` // UTC
	CreatedAt      time.Time          `json:"created_at"`           // UTC
	UpdatedAt      time.Time          `json:"updated_at"`           // UTC
}

func (p *Profile) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	p.PasswordHash = hash
	return nil
}

func (p *Profile) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(p.PasswordHash, []byte(pwd))
}

func (p *Profile) IsTeacher() bool       { return p.Role == access.RoleTeacher }
func (p *Profile) IsDistrictAdmin() bool { return p.Role == access.RoleDistrictAdmin }
func (p *Profile) IsSuperAdmin() bool    { return p.Role == access.RoleSuperAdmin }

// IsAdmin reports whether the profile holds either admin role.
func (p *Profile) IsAdmin() bool { return p.IsDistrictAdmin() || p.IsSuperAdmin() }

// CanSee reports whether the profile's scope covers the given school.
func (p *Profile) CanSee(schoolID string) bool {
	if access.CanSeeAllStudents(p.Role) {
		return true
	}
	return p.SchoolScope.Contains(schoolID)
}

// RegisterStaff is the manual registration path: email + password + invite code.
type RegisterStaff struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Code            string `json:"code" validate:"required"`
}

func (rs *RegisterStaff) Validate(validate Validator) error {
	rs.Name = core.CleanString(rs.Name)
	rs.Email = core.CleanString(rs.Email, true /* lower */)
	rs.Code = core.CleanString(rs.Code)
	return validate.Struct(rs)
}

// UpdateAccess changes a teacher's school scope.
type UpdateAccess struct {
	SchoolScope access.SchoolScope `json:"schools"`
}

// UpdateSystemUser is the super-admin reassignment: role and/or organization.
type UpdateSystemUser struct {
	Role           string `json:"role" validate:"required"`
	OrganizationID string `json:"organization_id" validate:"required"`
}

func (us *UpdateSystemUser) Validate(validate Validator) error {
	us.Role = core.CleanString(us.Role, true /* lower */)
	us.OrganizationID = core.CleanString(us.OrganizationID)
	if err := validate.Struct(us); err != nil {
		return err
	}
	if !access.IsValidRole(us.Role) {
		return core.NewValidationError(nil, core.FieldError{Field: "role", Error: "invalid role"})
	}
	return nil
}

// Validator is the minimal surface of *validator.Validate the DTOs need.
type Validator interface {
	Struct(s interface{}) error
}
