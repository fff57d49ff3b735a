package student

import (
	"encoding/json"
	"time"

	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/easyspeak/console/core"
)

// Student is one AAC device user profile. Device and LastSync are explicit
// nullables: an invalid Device means "unlinked", an invalid LastSync means
// "never synced" (no sentinel strings).
type Student struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	OrganizationID string      `json:"organization_id"`
	SchoolID       string      `json:"school_id"`
	Device         null.String `json:"device"`
	Online         bool        `json:"online"`
	LastSync       null.Time   `json:"last_sync"`
	Pages          []Page      `json:"pages"`
	HasLicense     bool        `json:"has_license"`
	AdminPINHash   []byte      `json:"-"`
	CreatedAt      time.Time   `json:"created_at"` // UTC
	UpdatedAt      time.Time   `json:"updated_at"` // UTC
}

func (s *Student) IsLinked() bool { return s.Device.Valid }

func (s *Student) SetAdminPIN(pin string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.AdminPINHash = hash
	return nil
}

func (s *Student) CheckAdminPIN(pin string) error {
	return bcrypt.CompareHashAndPassword(s.AdminPINHash, []byte(pin))
}

// Page is one communication page on a student's device. Tiles are opaque to
// the console; devices interpret them.
type Page struct {
	ID    string          `json:"id"`
	Label string          `json:"label"`
	Icon  string          `json:"icon"`
	Color string          `json:"color"`
	Tiles json.RawMessage `json:"tiles"`
	Type  string          `json:"type,omitempty"` // "managed" for pushed pages
}

type NewStudent struct {
	Name     string `json:"name" validate:"required"`
	SchoolID string `json:"school_id" validate:"required"`
}

func (ns *NewStudent) Validate(validate Validator) error {
	ns.Name = core.CleanString(ns.Name)
	ns.SchoolID = core.CleanString(ns.SchoolID)
	return validate.Struct(ns)
}

type UpdateSchool struct {
	SchoolID string `json:"school_id" validate:"required"`
}

type UpdatePIN struct {
	PIN string `json:"pin" validate:"required,len=4,numeric"`
}

// DeletionChallenge is the first half of the student-deletion handshake:
// the caller must echo the token and the student's exact name.
type DeletionChallenge struct {
	Token       string `json:"token"`
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
}

// Validator is the minimal surface of *validator.Validate the DTOs need.
type Validator interface {
	Struct(s interface{}) error
}
