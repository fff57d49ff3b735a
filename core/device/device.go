// Package device implements the pairing handshake between AAC devices and
// the student roster.
package device

import (
	"context"
	"errors"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/easyspeak/console/core"
	"github.com/easyspeak/console/core/audit"
	"github.com/easyspeak/console/core/staff"
	"github.com/easyspeak/console/core/student"
)

const (
	StatusPending = "pending"
	StatusLinked  = "linked"
)

var (
	// errors
	ErrNotFound   = errors.New("invalid or already used pairing code")
	ErrCodeExists = errors.New("pairing code already registered")
	// ErrHandshakeIncomplete means the code was consumed but the roster or
	// the code row could not be finalized; the student may need re-pairing.
	ErrHandshakeIncomplete = errors.New("pairing handshake did not complete")

	nowFunc = time.Now // mockable

	registerRetries = 3
)

// PairingCode is one device-advertised code. It starts pending and is
// consumed exactly once; a linked row is inert and only kept for tracing.
type PairingCode struct {
	Code           string      `json:"code"`
	Status         string      `json:"status"`
	DeviceName     string      `json:"device_name"`
	StudentID      null.String `json:"student_id"`
	OrganizationID null.String `json:"organization_id"`
	CreatedAt      time.Time   `json:"created_at"` // UTC
}

func (pc *PairingCode) IsPending() bool { return pc.Status == StatusPending }

type (
	Repository interface {
		CreatePairingCode(ctx context.Context, pc PairingCode) (PairingCode, error)
		GetPairingCode(ctx context.Context, code string) (PairingCode, error)
		// ClaimPairingCode flips pending -> linked only if the row is still
		// pending, atomically against concurrent claims. A lost race or an
		// unknown code both return ErrNotFound.
		ClaimPairingCode(ctx context.Context, code string) (PairingCode, error)
		// CompleteHandshake records which student and org consumed the code.
		CompleteHandshake(ctx context.Context, code, studentID, orgID string) error
	}

	// Roster is the student-side of the handshake; satisfied by the student
	// service.
	Roster interface {
		GetByID(ctx context.Context, actor *staff.Profile, id string) (student.Student, error)
		BindDevice(ctx context.Context, id, deviceName string, at time.Time) (student.Student, error)
		UnbindDevice(ctx context.Context, id string, at time.Time) (student.Student, error)
	}

	Service struct {
		repo     Repository
		roster   Roster
		auditSvc audit.Recorder
		conf     *core.Config
		logger   core.Logger
	}
)

func NewService(repo Repository, roster Roster, auditSvc audit.Recorder, conf *core.Config, logger core.Logger) *Service {
	return &Service{repo: repo, roster: roster, auditSvc: auditSvc, conf: conf, logger: logger}
}

// RegisterCode mints a fresh pending code on behalf of a device. Collisions
// are retried with a new code.
func (svc *Service) RegisterCode(ctx context.Context, deviceName string) (PairingCode, error) {
	deviceName = core.CleanString(deviceName)
	if deviceName == "" {
		deviceName = "AAC Device"
	}

	var err error
	for i := 0; i < registerRetries; i++ {
		pc := PairingCode{
			Code:       core.RandomCode(svc.conf.PairingCodeLength),
			Status:     StatusPending,
			DeviceName: deviceName,
			CreatedAt:  nowFunc().UTC(),
		}
		pc, err = svc.repo.CreatePairingCode(ctx, pc)
		if err == nil {
			return pc, nil
		}
		if !errors.Is(err, ErrCodeExists) {
			return PairingCode{}, pkgerrors.Wrap(err, "registering pairing code")
		}
	}
	return PairingCode{}, pkgerrors.Wrap(err, "registering pairing code")
}

// Link consumes a pending pairing code and binds its device to the student.
// The code row is claimed first, so a code can never link two students; if
// the roster update or the handshake completion fails afterwards the caller
// gets ErrHandshakeIncomplete and the code stays consumed.
func (svc *Service) Link(ctx context.Context, actor *staff.Profile, studentID, rawCode string) (student.Student, error) {
	code := NormalizeCode(rawCode)
	if len(code) != svc.conf.PairingCodeLength {
		return student.Student{}, core.NewValidationError(nil,
			core.FieldError{Field: "code", Error: "invalid pairing code format"})
	}

	s, err := svc.roster.GetByID(ctx, actor, studentID)
	if err != nil {
		return student.Student{}, err
	}

	pc, err := svc.repo.ClaimPairingCode(ctx, code)
	if err != nil {
		return student.Student{}, err
	}

	// codes minted by older firmware can carry an empty name
	deviceName := pc.DeviceName
	if deviceName == "" {
		deviceName = "Linked Device"
	}

	now := nowFunc().UTC()
	s, err = svc.roster.BindDevice(ctx, s.ID, deviceName, now)
	if err != nil {
		svc.logger.Error("device: code claimed but roster bind failed", err, "code", code, "student", studentID)
		return student.Student{}, pkgerrors.Wrap(ErrHandshakeIncomplete, err.Error())
	}
	if err = svc.repo.CompleteHandshake(ctx, pc.Code, s.ID, s.OrganizationID); err != nil {
		svc.logger.Error("device: roster bound but handshake record failed", err, "code", code, "student", studentID)
		return student.Student{}, pkgerrors.Wrap(ErrHandshakeIncomplete, err.Error())
	}

	svc.auditSvc.Record(ctx, audit.ActionLinkDevice,
		"Linked device "+deviceName+" to "+s.Name, s.OrganizationID,
		audit.Actor{Email: actor.Email, Role: actor.Role})
	return s, nil
}

// Unlink detaches the student's device: device cleared, offline, sync state
// reset to never. The consumed pairing code row stays inert.
func (svc *Service) Unlink(ctx context.Context, actor *staff.Profile, studentID string) (student.Student, error) {
	s, err := svc.roster.GetByID(ctx, actor, studentID)
	if err != nil {
		return student.Student{}, err
	}
	if !s.IsLinked() {
		return student.Student{}, student.ErrNotLinked
	}
	deviceName := s.Device.String

	s, err = svc.roster.UnbindDevice(ctx, s.ID, nowFunc().UTC())
	if err != nil {
		return student.Student{}, err
	}

	svc.auditSvc.Record(ctx, audit.ActionUnlinkDevice,
		"Unlinked device "+deviceName+" from "+s.Name, s.OrganizationID,
		audit.Actor{Email: actor.Email, Role: actor.Role})
	return s, nil
}

// NormalizeCode upper-cases and strips whitespace and dashes so codes read
// off a device screen survive human transcription.
func NormalizeCode(raw string) string {
	code := strings.ToUpper(core.CleanString(raw))
	code = strings.ReplaceAll(code, " ", "")
	return strings.ReplaceAll(code, "-", "")
}
