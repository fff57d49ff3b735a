package audit

import "time"

// Action taxonomy. These strings are stable: compliance reports are built on
// them, so renaming one is a breaking change.
const (
	ActionUserRegistered = "USER_REGISTERED"

	ActionCreateSchool        = "CREATE_SCHOOL"
	ActionUpdateStudentSchool = "UPDATE_STUDENT_SCHOOL"
	ActionUpdateTeacherAccess = "UPDATE_TEACHER_ACCESS"
	ActionInviteTeacher       = "INVITE_TEACHER"
	ActionCancelInvite        = "CANCEL_INVITE"
	ActionRemoveTeacher       = "REMOVE_TEACHER"

	ActionCreateStudent   = "CREATE_STUDENT"
	ActionToggleLicense   = "TOGGLE_LICENSE"
	ActionDeleteStudent   = "DELETE_STUDENT"
	ActionLinkDevice      = "LINK_DEVICE"
	ActionUnlinkDevice    = "UNLINK_DEVICE"
	ActionUpdateDevicePIN = "UPDATE_DEVICE_PIN"

	ActionPushPage         = "PUSH_PAGE"
	ActionRemovePage       = "REMOVE_PAGE"
	ActionCreateMasterPage = "CREATE_MASTER_PAGE"
	ActionImportMasterPage = "IMPORT_MASTER_PAGE"
	ActionUpdateMasterPage = "UPDATE_MASTER_PAGE"
	ActionDeleteMasterPage = "DELETE_MASTER_PAGE"

	ActionCreateDistrict          = "CREATE_DISTRICT"
	ActionUpdateDistrictLicenses  = "UPDATE_DISTRICT_LICENSES"
	ActionUpdateSystemUser        = "UPDATE_SYSTEM_USER"
	ActionInviteDistrictAdmin     = "INVITE_DISTRICT_ADMIN"
	ActionSuperAdminDeleteDistrict = "SUPER_ADMIN_DELETE_DISTRICT"
	ActionBroadcastAnnouncement   = "BROADCAST_ANNOUNCEMENT"
)

// Entry is one immutable audit record. There is no update path; the only
// deletions are retention pruning and the full-tenant wipe.
type Entry struct {
	ID             string    `json:"id"`
	Action         string    `json:"action"`
	Details        string    `json:"details"`
	ActorEmail     string    `json:"actor_email"`
	ActorRole      string    `json:"actor_role"`
	OrganizationID string    `json:"organization_id"`
	CreatedAt      time.Time `json:"created_at"` // UTC
}

// Actor identifies who performed the audited action.
type Actor struct {
	Email string
	Role  string
}
