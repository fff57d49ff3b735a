// Package inmemdb backs the core repository contracts with in-process maps.
// Tests run against it; semantics mirror the PostgreSQL adapters, including
// conditional updates and bounded batch deletes.
package inmemdb

import (
	"sync"

	"github.com/easyspeak/console/core/audit"
	"github.com/easyspeak/console/core/device"
	"github.com/easyspeak/console/core/invite"
	"github.com/easyspeak/console/core/library"
	"github.com/easyspeak/console/core/notification"
	"github.com/easyspeak/console/core/org"
	"github.com/easyspeak/console/core/school"
	"github.com/easyspeak/console/core/staff"
	"github.com/easyspeak/console/core/student"
)

type DB struct {
	orgs          *orgTable
	schools       *schoolTable
	users         *userTable
	invites       *inviteTable
	students      *studentTable
	pairings      *pairingTable
	library       *libraryTable
	audits        *auditTable
	notifications *notificationTable
}

func New() *DB {
	return &DB{
		orgs:          &orgTable{table: make(map[string]*org.Organization)},
		schools:       &schoolTable{table: make(map[string]*school.School)},
		users:         &userTable{table: make(map[string]*staff.Profile)},
		invites:       &inviteTable{table: make(map[string]*invite.Invite)},
		students:      &studentTable{table: make(map[string]*student.Student)},
		pairings:      &pairingTable{table: make(map[string]*device.PairingCode)},
		library:       &libraryTable{table: make(map[string]*library.Page)},
		audits:        &auditTable{table: make(map[string]*audit.Entry)},
		notifications: &notificationTable{table: make(map[string]*notification.Notification)},
	}
}

type (
	orgTable struct {
		mutex sync.RWMutex
		table map[string]*org.Organization
	}
	schoolTable struct {
		mutex sync.RWMutex
		table map[string]*school.School
	}
	userTable struct {
		mutex sync.RWMutex
		table map[string]*staff.Profile
	}
	inviteTable struct {
		mutex sync.RWMutex
		table map[string]*invite.Invite
	}
	studentTable struct {
		mutex sync.RWMutex
		table map[string]*student.Student
	}
	pairingTable struct {
		mutex sync.RWMutex
		table map[string]*device.PairingCode
	}
	libraryTable struct {
		mutex sync.RWMutex
		table map[string]*library.Page
	}
	auditTable struct {
		mutex sync.RWMutex
		table map[string]*audit.Entry
	}
	notificationTable struct {
		mutex sync.RWMutex
		table map[string]*notification.Notification
	}
)
