// Package access holds the role and school-scope model shared by profiles,
// invites and the visibility rules derived from them.
package access

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Roles
const (
	RoleTeacher       = "teacher"
	RoleDistrictAdmin = "district_admin"
	RoleSuperAdmin    = "super_admin"
)

var (
	AllRoles = []string{RoleTeacher, RoleDistrictAdmin, RoleSuperAdmin}

	rolePriorities = map[string]int{
		RoleSuperAdmin:    30,
		RoleDistrictAdmin: 20,
		RoleTeacher:       10,
	}

	Roles = []Role{
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "District Admin", Value: RoleDistrictAdmin},
		{Name: "Super Admin", Value: RoleSuperAdmin},
	}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func IsValidRole(role string) bool {
	_, ok := rolePriorities[role]
	return ok
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

// SchoolScope is the subset of schools a profile can see and mutate:
// either every school in the organization, or an explicit set of school IDs.
// The wire form is the string "all" or a JSON array of IDs.
type SchoolScope struct {
	All       bool
	SchoolIDs []string
}

func AllSchools() SchoolScope {
	return SchoolScope{All: true}
}

func Schools(ids ...string) SchoolScope {
	return SchoolScope{SchoolIDs: ids}
}

// Contains reports whether the scope covers the given school.
func (s SchoolScope) Contains(schoolID string) bool {
	if s.All {
		return true
	}
	for _, id := range s.SchoolIDs {
		if id == schoolID {
			return true
		}
	}
	return false
}

func (s SchoolScope) IsEmpty() bool {
	return !s.All && len(s.SchoolIDs) == 0
}

// Equal compares scopes ignoring school ID order.
func (s SchoolScope) Equal(other SchoolScope) bool {
	if s.All || other.All {
		return s.All == other.All
	}
	if len(s.SchoolIDs) != len(other.SchoolIDs) {
		return false
	}
	a := append([]string(nil), s.SchoolIDs...)
	b := append([]string(nil), other.SchoolIDs...)
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (s SchoolScope) MarshalJSON() ([]byte, error) {
	if s.All {
		return json.Marshal("all")
	}
	if s.SchoolIDs == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(s.SchoolIDs)
}

func (s *SchoolScope) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		if str != "all" {
			return fmt.Errorf("unknown school scope %q", str)
		}
		*s = AllSchools()
		return nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = SchoolScope{SchoolIDs: ids}
	return nil
}

// CanSeeAllStudents reports whether a role sees every student in its
// organization regardless of school scope.
func CanSeeAllStudents(role string) bool {
	return role == RoleSuperAdmin || role == RoleDistrictAdmin
}
