package enums

import (
	"fmt"
	"strings"
)

// MemberRole is the role an actor holds inside an organization.
type MemberRole string

const (
	MemberRoleOwner      MemberRole = "owner"
	MemberRoleAdmin      MemberRole = "admin"
	MemberRoleManager    MemberRole = "manager"
	MemberRoleAccountant MemberRole = "accountant"
	MemberRoleStaff      MemberRole = "staff"
	MemberRoleViewer     MemberRole = "viewer"
)

// memberRoleRank orders roles from least to most privileged. Unknown roles
// rank zero.
var memberRoleRank = map[MemberRole]int{
	MemberRoleViewer:     1,
	MemberRoleStaff:      2,
	MemberRoleAccountant: 3,
	MemberRoleManager:    4,
	MemberRoleAdmin:      5,
	MemberRoleOwner:      6,
}

func (m MemberRole) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MemberRole.
func (m MemberRole) IsValid() bool {
	_, ok := memberRoleRank[m]
	return ok
}

// AtLeast reports whether m is a known role at or above min.
func (m MemberRole) AtLeast(min MemberRole) bool {
	rank, ok := memberRoleRank[m]
	if !ok {
		return false
	}
	return rank >= memberRoleRank[min]
}

// CanWrite reports whether the role may create or modify entities and
// relationships.
func (m MemberRole) CanWrite() bool {
	return m.AtLeast(MemberRoleStaff)
}

// CanPost reports whether the role may post universal transactions.
func (m MemberRole) CanPost() bool {
	return m.AtLeast(MemberRoleAccountant)
}

// ParseMemberRole normalizes case and surrounding space before matching.
func ParseMemberRole(value string) (MemberRole, error) {
	role := MemberRole(strings.ToLower(strings.TrimSpace(value)))
	if !role.IsValid() {
		return "", fmt.Errorf("invalid member role %q", value)
	}
	return role, nil
}
