package models

import "fmt"

// GroupRole is a member's role within a group.
type GroupRole string

const (
	GroupRoleOwner  GroupRole = "Owner"
	GroupRoleMember GroupRole = "Member"
)

// ParseGroupRole converts a persisted string into a GroupRole.
func ParseGroupRole(s string) (GroupRole, error) {
	switch GroupRole(s) {
	case GroupRoleOwner, GroupRoleMember:
		return GroupRole(s), nil
	}
	return "", fmt.Errorf("unknown group role %q", s)
}

// Group is a named collection of users created by one of them.
// The creator is inserted as the Owner member.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates", "Work Lunch").
	Name string

	// CreatedBy is the user ID of the creator.
	CreatedBy string

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64

	Members []GroupMember
}

// GroupMember links a group to a user. (GroupID, UserID) is unique.
type GroupMember struct {
	ID       string
	GroupID  string
	UserID   string
	Role     GroupRole
	JoinedAt int64
}

// Member returns the membership for userID, if any.
func (g *Group) Member(userID string) (GroupMember, bool) {
	for _, m := range g.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return GroupMember{}, false
}

// IsOwner reports whether userID owns the group.
func (g *Group) IsOwner(userID string) bool {
	m, ok := g.Member(userID)
	return ok && m.Role == GroupRoleOwner
}

// MemberIDs returns member user IDs in join order.
func (g *Group) MemberIDs() []string {
	ids := make([]string, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.UserID
	}
	return ids
}
