package models

import "time"

type ProjectRole string

const (
	RoleOwner  ProjectRole = "owner"
	RoleMember ProjectRole = "member"
	RoleViewer ProjectRole = "viewer"
)

// ValidProjectRole reports whether r is an assignable membership role.
func ValidProjectRole(r ProjectRole) bool {
	switch r {
	case RoleOwner, RoleMember, RoleViewer:
		return true
	}
	return false
}

type MemberStatus string

const (
	MemberStatusPending  MemberStatus = "pending"
	MemberStatusAccepted MemberStatus = "accepted"
)

type ProjectMember struct {
	ProjectID uint64       `gorm:"primarykey" json:"project_id"`
	UserID    uint64       `gorm:"primarykey" json:"user_id"`
	Role      ProjectRole  `gorm:"type:varchar(20);not null" json:"role"`
	Status    MemberStatus `gorm:"type:varchar(20);not null;default:'accepted'" json:"status"`
	JoinedAt  time.Time    `json:"joined_at"`

	// Relations
	Project Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	User    User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
