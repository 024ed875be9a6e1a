package models

import "github.com/google/uuid"

type MemberRole string

const (
	MemberRoleOwner  MemberRole = "owner"
	MemberRoleAdmin  MemberRole = "admin"
	MemberRoleMember MemberRole = "member"
	MemberRoleGuest  MemberRole = "guest"
)

func (r MemberRole) Valid() bool {
	switch r {
	case MemberRoleOwner, MemberRoleAdmin, MemberRoleMember, MemberRoleGuest:
		return true
	default:
		return false
	}
}

type WorkspaceMember struct {
	BaseModel
	UserID      uuid.UUID  `json:"userID" gorm:"type:uuid;not null;index;uniqueIndex:idx_user_workspace"`
	WorkspaceID uuid.UUID  `json:"workspaceID" gorm:"type:uuid;not null;index;uniqueIndex:idx_user_workspace"`
	Role        MemberRole `json:"role" gorm:"type:varchar(20);not null;default:'member'"`
	User        User       `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Workspace   Workspace  `json:"workspace,omitempty" gorm:"foreignKey:WorkspaceID"`
}
