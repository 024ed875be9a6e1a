package models

import "github.com/google/uuid"

type WorkspaceType string

const (
	WorkspaceTypePersonal     WorkspaceType = "personal"
	WorkspaceTypeProfessional WorkspaceType = "professional"
)

type Workspace struct {
	BaseModel
	Name        string        `json:"name" gorm:"type:varchar(150);not null"`
	Description *string       `json:"description,omitempty" gorm:"type:text"`
	Type        WorkspaceType `json:"type" gorm:"type:varchar(20);not null;default:'professional'"`
	// OwnerID is denormalized; the membership service keeps it pointing at a
	// member that currently holds the owner role.
	OwnerID uuid.UUID         `json:"ownerID" gorm:"type:uuid;not null;index"`
	Owner   User              `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Members []WorkspaceMember `json:"members,omitempty" gorm:"foreignKey:WorkspaceID"`
	Tasks   []Task            `json:"-" gorm:"foreignKey:WorkspaceID"`
	Tags    []Tag             `json:"-" gorm:"foreignKey:WorkspaceID"`
}
