package models

import "github.com/google/uuid"

type Tag struct {
	BaseModel
	WorkspaceID uuid.UUID `json:"workspaceID" gorm:"type:uuid;not null;index;uniqueIndex:idx_workspace_tag_name"`
	Name        string    `json:"name" gorm:"type:varchar(50);not null;uniqueIndex:idx_workspace_tag_name"`
	Color       string    `json:"color" gorm:"type:varchar(7);not null;default:'#808080'"`
	Tasks       []Task    `json:"-" gorm:"many2many:task_tags"`
}
