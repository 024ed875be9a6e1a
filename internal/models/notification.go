package models

import "github.com/google/uuid"

type NotificationType string

const (
	NotificationTaskAssigned  NotificationType = "task_assigned"
	NotificationTaskCompleted NotificationType = "task_completed"
	NotificationTaskDueSoon   NotificationType = "task_due_soon"
	NotificationMemberAdded   NotificationType = "member_added"
	NotificationMemberRemoved NotificationType = "member_removed"
	NotificationRoleChanged   NotificationType = "role_changed"
)

type Notification struct {
	BaseModel
	UserID      uuid.UUID        `json:"userID" gorm:"type:uuid;not null;index"`
	ActorID     uuid.UUID        `json:"actorID" gorm:"type:uuid;not null"`
	Type        NotificationType `json:"type" gorm:"type:varchar(30);not null"`
	Message     string           `json:"message" gorm:"type:text;not null"`
	WorkspaceID uuid.UUID        `json:"workspaceID" gorm:"type:uuid;not null;index"`
	TaskID      *uuid.UUID       `json:"taskID,omitempty" gorm:"type:uuid"`
	IsRead      bool             `json:"isRead" gorm:"not null;default:false;index"`

	Actor User `json:"actor,omitempty" gorm:"foreignKey:ActorID;references:ID"`
}

func (Notification) TableName() string {
	return "notifications"
}
