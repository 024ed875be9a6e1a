package models

import (
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	default:
		return false
	}
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	default:
		return false
	}
}

type Task struct {
	BaseModel
	WorkspaceID    uuid.UUID    `json:"workspaceID" gorm:"type:uuid;not null;index"`
	Title          string       `json:"title" gorm:"type:varchar(255);not null"`
	Description    *string      `json:"description,omitempty" gorm:"type:text"`
	Status         TaskStatus   `json:"status" gorm:"type:varchar(20);not null;default:'todo';index"`
	Priority       TaskPriority `json:"priority" gorm:"type:varchar(20);not null;default:'medium'"`
	DueDate        *time.Time   `json:"dueDate,omitempty" gorm:"index"`
	CompletedAt    *time.Time   `json:"completedAt,omitempty"`
	ReminderSentAt *time.Time   `json:"-"`
	ParentID       *uuid.UUID   `json:"parentID,omitempty" gorm:"type:uuid;index"`
	CreatorID      uuid.UUID    `json:"creatorID" gorm:"type:uuid;not null;index"`
	AssigneeID     *uuid.UUID   `json:"assigneeID,omitempty" gorm:"type:uuid;index"`

	Parent      *Task        `json:"parent,omitempty" gorm:"foreignKey:ParentID"`
	Subtasks    []Task       `json:"subtasks,omitempty" gorm:"foreignKey:ParentID"`
	Creator     User         `json:"creator,omitempty" gorm:"foreignKey:CreatorID"`
	Assignee    *User        `json:"assignee,omitempty" gorm:"foreignKey:AssigneeID"`
	Tags        []Tag        `json:"tags,omitempty" gorm:"many2many:task_tags"`
	Attachments []Attachment `json:"attachments,omitempty" gorm:"foreignKey:TaskID"`
}
