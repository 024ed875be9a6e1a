package handlers

import (
	"strings"

	"github.com/google/uuid"
	"github.com/taskito/backend/internal/models"
	"gorm.io/gorm"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

func workspaceMembership(db *gorm.DB, workspaceID, userID uuid.UUID) (*models.WorkspaceMember, error) {
	var membership models.WorkspaceMember
	err := db.First(&membership, "workspace_id = ? AND user_id = ?", workspaceID, userID).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// taskMembership loads a task together with the caller's membership in the
// task's workspace. Access to tasks, tags and attachments always derives from
// that single membership; there is no per-item sharing.
func taskMembership(db *gorm.DB, taskID, userID uuid.UUID) (*models.Task, *models.WorkspaceMember, error) {
	var task models.Task
	if err := db.First(&task, "id = ?", taskID).Error; err != nil {
		return nil, nil, err
	}

	membership, err := workspaceMembership(db, task.WorkspaceID, userID)
	if err != nil {
		return &task, nil, err
	}
	return &task, membership, nil
}

func canManageWorkspace(role models.MemberRole) bool {
	return role == models.MemberRoleOwner || role == models.MemberRoleAdmin
}

func isReadOnlyMember(role models.MemberRole) bool {
	return role == models.MemberRoleGuest
}
