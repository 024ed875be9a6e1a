package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/taskito/backend/internal/middleware"
	"github.com/taskito/backend/internal/models"
	"github.com/taskito/backend/internal/services"
	"github.com/taskito/backend/internal/storage"
	"github.com/taskito/backend/pkg/logger"
	"github.com/taskito/backend/pkg/utils"
	"gorm.io/gorm"
)

type WorkspacesHandler struct {
	DB      *gorm.DB
	Storage *storage.MinIOClient
	Audit   *services.AuditService
}

func NewWorkspacesHandler(db *gorm.DB, storageClient *storage.MinIOClient, audit *services.AuditService) *WorkspacesHandler {
	return &WorkspacesHandler{DB: db, Storage: storageClient, Audit: audit}
}

type createWorkspaceRequest struct {
	Name        string               `json:"name"`
	Description *string              `json:"description"`
	Type        models.WorkspaceType `json:"type"`
}

func (h *WorkspacesHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createWorkspaceRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return utils.Error(c, fiber.StatusBadRequest, "name is required")
	}
	if req.Type == "" {
		req.Type = models.WorkspaceTypeProfessional
	}
	if req.Type != models.WorkspaceTypePersonal && req.Type != models.WorkspaceTypeProfessional {
		return utils.Error(c, fiber.StatusBadRequest, "invalid workspace type")
	}

	workspace := models.Workspace{
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		OwnerID:     currentUser.ID,
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&workspace).Error; err != nil {
			return err
		}

		// The creator is the first owner; the membership service guards this
		// invariant for every later mutation.
		membership := models.WorkspaceMember{
			UserID:      currentUser.ID,
			WorkspaceID: workspace.ID,
			Role:        models.MemberRoleOwner,
		}
		return tx.Create(&membership).Error
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating workspace")
	}

	logger.InfoWithUser(currentUser.ID.String(), "workspace_created", map[string]interface{}{
		"workspace_id":   workspace.ID.String(),
		"workspace_name": workspace.Name,
	})
	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &currentUser.ID,
		Action:       "workspace.create",
		ResourceType: "workspace",
		ResourceID:   &workspace.ID,
		Details:      map[string]interface{}{"workspace_name": workspace.Name},
		IPAddress:    c.IP(),
	})

	return utils.Success(c, fiber.StatusCreated, workspace)
}

func (h *WorkspacesHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var workspaces []models.Workspace
	if err := h.DB.
		Model(&models.Workspace{}).
		Joins("JOIN workspace_members ON workspace_members.workspace_id = workspaces.id").
		Where("workspace_members.user_id = ?", currentUser.ID).
		Order("workspaces.created_at DESC").
		Find(&workspaces).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing workspaces")
	}

	return utils.Success(c, fiber.StatusOK, workspaces)
}

func (h *WorkspacesHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	workspaceID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid workspace id")
	}

	if _, err := workspaceMembership(h.DB, workspaceID, currentUser.ID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusForbidden, "workspace access denied")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed validating membership")
	}

	var workspace models.Workspace
	if err := h.DB.Preload("Members.User").First(&workspace, "id = ?", workspaceID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "workspace not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading workspace")
	}

	return utils.Success(c, fiber.StatusOK, workspace)
}

type updateWorkspaceRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (h *WorkspacesHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	workspaceID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid workspace id")
	}

	membership, err := workspaceMembership(h.DB, workspaceID, currentUser.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusForbidden, "workspace access denied")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed validating membership")
	}
	if !canManageWorkspace(membership.Role) {
		return utils.Error(c, fiber.StatusForbidden, "insufficient permissions")
	}

	var req updateWorkspaceRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return utils.Error(c, fiber.StatusBadRequest, "name cannot be empty")
		}
		updates["name"] = name
	}
	if req.Description != nil {
		trimmed := strings.TrimSpace(*req.Description)
		if trimmed == "" {
			updates["description"] = nil
		} else {
			updates["description"] = trimmed
		}
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	result := h.DB.Model(&models.Workspace{}).Where("id = ?", workspaceID).Updates(updates)
	if result.Error != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating workspace")
	}
	if result.RowsAffected == 0 {
		return utils.Error(c, fiber.StatusNotFound, "workspace not found")
	}

	var updated models.Workspace
	if err := h.DB.First(&updated, "id = ?", workspaceID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading updated workspace")
	}

	return utils.Success(c, fiber.StatusOK, updated)
}

func (h *WorkspacesHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	workspaceID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid workspace id")
	}

	membership, err := workspaceMembership(h.DB, workspaceID, currentUser.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusForbidden, "workspace access denied")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed validating membership")
	}
	if membership.Role != models.MemberRoleOwner {
		return utils.Error(c, fiber.StatusForbidden, "only a workspace owner can delete the workspace")
	}

	var attachments []models.Attachment
	if err := h.DB.
		Joins("JOIN tasks ON tasks.id = attachments.task_id").
		Where("tasks.workspace_id = ?", workspaceID).
		Find(&attachments).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading workspace attachments")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			"DELETE FROM task_tags WHERE task_id IN (SELECT id FROM tasks WHERE workspace_id = ?)",
			workspaceID,
		).Error; err != nil {
			return err
		}
		if err := tx.Exec(
			"DELETE FROM attachments WHERE task_id IN (SELECT id FROM tasks WHERE workspace_id = ?)",
			workspaceID,
		).Error; err != nil {
			return err
		}
		if err := tx.Where("workspace_id = ?", workspaceID).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		if err := tx.Where("workspace_id = ?", workspaceID).Delete(&models.Tag{}).Error; err != nil {
			return err
		}
		if err := tx.Where("workspace_id = ?", workspaceID).Delete(&models.Notification{}).Error; err != nil {
			return err
		}
		if err := tx.Where("workspace_id = ?", workspaceID).Delete(&models.WorkspaceMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Workspace{}, "id = ?", workspaceID).Error
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting workspace")
	}

	// Object removal is best-effort; rows are already gone.
	if h.Storage != nil {
		for _, attachment := range attachments {
			_ = h.Storage.Delete(context.Background(), attachment.StoragePath)
		}
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &currentUser.ID,
		Action:       "workspace.delete",
		ResourceType: "workspace",
		ResourceID:   &workspaceID,
		IPAddress:    c.IP(),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "workspace deleted"})
}
