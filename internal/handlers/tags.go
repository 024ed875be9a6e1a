package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/taskito/backend/internal/middleware"
	"github.com/taskito/backend/internal/models"
	"github.com/taskito/backend/pkg/utils"
	"gorm.io/gorm"
)

type TagsHandler struct {
	DB *gorm.DB
}

func NewTagsHandler(db *gorm.DB) *TagsHandler {
	return &TagsHandler{DB: db}
}

type createTagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (h *TagsHandler) Create(c *fiber.Ctx) error {
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
	if isReadOnlyMember(membership.Role) {
		return utils.Error(c, fiber.StatusForbidden, "guests have read-only access")
	}

	var req createTagRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return utils.Error(c, fiber.StatusBadRequest, "name is required")
	}
	if req.Color == "" {
		req.Color = "#808080"
	}

	var count int64
	if err := h.DB.Model(&models.Tag{}).
		Where("workspace_id = ? AND LOWER(name) = ?", workspaceID, strings.ToLower(req.Name)).
		Count(&count).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking tag name")
	}
	if count > 0 {
		return utils.Error(c, fiber.StatusConflict, "a tag with this name already exists in the workspace")
	}

	tag := models.Tag{
		WorkspaceID: workspaceID,
		Name:        req.Name,
		Color:       req.Color,
	}
	if err := h.DB.Create(&tag).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating tag")
	}

	return utils.Success(c, fiber.StatusCreated, tag)
}

func (h *TagsHandler) List(c *fiber.Ctx) error {
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

	var tags []models.Tag
	if err := h.DB.
		Where("workspace_id = ?", workspaceID).
		Order("name ASC").
		Find(&tags).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing tags")
	}

	return utils.Success(c, fiber.StatusOK, tags)
}

type updateTagRequest struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

func (h *TagsHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	tagID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid tag id")
	}

	tag, membership, err := h.authorizeTag(c, tagID, currentUser)
	if err != nil || tag == nil {
		return err
	}
	if isReadOnlyMember(membership.Role) {
		return utils.Error(c, fiber.StatusForbidden, "guests have read-only access")
	}

	var req updateTagRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return utils.Error(c, fiber.StatusBadRequest, "name cannot be empty")
		}
		var count int64
		if err := h.DB.Model(&models.Tag{}).
			Where("workspace_id = ? AND LOWER(name) = ? AND id <> ?", tag.WorkspaceID, strings.ToLower(name), tagID).
			Count(&count).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed checking tag name")
		}
		if count > 0 {
			return utils.Error(c, fiber.StatusConflict, "a tag with this name already exists in the workspace")
		}
		updates["name"] = name
	}
	if req.Color != nil {
		color := strings.TrimSpace(*req.Color)
		if color == "" {
			return utils.Error(c, fiber.StatusBadRequest, "color cannot be empty")
		}
		updates["color"] = color
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	if err := h.DB.Model(&models.Tag{}).Where("id = ?", tagID).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating tag")
	}

	var updated models.Tag
	if err := h.DB.First(&updated, "id = ?", tagID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading updated tag")
	}

	return utils.Success(c, fiber.StatusOK, updated)
}

func (h *TagsHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	tagID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid tag id")
	}

	tag, membership, err := h.authorizeTag(c, tagID, currentUser)
	if err != nil || tag == nil {
		return err
	}
	if isReadOnlyMember(membership.Role) {
		return utils.Error(c, fiber.StatusForbidden, "guests have read-only access")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM task_tags WHERE tag_id = ?", tagID).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Tag{}, "id = ?", tagID).Error
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting tag")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "tag deleted"})
}

func (h *TagsHandler) authorizeTag(c *fiber.Ctx, tagID uuid.UUID, currentUser *models.User) (*models.Tag, *models.WorkspaceMember, error) {
	var tag models.Tag
	if err := h.DB.First(&tag, "id = ?", tagID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, utils.Error(c, fiber.StatusNotFound, "tag not found")
		}
		return nil, nil, utils.Error(c, fiber.StatusInternalServerError, "failed loading tag")
	}

	membership, err := workspaceMembership(h.DB, tag.WorkspaceID, currentUser.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, utils.Error(c, fiber.StatusForbidden, "workspace access denied")
		}
		return nil, nil, utils.Error(c, fiber.StatusInternalServerError, "failed validating membership")
	}

	return &tag, membership, nil
}
