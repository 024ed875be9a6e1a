package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/taskito/backend/internal/middleware"
	"github.com/taskito/backend/internal/models"
	"github.com/taskito/backend/internal/services"
	"github.com/taskito/backend/pkg/utils"
	"gorm.io/gorm"
)

type MembersHandler struct {
	DB         *gorm.DB
	Membership *services.MembershipService
}

func NewMembersHandler(db *gorm.DB, membership *services.MembershipService) *MembersHandler {
	return &MembersHandler{DB: db, Membership: membership}
}

func (h *MembersHandler) List(c *fiber.Ctx) error {
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

	var members []models.WorkspaceMember
	if err := h.DB.
		Preload("User").
		Where("workspace_id = ?", workspaceID).
		Order("created_at ASC").
		Find(&members).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing members")
	}

	return utils.Success(c, fiber.StatusOK, members)
}

type addMemberRequest struct {
	UserID uuid.UUID         `json:"userID"`
	Role   models.MemberRole `json:"role"`
}

func (h *MembersHandler) Add(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	workspaceID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid workspace id")
	}

	var req addMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.UserID == uuid.Nil {
		return utils.Error(c, fiber.StatusBadRequest, "userID is required")
	}
	if req.Role != "" && !req.Role.Valid() {
		return utils.Error(c, fiber.StatusBadRequest, "invalid role")
	}

	membership, err := h.Membership.AddMember(c.Context(), workspaceID, currentUser.ID, req.UserID, req.Role)
	if err != nil {
		return membershipError(c, err)
	}

	return utils.Success(c, fiber.StatusOK, membership)
}

type changeMemberRoleRequest struct {
	Role models.MemberRole `json:"role"`
}

func (h *MembersHandler) ChangeRole(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	workspaceID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid workspace id")
	}
	targetUserID, err := parseUUID(c.Params("userId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var req changeMemberRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if !req.Role.Valid() {
		return utils.Error(c, fiber.StatusBadRequest, "invalid role")
	}

	membership, err := h.Membership.ChangeRole(c.Context(), workspaceID, currentUser.ID, targetUserID, req.Role)
	if err != nil {
		return membershipError(c, err)
	}

	return utils.Success(c, fiber.StatusOK, membership)
}

func (h *MembersHandler) Remove(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	workspaceID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid workspace id")
	}
	targetUserID, err := parseUUID(c.Params("userId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	if err := h.Membership.RemoveMember(c.Context(), workspaceID, currentUser.ID, targetUserID); err != nil {
		return membershipError(c, err)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "member removed"})
}

// membershipError translates service error kinds into transport statuses.
// Denials keep the specific policy reason so clients can explain the refusal.
func membershipError(c *fiber.Ctx, err error) error {
	var merr *services.MembershipError
	if errors.As(err, &merr) {
		switch merr.Kind {
		case services.ErrKindNotFound:
			return utils.Error(c, fiber.StatusNotFound, merr.Reason)
		case services.ErrKindForbidden:
			return utils.Error(c, fiber.StatusForbidden, merr.Reason)
		case services.ErrKindConflict, services.ErrKindInvariantViolation:
			return utils.Error(c, fiber.StatusConflict, merr.Reason)
		}
	}
	return utils.Error(c, fiber.StatusInternalServerError, "failed processing membership change")
}
