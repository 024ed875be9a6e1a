package handlers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/taskito/backend/internal/middleware"
	"github.com/taskito/backend/internal/models"
	"github.com/taskito/backend/internal/storage"
	"github.com/taskito/backend/pkg/logger"
	"github.com/taskito/backend/pkg/utils"
	"gorm.io/gorm"
)

const maxAttachmentSize = 25 << 20 // 25 MiB

type AttachmentsHandler struct {
	DB      *gorm.DB
	Storage *storage.MinIOClient
}

func NewAttachmentsHandler(db *gorm.DB, storageClient *storage.MinIOClient) *AttachmentsHandler {
	return &AttachmentsHandler{DB: db, Storage: storageClient}
}

func (h *AttachmentsHandler) Upload(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	taskID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid task id")
	}

	task, membership, err := taskMembership(h.DB, taskID, currentUser.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			if task == nil {
				return utils.Error(c, fiber.StatusNotFound, "task not found")
			}
			return utils.Error(c, fiber.StatusForbidden, "workspace access denied")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed validating task access")
	}
	if isReadOnlyMember(membership.Role) {
		return utils.Error(c, fiber.StatusForbidden, "guests have read-only access")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "file is required")
	}
	if fileHeader.Size <= 0 {
		return utils.Error(c, fiber.StatusBadRequest, "file is empty")
	}
	if fileHeader.Size > maxAttachmentSize {
		return utils.Error(c, fiber.StatusRequestEntityTooLarge, "file exceeds the 25MB limit")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed reading uploaded file")
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectName := fmt.Sprintf("%s/%s/%s", task.WorkspaceID, taskID, uuid.New())
	if err := h.Storage.Upload(c.Context(), objectName, file, fileHeader.Size, contentType); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed storing file")
	}

	attachment := models.Attachment{
		TaskID:      taskID,
		UploaderID:  currentUser.ID,
		FileName:    fileHeader.Filename,
		MimeType:    contentType,
		Size:        fileHeader.Size,
		StoragePath: objectName,
	}
	if err := h.DB.Create(&attachment).Error; err != nil {
		_ = h.Storage.Delete(c.Context(), objectName)
		return utils.Error(c, fiber.StatusInternalServerError, "failed saving attachment")
	}

	logger.InfoWithUser(currentUser.ID.String(), "attachment_uploaded", map[string]interface{}{
		"attachment_id": attachment.ID.String(),
		"task_id":       taskID.String(),
		"size":          attachment.Size,
	})

	return utils.Success(c, fiber.StatusCreated, attachment)
}

func (h *AttachmentsHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	taskID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid task id")
	}

	task, _, err := taskMembership(h.DB, taskID, currentUser.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			if task == nil {
				return utils.Error(c, fiber.StatusNotFound, "task not found")
			}
			return utils.Error(c, fiber.StatusForbidden, "workspace access denied")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed validating task access")
	}

	var attachments []models.Attachment
	if err := h.DB.
		Preload("Uploader").
		Where("task_id = ?", taskID).
		Order("created_at DESC").
		Find(&attachments).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing attachments")
	}

	return utils.Success(c, fiber.StatusOK, attachments)
}

// DownloadURL hands out a short-lived presigned link instead of proxying bytes.
func (h *AttachmentsHandler) DownloadURL(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	attachment, _, err := h.authorizeAttachment(c, currentUser)
	if err != nil || attachment == nil {
		return err
	}

	url, err := h.Storage.PresignedGetURL(c.Context(), attachment.StoragePath, 15*time.Minute, attachment.FileName)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating download link")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"url":       url,
		"expiresIn": int((15 * time.Minute).Seconds()),
	})
}

func (h *AttachmentsHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	attachment, membership, err := h.authorizeAttachment(c, currentUser)
	if err != nil || attachment == nil {
		return err
	}
	if attachment.UploaderID != currentUser.ID && !canManageWorkspace(membership.Role) {
		return utils.Error(c, fiber.StatusForbidden, "only the uploader or a workspace admin can delete an attachment")
	}

	if err := h.DB.Delete(&models.Attachment{}, "id = ?", attachment.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting attachment")
	}

	// Row is authoritative; a stranded object gets cleaned up out of band.
	if h.Storage != nil {
		_ = h.Storage.Delete(c.Context(), attachment.StoragePath)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "attachment deleted"})
}

func (h *AttachmentsHandler) authorizeAttachment(c *fiber.Ctx, currentUser *models.User) (*models.Attachment, *models.WorkspaceMember, error) {
	attachmentID, err := parseUUID(c.Params("id"))
	if err != nil {
		return nil, nil, utils.Error(c, fiber.StatusBadRequest, "invalid attachment id")
	}

	var attachment models.Attachment
	if err := h.DB.First(&attachment, "id = ?", attachmentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, utils.Error(c, fiber.StatusNotFound, "attachment not found")
		}
		return nil, nil, utils.Error(c, fiber.StatusInternalServerError, "failed loading attachment")
	}

	task, membership, err := taskMembership(h.DB, attachment.TaskID, currentUser.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			if task == nil {
				return nil, nil, utils.Error(c, fiber.StatusNotFound, "task not found")
			}
			return nil, nil, utils.Error(c, fiber.StatusForbidden, "workspace access denied")
		}
		return nil, nil, utils.Error(c, fiber.StatusInternalServerError, "failed validating task access")
	}

	return &attachment, membership, nil
}
