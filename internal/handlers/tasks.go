package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/taskito/backend/internal/middleware"
	"github.com/taskito/backend/internal/models"
	"github.com/taskito/backend/pkg/logger"
	"github.com/taskito/backend/pkg/utils"
	"gorm.io/gorm"
)

type TasksHandler struct {
	DB *gorm.DB
}

func NewTasksHandler(db *gorm.DB) *TasksHandler {
	return &TasksHandler{DB: db}
}

type createTaskRequest struct {
	Title       string              `json:"title"`
	Description *string             `json:"description"`
	Status      models.TaskStatus   `json:"status"`
	Priority    models.TaskPriority `json:"priority"`
	DueDate     *time.Time          `json:"dueDate"`
	AssigneeID  *uuid.UUID          `json:"assigneeID"`
	ParentID    *uuid.UUID          `json:"parentID"`
}

func (h *TasksHandler) Create(c *fiber.Ctx) error {
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

	var req createTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return utils.Error(c, fiber.StatusBadRequest, "title is required")
	}
	if req.Status == "" {
		req.Status = models.TaskStatusTodo
	}
	if !req.Status.Valid() {
		return utils.Error(c, fiber.StatusBadRequest, "invalid status")
	}
	if req.Priority == "" {
		req.Priority = models.TaskPriorityMedium
	}
	if !req.Priority.Valid() {
		return utils.Error(c, fiber.StatusBadRequest, "invalid priority")
	}

	if req.AssigneeID != nil {
		if _, err := workspaceMembership(h.DB, workspaceID, *req.AssigneeID); err != nil {
			if err == gorm.ErrRecordNotFound {
				return utils.Error(c, fiber.StatusBadRequest, "assignee is not a workspace member")
			}
			return utils.Error(c, fiber.StatusInternalServerError, "failed validating assignee")
		}
	}

	if req.ParentID != nil {
		var parent models.Task
		if err := h.DB.First(&parent, "id = ?", *req.ParentID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return utils.Error(c, fiber.StatusBadRequest, "parent task not found")
			}
			return utils.Error(c, fiber.StatusInternalServerError, "failed validating parent task")
		}
		if parent.WorkspaceID != workspaceID {
			return utils.Error(c, fiber.StatusBadRequest, "parent task belongs to a different workspace")
		}
		if parent.ParentID != nil {
			return utils.Error(c, fiber.StatusBadRequest, "subtasks cannot be nested further")
		}
	}

	task := models.Task{
		WorkspaceID: workspaceID,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		AssigneeID:  req.AssigneeID,
		ParentID:    req.ParentID,
		CreatorID:   currentUser.ID,
	}

	if err := h.DB.Create(&task).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating task")
	}

	if task.AssigneeID != nil && *task.AssigneeID != currentUser.ID {
		h.notify(models.Notification{
			UserID:      *task.AssigneeID,
			ActorID:     currentUser.ID,
			Type:        models.NotificationTaskAssigned,
			WorkspaceID: workspaceID,
			TaskID:      &task.ID,
			Message:     currentUser.FirstName + " assigned \"" + task.Title + "\" to you",
		})
	}

	logger.InfoWithUser(currentUser.ID.String(), "task_created", map[string]interface{}{
		"task_id":      task.ID.String(),
		"workspace_id": workspaceID.String(),
	})

	return utils.Success(c, fiber.StatusCreated, task)
}

func (h *TasksHandler) List(c *fiber.Ctx) error {
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

	p := utils.ParsePagination(c)

	query := h.DB.Model(&models.Task{}).Where("tasks.workspace_id = ?", workspaceID)

	if status := models.TaskStatus(c.Query("status")); status != "" {
		if !status.Valid() {
			return utils.Error(c, fiber.StatusBadRequest, "invalid status")
		}
		query = query.Where("tasks.status = ?", status)
	}
	if assignee := c.Query("assigneeID"); assignee != "" {
		assigneeID, err := parseUUID(assignee)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid assignee id")
		}
		query = query.Where("tasks.assignee_id = ?", assigneeID)
	}
	if parent := c.Query("parentID"); parent != "" {
		parentID, err := parseUUID(parent)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid parent id")
		}
		query = query.Where("tasks.parent_id = ?", parentID)
	} else if c.Query("includeSubtasks") != "true" {
		query = query.Where("tasks.parent_id IS NULL")
	}
	if tag := c.Query("tagID"); tag != "" {
		tagID, err := parseUUID(tag)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid tag id")
		}
		query = query.
			Joins("JOIN task_tags ON task_tags.task_id = tasks.id").
			Where("task_tags.tag_id = ?", tagID)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		searchValue := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(tasks.title) LIKE ?", searchValue)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting tasks")
	}

	var tasks []models.Task
	if err := utils.ApplyPagination(query.Preload("Assignee").Preload("Tags").Order("tasks.created_at DESC"), p).
		Find(&tasks).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing tasks")
	}

	return utils.Paginated(c, tasks, p.Page, p.Limit, total)
}

func (h *TasksHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	taskID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid task id")
	}

	task, _, err := h.authorizeTask(c, taskID, currentUser.ID)
	if err != nil || task == nil {
		return err
	}

	var full models.Task
	if err := h.DB.
		Preload("Assignee").
		Preload("Creator").
		Preload("Tags").
		Preload("Subtasks").
		Preload("Attachments.Uploader").
		First(&full, "id = ?", taskID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading task")
	}

	return utils.Success(c, fiber.StatusOK, full)
}

type updateTaskRequest struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	Priority    *models.TaskPriority `json:"priority"`
	DueDate     *time.Time           `json:"dueDate"`
	AssigneeID  *uuid.UUID           `json:"assigneeID"`
}

func (h *TasksHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	taskID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid task id")
	}

	task, membership, err := h.authorizeTask(c, taskID, currentUser.ID)
	if err != nil || task == nil {
		return err
	}
	if isReadOnlyMember(membership.Role) {
		return utils.Error(c, fiber.StatusForbidden, "guests have read-only access")
	}

	var req updateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return utils.Error(c, fiber.StatusBadRequest, "title cannot be empty")
		}
		updates["title"] = title
	}
	if req.Description != nil {
		trimmed := strings.TrimSpace(*req.Description)
		if trimmed == "" {
			updates["description"] = nil
		} else {
			updates["description"] = trimmed
		}
	}
	if req.Priority != nil {
		if !req.Priority.Valid() {
			return utils.Error(c, fiber.StatusBadRequest, "invalid priority")
		}
		updates["priority"] = *req.Priority
	}
	if req.DueDate != nil {
		updates["due_date"] = *req.DueDate
		updates["reminder_sent_at"] = nil
	}
	if req.AssigneeID != nil {
		if *req.AssigneeID == uuid.Nil {
			updates["assignee_id"] = nil
		} else {
			if _, err := workspaceMembership(h.DB, task.WorkspaceID, *req.AssigneeID); err != nil {
				if err == gorm.ErrRecordNotFound {
					return utils.Error(c, fiber.StatusBadRequest, "assignee is not a workspace member")
				}
				return utils.Error(c, fiber.StatusInternalServerError, "failed validating assignee")
			}
			updates["assignee_id"] = *req.AssigneeID
		}
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	if err := h.DB.Model(&models.Task{}).Where("id = ?", taskID).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating task")
	}

	if req.AssigneeID != nil && *req.AssigneeID != uuid.Nil &&
		*req.AssigneeID != currentUser.ID &&
		(task.AssigneeID == nil || *task.AssigneeID != *req.AssigneeID) {
		h.notify(models.Notification{
			UserID:      *req.AssigneeID,
			ActorID:     currentUser.ID,
			Type:        models.NotificationTaskAssigned,
			WorkspaceID: task.WorkspaceID,
			TaskID:      &task.ID,
			Message:     currentUser.FirstName + " assigned \"" + task.Title + "\" to you",
		})
	}

	var updated models.Task
	if err := h.DB.Preload("Assignee").Preload("Tags").First(&updated, "id = ?", taskID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading updated task")
	}

	return utils.Success(c, fiber.StatusOK, updated)
}

type updateTaskStatusRequest struct {
	Status models.TaskStatus `json:"status"`
}

func (h *TasksHandler) UpdateStatus(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	taskID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid task id")
	}

	task, membership, err := h.authorizeTask(c, taskID, currentUser.ID)
	if err != nil || task == nil {
		return err
	}
	if isReadOnlyMember(membership.Role) {
		return utils.Error(c, fiber.StatusForbidden, "guests have read-only access")
	}

	var req updateTaskStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if !req.Status.Valid() {
		return utils.Error(c, fiber.StatusBadRequest, "invalid status")
	}

	updates := map[string]interface{}{"status": req.Status}
	if req.Status == models.TaskStatusDone && task.Status != models.TaskStatusDone {
		updates["completed_at"] = time.Now().UTC()
	}
	if req.Status != models.TaskStatusDone {
		updates["completed_at"] = nil
	}

	if err := h.DB.Model(&models.Task{}).Where("id = ?", taskID).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating task status")
	}

	if req.Status == models.TaskStatusDone && task.Status != models.TaskStatusDone && task.CreatorID != currentUser.ID {
		h.notify(models.Notification{
			UserID:      task.CreatorID,
			ActorID:     currentUser.ID,
			Type:        models.NotificationTaskCompleted,
			WorkspaceID: task.WorkspaceID,
			TaskID:      &task.ID,
			Message:     currentUser.FirstName + " completed \"" + task.Title + "\"",
		})
	}

	var updated models.Task
	if err := h.DB.First(&updated, "id = ?", taskID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading updated task")
	}

	return utils.Success(c, fiber.StatusOK, updated)
}

func (h *TasksHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	taskID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid task id")
	}

	task, membership, err := h.authorizeTask(c, taskID, currentUser.ID)
	if err != nil || task == nil {
		return err
	}
	if task.CreatorID != currentUser.ID && !canManageWorkspace(membership.Role) {
		return utils.Error(c, fiber.StatusForbidden, "only the creator or a workspace admin can delete a task")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			"DELETE FROM task_tags WHERE task_id = ? OR task_id IN (SELECT id FROM tasks WHERE parent_id = ?)",
			taskID, taskID,
		).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&models.Attachment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("parent_id = ?", taskID).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Task{}, "id = ?", taskID).Error
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting task")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "task deleted"})
}

func (h *TasksHandler) AttachTag(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	taskID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid task id")
	}
	tagID, err := parseUUID(c.Params("tagId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid tag id")
	}

	task, membership, err := h.authorizeTask(c, taskID, currentUser.ID)
	if err != nil || task == nil {
		return err
	}
	if isReadOnlyMember(membership.Role) {
		return utils.Error(c, fiber.StatusForbidden, "guests have read-only access")
	}

	var tag models.Tag
	if err := h.DB.First(&tag, "id = ?", tagID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "tag not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading tag")
	}
	if tag.WorkspaceID != task.WorkspaceID {
		return utils.Error(c, fiber.StatusBadRequest, "tag belongs to a different workspace")
	}

	if err := h.DB.Model(task).Association("Tags").Append(&tag); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed attaching tag")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "tag attached"})
}

func (h *TasksHandler) DetachTag(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	taskID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid task id")
	}
	tagID, err := parseUUID(c.Params("tagId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid tag id")
	}

	task, membership, err := h.authorizeTask(c, taskID, currentUser.ID)
	if err != nil || task == nil {
		return err
	}
	if isReadOnlyMember(membership.Role) {
		return utils.Error(c, fiber.StatusForbidden, "guests have read-only access")
	}

	if err := h.DB.Model(task).Association("Tags").Delete(&models.Tag{BaseModel: models.BaseModel{ID: tagID}}); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed detaching tag")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "tag detached"})
}

// authorizeTask resolves the task and the caller's membership, writing the
// error response itself. A nil task means the response was already sent.
func (h *TasksHandler) authorizeTask(c *fiber.Ctx, taskID, userID uuid.UUID) (*models.Task, *models.WorkspaceMember, error) {
	task, membership, err := taskMembership(h.DB, taskID, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			if task == nil {
				return nil, nil, utils.Error(c, fiber.StatusNotFound, "task not found")
			}
			return nil, nil, utils.Error(c, fiber.StatusForbidden, "workspace access denied")
		}
		return nil, nil, utils.Error(c, fiber.StatusInternalServerError, "failed validating task access")
	}
	return task, membership, nil
}

func (h *TasksHandler) notify(n models.Notification) {
	if err := h.DB.Create(&n).Error; err != nil {
		logger.Error("notification_insert_failed", err, map[string]interface{}{
			"type":    string(n.Type),
			"user_id": n.UserID.String(),
		})
	}
}
