package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/taskito/backend/internal/middleware"
	"github.com/taskito/backend/internal/models"
	"github.com/taskito/backend/pkg/utils"
	"gorm.io/gorm"
)

type DashboardHandler struct {
	DB *gorm.DB
}

func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{DB: db}
}

type dashboardStats struct {
	ByStatus     map[string]int64 `json:"byStatus"`
	ByPriority   map[string]int64 `json:"byPriority"`
	Overdue      int64            `json:"overdue"`
	DueThisWeek  int64            `json:"dueThisWeek"`
	AssignedToMe int64            `json:"assignedToMe"`
	RecentTasks  []models.Task    `json:"recentTasks"`
}

func (h *DashboardHandler) Summary(c *fiber.Ctx) error {
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

	stats := dashboardStats{
		ByStatus:   map[string]int64{},
		ByPriority: map[string]int64{},
	}

	type bucketCount struct {
		Bucket string
		Count  int64
	}

	var statusCounts []bucketCount
	if err := h.DB.Model(&models.Task{}).
		Select("status AS bucket, COUNT(*) AS count").
		Where("workspace_id = ?", workspaceID).
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed aggregating task status")
	}
	for _, row := range statusCounts {
		stats.ByStatus[row.Bucket] = row.Count
	}

	var priorityCounts []bucketCount
	if err := h.DB.Model(&models.Task{}).
		Select("priority AS bucket, COUNT(*) AS count").
		Where("workspace_id = ?", workspaceID).
		Group("priority").
		Scan(&priorityCounts).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed aggregating task priority")
	}
	for _, row := range priorityCounts {
		stats.ByPriority[row.Bucket] = row.Count
	}

	now := time.Now().UTC()
	weekEnd := now.Add(7 * 24 * time.Hour)

	if err := h.DB.Model(&models.Task{}).
		Where("workspace_id = ? AND status <> ? AND due_date IS NOT NULL AND due_date < ?",
			workspaceID, models.TaskStatusDone, now).
		Count(&stats.Overdue).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting overdue tasks")
	}

	if err := h.DB.Model(&models.Task{}).
		Where("workspace_id = ? AND status <> ? AND due_date >= ? AND due_date < ?",
			workspaceID, models.TaskStatusDone, now, weekEnd).
		Count(&stats.DueThisWeek).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting upcoming tasks")
	}

	if err := h.DB.Model(&models.Task{}).
		Where("workspace_id = ? AND status <> ? AND assignee_id = ?",
			workspaceID, models.TaskStatusDone, currentUser.ID).
		Count(&stats.AssignedToMe).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting assigned tasks")
	}

	if err := h.DB.
		Preload("Assignee").
		Where("workspace_id = ?", workspaceID).
		Order("created_at DESC").
		Limit(5).
		Find(&stats.RecentTasks).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading recent tasks")
	}

	return utils.Success(c, fiber.StatusOK, stats)
}
