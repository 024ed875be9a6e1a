package services

import (
	"fmt"
	"time"

	"github.com/taskito/backend/internal/models"
	"github.com/taskito/backend/pkg/logger"
	"gorm.io/gorm"
)

// ReminderService periodically notifies assignees about tasks whose due date
// falls inside the lookahead window. Each task is reminded at most once
// (reminder_sent_at is stamped together with the notification).
type ReminderService struct {
	DB        *gorm.DB
	Lookahead time.Duration
	stop      chan struct{}
}

func NewReminderService(db *gorm.DB, lookahead time.Duration) *ReminderService {
	return &ReminderService{
		DB:        db,
		Lookahead: lookahead,
		stop:      make(chan struct{}),
	}
}

func (s *ReminderService) Start(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stop:
				return
			}
		}
	}()

	logger.Info("reminder_service_started", map[string]interface{}{
		"interval":  interval.String(),
		"lookahead": s.Lookahead.String(),
	})
}

func (s *ReminderService) Stop() {
	close(s.stop)
}

// Sweep runs one reminder pass. Exported so tests can drive it directly
// without waiting on the ticker.
func (s *ReminderService) Sweep() {
	now := time.Now().UTC()
	deadline := now.Add(s.Lookahead)

	var due []models.Task
	err := s.DB.
		Where("due_date IS NOT NULL AND due_date > ? AND due_date <= ?", now, deadline).
		Where("status <> ?", models.TaskStatusDone).
		Where("assignee_id IS NOT NULL").
		Where("reminder_sent_at IS NULL").
		Find(&due).Error
	if err != nil {
		logger.Error("reminder_sweep_query_failed", err, nil)
		return
	}

	for i := range due {
		task := &due[i]
		err := s.DB.Transaction(func(tx *gorm.DB) error {
			result := tx.Model(&models.Task{}).
				Where("id = ? AND reminder_sent_at IS NULL", task.ID).
				Update("reminder_sent_at", now)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				// Another sweep got there first.
				return nil
			}

			return tx.Create(&models.Notification{
				UserID:      *task.AssigneeID,
				ActorID:     task.CreatorID,
				Type:        models.NotificationTaskDueSoon,
				WorkspaceID: task.WorkspaceID,
				TaskID:      &task.ID,
				Message:     fmt.Sprintf("\"%s\" is due %s", task.Title, task.DueDate.Format("Jan 2 15:04")),
			}).Error
		})
		if err != nil {
			logger.Error("reminder_notification_failed", err, map[string]interface{}{
				"task_id": task.ID.String(),
			})
		}
	}

	if len(due) > 0 {
		logger.Info("reminder_sweep_complete", map[string]interface{}{
			"reminded": len(due),
		})
	}
}
