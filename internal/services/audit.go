package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/taskito/backend/internal/models"
	"github.com/taskito/backend/pkg/logger"
	"gorm.io/gorm"
)

type AuditEntry struct {
	UserID       *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   *uuid.UUID
	Details      map[string]interface{}
	IPAddress    string
}

// AuditService writes the append-only audit trail. Handler-level events go
// through the async queue; the membership service records its events inside
// the mutation transaction via Record so the trail commits atomically with
// the change it describes.
type AuditService struct {
	DB    *gorm.DB
	queue chan models.AuditLog
}

func NewAuditService(db *gorm.DB) *AuditService {
	s := &AuditService{
		DB:    db,
		queue: make(chan models.AuditLog, 1000),
	}
	go s.processQueue()
	return s
}

func (s *AuditService) LogAsync(entry AuditEntry) {
	row := auditRow(entry)
	select {
	case s.queue <- row:
	default:
		logger.Warn("audit_queue_full", map[string]interface{}{
			"action":  entry.Action,
			"dropped": true,
		})
	}
}

// Record writes the entry through the caller's transaction. Failures are
// logged, not returned: an audit write must never roll back the mutation it
// documents.
func (s *AuditService) Record(tx *gorm.DB, entry AuditEntry) {
	row := auditRow(entry)
	if err := tx.Create(&row).Error; err != nil {
		logger.Error("audit_log_insert_failed", err, map[string]interface{}{
			"action": entry.Action,
		})
	}
}

func (s *AuditService) processQueue() {
	for row := range s.queue {
		if err := s.DB.Create(&row).Error; err != nil {
			logger.Error("audit_log_insert_failed", err, map[string]interface{}{
				"action": row.Action,
			})
		}
	}
}

func auditRow(entry AuditEntry) models.AuditLog {
	return models.AuditLog{
		UserID:       entry.UserID,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Details:      entry.Details,
		IPAddress:    entry.IPAddress,
		CreatedAt:    time.Now().UTC(),
	}
}
