package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/taskito/backend/internal/models"
	"github.com/taskito/backend/internal/policy"
	"github.com/taskito/backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MembershipErrorKind string

const (
	ErrKindNotFound           MembershipErrorKind = "not_found"
	ErrKindForbidden          MembershipErrorKind = "forbidden"
	ErrKindConflict           MembershipErrorKind = "conflict"
	ErrKindInvariantViolation MembershipErrorKind = "invariant_violation"
)

// MembershipError carries a machine-readable kind and the human-readable
// reason from the policy rule (or invariant guard) that produced it.
type MembershipError struct {
	Kind   MembershipErrorKind
	Reason string
}

func (e *MembershipError) Error() string {
	return e.Reason
}

func notFound(reason string) *MembershipError {
	return &MembershipError{Kind: ErrKindNotFound, Reason: reason}
}

func forbidden(reason string) *MembershipError {
	return &MembershipError{Kind: ErrKindForbidden, Reason: reason}
}

func conflict(reason string) *MembershipError {
	return &MembershipError{Kind: ErrKindConflict, Reason: reason}
}

func invariantViolation(reason string) *MembershipError {
	return &MembershipError{Kind: ErrKindInvariantViolation, Reason: reason}
}

const reasonLastOwner = "a workspace must retain at least one owner"

// MembershipService orchestrates policy decisions with the membership table.
// Every mutation runs inside one transaction; on Postgres the workspace's
// membership rows are locked with SELECT ... FOR UPDATE before the owner
// count is read, so two concurrent mutations cannot jointly remove the last
// owner. SQLite test databases serialize on their single connection instead.
type MembershipService struct {
	DB    *gorm.DB
	Audit *AuditService
}

func NewMembershipService(db *gorm.DB, audit *AuditService) *MembershipService {
	return &MembershipService{DB: db, Audit: audit}
}

func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func (s *MembershipService) AddMember(ctx context.Context, workspaceID, actingUserID, targetUserID uuid.UUID, role models.MemberRole) (*models.WorkspaceMember, error) {
	if role == "" {
		role = models.MemberRoleMember
	}

	var created models.WorkspaceMember
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		workspace, err := loadWorkspace(tx, workspaceID)
		if err != nil {
			return err
		}

		acting, err := loadMembership(lockForUpdate(tx), workspaceID, actingUserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("not a member of this workspace")
			}
			return err
		}

		if decision := policy.CanAddMember(acting.Role); !decision.Allowed {
			return forbidden(decision.Reason)
		}
		if role == models.MemberRoleOwner && acting.Role != models.MemberRoleOwner {
			return forbidden(policy.ReasonOwnerRoleGate)
		}
		if role == models.MemberRoleAdmin && acting.Role != models.MemberRoleOwner {
			return forbidden(policy.ReasonAdminOnAdmin)
		}

		var targetUser models.User
		if err := tx.First(&targetUser, "id = ?", targetUserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("user not found")
			}
			return err
		}

		var existing models.WorkspaceMember
		err = tx.First(&existing, "workspace_id = ? AND user_id = ?", workspaceID, targetUserID).Error
		if err == nil {
			return conflict("user is already a member")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		created = models.WorkspaceMember{
			UserID:      targetUserID,
			WorkspaceID: workspaceID,
			Role:        role,
		}
		if err := tx.Create(&created).Error; err != nil {
			// The unique (user, workspace) index can still fire under
			// concurrent adds; reclassify instead of leaking the driver error.
			if isDuplicateKeyError(err) {
				return conflict("user is already a member")
			}
			return err
		}

		s.Audit.Record(tx, AuditEntry{
			UserID:       &actingUserID,
			Action:       "workspace.member_add",
			ResourceType: "workspace",
			ResourceID:   &workspaceID,
			Details: map[string]interface{}{
				"target_user_id": targetUserID.String(),
				"role":           string(role),
				"workspace_name": workspace.Name,
			},
		})

		return notifyMembershipChange(tx, notification{
			recipient:   targetUserID,
			actor:       actingUserID,
			kind:        models.NotificationMemberAdded,
			workspaceID: workspaceID,
			message:     fmt.Sprintf("%s added you to \"%s\"", actorName(tx, actingUserID), workspace.Name),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.InfoWithUser(actingUserID.String(), "workspace_member_added", map[string]interface{}{
		"workspace_id":   workspaceID.String(),
		"target_user_id": targetUserID.String(),
		"role":           string(role),
	})
	return &created, nil
}

func (s *MembershipService) ChangeRole(ctx context.Context, workspaceID, actingUserID, targetUserID uuid.UUID, newRole models.MemberRole) (*models.WorkspaceMember, error) {
	var updated models.WorkspaceMember
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		workspace, err := loadWorkspace(tx, workspaceID)
		if err != nil {
			return err
		}

		acting, err := loadMembership(lockForUpdate(tx), workspaceID, actingUserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("not a member of this workspace")
			}
			return err
		}

		target, err := loadMembership(lockForUpdate(tx), workspaceID, targetUserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("member not found")
			}
			return err
		}

		self := actingUserID == targetUserID
		if decision := policy.CanChangeRole(acting.Role, target.Role, newRole, self); !decision.Allowed {
			return forbidden(decision.Reason)
		}

		// Defense in depth: the policy's self-target rule blocks the common
		// case, but a second owner demoting the last other owner must be
		// caught by counting remaining owners inside the transaction.
		if target.Role == models.MemberRoleOwner && newRole != models.MemberRoleOwner {
			if err := ensureAnotherOwner(tx, workspaceID); err != nil {
				return err
			}
		}

		previousRole := target.Role
		if err := tx.Model(&models.WorkspaceMember{}).
			Where("id = ?", target.ID).
			Update("role", newRole).Error; err != nil {
			return err
		}
		target.Role = newRole
		updated = *target

		if err := repointDenormalizedOwner(tx, workspace, targetUserID); err != nil {
			return err
		}

		s.Audit.Record(tx, AuditEntry{
			UserID:       &actingUserID,
			Action:       "workspace.member_role_change",
			ResourceType: "workspace",
			ResourceID:   &workspaceID,
			Details: map[string]interface{}{
				"target_user_id": targetUserID.String(),
				"previous_role":  string(previousRole),
				"new_role":       string(newRole),
				"workspace_name": workspace.Name,
			},
		})

		return notifyMembershipChange(tx, notification{
			recipient:   targetUserID,
			actor:       actingUserID,
			kind:        models.NotificationRoleChanged,
			workspaceID: workspaceID,
			message:     fmt.Sprintf("%s changed your role in \"%s\" to %s", actorName(tx, actingUserID), workspace.Name, newRole),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.InfoWithUser(actingUserID.String(), "workspace_member_role_changed", map[string]interface{}{
		"workspace_id":   workspaceID.String(),
		"target_user_id": targetUserID.String(),
		"new_role":       string(newRole),
	})
	return &updated, nil
}

func (s *MembershipService) RemoveMember(ctx context.Context, workspaceID, actingUserID, targetUserID uuid.UUID) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		workspace, err := loadWorkspace(tx, workspaceID)
		if err != nil {
			return err
		}

		acting, err := loadMembership(lockForUpdate(tx), workspaceID, actingUserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("not a member of this workspace")
			}
			return err
		}

		target, err := loadMembership(lockForUpdate(tx), workspaceID, targetUserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("member not found")
			}
			return err
		}

		self := actingUserID == targetUserID
		if decision := policy.CanRemoveMember(acting.Role, target.Role, self); !decision.Allowed {
			return forbidden(decision.Reason)
		}

		if target.Role == models.MemberRoleOwner {
			if err := ensureAnotherOwner(tx, workspaceID); err != nil {
				return err
			}
		}

		if err := tx.Delete(&models.WorkspaceMember{}, "id = ?", target.ID).Error; err != nil {
			return err
		}

		if err := repointDenormalizedOwner(tx, workspace, targetUserID); err != nil {
			return err
		}

		s.Audit.Record(tx, AuditEntry{
			UserID:       &actingUserID,
			Action:       "workspace.member_remove",
			ResourceType: "workspace",
			ResourceID:   &workspaceID,
			Details: map[string]interface{}{
				"target_user_id": targetUserID.String(),
				"removed_role":   string(target.Role),
				"workspace_name": workspace.Name,
			},
		})

		if self {
			return nil
		}
		return notifyMembershipChange(tx, notification{
			recipient:   targetUserID,
			actor:       actingUserID,
			kind:        models.NotificationMemberRemoved,
			workspaceID: workspaceID,
			message:     fmt.Sprintf("%s removed you from \"%s\"", actorName(tx, actingUserID), workspace.Name),
		})
	})
	if err != nil {
		return err
	}

	logger.InfoWithUser(actingUserID.String(), "workspace_member_removed", map[string]interface{}{
		"workspace_id":   workspaceID.String(),
		"target_user_id": targetUserID.String(),
	})
	return nil
}

func loadWorkspace(tx *gorm.DB, workspaceID uuid.UUID) (*models.Workspace, error) {
	var workspace models.Workspace
	if err := tx.First(&workspace, "id = ?", workspaceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("workspace not found")
		}
		return nil, err
	}
	return &workspace, nil
}

func loadMembership(tx *gorm.DB, workspaceID, userID uuid.UUID) (*models.WorkspaceMember, error) {
	var membership models.WorkspaceMember
	err := tx.First(&membership, "workspace_id = ? AND user_id = ?", workspaceID, userID).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// ensureAnotherOwner rejects demoting or removing an owner when the workspace
// would be left with none. Callers invoke it inside the mutation transaction
// after the policy allowed the change.
func ensureAnotherOwner(tx *gorm.DB, workspaceID uuid.UUID) error {
	count, err := ownerCount(lockForUpdate(tx), workspaceID)
	if err != nil {
		return err
	}
	if count <= 1 {
		return invariantViolation(reasonLastOwner)
	}
	return nil
}

func ownerCount(tx *gorm.DB, workspaceID uuid.UUID) (int64, error) {
	var count int64
	err := tx.Model(&models.WorkspaceMember{}).
		Where("workspace_id = ? AND role = ?", workspaceID, models.MemberRoleOwner).
		Count(&count).Error
	return count, err
}

// repointDenormalizedOwner keeps Workspace.OwnerID referencing a member that
// still holds the owner role after the given user left or was demoted.
func repointDenormalizedOwner(tx *gorm.DB, workspace *models.Workspace, changedUserID uuid.UUID) error {
	if workspace.OwnerID != changedUserID {
		return nil
	}

	var replacement models.WorkspaceMember
	err := tx.
		Where("workspace_id = ? AND role = ?", workspace.ID, models.MemberRoleOwner).
		Order("created_at ASC").
		First(&replacement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// The invariant guards make this unreachable; surface it loudly
			// rather than leaving a dangling owner reference.
			return invariantViolation(reasonLastOwner)
		}
		return err
	}
	if replacement.UserID == workspace.OwnerID {
		return nil
	}

	return tx.Model(&models.Workspace{}).
		Where("id = ?", workspace.ID).
		Update("owner_id", replacement.UserID).Error
}

type notification struct {
	recipient   uuid.UUID
	actor       uuid.UUID
	kind        models.NotificationType
	workspaceID uuid.UUID
	message     string
}

func notifyMembershipChange(tx *gorm.DB, n notification) error {
	return tx.Create(&models.Notification{
		UserID:      n.recipient,
		ActorID:     n.actor,
		Type:        n.kind,
		WorkspaceID: n.workspaceID,
		Message:     n.message,
	}).Error
}

func actorName(tx *gorm.DB, userID uuid.UUID) string {
	var user models.User
	if err := tx.Select("first_name", "last_name").First(&user, "id = ?", userID).Error; err != nil {
		return "Someone"
	}
	return strings.TrimSpace(user.FirstName + " " + user.LastName)
}

func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
