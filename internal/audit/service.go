// Package audit records every mutating back-office action with before/after
// snapshots, and can restore deleted or archived records from those
// snapshots.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velogear/velogear-backend/pkg/db/models"
	"github.com/velogear/velogear-backend/pkg/enums"
	pkgerrors "github.com/velogear/velogear-backend/pkg/errors"
	"github.com/velogear/velogear-backend/pkg/logger"
	"github.com/velogear/velogear-backend/pkg/pagination"
)

// Actor identifies the admin performing the action.
type Actor struct {
	ID    uuid.UUID
	Email *string
	Name  *string
}

// Entry is one action to record.
type Entry struct {
	Action     enums.AuditAction
	EntityType enums.AuditEntity
	EntityID   *string
	Actor      Actor
	Metadata   map[string]any
	Before     map[string]any
	After      map[string]any
}

// ListFilter narrows audit listings.
type ListFilter struct {
	EntityType *enums.AuditEntity
	Action     *enums.AuditAction
	Page       pagination.Params
}

// Service records and replays admin actions.
type Service interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, filter ListFilter) ([]models.AdminAuditLog, error)
	Restore(ctx context.Context, logID uuid.UUID, actorID uuid.UUID) (*models.AdminAuditLog, error)
}

type service struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewService builds the audit service.
func NewService(conn *gorm.DB, log *logger.Logger) (Service, error) {
	if conn == nil {
		return nil, fmt.Errorf("db required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{db: conn, log: log}, nil
}

// Snapshot converts a model into the jsonb shape stored in before/after
// columns. Restores decode the same shape back, so both directions stay
// consistent.
func Snapshot(v any) map[string]any {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func (s *service) Record(ctx context.Context, entry Entry) error {
	if entry.Actor.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "audit actor required")
	}
	row := models.AdminAuditLog{
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		ActorID:    entry.Actor.ID,
		ActorEmail: entry.Actor.Email,
		ActorName:  entry.Actor.Name,
		Metadata:   entry.Metadata,
		BeforeData: entry.Before,
		AfterData:  entry.After,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record audit entry")
	}
	return nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]models.AdminAuditLog, error) {
	query := s.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(filter.Page.Limit))
	if filter.EntityType != nil {
		query = query.Where("entity_type = ?", *filter.EntityType)
	}
	if filter.Action != nil {
		query = query.Where("action = ?", *filter.Action)
	}
	if cursor, err := pagination.ParseCursor(filter.Page.Cursor); err != nil {
		return nil, err
	} else if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var logs []models.AdminAuditLog
	if err := query.Find(&logs).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list audit logs")
	}
	return logs, nil
}

// Restore undoes a destructive action using the before snapshot. Supported:
// product delete, product archive, voucher delete. Each log restores at most
// once.
func (s *service) Restore(ctx context.Context, logID uuid.UUID, actorID uuid.UUID) (*models.AdminAuditLog, error) {
	if logID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "audit log id required")
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}

	var row models.AdminAuditLog
	err := s.db.WithContext(ctx).Where("id = ?", logID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "audit log not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load audit log")
	}
	if row.RestoredAt != nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "record already restored")
	}
	if row.BeforeData == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no snapshot to restore from")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.applyRestore(ctx, tx, &row); err != nil {
			return err
		}
		now := time.Now().UTC()
		return tx.WithContext(ctx).
			Model(&models.AdminAuditLog{}).
			Where("id = ? AND restored_at IS NULL", row.ID).
			Updates(map[string]any{"restored_at": now, "restored_by": actorID}).Error
	})
	if err != nil {
		var typed *pkgerrors.Error
		if errors.As(err, &typed) {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore record")
	}

	s.log.Info(s.log.WithField(ctx, "audit_log_id", row.ID.String()), "audit record restored")
	return s.reload(ctx, row.ID)
}

func (s *service) applyRestore(ctx context.Context, tx *gorm.DB, row *models.AdminAuditLog) error {
	switch {
	case row.EntityType == enums.AuditEntityProduct && row.Action == enums.AuditActionDelete:
		var product models.Product
		if err := decodeSnapshot(row.BeforeData, &product); err != nil {
			return err
		}
		return tx.WithContext(ctx).Create(&product).Error

	case row.EntityType == enums.AuditEntityProduct && row.Action == enums.AuditActionArchive:
		var product models.Product
		if err := decodeSnapshot(row.BeforeData, &product); err != nil {
			return err
		}
		return tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ?", product.ID).
			Updates(map[string]any{"is_archived": false, "archived_at": nil, "archived_by": nil}).Error

	case row.EntityType == enums.AuditEntityVoucher && row.Action == enums.AuditActionDelete:
		var voucher models.Voucher
		if err := decodeSnapshot(row.BeforeData, &voucher); err != nil {
			return err
		}
		return tx.WithContext(ctx).Create(&voucher).Error

	default:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "restore not supported for this action")
	}
}

func decodeSnapshot(data map[string]any, target any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode snapshot")
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode snapshot")
	}
	return nil
}

func (s *service) reload(ctx context.Context, id uuid.UUID) (*models.AdminAuditLog, error) {
	var row models.AdminAuditLog
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload audit log")
	}
	return &row, nil
}
