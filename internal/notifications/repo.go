package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/pagination"
)

// Inbox is whose notifications a query sees: rows addressed to the user, and
// for admins also the staff rows that carry no recipient.
type Inbox struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

func (i Inbox) scope(db *gorm.DB) *gorm.DB {
	if i.Role == enums.ActorRoleAdmin {
		return db.Where("(recipient_id = ? OR (recipient_id IS NULL AND audience = ?))", i.UserID, enums.ActorRoleAdmin)
	}
	return db.Where("recipient_id = ?", i.UserID)
}

type pageRequest struct {
	Limit      int
	Cursor     *pagination.Cursor
	UnreadOnly bool
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, inbox Inbox, page pageRequest) ([]models.Notification, *pagination.Cursor, error)
	MarkRead(ctx context.Context, inbox Inbox, notificationID uuid.UUID, now time.Time) (bool, error)
	DeleteReadBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &gormRepository{db: tx}
}

func (r *gormRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *gormRepository) List(ctx context.Context, inbox Inbox, page pageRequest) ([]models.Notification, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.Notification{}).Scopes(inbox.scope)
	if page.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}

	var rows []models.Notification
	if err := query.Scopes(pagination.Keyset(page.Cursor, page.Limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	items, next := pagination.Page(rows, page.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	return items, next, nil
}

// MarkRead keeps the first read_at, so marking twice is a no-op. It reports
// whether the inbox holds the notification at all.
func (r *gormRepository) MarkRead(ctx context.Context, inbox Inbox, notificationID uuid.UUID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ?", notificationID).
		Scopes(inbox.scope).
		UpdateColumn("read_at", gorm.Expr("COALESCE(read_at, ?)", now))
	return res.RowsAffected > 0, res.Error
}

// DeleteReadBefore removes read notifications created before cutoff. Unread
// rows are kept regardless of age.
func (r *gormRepository) DeleteReadBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	res := tx.WithContext(ctx).
		Where("read_at IS NOT NULL AND created_at < ?", cutoff).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
