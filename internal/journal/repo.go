package journal

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-orderdesk/pkg/db/models"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/pagination"
)

// Repository exposes persistence helpers for dispatch attempts.
type Repository interface {
	Create(ctx context.Context, attempt *models.DispatchAttempt) error
	ListForOrder(ctx context.Context, params listParams) ([]models.DispatchAttempt, *pagination.Cursor, error)
	DeleteBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a journal repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listParams struct {
	Scope   string
	OrderID string
	Limit   int
	Cursor  *pagination.Cursor
}

func (r *repositoryImpl) Create(ctx context.Context, attempt *models.DispatchAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *repositoryImpl) ListForOrder(ctx context.Context, params listParams) ([]models.DispatchAttempt, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Model(&models.DispatchAttempt{}).
		Where("scope = ? AND order_id = ?", params.Scope, params.OrderID)
	if params.Cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", params.Cursor.CreatedAt, params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var attempts []models.DispatchAttempt
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&attempts).Error; err != nil {
		return nil, nil, err
	}

	if len(attempts) > normalized {
		last := attempts[normalized-1]
		attempts = attempts[:normalized]
		return attempts, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return attempts, nil, nil
}

// DeleteBefore purges attempts older than cutoff. A nil tx uses the repository connection.
func (r *repositoryImpl) DeleteBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	result := conn.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.DispatchAttempt{})
	return result.RowsAffected, result.Error
}
