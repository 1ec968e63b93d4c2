package agentactions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stockline-hq/stockline-backend/pkg/db/models"
	"github.com/stockline-hq/stockline-backend/pkg/enums"
)

// Repository manages persistence for agent actions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, action *models.AgentAction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.AgentAction, error)
	ListPending(ctx context.Context, limit int) ([]models.AgentAction, error)
	Claim(ctx context.Context, id uuid.UUID, target enums.AgentActionStatus, resolvedBy uuid.UUID, resolvedAt time.Time) (int64, error)
	UpdateProductPrice(ctx context.Context, productID uuid.UUID, price decimal.Decimal) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an agent action repository bound to the provided
// database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, action *models.AgentAction) error {
	return r.db.WithContext(ctx).Create(action).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.AgentAction, error) {
	var action models.AgentAction
	if err := r.db.WithContext(ctx).First(&action, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &action, nil
}

func (r *repository) ListPending(ctx context.Context, limit int) ([]models.AgentAction, error) {
	if limit <= 0 {
		limit = 50
	}
	var actions []models.AgentAction
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.AgentActionStatusPendingApproval).
		Order("created_at ASC").
		Limit(limit).
		Find(&actions).Error
	if err != nil {
		return nil, err
	}
	return actions, nil
}

// Claim performs the conditional transition out of pending_approval and
// reports how many rows it moved. Zero means another request won the race;
// the caller must treat the action as already resolved.
func (r *repository) Claim(ctx context.Context, id uuid.UUID, target enums.AgentActionStatus, resolvedBy uuid.UUID, resolvedAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.AgentAction{}).
		Where("id = ? AND status = ?", id, enums.AgentActionStatusPendingApproval).
		Updates(map[string]interface{}{
			"status":      target,
			"resolved_by": resolvedBy,
			"resolved_at": resolvedAt,
		})
	return result.RowsAffected, result.Error
}

func (r *repository) UpdateProductPrice(ctx context.Context, productID uuid.UUID, price decimal.Decimal) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("unit_price", price)
	return result.RowsAffected, result.Error
}
