package channels

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockline-hq/stockline-backend/pkg/db/models"
)

// Repository manages persistence for channels and their product mappings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, channel *models.Channel) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Channel, error)
	FindByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*models.Channel, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Channel, error)
	Update(ctx context.Context, channel *models.Channel) error
	CreateMapping(ctx context.Context, mapping *models.ChannelProductMapping) error
	ListMappings(ctx context.Context, channelID uuid.UUID) ([]models.ChannelProductMapping, error)
	FindMappingByExternalID(ctx context.Context, channelID uuid.UUID, externalProductID string) (*models.ChannelProductMapping, error)
	DeleteMapping(ctx context.Context, channelID, mappingID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a channel repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, channel *models.Channel) error {
	return r.db.WithContext(ctx).Create(channel).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	var channel models.Channel
	if err := r.db.WithContext(ctx).First(&channel, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &channel, nil
}

func (r *repository) FindByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*models.Channel, error) {
	var channel models.Channel
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&channel).Error
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Channel, error) {
	var channels []models.Channel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&channels).Error
	if err != nil {
		return nil, err
	}
	return channels, nil
}

func (r *repository) Update(ctx context.Context, channel *models.Channel) error {
	return r.db.WithContext(ctx).Save(channel).Error
}

func (r *repository) CreateMapping(ctx context.Context, mapping *models.ChannelProductMapping) error {
	return r.db.WithContext(ctx).Create(mapping).Error
}

func (r *repository) ListMappings(ctx context.Context, channelID uuid.UUID) ([]models.ChannelProductMapping, error) {
	var mappings []models.ChannelProductMapping
	err := r.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("created_at ASC").
		Find(&mappings).Error
	if err != nil {
		return nil, err
	}
	return mappings, nil
}

func (r *repository) FindMappingByExternalID(ctx context.Context, channelID uuid.UUID, externalProductID string) (*models.ChannelProductMapping, error) {
	var mapping models.ChannelProductMapping
	err := r.db.WithContext(ctx).
		Where("channel_id = ? AND external_product_id = ?", channelID, externalProductID).
		First(&mapping).Error
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

func (r *repository) DeleteMapping(ctx context.Context, channelID, mappingID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("channel_id = ? AND id = ?", channelID, mappingID).
		Delete(&models.ChannelProductMapping{})
	return result.RowsAffected, result.Error
}
