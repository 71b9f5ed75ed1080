package repository

import (
	"context"

	"tokenpool/internal/model"

	"gorm.io/gorm"
)

type DistributionRepository struct {
	db *gorm.DB
}

func NewDistributionRepository(db *gorm.DB) *DistributionRepository {
	return &DistributionRepository{db: db}
}

func (r *DistributionRepository) Create(ctx context.Context, tx *gorm.DB, distribution *model.Distribution) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(distribution).Error
}

func (r *DistributionRepository) ListByRound(ctx context.Context, round int) ([]*model.Distribution, error) {
	var distributions []*model.Distribution
	err := r.db.WithContext(ctx).
		Where("pool_round = ?", round).
		Order("is_charity ASC, token_amount DESC").
		Find(&distributions).Error
	return distributions, err
}

func (r *DistributionRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.Distribution, int64, error) {
	var distributions []*model.Distribution
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Distribution{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&distributions).Error

	return distributions, total, err
}
