package repository

import (
	"context"
	"errors"
	"time"

	"tokenpool/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ContributionRepository struct {
	db *gorm.DB
}

func NewContributionRepository(db *gorm.DB) *ContributionRepository {
	return &ContributionRepository{db: db}
}

// Create 追加一条贡献流水
// 必须与奖池 total_tokens 的增量在同一事务内执行（守恒不变量）
func (r *ContributionRepository) Create(ctx context.Context, tx *gorm.DB, contribution *model.Contribution) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(contribution).Error
}

// UpsertAggregate 增量维护轮次内按用户的汇总
// 已有行只累加 total_tokens，first_contributed_at 保持首次写入值不变，
// 并列名次按它先到先排
func (r *ContributionRepository) UpsertAggregate(ctx context.Context, tx *gorm.DB, round int, userID int64, amount int64, contributedAt time.Time) error {
	if tx == nil {
		tx = r.db
	}

	aggregate := &model.ContributionAggregate{
		PoolRound:          round,
		UserID:             userID,
		TotalTokens:        amount,
		FirstContributedAt: contributedAt,
	}

	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "pool_round"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_tokens": gorm.Expr("total_tokens + ?", amount),
			}),
		}).
		Create(aggregate).Error
}

func (r *ContributionRepository) GetAggregate(ctx context.Context, round int, userID int64) (*model.ContributionAggregate, error) {
	var aggregate model.ContributionAggregate
	err := r.db.WithContext(ctx).
		Where("pool_round = ? AND user_id = ?", round, userID).
		First(&aggregate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &aggregate, nil
}

// TopAggregates 轮次内头部贡献者
// 总额降序；总额并列时先贡献的排前面，保证结果全序、可复现
func (r *ContributionRepository) TopAggregates(ctx context.Context, round int, limit int) ([]*model.ContributionAggregate, error) {
	var aggregates []*model.ContributionAggregate
	err := r.db.WithContext(ctx).
		Where("pool_round = ?", round).
		Order("total_tokens DESC, first_contributed_at ASC").
		Limit(limit).
		Find(&aggregates).Error
	return aggregates, err
}

// CountGreater 统计总额严格大于 total 的用户数（排名 = 1 + 该值）
func (r *ContributionRepository) CountGreater(ctx context.Context, round int, total int64, excludeUserID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.ContributionAggregate{}).
		Where("pool_round = ? AND total_tokens > ? AND user_id <> ?", round, total, excludeUserID).
		Count(&count).Error
	return count, err
}

// SumByDay 某一天注入奖池的代币总数（"今日已销毁"看板用）
func (r *ContributionRepository) SumByDay(ctx context.Context, round int, day time.Time) (int64, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	var sum *int64
	err := r.db.WithContext(ctx).
		Model(&model.Contribution{}).
		Where("pool_round = ? AND created_at >= ? AND created_at < ?", round, dayStart, dayEnd).
		Select("SUM(token_amount)").
		Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}

// SumByRound 轮次流水总和（守恒审计任务用）
func (r *ContributionRepository) SumByRound(ctx context.Context, round int) (int64, error) {
	var sum *int64
	err := r.db.WithContext(ctx).
		Model(&model.Contribution{}).
		Where("pool_round = ?", round).
		Select("SUM(token_amount)").
		Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}
