package repository

import (
	"context"
	"errors"
	"time"

	"tokenpool/internal/model"

	"gorm.io/gorm"
)

var (
	ErrPoolNotFound      = errors.New("奖池轮次不存在")
	ErrNoActivePool      = errors.New("当前没有进行中的奖池轮次")
	ErrPoolStatusInvalid = errors.New("奖池状态不合法")
)

type PoolRepository struct {
	db *gorm.DB
}

func NewPoolRepository(db *gorm.DB) *PoolRepository {
	return &PoolRepository{db: db}
}

func (r *PoolRepository) Create(ctx context.Context, tx *gorm.DB, pool *model.Pool) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(pool).Error
}

// GetActive 查询当前进行中的轮次
// ACTIVE 轮次最多只有一个；达标到实际结算之间的窗口内可能一个都没有
func (r *PoolRepository) GetActive(ctx context.Context) (*model.Pool, error) {
	var pool model.Pool
	err := r.db.WithContext(ctx).
		Where("status = ?", model.PoolStatusActive).
		Order("distribution_round DESC").
		First(&pool).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActivePool
		}
		return nil, err
	}
	return &pool, nil
}

func (r *PoolRepository) GetByRound(ctx context.Context, round int) (*model.Pool, error) {
	var pool model.Pool
	err := r.db.WithContext(ctx).Where("distribution_round = ?", round).First(&pool).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPoolNotFound
		}
		return nil, err
	}
	return &pool, nil
}

// AddTokens 累加奖池代币
// 增量直接写在 SQL 表达式里并限定 status=ACTIVE，
// 两个并发销毁不可能都基于同一个旧值计算总额（避免丢失更新）
func (r *PoolRepository) AddTokens(ctx context.Context, tx *gorm.DB, round int, amount int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Pool{}).
		Where("distribution_round = ? AND status = ?", round, model.PoolStatusActive).
		Updates(map[string]interface{}{
			"total_tokens": gorm.Expr("total_tokens + ?", amount),
			"version":      gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrPoolStatusInvalid
	}

	return nil
}

// MarkDistributingIfTargetReached 达标翻转（CAS）
// 达标判断直接写在 WHERE 里（total_tokens >= target_tokens），
// 与累加在同一事务内执行时不存在"读旧值误判"的窗口；
// 没翻转不算错误，返回 false 表示尚未达标或已被并发翻转
func (r *PoolRepository) MarkDistributingIfTargetReached(ctx context.Context, tx *gorm.DB, round int, nextDistributionDate time.Time) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Pool{}).
		Where("distribution_round = ? AND status = ? AND total_tokens >= target_tokens",
			round, model.PoolStatusActive).
		Updates(map[string]interface{}{
			"status":                 model.PoolStatusDistributing,
			"next_distribution_date": &nextDistributionDate,
			"version":                gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdateStatus 轮次状态流转（CAS）
// WHERE 带上 fromStatus，并发的重复流转只会成功一次
func (r *PoolRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, round int, fromStatus, toStatus string, extra map[string]interface{}) error {
	if !model.CanTransitionPoolStatus(fromStatus, toStatus) {
		return ErrPoolStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"status": toStatus,
	}
	for k, v := range extra {
		updates[k] = v
	}

	result := tx.WithContext(ctx).
		Model(&model.Pool{}).
		Where("distribution_round = ? AND status = ?", round, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrPoolStatusInvalid
	}

	return nil
}

// GetDueDistributions 查询已到计划分配时间的 DISTRIBUTING 轮次（后台结算任务用）
func (r *PoolRepository) GetDueDistributions(ctx context.Context, now time.Time, limit int) ([]*model.Pool, error) {
	var pools []*model.Pool
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_distribution_date IS NOT NULL AND next_distribution_date <= ?",
			model.PoolStatusDistributing, now).
		Limit(limit).
		Find(&pools).Error
	return pools, err
}

// GetLatest 最近一轮（达标到结算之间没有 ACTIVE 轮次时，看板回落到这一轮）
func (r *PoolRepository) GetLatest(ctx context.Context) (*model.Pool, error) {
	var pool model.Pool
	err := r.db.WithContext(ctx).
		Order("distribution_round DESC").
		First(&pool).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPoolNotFound
		}
		return nil, err
	}
	return &pool, nil
}

func (r *PoolRepository) ListActiveRounds(ctx context.Context, limit int) ([]*model.Pool, error) {
	var pools []*model.Pool
	err := r.db.WithContext(ctx).
		Where("status = ?", model.PoolStatusActive).
		Limit(limit).
		Find(&pools).Error
	return pools, err
}
