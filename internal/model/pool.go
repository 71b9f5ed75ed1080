package model

import (
	"time"
)

const (
	PoolStatusActive       = "ACTIVE"
	PoolStatusDistributing = "DISTRIBUTING"
	PoolStatusCompleted    = "COMPLETED"
)

// ValidPoolTransitions 奖池轮次状态机
// ACTIVE -> DISTRIBUTING -> COMPLETED，单向流转，轮次不会重开
var ValidPoolTransitions = map[string][]string{
	PoolStatusActive:       {PoolStatusDistributing},
	PoolStatusDistributing: {PoolStatusCompleted},
}

func CanTransitionPoolStatus(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidPoolTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// Pool 奖池轮次表
//
// 【核心不变量】
// 1. 任意时刻最多只有一轮处于 ACTIVE（distribution_round 唯一索引 + CAS 流转保证）
// 2. distribution_round 严格递增，由上一轮分配完成时创建下一轮
// 3. total_tokens 只在 ACTIVE 期间单调增加，与贡献流水同事务写入
type Pool struct {
	ID                        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	DistributionRound         int        `gorm:"uniqueIndex;not null" json:"distribution_round"` // 轮次号，严格递增
	TotalTokens               int64      `gorm:"not null;default:0" json:"total_tokens"`         // 当前累计代币
	TargetTokens              int64      `gorm:"not null" json:"target_tokens"`                  // 目标代币，达到后停止接收贡献
	Status                    string     `gorm:"type:varchar(20);index;not null;default:ACTIVE" json:"status"`
	CharityPercentage         int        `gorm:"not null" json:"charity_percentage"`          // 慈善分配比例（0-100）
	TopContributorsPercentage int        `gorm:"not null" json:"top_contributors_percentage"` // 头部贡献者分配比例（0-100）
	MaxTopContributors        int        `gorm:"not null" json:"max_top_contributors"`        // 获奖名额数
	Version                   int        `gorm:"not null;default:0" json:"version"`           // 乐观锁版本号
	NextDistributionDate      *time.Time `json:"next_distribution_date"`                      // 计划分配时间，达标时写入
	LastDistributionAt        *time.Time `json:"last_distribution_at"`
	CreatedAt                 time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                 time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Pool) TableName() string {
	return "pool"
}
