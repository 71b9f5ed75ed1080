package model

import (
	"time"
)

// Contribution 贡献流水表
// 每次销毁 NFT 产生一条流水，是排行榜和对账的核心依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. 与奖池 total_tokens 的增量在同一事务写入 —— 保证守恒：
//    sum(token_amount where pool_round=r) == Pool(r).total_tokens
type Contribution struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ContributionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"contribution_no"` // 流水号（全局唯一）
	UserID         int64     `gorm:"index;not null" json:"user_id"`
	NftID          int64     `gorm:"uniqueIndex;not null" json:"nft_id"` // 一件 NFT 只能销毁一次
	TokenAmount    int64     `gorm:"not null" json:"token_amount"`       // 本次注入奖池的代币数
	PoolRound      int       `gorm:"index;not null" json:"pool_round"`   // 归属轮次
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Contribution) TableName() string {
	return "contribution"
}

// ContributionAggregate 轮次内按用户的贡献汇总表
// 每写一条贡献流水就增量更新一行，排名查询走这张表而不是扫流水
// 写放大换读性能：排名的查询频率远高于销毁的写入频率
type ContributionAggregate struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PoolRound          int       `gorm:"uniqueIndex:uk_round_user;not null" json:"pool_round"`
	UserID             int64     `gorm:"uniqueIndex:uk_round_user;not null" json:"user_id"`
	TotalTokens        int64     `gorm:"not null;default:0" json:"total_tokens"`
	FirstContributedAt time.Time `gorm:"not null" json:"first_contributed_at"` // 并列时先到先排，保证排名全序
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ContributionAggregate) TableName() string {
	return "contribution_aggregate"
}
