package model

import (
	"time"
)

const (
	DistributionStatusPaid = "PAID"
)

// CharityUserID 慈善分配记录的占位用户ID
const CharityUserID int64 = 0

// Distribution 分配记录表
// 一轮结算产生：每个获奖用户一条 + 慈善一条，只追加不修改
// 整数除法的余数不分配给任何人，属于文档化的既定损耗
type Distribution struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	DistributionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"distribution_no"`
	UserID         int64     `gorm:"index;not null" json:"user_id"` // 慈善记录为 CharityUserID
	PoolRound      int       `gorm:"index;not null" json:"pool_round"`
	TokenAmount    int64     `gorm:"not null" json:"token_amount"`
	Rank           *int      `json:"rank"` // 慈善记录为 null
	IsCharity      bool      `gorm:"not null;default:false" json:"is_charity"`
	CharityName    string    `gorm:"type:varchar(128)" json:"charity_name"`
	Status         string    `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Distribution) TableName() string {
	return "distribution"
}
