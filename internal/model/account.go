package model

import (
	"time"
)

// Account 用户账户表
// 记录用户的代币余额，是整个代币池系统的资金核心
// 铸造 NFT 扣减余额，奖池分配发放奖励时增加余额
type Account struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"uniqueIndex;not null" json:"user_id"`       // 用户ID，业务方传入
	Username  string    `gorm:"type:varchar(64);not null" json:"username"` // 用户名，排行榜展示用
	Balance   int64     `gorm:"not null;default:0" json:"balance"`         // 可用代币余额
	Version   int       `gorm:"not null;default:0" json:"version"`         // 乐观锁版本号
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}
