package model

import (
	"time"
)

const (
	TransactionTypeRecharge = "RECHARGE" // 充值
	TransactionTypeMint     = "MINT"     // 铸造扣款
	TransactionTypeReward   = "REWARD"   // 奖池分配到账
)

// AccountTransaction 账户流水表
// 记录账户的每一笔代币变动，是对账的核心依据
//
// 【重要】只追加，不修改，不删除；记录交易前后余额便于校验一致性
type AccountTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"` // 流水号（全局唯一）
	UserID        int64     `gorm:"index;not null" json:"user_id"`
	RefNo         string    `gorm:"type:varchar(64);index" json:"ref_no"` // 关联单号（NFT 编号 / 分配单号）
	Amount        int64     `gorm:"not null" json:"amount"`               // 正数入账，负数出账
	Type          string    `gorm:"type:varchar(20);not null" json:"type"`
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`
	Remark        string    `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AccountTransaction) TableName() string {
	return "account_transaction"
}
