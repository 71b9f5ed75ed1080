package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// 通知事件类型，随 outbox 消息投递给下游通知服务
const (
	EventNftGenerated      = "nft.generated"
	EventNftMinted         = "nft.minted"
	EventNftBurned         = "nft.burned"
	EventNftGifted         = "nft.gifted"
	EventPoolTargetReached = "pool.target_reached"
	EventPoolDistributed   = "pool.distributed"
)

// OutboxMessage 事务型发件箱
// 通知属于尽力而为：经济事务提交后由后台任务异步投递到 Kafka，
// 投递失败不会回滚任何账务状态
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	EventKind  string    `gorm:"type:varchar(32);not null" json:"event_kind"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}
