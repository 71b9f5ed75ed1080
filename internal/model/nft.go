package model

import (
	"time"
)

const (
	MintStatusUnminted = "UNMINTED"
	MintStatusMinted   = "MINTED"
	MintStatusBurned   = "BURNED"
)

// ValidMintTransitions NFT 生命周期状态机
// UNMINTED -> MINTED -> BURNED，单向流转，BURNED 是终态
var ValidMintTransitions = map[string][]string{
	MintStatusUnminted: {MintStatusMinted},
	MintStatusMinted:   {MintStatusBurned},
}

func CanTransitionMintStatus(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidMintTransitions[currentStatus]
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

const (
	RarityCommon    = "COMMON"
	RarityRare      = "RARE"
	RarityEpic      = "EPIC"
	RarityLegendary = "LEGENDARY"
)

// EmotionalNft 情感收藏品表
//
// 【生命周期】
// 1. 达成外部条件（如连续打卡）后以 UNMINTED 状态发放
// 2. 铸造（MINT）消耗固定代币，激活为 MINTED
// 3. 销毁（BURN）不可逆，产生一条注入奖池的贡献流水
//
// 赠送只能在 MINTED 状态发生，且每件只允许一次：
// gifted_to 一旦写入就不再变更，与是否销毁无关
type EmotionalNft struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	TokenID        string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"token_id"` // 对外展示的编号
	UserID         int64      `gorm:"index;not null" json:"user_id"`                         // 当前持有人
	OwnerAtMint    int64      `gorm:"uniqueIndex:uk_owner_source;not null;default:0" json:"owner_at_mint"`               // 发放时的归属人，幂等键的一部分
	SourceKey      string     `gorm:"uniqueIndex:uk_owner_source;type:varchar(128);not null" json:"source_key"`          // 发放来源（归属人+条件 维度幂等）
	Emotion        string     `gorm:"type:varchar(32);not null" json:"emotion"`
	Rarity         string     `gorm:"type:varchar(16);not null" json:"rarity"`
	ActivityType   string     `gorm:"type:varchar(32);not null" json:"activity_type"`
	MintStatus     string     `gorm:"type:varchar(16);index;not null;default:UNMINTED" json:"mint_status"`
	ImageURL       string     `gorm:"type:varchar(256)" json:"image_url"`
	Metadata       string     `gorm:"type:text" json:"metadata"` // 名称/描述/加成等，JSON 字符串
	EvolutionLevel int        `gorm:"not null;default:1" json:"evolution_level"`
	GiftedTo       *int64     `gorm:"index" json:"gifted_to"` // 被赠送人，写入后永不变更
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	MintedAt       *time.Time `json:"minted_at"`
	BurnedAt       *time.Time `json:"burned_at"`
}

func (EmotionalNft) TableName() string {
	return "emotional_nft"
}
