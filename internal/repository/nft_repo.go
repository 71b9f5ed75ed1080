package repository

import (
	"context"
	"errors"
	"time"

	"tokenpool/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNftNotFound      = errors.New("NFT 不存在")
	ErrNftStatusInvalid = errors.New("NFT 状态不合法")
	ErrNftAlreadyGifted = errors.New("NFT 已赠送过，每件只能赠送一次")
)

type NftRepository struct {
	db *gorm.DB
}

func NewNftRepository(db *gorm.DB) *NftRepository {
	return &NftRepository{db: db}
}

// Create 发放新的未铸造 NFT
// (owner_at_mint, source_key) 唯一索引 + DoNothing 保证同一用户同一条件只发一次
// 返回本次是否真正插入，用于幂等去重后的计数
func (r *NftRepository) Create(ctx context.Context, nft *model.EmotionalNft) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_at_mint"}, {Name: "source_key"}},
			DoNothing: true,
		}).
		Create(nft)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *NftRepository) GetByID(ctx context.Context, nftID int64) (*model.EmotionalNft, error) {
	var nft model.EmotionalNft
	err := r.db.WithContext(ctx).Where("id = ?", nftID).First(&nft).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNftNotFound
		}
		return nil, err
	}
	return &nft, nil
}

// UpdateMintStatus 状态流转（CAS）
// WHERE 带上 fromStatus，RowsAffected=0 说明状态已被并发修改，流转失败
// 这是"同一件 NFT 并发销毁只成功一次"的关键保证
func (r *NftRepository) UpdateMintStatus(ctx context.Context, tx *gorm.DB, nftID int64, fromStatus, toStatus string) error {
	if !model.CanTransitionMintStatus(fromStatus, toStatus) {
		return ErrNftStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"mint_status": toStatus,
	}

	now := time.Now()
	switch toStatus {
	case model.MintStatusMinted:
		updates["minted_at"] = &now
	case model.MintStatusBurned:
		updates["burned_at"] = &now
	}

	result := tx.WithContext(ctx).
		Model(&model.EmotionalNft{}).
		Where("id = ? AND mint_status = ?", nftID, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrNftStatusInvalid
	}

	return nil
}

// Gift 一次性赠送
// 条件更新同时要求 MINTED 且从未赠送过（gifted_to IS NULL），
// 命中后所有权转移并永久占用赠送名额
func (r *NftRepository) Gift(ctx context.Context, tx *gorm.DB, nftID, fromUserID, toUserID int64) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.EmotionalNft{}).
		Where("id = ? AND user_id = ? AND mint_status = ? AND gifted_to IS NULL",
			nftID, fromUserID, model.MintStatusMinted).
		Updates(map[string]interface{}{
			"user_id":   toUserID,
			"gifted_to": toUserID,
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		// 没改到行，需要查一次定位具体原因
		nft, err := r.GetByID(ctx, nftID)
		if err != nil {
			return err
		}
		if nft.GiftedTo != nil {
			return ErrNftAlreadyGifted
		}
		return ErrNftStatusInvalid
	}

	return nil
}

func (r *NftRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.EmotionalNft, int64, error) {
	var nfts []*model.EmotionalNft
	var total int64

	query := r.db.WithContext(ctx).Model(&model.EmotionalNft{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&nfts).Error

	return nfts, total, err
}
