package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"time"

	"tokenpool/internal/config"
	"tokenpool/internal/infrastructure/lock"
	"tokenpool/internal/model"
	"tokenpool/internal/repository"
	"tokenpool/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

var (
	ErrNotOwner = errors.New("不是该 NFT 的持有人")
	ErrSelfGift = errors.New("不能赠送给自己")
)

// NftService NFT 生命周期管理
// 铸造 / 销毁 / 赠送 / 条件发放，每个操作一把按 NFT 维度的分布式锁 + 一个数据库事务
type NftService struct {
	db               *gorm.DB
	redisClient      *redis.Client
	cfg              *config.Config
	nftRepo          *repository.NftRepository
	accountRepo      *repository.AccountRepository
	poolRepo         *repository.PoolRepository
	contributionRepo *repository.ContributionRepository
	transactionRepo  *repository.TransactionRepository
	outboxRepo       *repository.OutboxRepository
}

func NewNftService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *NftService {
	return &NftService{
		db:               db,
		redisClient:      redisClient,
		cfg:              cfg,
		nftRepo:          repository.NewNftRepository(db),
		accountRepo:      repository.NewAccountRepository(db),
		poolRepo:         repository.NewPoolRepository(db),
		contributionRepo: repository.NewContributionRepository(db),
		transactionRepo:  repository.NewTransactionRepository(db),
		outboxRepo:       repository.NewOutboxRepository(db),
	}
}

// Mint 铸造 NFT
//
// 前置条件：NFT 归属于该用户、状态为 UNMINTED、余额不低于铸造费用
// 扣款、账户流水、状态流转在同一事务内完成
func (s *NftService) Mint(ctx context.Context, userID, nftID int64) (*model.EmotionalNft, error) {
	nft, err := s.nftRepo.GetByID(ctx, nftID)
	if err != nil {
		return nil, err
	}
	if nft.UserID != userID {
		return nil, ErrNotOwner
	}
	if nft.MintStatus != model.MintStatusUnminted {
		return nil, repository.ErrNftStatusInvalid
	}

	nftLock := lock.NewNftLock(s.redisClient, nftID, idgen.GenerateTransactionNo())
	err = nftLock.Lock(ctx, 100*time.Millisecond, 30)
	if err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer nftLock.Unlock(ctx)

	// 获取锁后再次检查状态
	nft, err = s.nftRepo.GetByID(ctx, nftID)
	if err != nil {
		return nil, err
	}
	if nft.MintStatus != model.MintStatusUnminted {
		return nil, repository.ErrNftStatusInvalid
	}

	account, err := s.accountRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	mintCost := s.cfg.Business.MintCost
	if account.Balance < mintCost {
		return nil, repository.ErrBalanceNotEnough
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.accountRepo.Deduct(ctx, tx, userID, mintCost, account.Version); err != nil {
			return err
		}

		transaction := &model.AccountTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			UserID:        userID,
			RefNo:         nft.TokenID,
			Amount:        -mintCost,
			Type:          model.TransactionTypeMint,
			BalanceBefore: account.Balance,
			BalanceAfter:  account.Balance - mintCost,
			Remark:        fmt.Sprintf("铸造-%s", nft.TokenID),
		}
		if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		if err := s.nftRepo.UpdateMintStatus(ctx, tx, nftID, model.MintStatusUnminted, model.MintStatusMinted); err != nil {
			return err
		}

		return s.createOutboxEvent(ctx, tx, s.cfg.Kafka.Topic.NftEvents, model.EventNftMinted, nft.TokenID, map[string]interface{}{
			"token_id":  nft.TokenID,
			"user_id":   userID,
			"mint_cost": mintCost,
			"minted_at": time.Now().Format(time.RFC3339),
		})
	})

	if err != nil {
		return nil, err
	}

	log.Printf("铸造成功: tokenID=%s, userID=%d, cost=%d", nft.TokenID, userID, mintCost)

	return s.nftRepo.GetByID(ctx, nftID)
}

// Burn 销毁 NFT，向当前轮次奖池注入固定面值的代币
//
// 【关键点】销毁是整个经济系统最核心的写路径：
// 1. 状态流转 MINTED -> BURNED 用 CAS，同一件并发销毁只成功一次
// 2. 贡献流水、用户汇总、奖池累计在同一事务写入（守恒不变量）
// 3. 达标只把轮次翻转成 DISTRIBUTING 并排期，不在这里结算 ——
//    "注水"和"放水"解耦，避免销毁路径上出现长事务
func (s *NftService) Burn(ctx context.Context, userID, nftID int64) (*model.Contribution, error) {
	nft, err := s.nftRepo.GetByID(ctx, nftID)
	if err != nil {
		return nil, err
	}
	if nft.UserID != userID {
		return nil, ErrNotOwner
	}
	if nft.MintStatus != model.MintStatusMinted {
		return nil, repository.ErrNftStatusInvalid
	}

	nftLock := lock.NewNftLock(s.redisClient, nftID, idgen.GenerateTransactionNo())
	err = nftLock.Lock(ctx, 100*time.Millisecond, 30)
	if err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer nftLock.Unlock(ctx)

	// 获取锁后再次检查状态
	nft, err = s.nftRepo.GetByID(ctx, nftID)
	if err != nil {
		return nil, err
	}
	if nft.MintStatus != model.MintStatusMinted {
		return nil, repository.ErrNftStatusInvalid
	}

	pool, err := s.poolRepo.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	burnValue := s.cfg.Business.BurnValue
	now := time.Now()

	contribution := &model.Contribution{
		ContributionNo: idgen.GenerateContributionNo(),
		UserID:         userID,
		NftID:          nftID,
		TokenAmount:    burnValue,
		PoolRound:      pool.DistributionRound,
	}

	targetReached := false

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.nftRepo.UpdateMintStatus(ctx, tx, nftID, model.MintStatusMinted, model.MintStatusBurned); err != nil {
			return err
		}

		if err := s.contributionRepo.Create(ctx, tx, contribution); err != nil {
			return fmt.Errorf("记录贡献流水失败: %w", err)
		}

		if err := s.contributionRepo.UpsertAggregate(ctx, tx, pool.DistributionRound, userID, burnValue, now); err != nil {
			return fmt.Errorf("更新贡献汇总失败: %w", err)
		}

		// 轮次在本事务开始前被并发翻转时这里会失败，整个销毁回滚
		if err := s.poolRepo.AddTokens(ctx, tx, pool.DistributionRound, burnValue); err != nil {
			return err
		}

		nextDate := now.AddDate(0, 0, s.cfg.Business.DistributionDelayDays)
		flipped, err := s.poolRepo.MarkDistributingIfTargetReached(ctx, tx, pool.DistributionRound, nextDate)
		if err != nil {
			return err
		}
		targetReached = flipped

		if err := s.createOutboxEvent(ctx, tx, s.cfg.Kafka.Topic.NftEvents, model.EventNftBurned, nft.TokenID, map[string]interface{}{
			"token_id":     nft.TokenID,
			"user_id":      userID,
			"amount":       burnValue,
			"pool_round":   pool.DistributionRound,
			"burned_at":    now.Format(time.RFC3339),
			"contribution": contribution.ContributionNo,
		}); err != nil {
			return err
		}

		if targetReached {
			return s.createOutboxEvent(ctx, tx, s.cfg.Kafka.Topic.PoolEvents, model.EventPoolTargetReached,
				fmt.Sprintf("round-%d", pool.DistributionRound), map[string]interface{}{
					"pool_round":             pool.DistributionRound,
					"target_tokens":          pool.TargetTokens,
					"next_distribution_date": nextDate.Format(time.RFC3339),
				})
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	if targetReached {
		log.Printf("奖池达标: round=%d, target=%d", pool.DistributionRound, pool.TargetTokens)
	}
	log.Printf("销毁成功: tokenID=%s, userID=%d, amount=%d, round=%d",
		nft.TokenID, userID, burnValue, pool.DistributionRound)

	return contribution, nil
}

// Gift 一次性赠送
// 只允许 MINTED 状态且从未赠送过的 NFT；gifted_to 写入后永不变更，
// 即使所有权后续还有变化，赠送名额也已永久占用
func (s *NftService) Gift(ctx context.Context, fromUserID, toUserID, nftID int64) (*model.EmotionalNft, error) {
	if fromUserID == toUserID {
		return nil, ErrSelfGift
	}

	nft, err := s.nftRepo.GetByID(ctx, nftID)
	if err != nil {
		return nil, err
	}
	if nft.UserID != fromUserID {
		return nil, ErrNotOwner
	}
	if nft.GiftedTo != nil {
		return nil, repository.ErrNftAlreadyGifted
	}
	if nft.MintStatus != model.MintStatusMinted {
		return nil, repository.ErrNftStatusInvalid
	}

	// 收礼人账户不存在时补建，避免赠送后余额查询报错
	if _, err := s.accountRepo.GetOrCreate(ctx, toUserID, fmt.Sprintf("user-%d", toUserID)); err != nil {
		return nil, err
	}

	nftLock := lock.NewNftLock(s.redisClient, nftID, idgen.GenerateTransactionNo())
	err = nftLock.Lock(ctx, 100*time.Millisecond, 30)
	if err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer nftLock.Unlock(ctx)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.nftRepo.Gift(ctx, tx, nftID, fromUserID, toUserID); err != nil {
			return err
		}

		return s.createOutboxEvent(ctx, tx, s.cfg.Kafka.Topic.NftEvents, model.EventNftGifted, nft.TokenID, map[string]interface{}{
			"token_id":     nft.TokenID,
			"from_user_id": fromUserID,
			"to_user_id":   toUserID,
			"gifted_at":    time.Now().Format(time.RFC3339),
		})
	})

	if err != nil {
		return nil, err
	}

	log.Printf("赠送成功: tokenID=%s, from=%d, to=%d", nft.TokenID, fromUserID, toUserID)

	return s.nftRepo.GetByID(ctx, nftID)
}

// IssuanceCriterion 外部达成的发放条件（如连续打卡里程碑）
type IssuanceCriterion struct {
	ActivityType string `json:"activity_type" binding:"required"`
	Milestone    string `json:"milestone" binding:"required"`
}

// GenerateForCriteria 条件发放：按满足的条件为用户创建 UNMINTED NFT
// (用户, 条件) 维度幂等：同一条件重复上报不会重复发放
// 情感/稀有度/元数据都由条件键确定性推导，重试产出完全一致
func (s *NftService) GenerateForCriteria(ctx context.Context, userID int64, criteria []IssuanceCriterion) ([]*model.EmotionalNft, error) {
	if _, err := s.accountRepo.GetOrCreate(ctx, userID, fmt.Sprintf("user-%d", userID)); err != nil {
		return nil, err
	}

	var created []*model.EmotionalNft
	for _, criterion := range criteria {
		sourceKey := fmt.Sprintf("%s:%s", criterion.ActivityType, criterion.Milestone)
		nft := buildNftForCriterion(userID, criterion, sourceKey)

		inserted, err := s.nftRepo.Create(ctx, nft)
		if err != nil {
			return nil, fmt.Errorf("发放 NFT 失败: %w", err)
		}
		if !inserted {
			// 该条件已发放过，幂等跳过
			continue
		}

		created = append(created, nft)

		err = s.createOutboxEvent(ctx, nil, s.cfg.Kafka.Topic.NftEvents, model.EventNftGenerated, nft.TokenID, map[string]interface{}{
			"token_id":      nft.TokenID,
			"user_id":       userID,
			"emotion":       nft.Emotion,
			"rarity":        nft.Rarity,
			"activity_type": nft.ActivityType,
		})
		if err != nil {
			return nil, err
		}

		log.Printf("发放成功: tokenID=%s, userID=%d, source=%s", nft.TokenID, userID, sourceKey)
	}

	return created, nil
}

var emotionCatalog = []string{"JOY", "CALM", "HOPE", "COURAGE", "GRATITUDE", "WONDER"}

// buildNftForCriterion 由条件键确定性推导 NFT 属性
func buildNftForCriterion(userID int64, criterion IssuanceCriterion, sourceKey string) *model.EmotionalNft {
	h := fnv.New32a()
	h.Write([]byte(sourceKey))
	seed := h.Sum32()

	emotion := emotionCatalog[seed%uint32(len(emotionCatalog))]

	var rarity string
	switch roll := seed % 100; {
	case roll < 60:
		rarity = model.RarityCommon
	case roll < 85:
		rarity = model.RarityRare
	case roll < 97:
		rarity = model.RarityEpic
	default:
		rarity = model.RarityLegendary
	}

	metadata, _ := json.Marshal(map[string]interface{}{
		"name":        fmt.Sprintf("%s·%s", criterion.ActivityType, criterion.Milestone),
		"description": fmt.Sprintf("达成 %s 里程碑 %s 获得", criterion.ActivityType, criterion.Milestone),
		"bonus":       int(seed%10) + 1,
	})

	return &model.EmotionalNft{
		TokenID:        idgen.GenerateTokenNo(),
		UserID:         userID,
		OwnerAtMint:    userID,
		SourceKey:      sourceKey,
		Emotion:        emotion,
		Rarity:         rarity,
		ActivityType:   criterion.ActivityType,
		MintStatus:     model.MintStatusUnminted,
		ImageURL:       fmt.Sprintf("https://cdn.tokenpool.local/nft/%s/%s.png", emotion, rarity),
		Metadata:       string(metadata),
		EvolutionLevel: 1,
	}
}

func (s *NftService) ListUserNfts(ctx context.Context, userID int64, page, pageSize int) ([]*model.EmotionalNft, int64, error) {
	return s.nftRepo.ListByUserID(ctx, userID, page, pageSize)
}

// createOutboxEvent 写入事务型发件箱
// 通知尽力而为：这里只入库，实际投递由 OutboxSender 异步完成
func (s *NftService) createOutboxEvent(ctx context.Context, tx *gorm.DB, topic, kind, key string, payload map[string]interface{}) error {
	payload["event"] = kind
	payloadBytes, _ := json.Marshal(payload)

	outboxMsg := &model.OutboxMessage{
		MessageKey: key,
		Topic:      topic,
		EventKind:  kind,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}
	return nil
}
