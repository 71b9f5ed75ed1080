package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
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

var ErrDistributionCompleted = errors.New("该轮次已完成分配")

// PoolService 奖池分配引擎
// 负责轮次结算（DISTRIBUTING -> COMPLETED + 开启下一轮）和奖池看板
type PoolService struct {
	db               *gorm.DB
	redisClient      *redis.Client
	cfg              *config.Config
	poolRepo         *repository.PoolRepository
	contributionRepo *repository.ContributionRepository
	distributionRepo *repository.DistributionRepository
	accountRepo      *repository.AccountRepository
	transactionRepo  *repository.TransactionRepository
	outboxRepo       *repository.OutboxRepository
	rankingService   *RankingService
}

func NewPoolService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *PoolService {
	return &PoolService{
		db:               db,
		redisClient:      redisClient,
		cfg:              cfg,
		poolRepo:         repository.NewPoolRepository(db),
		contributionRepo: repository.NewContributionRepository(db),
		distributionRepo: repository.NewDistributionRepository(db),
		accountRepo:      repository.NewAccountRepository(db),
		transactionRepo:  repository.NewTransactionRepository(db),
		outboxRepo:       repository.NewOutboxRepository(db),
		rankingService:   NewRankingService(db, redisClient),
	}
}

// EnsureActivePool 服务启动时保证存在第一轮奖池
// 已有任何轮次时什么都不做（后续轮次由结算流程自己开启）
func (s *PoolService) EnsureActivePool(ctx context.Context) error {
	_, err := s.poolRepo.GetLatest(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrPoolNotFound) {
		return err
	}

	pool := &model.Pool{
		DistributionRound:         1,
		TotalTokens:               0,
		TargetTokens:              s.cfg.Business.TargetTokens,
		Status:                    model.PoolStatusActive,
		CharityPercentage:         s.cfg.Business.CharityPercentage,
		TopContributorsPercentage: s.cfg.Business.TopContributorsPercentage,
		MaxTopContributors:        s.cfg.Business.MaxTopContributors,
	}
	if err := s.poolRepo.Create(ctx, nil, pool); err != nil {
		return fmt.Errorf("创建首轮奖池失败: %w", err)
	}

	log.Printf("首轮奖池已创建: target=%d", pool.TargetTokens)
	return nil
}

// Execute 执行一轮分配
//
// 【关键点】结算必须恰好执行一次：
// 1. 事务内第一步就做 DISTRIBUTING -> COMPLETED 的 CAS 流转，
//    并发的重复调用只有一个能通过，输家观察到 AlreadyCompleted 且不改任何余额
// 2. 头部奖励按名额均分（topPool / maxTopContributors），
//    不按贡献占比 —— 奖励"进入头部"这件事本身，避免单个大户的激励失控；
//    名额没坐满时空位对应的份额不发放
// 3. 两次整数除法的余数都留在池内，属于文档化的既定损耗
func (s *PoolService) Execute(ctx context.Context, round int) error {
	pool, err := s.poolRepo.GetByRound(ctx, round)
	if err != nil {
		return err
	}
	if pool.Status == model.PoolStatusCompleted {
		return ErrDistributionCompleted
	}
	if pool.Status != model.PoolStatusDistributing {
		return repository.ErrPoolStatusInvalid
	}

	distLock := lock.NewDistributionLock(s.redisClient, round, idgen.GenerateDistributionNo())
	err = distLock.Lock(ctx, 200*time.Millisecond, 10)
	if err != nil {
		return fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer distLock.Unlock(ctx)

	// 轮次离开 ACTIVE 后贡献已冻结，事务外读榜单和账户是安全的；
	// 结算不走缓存，直接读汇总表
	winners, err := s.contributionRepo.TopAggregates(ctx, round, pool.MaxTopContributors)
	if err != nil {
		return err
	}

	winnerAccounts := make(map[int64]*model.Account, len(winners))
	for _, winner := range winners {
		account, err := s.accountRepo.GetByUserID(ctx, winner.UserID)
		if err != nil {
			return fmt.Errorf("查询获奖账户失败: %w", err)
		}
		winnerAccounts[winner.UserID] = account
	}

	topPool := pool.TotalTokens * int64(pool.TopContributorsPercentage) / 100
	charityPool := pool.TotalTokens * int64(pool.CharityPercentage) / 100
	rewardPerSlot := topPool / int64(pool.MaxTopContributors)

	now := time.Now()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 幂等闸门：CAS 失败说明已被并发结算，下面的所有写入都不会发生
		if err := s.poolRepo.UpdateStatus(ctx, tx, round, model.PoolStatusDistributing, model.PoolStatusCompleted,
			map[string]interface{}{
				"last_distribution_at": &now,
				"version":              gorm.Expr("version + 1"),
			}); err != nil {
			return err
		}

		for i, winner := range winners {
			rank := i + 1

			if rewardPerSlot > 0 {
				if err := s.accountRepo.Increase(ctx, tx, winner.UserID, rewardPerSlot); err != nil {
					return fmt.Errorf("发放奖励失败: %w", err)
				}
			}

			distributionNo := idgen.GenerateDistributionNo()
			account := winnerAccounts[winner.UserID]

			transaction := &model.AccountTransaction{
				TransactionNo: idgen.GenerateTransactionNo(),
				UserID:        winner.UserID,
				RefNo:         distributionNo,
				Amount:        rewardPerSlot,
				Type:          model.TransactionTypeReward,
				BalanceBefore: account.Balance,
				BalanceAfter:  account.Balance + rewardPerSlot,
				Remark:        fmt.Sprintf("奖池分配-第%d轮-第%d名", round, rank),
			}
			if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
				return fmt.Errorf("记录流水失败: %w", err)
			}

			winnerRank := rank
			distribution := &model.Distribution{
				DistributionNo: distributionNo,
				UserID:         winner.UserID,
				PoolRound:      round,
				TokenAmount:    rewardPerSlot,
				Rank:           &winnerRank,
				IsCharity:      false,
				Status:         model.DistributionStatusPaid,
			}
			if err := s.distributionRepo.Create(ctx, tx, distribution); err != nil {
				return fmt.Errorf("记录分配失败: %w", err)
			}
		}

		charityDistribution := &model.Distribution{
			DistributionNo: idgen.GenerateDistributionNo(),
			UserID:         model.CharityUserID,
			PoolRound:      round,
			TokenAmount:    charityPool,
			IsCharity:      true,
			CharityName:    s.cfg.Business.CharityName,
			Status:         model.DistributionStatusPaid,
		}
		if err := s.distributionRepo.Create(ctx, tx, charityDistribution); err != nil {
			return fmt.Errorf("记录慈善分配失败: %w", err)
		}

		// 开启下一轮：参数继承上一轮
		nextPool := &model.Pool{
			DistributionRound:         round + 1,
			TotalTokens:               0,
			TargetTokens:              pool.TargetTokens,
			Status:                    model.PoolStatusActive,
			CharityPercentage:         pool.CharityPercentage,
			TopContributorsPercentage: pool.TopContributorsPercentage,
			MaxTopContributors:        pool.MaxTopContributors,
		}
		if err := s.poolRepo.Create(ctx, tx, nextPool); err != nil {
			return fmt.Errorf("创建下一轮奖池失败: %w", err)
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"event":           model.EventPoolDistributed,
			"pool_round":      round,
			"total_tokens":    pool.TotalTokens,
			"reward_per_slot": rewardPerSlot,
			"winners":         len(winners),
			"charity_pool":    charityPool,
			"charity_name":    s.cfg.Business.CharityName,
			"distributed_at":  now.Format(time.RFC3339),
		})
		outboxMsg := &model.OutboxMessage{
			MessageKey: fmt.Sprintf("round-%d", round),
			Topic:      s.cfg.Kafka.Topic.PoolEvents,
			EventKind:  model.EventPoolDistributed,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		}
		if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}

		return nil
	})

	if err != nil {
		if errors.Is(err, repository.ErrPoolStatusInvalid) {
			// CAS 输家：确认是否已被并发结算
			current, getErr := s.poolRepo.GetByRound(ctx, round)
			if getErr == nil && current.Status == model.PoolStatusCompleted {
				return ErrDistributionCompleted
			}
		}
		return err
	}

	log.Printf("分配完成: round=%d, total=%d, winners=%d, perSlot=%d, charity=%d",
		round, pool.TotalTokens, len(winners), rewardPerSlot, charityPool)

	return nil
}

// PoolStats 奖池看板
type PoolStats struct {
	DistributionRound    int                  `json:"distribution_round"`
	Status               string               `json:"status"`
	TotalTokens          int64                `json:"total_tokens"`
	TargetTokens         int64                `json:"target_tokens"`
	BurnedToday          int64                `json:"burned_today"`
	NextDistributionDate *time.Time           `json:"next_distribution_date,omitempty"`
	TopContributor       *ContributorStanding `json:"top_contributor,omitempty"`
	UserTotal            *int64               `json:"user_total,omitempty"`
	UserRank             *int                 `json:"user_rank,omitempty"`
	UserProjectedRank    *int                 `json:"user_projected_rank,omitempty"` // 再销毁一件能到的名次
}

// GetPoolStats 当前轮次看板；userID 非空时附带该用户的名次信息
func (s *PoolService) GetPoolStats(ctx context.Context, userID *int64) (*PoolStats, error) {
	pool, err := s.poolRepo.GetActive(ctx)
	if errors.Is(err, repository.ErrNoActivePool) {
		// 达标到结算之间没有 ACTIVE 轮次，看板回落到最近一轮
		pool, err = s.poolRepo.GetLatest(ctx)
	}
	if err != nil {
		return nil, err
	}

	burnedToday, err := s.contributionRepo.SumByDay(ctx, pool.DistributionRound, time.Now())
	if err != nil {
		return nil, err
	}

	topContributor, err := s.rankingService.TopContributor(ctx, pool.DistributionRound)
	if err != nil {
		return nil, err
	}

	stats := &PoolStats{
		DistributionRound:    pool.DistributionRound,
		Status:               pool.Status,
		TotalTokens:          pool.TotalTokens,
		TargetTokens:         pool.TargetTokens,
		BurnedToday:          burnedToday,
		NextDistributionDate: pool.NextDistributionDate,
		TopContributor:       topContributor,
	}

	if userID != nil {
		total, err := s.rankingService.UserTotal(ctx, pool.DistributionRound, *userID)
		if err != nil {
			return nil, err
		}
		stats.UserTotal = &total

		if rank, ok, err := s.rankingService.Rank(ctx, pool.DistributionRound, *userID); err != nil {
			return nil, err
		} else if ok {
			stats.UserRank = &rank
		}

		projected, err := s.rankingService.ProjectedRank(ctx, pool.DistributionRound, *userID, s.cfg.Business.BurnValue)
		if err != nil {
			return nil, err
		}
		stats.UserProjectedRank = &projected
	}

	return stats, nil
}

func (s *PoolService) ListDistributions(ctx context.Context, round int) ([]*model.Distribution, error) {
	return s.distributionRepo.ListByRound(ctx, round)
}

// ListUserRewards 用户历次获奖记录
func (s *PoolService) ListUserRewards(ctx context.Context, userID int64, page, pageSize int) ([]*model.Distribution, int64, error) {
	return s.distributionRepo.ListByUserID(ctx, userID, page, pageSize)
}
