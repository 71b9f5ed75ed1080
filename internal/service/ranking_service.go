package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"tokenpool/internal/repository"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const topContributorsCacheTTL = 5 * time.Second

// ContributorStanding 排行榜条目
type ContributorStanding struct {
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	TotalTokens int64  `json:"total_tokens"`
	Rank        int    `json:"rank"`
}

// RankingService 排名引擎
//
// 全部是只读查询，走增量维护的 contribution_aggregate 汇总表，
// 不扫贡献流水。排名仅用于展示，不参与结算门控，
// 所以榜单允许带几秒缓存的轻微滞后
type RankingService struct {
	db               *gorm.DB
	redisClient      *redis.Client
	contributionRepo *repository.ContributionRepository
	accountRepo      *repository.AccountRepository
}

func NewRankingService(db *gorm.DB, redisClient *redis.Client) *RankingService {
	return &RankingService{
		db:               db,
		redisClient:      redisClient,
		contributionRepo: repository.NewContributionRepository(db),
		accountRepo:      repository.NewAccountRepository(db),
	}
}

// TopContributor 轮次内贡献最高的单个用户，无人贡献时返回 nil
// 并列时先到先得：总额相同的用户里最早贡献的排第一
func (s *RankingService) TopContributor(ctx context.Context, round int) (*ContributorStanding, error) {
	standings, err := s.TopContributors(ctx, round, 1)
	if err != nil {
		return nil, err
	}
	if len(standings) == 0 {
		return nil, nil
	}
	return standings[0], nil
}

// TopContributors 轮次排行榜
// 总额降序、并列按首次贡献时间升序；名次按总额去重递增，
// 总额完全相等的用户共享同一名次号
func (s *RankingService) TopContributors(ctx context.Context, round int, limit int) ([]*ContributorStanding, error) {
	cacheKey := fmt.Sprintf("pool:top:%d:%d", round, limit)
	if cached := s.getCachedStandings(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	aggregates, err := s.contributionRepo.TopAggregates(ctx, round, limit)
	if err != nil {
		return nil, err
	}

	// 用户名一次查齐，榜单长度不放大查询次数
	userIDs := make([]int64, 0, len(aggregates))
	for _, aggregate := range aggregates {
		userIDs = append(userIDs, aggregate.UserID)
	}
	usernames, err := s.accountRepo.GetUsernames(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	standings := make([]*ContributorStanding, 0, len(aggregates))
	rank := 0
	var prevTotal int64 = -1
	for _, aggregate := range aggregates {
		username, ok := usernames[aggregate.UserID]
		if !ok {
			username = fmt.Sprintf("user-%d", aggregate.UserID)
		}
		if aggregate.TotalTokens != prevTotal {
			rank++
			prevTotal = aggregate.TotalTokens
		}
		standings = append(standings, &ContributorStanding{
			UserID:      aggregate.UserID,
			Username:    username,
			TotalTokens: aggregate.TotalTokens,
			Rank:        rank,
		})
	}

	s.cacheStandings(ctx, cacheKey, standings)
	return standings, nil
}

// Rank 用户在轮次中的名次
// 排名 = 1 + 总额严格大于该用户的人数；没有贡献时返回 (0, false)
func (s *RankingService) Rank(ctx context.Context, round int, userID int64) (int, bool, error) {
	aggregate, err := s.contributionRepo.GetAggregate(ctx, round, userID)
	if err != nil {
		return 0, false, err
	}
	if aggregate == nil {
		return 0, false, nil
	}

	greater, err := s.contributionRepo.CountGreater(ctx, round, aggregate.TotalTokens, userID)
	if err != nil {
		return 0, false, err
	}
	return int(greater) + 1, true, nil
}

// ProjectedRank 模拟名次："再投入 additionalAmount 能到第几名"
// 纯读时计算，不写任何状态：把用户自己的行从比较集合里剔除后，
// 用 当前总额+增量 重新对比
func (s *RankingService) ProjectedRank(ctx context.Context, round int, userID int64, additionalAmount int64) (int, error) {
	var currentTotal int64
	aggregate, err := s.contributionRepo.GetAggregate(ctx, round, userID)
	if err != nil {
		return 0, err
	}
	if aggregate != nil {
		currentTotal = aggregate.TotalTokens
	}

	projectedTotal := currentTotal + additionalAmount
	greater, err := s.contributionRepo.CountGreater(ctx, round, projectedTotal, userID)
	if err != nil {
		return 0, err
	}
	return int(greater) + 1, nil
}

// UserTotal 用户在轮次中的累计贡献（没有贡献返回 0）
func (s *RankingService) UserTotal(ctx context.Context, round int, userID int64) (int64, error) {
	aggregate, err := s.contributionRepo.GetAggregate(ctx, round, userID)
	if err != nil {
		return 0, err
	}
	if aggregate == nil {
		return 0, nil
	}
	return aggregate.TotalTokens, nil
}

// 榜单缓存：短 TTL，过期自然失效，不做主动失效
// 缓存故障只影响性能不影响正确性，降级为直查数据库

func (s *RankingService) getCachedStandings(ctx context.Context, key string) []*ContributorStanding {
	raw, err := s.redisClient.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("[Ranking] 读取榜单缓存失败: %v", err)
		}
		return nil
	}

	var standings []*ContributorStanding
	if err := json.Unmarshal([]byte(raw), &standings); err != nil {
		return nil
	}
	return standings
}

func (s *RankingService) cacheStandings(ctx context.Context, key string, standings []*ContributorStanding) {
	raw, err := json.Marshal(standings)
	if err != nil {
		return
	}
	if err := s.redisClient.Set(ctx, key, raw, topContributorsCacheTTL).Err(); err != nil {
		log.Printf("[Ranking] 写入榜单缓存失败: %v", err)
	}
}
