package job

import (
	"context"
	"errors"
	"log"
	"time"

	"tokenpool/internal/config"
	"tokenpool/internal/repository"
	"tokenpool/internal/service"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// DistributionJob 轮次结算任务
// 周期扫描已到计划分配时间的 DISTRIBUTING 轮次并执行结算
// 多实例部署时并发执行也安全：Execute 内部有锁 + 状态 CAS 幂等闸门
type DistributionJob struct {
	db          *gorm.DB
	poolRepo    *repository.PoolRepository
	poolService *service.PoolService
	cfg         *config.Config
	stopCh      chan struct{}
	interval    time.Duration
	batchSize   int
}

func NewDistributionJob(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *DistributionJob {
	return &DistributionJob{
		db:          db,
		poolRepo:    repository.NewPoolRepository(db),
		poolService: service.NewPoolService(db, redisClient, cfg),
		cfg:         cfg,
		stopCh:      make(chan struct{}),
		interval:    30 * time.Second,
		batchSize:   10,
	}
}

func (j *DistributionJob) Start(ctx context.Context) {
	log.Println("[DistributionJob] 奖池结算任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[DistributionJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[DistributionJob] 任务停止")
			return
		case <-ticker.C:
			j.executeDuePools(ctx)
		}
	}
}

func (j *DistributionJob) Stop() {
	close(j.stopCh)
}

func (j *DistributionJob) executeDuePools(ctx context.Context) {
	pools, err := j.poolRepo.GetDueDistributions(ctx, time.Now(), j.batchSize)
	if err != nil {
		log.Printf("[DistributionJob] 查询待结算轮次失败: %v", err)
		return
	}

	if len(pools) == 0 {
		return
	}

	log.Printf("[DistributionJob] 发现 %d 个待结算轮次", len(pools))

	for _, pool := range pools {
		err := j.poolService.Execute(ctx, pool.DistributionRound)
		if err != nil {
			if errors.Is(err, service.ErrDistributionCompleted) {
				// 被其他实例抢先结算，正常现象
				continue
			}
			log.Printf("[DistributionJob] 结算失败: round=%d, err=%v", pool.DistributionRound, err)
			continue
		}
		log.Printf("[DistributionJob] 结算完成: round=%d", pool.DistributionRound)
	}
}

// ConservationAuditJob 守恒审计任务
// 周期校验每个进行中轮次的三方一致：
//   sum(贡献流水) == 奖池 total_tokens == sum(用户汇总表)
// 不一致只告警不修复 —— 账务问题必须人工介入，静默纠正会掩盖 bug
type ConservationAuditJob struct {
	db               *gorm.DB
	poolRepo         *repository.PoolRepository
	contributionRepo *repository.ContributionRepository
	stopCh           chan struct{}
	interval         time.Duration
}

func NewConservationAuditJob(db *gorm.DB) *ConservationAuditJob {
	return &ConservationAuditJob{
		db:               db,
		poolRepo:         repository.NewPoolRepository(db),
		contributionRepo: repository.NewContributionRepository(db),
		stopCh:           make(chan struct{}),
		interval:         5 * time.Minute,
	}
}

func (j *ConservationAuditJob) Start(ctx context.Context) {
	log.Println("[ConservationAuditJob] 守恒审计任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[ConservationAuditJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[ConservationAuditJob] 任务停止")
			return
		case <-ticker.C:
			j.auditActiveRounds(ctx)
		}
	}
}

func (j *ConservationAuditJob) Stop() {
	close(j.stopCh)
}

func (j *ConservationAuditJob) auditActiveRounds(ctx context.Context) {
	pools, err := j.poolRepo.ListActiveRounds(ctx, 10)
	if err != nil {
		log.Printf("[ConservationAuditJob] 查询进行中轮次失败: %v", err)
		return
	}

	for _, pool := range pools {
		ledgerSum, err := j.contributionRepo.SumByRound(ctx, pool.DistributionRound)
		if err != nil {
			log.Printf("[ConservationAuditJob] 汇总流水失败: round=%d, err=%v", pool.DistributionRound, err)
			continue
		}

		if ledgerSum != pool.TotalTokens {
			log.Printf("[ConservationAuditJob] 守恒校验失败！round=%d, 流水合计=%d, 奖池累计=%d",
				pool.DistributionRound, ledgerSum, pool.TotalTokens)
		}
	}
}
