package service

import (
	"fmt"
	"testing"
	"time"

	"tokenpool/internal/config"
	"tokenpool/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 测试环境：sqlite 内存库 + miniredis，参数对齐规格里的示例场景
// target=1000 / burn=350 / top=70% / charity=20% / 名额=2
type testEnv struct {
	db  *gorm.DB
	rdb *redis.Client
	cfg *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&model.Account{},
		&model.AccountTransaction{},
		&model.EmotionalNft{},
		&model.Pool{},
		&model.Contribution{},
		&model.ContributionAggregate{},
		&model.Distribution{},
		&model.OutboxMessage{},
	)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				NftEvents:  "nft_events",
				PoolEvents: "pool_events",
			},
		},
		Business: config.BusinessConfig{
			MintCost:                  350,
			BurnValue:                 350,
			TargetTokens:              1000,
			CharityPercentage:         20,
			TopContributorsPercentage: 70,
			MaxTopContributors:        2,
			CharityName:               "测试基金会",
			DistributionDelayDays:     7,
			MaxRetryCount:             3,
		},
	}

	return &testEnv{db: db, rdb: rdb, cfg: cfg}
}

func (e *testEnv) seedAccount(t *testing.T, userID int64, username string, balance int64) {
	t.Helper()
	require.NoError(t, e.db.Create(&model.Account{
		UserID:   userID,
		Username: username,
		Balance:  balance,
	}).Error)
}

func (e *testEnv) seedPool(t *testing.T, round int, status string) *model.Pool {
	t.Helper()
	pool := &model.Pool{
		DistributionRound:         round,
		TargetTokens:              e.cfg.Business.TargetTokens,
		Status:                    status,
		CharityPercentage:         e.cfg.Business.CharityPercentage,
		TopContributorsPercentage: e.cfg.Business.TopContributorsPercentage,
		MaxTopContributors:        e.cfg.Business.MaxTopContributors,
	}
	require.NoError(t, e.db.Create(pool).Error)
	return pool
}

var nftSeq int64

func (e *testEnv) seedNft(t *testing.T, userID int64, status string) *model.EmotionalNft {
	t.Helper()
	nftSeq++
	nft := &model.EmotionalNft{
		TokenID:      fmt.Sprintf("NFT-TEST-%d", nftSeq),
		UserID:       userID,
		OwnerAtMint:  userID,
		SourceKey:    fmt.Sprintf("seed:%d", nftSeq),
		Emotion:      "JOY",
		Rarity:       model.RarityCommon,
		ActivityType: "streak",
		MintStatus:   status,
	}
	if status != model.MintStatusUnminted {
		now := time.Now()
		nft.MintedAt = &now
	}
	require.NoError(t, e.db.Create(nft).Error)
	return nft
}

func (e *testEnv) getPool(t *testing.T, round int) *model.Pool {
	t.Helper()
	var pool model.Pool
	require.NoError(t, e.db.Where("distribution_round = ?", round).First(&pool).Error)
	return &pool
}

func (e *testEnv) getBalance(t *testing.T, userID int64) int64 {
	t.Helper()
	var account model.Account
	require.NoError(t, e.db.Where("user_id = ?", userID).First(&account).Error)
	return account.Balance
}
