package service

import (
	"context"
	"testing"

	"tokenpool/internal/model"
	"tokenpool/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureActivePool(t *testing.T) {
	ctx := context.Background()

	t.Run("空库启动时创建首轮", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewPoolService(env.db, env.rdb, env.cfg)

		require.NoError(t, svc.EnsureActivePool(ctx))

		pool := env.getPool(t, 1)
		assert.Equal(t, model.PoolStatusActive, pool.Status)
		assert.Equal(t, int64(0), pool.TotalTokens)
		assert.Equal(t, int64(1000), pool.TargetTokens)
		assert.Equal(t, 20, pool.CharityPercentage)
		assert.Equal(t, 70, pool.TopContributorsPercentage)
		assert.Equal(t, 2, pool.MaxTopContributors)
	})

	t.Run("已有轮次时不重复创建", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedPool(t, 3, model.PoolStatusActive)
		svc := NewPoolService(env.db, env.rdb, env.cfg)

		require.NoError(t, svc.EnsureActivePool(ctx))

		var count int64
		require.NoError(t, env.db.Model(&model.Pool{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})
}

// 销毁 3 件（350×3 = 1050 ≥ 目标 1000）后结算整轮：
// 头部池 = 1050×70% = 735，名额 2 -> 每席 367；
// 唯一贡献者只占第 1 名，拿 367 而不是 735；
// 慈善池 = 1050×20% = 210；余数 735-367×2=1 和 5% 留在池内
func TestExecuteDistribution(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*testEnv, *PoolService) {
		env := newTestEnv(t)
		env.seedAccount(t, 1, "alice", 0)
		env.seedPool(t, 1, model.PoolStatusActive)

		nftSvc := NewNftService(env.db, env.rdb, env.cfg)
		for i := 0; i < 3; i++ {
			nft := env.seedNft(t, 1, model.MintStatusMinted)
			_, err := nftSvc.Burn(ctx, 1, nft.ID)
			require.NoError(t, err)
		}

		pool := env.getPool(t, 1)
		require.Equal(t, int64(1050), pool.TotalTokens)
		require.Equal(t, model.PoolStatusDistributing, pool.Status)

		return env, NewPoolService(env.db, env.rdb, env.cfg)
	}

	t.Run("独占榜首只拿一席的份额", func(t *testing.T) {
		env, svc := setup(t)

		require.NoError(t, svc.Execute(ctx, 1))

		assert.Equal(t, int64(367), env.getBalance(t, 1))

		var distributions []*model.Distribution
		require.NoError(t, env.db.Where("pool_round = ?", 1).Order("is_charity asc").Find(&distributions).Error)
		require.Len(t, distributions, 2)

		winner := distributions[0]
		assert.Equal(t, int64(1), winner.UserID)
		assert.Equal(t, int64(367), winner.TokenAmount)
		require.NotNil(t, winner.Rank)
		assert.Equal(t, 1, *winner.Rank)
		assert.False(t, winner.IsCharity)

		charity := distributions[1]
		assert.Equal(t, model.CharityUserID, charity.UserID)
		assert.Equal(t, int64(210), charity.TokenAmount)
		assert.True(t, charity.IsCharity)
		assert.Equal(t, "测试基金会", charity.CharityName)

		completed := env.getPool(t, 1)
		assert.Equal(t, model.PoolStatusCompleted, completed.Status)
		assert.NotNil(t, completed.LastDistributionAt)

		// 下一轮自动开启且参数继承
		next := env.getPool(t, 2)
		assert.Equal(t, model.PoolStatusActive, next.Status)
		assert.Equal(t, int64(0), next.TotalTokens)
		assert.Equal(t, int64(1000), next.TargetTokens)
		assert.Equal(t, 2, next.MaxTopContributors)

		// 奖励流水
		var txn model.AccountTransaction
		require.NoError(t, env.db.Where("user_id = ? AND type = ?", 1, model.TransactionTypeReward).First(&txn).Error)
		assert.Equal(t, int64(367), txn.Amount)
		assert.Equal(t, int64(0), txn.BalanceBefore)
		assert.Equal(t, int64(367), txn.BalanceAfter)
	})

	t.Run("两席坐满时各拿一份", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAccount(t, 1, "alice", 0)
		env.seedAccount(t, 2, "bob", 0)
		env.seedPool(t, 1, model.PoolStatusActive)

		nftSvc := NewNftService(env.db, env.rdb, env.cfg)
		burn := func(userID int64, times int) {
			for i := 0; i < times; i++ {
				nft := env.seedNft(t, userID, model.MintStatusMinted)
				_, err := nftSvc.Burn(ctx, userID, nft.ID)
				require.NoError(t, err)
			}
		}
		burn(1, 2)
		burn(2, 1)

		svc := NewPoolService(env.db, env.rdb, env.cfg)
		require.NoError(t, svc.Execute(ctx, 1))

		assert.Equal(t, int64(367), env.getBalance(t, 1))
		assert.Equal(t, int64(367), env.getBalance(t, 2))
	})

	t.Run("重复结算幂等", func(t *testing.T) {
		env, svc := setup(t)

		require.NoError(t, svc.Execute(ctx, 1))
		balanceAfterFirst := env.getBalance(t, 1)

		err := svc.Execute(ctx, 1)
		assert.ErrorIs(t, err, ErrDistributionCompleted)

		assert.Equal(t, balanceAfterFirst, env.getBalance(t, 1))

		var count int64
		require.NoError(t, env.db.Model(&model.Distribution{}).Where("pool_round = ?", 1).Count(&count).Error)
		assert.Equal(t, int64(2), count)
	})

	t.Run("未达标的轮次不能结算", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedPool(t, 1, model.PoolStatusActive)
		svc := NewPoolService(env.db, env.rdb, env.cfg)

		err := svc.Execute(ctx, 1)
		assert.ErrorIs(t, err, repository.ErrPoolStatusInvalid)
	})

	t.Run("轮次不存在", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewPoolService(env.db, env.rdb, env.cfg)

		err := svc.Execute(ctx, 42)
		assert.ErrorIs(t, err, repository.ErrPoolNotFound)
	})
}

func TestGetPoolStats(t *testing.T) {
	ctx := context.Background()

	t.Run("带用户视角的看板", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAccount(t, 1, "alice", 0)
		env.seedAccount(t, 2, "bob", 0)
		// 目标抬高，销毁 3 件后轮次仍处于 ACTIVE
		require.NoError(t, env.db.Create(&model.Pool{
			DistributionRound:         1,
			TargetTokens:              10000,
			Status:                    model.PoolStatusActive,
			CharityPercentage:         20,
			TopContributorsPercentage: 70,
			MaxTopContributors:        2,
		}).Error)

		nftSvc := NewNftService(env.db, env.rdb, env.cfg)
		for _, userID := range []int64{1, 1, 2} {
			nft := env.seedNft(t, userID, model.MintStatusMinted)
			_, err := nftSvc.Burn(ctx, userID, nft.ID)
			require.NoError(t, err)
		}

		svc := NewPoolService(env.db, env.rdb, env.cfg)
		userID := int64(2)
		stats, err := svc.GetPoolStats(ctx, &userID)
		require.NoError(t, err)

		assert.Equal(t, 1, stats.DistributionRound)
		assert.Equal(t, model.PoolStatusActive, stats.Status)
		assert.Equal(t, int64(1050), stats.TotalTokens)
		assert.Equal(t, int64(10000), stats.TargetTokens)
		assert.Equal(t, int64(1050), stats.BurnedToday)

		require.NotNil(t, stats.TopContributor)
		assert.Equal(t, int64(1), stats.TopContributor.UserID)

		require.NotNil(t, stats.UserTotal)
		assert.Equal(t, int64(350), *stats.UserTotal)
		require.NotNil(t, stats.UserRank)
		assert.Equal(t, 2, *stats.UserRank)
		require.NotNil(t, stats.UserProjectedRank)
		assert.Equal(t, 1, *stats.UserProjectedRank) // 再销毁一件变 700，并列不劣于 700 -> 第1
	})

	t.Run("无轮次时报未找到", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewPoolService(env.db, env.rdb, env.cfg)

		_, err := svc.GetPoolStats(ctx, nil)
		assert.ErrorIs(t, err, repository.ErrPoolNotFound)
	})
}
