package service

import (
	"context"
	"testing"

	"tokenpool/internal/model"
	"tokenpool/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMint(t *testing.T) {
	ctx := context.Background()

	t.Run("余额恰好等于铸造费用时成功且余额归零", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAccount(t, 1, "alice", 350)
		nft := env.seedNft(t, 1, model.MintStatusUnminted)
		svc := NewNftService(env.db, env.rdb, env.cfg)

		minted, err := svc.Mint(ctx, 1, nft.ID)
		require.NoError(t, err)

		assert.Equal(t, model.MintStatusMinted, minted.MintStatus)
		assert.NotNil(t, minted.MintedAt)
		assert.Equal(t, int64(0), env.getBalance(t, 1))
	})

	t.Run("余额差一个代币时失败", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAccount(t, 1, "alice", 349)
		nft := env.seedNft(t, 1, model.MintStatusUnminted)
		svc := NewNftService(env.db, env.rdb, env.cfg)

		_, err := svc.Mint(ctx, 1, nft.ID)
		assert.ErrorIs(t, err, repository.ErrBalanceNotEnough)
		assert.Equal(t, int64(349), env.getBalance(t, 1))
	})

	t.Run("非持有人铸造被拒绝", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAccount(t, 1, "alice", 1000)
		env.seedAccount(t, 2, "bob", 1000)
		nft := env.seedNft(t, 1, model.MintStatusUnminted)
		svc := NewNftService(env.db, env.rdb, env.cfg)

		_, err := svc.Mint(ctx, 2, nft.ID)
		assert.ErrorIs(t, err, ErrNotOwner)
	})

	t.Run("重复铸造被拒绝", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAccount(t, 1, "alice", 1000)
		nft := env.seedNft(t, 1, model.MintStatusUnminted)
		svc := NewNftService(env.db, env.rdb, env.cfg)

		_, err := svc.Mint(ctx, 1, nft.ID)
		require.NoError(t, err)

		_, err = svc.Mint(ctx, 1, nft.ID)
		assert.ErrorIs(t, err, repository.ErrNftStatusInvalid)
		// 只扣了一次钱
		assert.Equal(t, int64(650), env.getBalance(t, 1))
	})

	t.Run("NFT 不存在", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAccount(t, 1, "alice", 1000)
		svc := NewNftService(env.db, env.rdb, env.cfg)

		_, err := svc.Mint(ctx, 1, 99999)
		assert.ErrorIs(t, err, repository.ErrNftNotFound)
	})
}

func TestBurn(t *testing.T) {
	ctx := context.Background()

	t.Run("销毁写入贡献流水并累计奖池", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAccount(t, 1, "alice", 0)
		env.seedPool(t, 1, model.PoolStatusActive)
		nft := env.seedNft(t, 1, model.MintStatusMinted)
		svc := NewNftService(env.db, env.rdb, env.cfg)

		contribution, err := svc.Burn(ctx, 1, nft.ID)
		require.NoError(t, err)

		assert.Equal(t, int64(350), contribution.TokenAmount)
		assert.Equal(t, 1, contribution.PoolRound)

		pool := env.getPool(t, 1)
		assert.Equal(t, int64(350), pool.TotalTokens)
		assert.Equal(t, model.PoolStatusActive, pool.Status)

		var burned model.EmotionalNft
		require.NoError(t, env.db.First(&burned, nft.ID).Error)
		assert.Equal(t, model.MintStatusBurned, burned.MintStatus)
		assert.NotNil(t, burned.BurnedAt)
	})

	t.Run("守恒：流水合计等于奖池累计", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAccount(t, 1, "alice", 0)
		env.seedAccount(t, 2, "bob", 0)
		env.seedPool(t, 1, model.PoolStatusActive)
		svc := NewNftService(env.db, env.rdb, env.cfg)

		n1 := env.seedNft(t, 1, model.MintStatusMinted)
		n2 := env.seedNft(t, 2, model.MintStatusMinted)

		_, err := svc.Burn(ctx, 1, n1.ID)
		require.NoError(t, err)
		_, err = svc.Burn(ctx, 2, n2.ID)
		require.NoError(t, err)

		contributionRepo := repository.NewContributionRepository(env.db)
		sum, err := contributionRepo.SumByRound(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, env.getPool(t, 1).TotalTokens, sum)
	})

	t.Run("同一件 NFT 不能销毁两次", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAccount(t, 1, "alice", 0)
		env.seedPool(t, 1, model.PoolStatusActive)
		nft := env.seedNft(t, 1, model.MintStatusMinted)
		svc := NewNftService(env.db, env.rdb, env.cfg)

		_, err := svc.Burn(ctx, 1, nft.ID)
		require.NoError(t, err)

		_, err = svc.Burn(ctx, 1, nft.ID)
		assert.ErrorIs(t, err, repository.ErrNftStatusInvalid)

		// 池里只多了一次
		assert.Equal(t, int64(350), env.getPool(t, 1).TotalTokens)

		var count int64
		env.db.Model(&model.Contribution{}).Where("nft_id = ?", nft.ID).Count(&count)
		assert.Equal(t, int64(1), count)
	})

	t.Run("达标后翻转为 DISTRIBUTING 并排期", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAccount(t, 1, "alice", 0)
		env.seedPool(t, 1, model.PoolStatusActive)
		svc := NewNftService(env.db, env.rdb, env.cfg)

		// 350 * 3 = 1050 >= 1000
		for i := 0; i < 3; i++ {
			nft := env.seedNft(t, 1, model.MintStatusMinted)
			_, err := svc.Burn(ctx, 1, nft.ID)
			require.NoError(t, err)
		}

		pool := env.getPool(t, 1)
		assert.Equal(t, model.PoolStatusDistributing, pool.Status)
		assert.Equal(t, int64(1050), pool.TotalTokens)
		require.NotNil(t, pool.NextDistributionDate)
	})

	t.Run("没有进行中轮次时销毁失败且不改状态", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAccount(t, 1, "alice", 0)
		env.seedPool(t, 1, model.PoolStatusDistributing)
		nft := env.seedNft(t, 1, model.MintStatusMinted)
		svc := NewNftService(env.db, env.rdb, env.cfg)

		_, err := svc.Burn(ctx, 1, nft.ID)
		assert.ErrorIs(t, err, repository.ErrNoActivePool)

		var untouched model.EmotionalNft
		require.NoError(t, env.db.First(&untouched, nft.ID).Error)
		assert.Equal(t, model.MintStatusMinted, untouched.MintStatus)
	})

	t.Run("未铸造的 NFT 不能销毁", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAccount(t, 1, "alice", 0)
		env.seedPool(t, 1, model.PoolStatusActive)
		nft := env.seedNft(t, 1, model.MintStatusUnminted)
		svc := NewNftService(env.db, env.rdb, env.cfg)

		_, err := svc.Burn(ctx, 1, nft.ID)
		assert.ErrorIs(t, err, repository.ErrNftStatusInvalid)
	})
}

func TestGift(t *testing.T) {
	ctx := context.Background()

	t.Run("赠送转移所有权并永久占用名额", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAccount(t, 1, "alice", 0)
		env.seedAccount(t, 2, "bob", 0)
		nft := env.seedNft(t, 1, model.MintStatusMinted)
		svc := NewNftService(env.db, env.rdb, env.cfg)

		gifted, err := svc.Gift(ctx, 1, 2, nft.ID)
		require.NoError(t, err)

		assert.Equal(t, int64(2), gifted.UserID)
		require.NotNil(t, gifted.GiftedTo)
		assert.Equal(t, int64(2), *gifted.GiftedTo)
	})

	t.Run("每件只能赠送一次", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAccount(t, 1, "alice", 0)
		env.seedAccount(t, 2, "bob", 0)
		env.seedAccount(t, 3, "carol", 0)
		nft := env.seedNft(t, 1, model.MintStatusMinted)
		svc := NewNftService(env.db, env.rdb, env.cfg)

		_, err := svc.Gift(ctx, 1, 2, nft.ID)
		require.NoError(t, err)

		// 新持有人转赠也不行，换目标也不行
		_, err = svc.Gift(ctx, 2, 3, nft.ID)
		assert.ErrorIs(t, err, repository.ErrNftAlreadyGifted)
	})

	t.Run("不能赠送给自己", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAccount(t, 1, "alice", 0)
		nft := env.seedNft(t, 1, model.MintStatusMinted)
		svc := NewNftService(env.db, env.rdb, env.cfg)

		_, err := svc.Gift(ctx, 1, 1, nft.ID)
		assert.ErrorIs(t, err, ErrSelfGift)
	})

	t.Run("未铸造或已销毁的不能赠送", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAccount(t, 1, "alice", 0)
		env.seedAccount(t, 2, "bob", 0)
		svc := NewNftService(env.db, env.rdb, env.cfg)

		unminted := env.seedNft(t, 1, model.MintStatusUnminted)
		_, err := svc.Gift(ctx, 1, 2, unminted.ID)
		assert.ErrorIs(t, err, repository.ErrNftStatusInvalid)

		burned := env.seedNft(t, 1, model.MintStatusBurned)
		_, err = svc.Gift(ctx, 1, 2, burned.ID)
		assert.ErrorIs(t, err, repository.ErrNftStatusInvalid)
	})

	t.Run("非持有人不能赠送", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAccount(t, 1, "alice", 0)
		env.seedAccount(t, 2, "bob", 0)
		nft := env.seedNft(t, 1, model.MintStatusMinted)
		svc := NewNftService(env.db, env.rdb, env.cfg)

		_, err := svc.Gift(ctx, 2, 1, nft.ID)
		assert.ErrorIs(t, err, ErrNotOwner)
	})
}

func TestGenerateForCriteria(t *testing.T) {
	ctx := context.Background()

	t.Run("同一条件重复上报只发放一次", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAccount(t, 1, "alice", 0)
		svc := NewNftService(env.db, env.rdb, env.cfg)

		criteria := []IssuanceCriterion{
			{ActivityType: "streak", Milestone: "7days"},
			{ActivityType: "streak", Milestone: "30days"},
		}

		created, err := svc.GenerateForCriteria(ctx, 1, criteria)
		require.NoError(t, err)
		assert.Len(t, created, 2)

		again, err := svc.GenerateForCriteria(ctx, 1, criteria)
		require.NoError(t, err)
		assert.Empty(t, again)

		var count int64
		env.db.Model(&model.EmotionalNft{}).Where("user_id = ?", 1).Count(&count)
		assert.Equal(t, int64(2), count)
	})

	t.Run("发放的 NFT 是未铸造状态且属性确定", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAccount(t, 1, "alice", 0)
		env.seedAccount(t, 2, "bob", 0)
		svc := NewNftService(env.db, env.rdb, env.cfg)

		criterion := []IssuanceCriterion{{ActivityType: "streak", Milestone: "7days"}}

		forAlice, err := svc.GenerateForCriteria(ctx, 1, criterion)
		require.NoError(t, err)
		require.Len(t, forAlice, 1)
		assert.Equal(t, model.MintStatusUnminted, forAlice[0].MintStatus)

		// 属性只由条件键推导，不同用户拿到的同条件 NFT 属性一致
		forBob, err := svc.GenerateForCriteria(ctx, 2, criterion)
		require.NoError(t, err)
		require.Len(t, forBob, 1)
		assert.Equal(t, forAlice[0].Emotion, forBob[0].Emotion)
		assert.Equal(t, forAlice[0].Rarity, forBob[0].Rarity)
	})
}
