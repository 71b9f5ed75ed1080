package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 【为什么需要分布式锁？】
//
// 场景：用户对同一件 NFT 连点两次"销毁"（网络抖动导致重复提交）
//
// 如果没有分布式锁：
//   goroutine1: 读到 MINTED -> 销毁 -> 写贡献流水   OK
//   goroutine2: 读到 MINTED -> 销毁 -> 又写一条流水  池里多算了一次！
//
// 数据库层的 CAS 状态流转是最终兜底，锁把冲突挡在事务之前，
// 避免热点行上大量无效事务重试
//
// 【Redis 分布式锁原理】
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - EX: 设置过期时间（防止死锁）
//   - value: 锁持有者标识（释放时验证，防止误删别人的锁）
//
// 释放锁：使用 Lua 脚本保证原子性
//
// ============================================================================

var (
	ErrLockFailed  = errors.New("获取分布式锁失败")
	ErrLockExpired = errors.New("锁已过期")
)

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string        // 锁的 key
	value      string        // 锁的 value（用于验证锁的持有者）
	expiration time.Duration // 锁的过期时间
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	// SET key value NX EX timeout
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
			// 继续重试
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
// Lua 脚本保证"检查持有者 + 删除"的原子性，
// 锁过期后被他人持有时不会误删别人的锁
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// ============================================================================
// 便捷函数：按业务维度加锁
// ============================================================================

// NewNftLock 创建 NFT 操作锁（按 NFT 维度）
//
// 【设计思考】为什么按 NFT 维度而不是按用户维度加锁？
//
// 铸造/销毁/赠送的冲突单元是"这一件收藏品"：
//   - 同一用户可以并发操作自己的不同 NFT，互不阻塞
//   - 赠送涉及两个用户，按用户加锁反而要拿两把锁
// 奖池那一行的热点竞争不靠锁解决，靠 SQL 原子累加
func NewNftLock(client *redis.Client, nftID int64, requestID string) *DistributedLock {
	key := fmt.Sprintf("nft:lock:%d", nftID)
	// value 使用 requestID，便于追踪是哪个请求持有锁
	return NewDistributedLock(client, key, requestID, 30*time.Second)
}

// NewDistributionLock 创建轮次结算锁（按轮次维度）
// 结算必须独占执行；数据库状态 CAS 是幂等兜底，锁避免重复跑空事务
func NewDistributionLock(client *redis.Client, round int, requestID string) *DistributedLock {
	key := fmt.Sprintf("pool:distribute:lock:%d", round)
	return NewDistributedLock(client, key, requestID, 60*time.Second)
}
