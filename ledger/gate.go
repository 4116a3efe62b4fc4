package ledger

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"governance-voting-backend/cache"
)

// Gate 是排序闸门：保证同一投票的"读链尾-算哈希-写入"序列串行执行。
// 闸门按投票ID加锁，不同投票之间互不阻塞。
type Gate interface {
	// Acquire 获取指定投票的闸门，返回释放函数。
	// 在限定等待时间内未获取到时返回ErrContention，调用方可退避重试。
	Acquire(ctx context.Context, pollID uint) (release func(), err error)
}

// defaultAcquireWait 本地闸门的默认等待上限
const defaultAcquireWait = 5 * time.Second

// lockExpiry 分布式锁的持有超时，须覆盖一次完整的追加事务
const lockExpiry = 10 * time.Second

// LocalGate 进程内闸门实现：每个投票一个容量为1的槽位。
// 适用于单实例部署和测试。
type LocalGate struct {
	mu    sync.Mutex
	slots map[uint]chan struct{}
	wait  time.Duration
}

// NewLocalGate 创建进程内排序闸门
func NewLocalGate() *LocalGate {
	return &LocalGate{
		slots: make(map[uint]chan struct{}),
		wait:  defaultAcquireWait,
	}
}

// slot 返回投票对应的槽位通道，不存在时创建
func (g *LocalGate) slot(pollID uint) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()

	ch, ok := g.slots[pollID]
	if !ok {
		ch = make(chan struct{}, 1)
		g.slots[pollID] = ch
	}
	return ch
}

// Acquire 获取投票的闸门槽位
func (g *LocalGate) Acquire(ctx context.Context, pollID uint) (func(), error) {
	ch := g.slot(pollID)

	timer := time.NewTimer(g.wait)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrContention, ctx.Err())
	case <-timer.C:
		return nil, fmt.Errorf("%w: poll %d", ErrContention, pollID)
	}
}

// RedisGate 基于Redis分布式锁的闸门实现，多实例部署时保证跨进程串行
type RedisGate struct {
	locks *cache.DistributedLockService
}

// NewRedisGate 创建基于redsync的分布式排序闸门
func NewRedisGate(locks *cache.DistributedLockService) *RedisGate {
	return &RedisGate{locks: locks}
}

// Acquire 获取投票的分布式锁。锁名按投票ID区分，跨投票不互斥。
func (g *RedisGate) Acquire(ctx context.Context, pollID uint) (func(), error) {
	lockName := fmt.Sprintf("vote_chain_lock:%d", pollID)

	mutex, acquired, err := g.locks.AcquireLock(lockName, lockExpiry)
	if err != nil || !acquired {
		return nil, fmt.Errorf("%w: poll %d: %v", ErrContention, pollID, err)
	}

	return func() {
		if _, err := g.locks.ReleaseLock(mutex); err != nil {
			log.Printf("释放投票 %d 的链锁失败: %v", pollID, err)
		}
	}, nil
}
