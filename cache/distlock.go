package cache

import (
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
)

// DistributedLockService 分布式锁服务，为投票链提供跨实例的排序保证
type DistributedLockService struct {
	rs *redsync.Redsync
}

// NewDistributedLockService 基于现有Redis客户端创建分布式锁服务
func NewDistributedLockService() (*DistributedLockService, error) {
	client, err := GetClient()
	if err != nil {
		return nil, err
	}

	pool := goredis.NewPool(client)
	return &DistributedLockService{rs: redsync.New(pool)}, nil
}

// AcquireLock 尝试获取锁，带有超时时间。
// 重试次数和延迟有界，获取不到时由调用方转换为竞争错误。
func (s *DistributedLockService) AcquireLock(lockName string, expiry time.Duration) (mutex *redsync.Mutex, acquired bool, err error) {
	mutex = s.rs.NewMutex(lockName,
		redsync.WithExpiry(expiry),
		redsync.WithTries(5),                        // 最大重试次数
		redsync.WithRetryDelay(50*time.Millisecond), // 重试延迟
		redsync.WithDriftFactor(0.01),               // 时钟漂移因子
	)

	if err = mutex.Lock(); err != nil {
		return nil, false, err
	}

	return mutex, true, nil
}

// ReleaseLock 释放锁
func (s *DistributedLockService) ReleaseLock(mutex *redsync.Mutex) (bool, error) {
	return mutex.Unlock()
}

// WithLock 在锁内执行操作
func (s *DistributedLockService) WithLock(lockName string, expiry time.Duration, action func() error) error {
	mutex, acquired, err := s.AcquireLock(lockName, expiry)
	if err != nil {
		return err
	}

	if !acquired {
		return ErrLockNotAcquired
	}

	// 确保解锁
	defer func() {
		_, _ = s.ReleaseLock(mutex)
	}()

	return action()
}
