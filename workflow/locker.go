package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker 按 project_id 的互斥锁。同一项目同一时刻最多一个阶段在执行；
// 轮询读路径不经过 Locker。
type Locker interface {
	// TryAcquire 非阻塞抢锁。抢到返回释放函数，没抢到返回 ErrStageAlreadyRunning。
	TryAcquire(ctx context.Context, projectID string) (release func(), err error)
	// IsHeld 查询某项目的锁是否被持有（删除项目前检查在途阶段用）。
	IsHeld(ctx context.Context, projectID string) bool
}

// MemoryLocker 进程内实现，单实例部署的默认选择。
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

func (l *MemoryLocker) TryAcquire(_ context.Context, projectID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[projectID]; ok {
		return nil, ErrStageAlreadyRunning
	}
	l.held[projectID] = struct{}{}

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.held, projectID)
		})
	}
	return release, nil
}

func (l *MemoryLocker) IsHeld(_ context.Context, projectID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[projectID]
	return ok
}

// RedisLocker 跨进程实现：SET NX + TTL，释放时校验持有者，
// 多副本部署时保证互斥仍然成立。TTL 兜底进程崩溃后锁不被永久占用。
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisLocker{client: client, ttl: ttl}
}

func lockKey(projectID string) string {
	return "automl:stage-lock:" + projectID
}

// releaseScript 只有持有者才能删 key，避免 TTL 过期后误删别人的锁。
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (l *RedisLocker) TryAcquire(ctx context.Context, projectID string) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockKey(projectID), token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire stage lock failed (project=%s): %w", projectID, err)
	}
	if !ok {
		return nil, ErrStageAlreadyRunning
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			// 释放不依赖调用方的 ctx，阶段结束时必须尽力解锁
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(rctx, l.client, []string{lockKey(projectID)}, token).Err()
		})
	}
	return release, nil
}

func (l *RedisLocker) IsHeld(ctx context.Context, projectID string) bool {
	n, err := l.client.Exists(ctx, lockKey(projectID)).Result()
	return err == nil && n > 0
}
