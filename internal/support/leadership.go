package support

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultLockTTL     = 45 * time.Second
	renewalTimeout     = 5 * time.Second
	minRenewalInterval = time.Second
	renewalFraction    = 3
)

var (
	ErrLockHeld = errors.New("support: lock held by another instance")

	lockCounter atomic.Uint64

	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)
)

// TryWithLock makes a single attempt to take the Redis lock at key and runs fn
// while holding it. The lock is renewed in the background and released when fn
// returns. The context passed to fn is cancelled if the lock is lost.
// ErrLockHeld is returned without calling fn when another owner holds the key.
func TryWithLock(ctx context.Context, client redis.Cmdable, key string, ttl time.Duration, fn func(context.Context) error) error {
	if fn == nil {
		return errors.New("support: lock function cannot be nil")
	}
	if client == nil {
		return fn(ctx)
	}
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}

	value := generateLockID()
	ok, err := client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return fmt.Errorf("support: acquire lock %s: %w", key, err)
	}
	if !ok {
		return ErrLockHeld
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	session := &lockSession{
		client:    client,
		key:       key,
		value:     value,
		ttl:       ttl,
		ctx:       sessionCtx,
		cancel:    cancel,
		stopRenew: make(chan struct{}),
	}
	go session.renewLoop()
	defer session.Close()

	log.Debug("cycle lock: acquired", "key", key)
	return fn(sessionCtx)
}

type lockSession struct {
	client    redis.Cmdable
	key       string
	value     string
	ttl       time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	stopRenew chan struct{}
	closeOnce sync.Once
}

func (ls *lockSession) Close() {
	ls.closeOnce.Do(func() {
		close(ls.stopRenew)
		ls.cancel()
		if err := ls.releaseLock(); err != nil {
			log.Warn("cycle lock: release failed", "key", ls.key, "error", err)
			return
		}
		log.Debug("cycle lock: released", "key", ls.key)
	})
}

func (ls *lockSession) renewLoop() {
	interval := ls.ttl / renewalFraction
	if interval < minRenewalInterval {
		interval = minRenewalInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ls.stopRenew:
			return
		case <-ls.ctx.Done():
			return
		case <-ticker.C:
			if err := ls.renewLock(); err != nil {
				log.Warn("cycle lock: renewal failed", "key", ls.key, "error", err)
				ls.cancel()
				return
			}
		}
	}
}

func (ls *lockSession) renewLock() error {
	ctx, cancel := context.WithTimeout(context.Background(), renewalTimeout)
	defer cancel()

	res, err := renewScript.Run(ctx, ls.client, []string{ls.key}, ls.value, ls.ttl.Milliseconds()).Result()
	if err != nil {
		return err
	}
	if updated, ok := res.(int64); ok && updated == 0 {
		return errors.New("lock lost")
	}
	return nil
}

func (ls *lockSession) releaseLock() error {
	ctx, cancel := context.WithTimeout(context.Background(), renewalTimeout)
	defer cancel()

	_, err := releaseScript.Run(ctx, ls.client, []string{ls.key}, ls.value).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func generateLockID() string {
	host, _ := os.Hostname()
	counter := lockCounter.Add(1)
	return fmt.Sprintf("%s-%d-%d-%d", host, os.Getpid(), time.Now().UnixNano(), counter)
}
