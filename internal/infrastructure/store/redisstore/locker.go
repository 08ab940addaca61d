package redisstore

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tetkool/concierge/internal/domain/conversation"
)

const (
	DefaultLockExpiry     = 4 * time.Minute
	DefaultLockRetryDelay = 250 * time.Millisecond
)

// LockerConfig tunes the per-user lock.
type LockerConfig struct {
	KeyPrefix string
	// Expiry is the lease length. A held lock is renewed every Expiry/2, so it
	// only lapses when the holder dies.
	Expiry     time.Duration
	RetryDelay time.Duration
	// MaxWait bounds how long Lock waits for another holder; 0 waits until ctx is done.
	MaxWait time.Duration
}

// Locker serializes turns for one user across replicas with a redsync mutex.
type Locker struct {
	rs  *redsync.Redsync
	cfg LockerConfig
	log zerolog.Logger
}

func NewLocker(client redis.UniversalClient, cfg LockerConfig, log zerolog.Logger) *Locker {
	if cfg.Expiry <= 0 {
		cfg.Expiry = DefaultLockExpiry
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultLockRetryDelay
	}
	return &Locker{
		rs:  redsync.New(goredis.NewPool(client)),
		cfg: cfg,
		log: log.With().Str("component", "redis-locker").Logger(),
	}
}

// Lock waits for the user's lock until ctx is done (or MaxWait passes) and keeps
// the lease alive until the returned unlock is called. unlock is idempotent.
func (l *Locker) Lock(ctx context.Context, userID string) (func(), error) {
	waitCtx := ctx
	if l.cfg.MaxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.cfg.MaxWait)
		defer cancel()
	}

	mutex := l.rs.NewMutex(
		lockKey(l.cfg.KeyPrefix, userID),
		redsync.WithExpiry(l.cfg.Expiry),
		redsync.WithTries(math.MaxInt32),
		redsync.WithRetryDelay(l.cfg.RetryDelay),
	)
	if err := mutex.LockContext(waitCtx); err != nil {
		if ctxErr := waitCtx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("lock conversation %s: %w: %w", userID, ctxErr, err)
		}
		return nil, fmt.Errorf("lock conversation %s: %w", userID, err)
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})
	go l.keepAlive(mutex, userID, stop, stopped)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-stopped
			if _, err := mutex.UnlockContext(context.WithoutCancel(ctx)); err != nil {
				l.log.Error().Err(err).Str("user_id", userID).Msg("failed to unlock conversation")
			}
		})
	}, nil
}

// keepAlive extends the lease every Expiry/2 until stop is closed.
func (l *Locker) keepAlive(mutex *redsync.Mutex, userID string, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	interval := l.cfg.Expiry / 2
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			ok, err := mutex.ExtendContext(ctx)
			cancel()
			if !ok {
				l.log.Error().Err(err).Str("user_id", userID).Msg("failed to extend conversation lock")
			}
		}
	}
}

var _ conversation.Locker = (*Locker)(nil)
