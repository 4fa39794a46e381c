// Package cache puts Redis in front of the device registry so hot devices are
// resolved without a database round trip.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"igx_tracker/internal/models"
	"igx_tracker/internal/store"
)

const keyPrefix = "igx:device:"

// DefaultTTL is used when a zero TTL is configured.
const DefaultTTL = 24 * time.Hour

// Key returns the cache key for imei.
func Key(imei string) string { return keyPrefix + imei }

type cachedDevice struct {
	ID    uint    `json:"id"`
	IMEI  string  `json:"imei"`
	Alias *string `json:"alias,omitempty"`
}

// RedisRegistry wraps a DeviceRegistry. Redis is best effort: any Redis error
// is logged and the wrapped registry answers instead.
type RedisRegistry struct {
	rdb  redis.UniversalClient
	next store.DeviceRegistry
	ttl  time.Duration
}

// Dial connects to addr and pings it.
func Dial(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	logrus.WithField("addr", addr).Info("redis connected")
	return rdb, nil
}

// NewRedisRegistry caches lookups of next in rdb for ttl.
func NewRedisRegistry(rdb redis.UniversalClient, next store.DeviceRegistry, ttl time.Duration) *RedisRegistry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisRegistry{rdb: rdb, next: next, ttl: ttl}
}

func (r *RedisRegistry) FindOrCreateDevice(ctx context.Context, imei string) (*models.Device, error) {
	if dev, ok := r.lookup(ctx, imei); ok {
		return dev, nil
	}
	dev, err := r.next.FindOrCreateDevice(ctx, imei)
	if err != nil {
		return nil, err
	}
	r.remember(ctx, dev)
	return dev, nil
}

// Forget drops the cached entry, e.g. after an alias change.
func (r *RedisRegistry) Forget(ctx context.Context, imei string) {
	if err := r.rdb.Del(ctx, Key(imei)).Err(); err != nil {
		logrus.WithError(err).WithField("imei", imei).Warn("redis DEL failed")
	}
}

func (r *RedisRegistry) lookup(ctx context.Context, imei string) (*models.Device, bool) {
	val, err := r.rdb.Get(ctx, Key(imei)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logrus.WithError(err).WithField("imei", imei).Warn("redis GET failed, using database")
		}
		return nil, false
	}
	var c cachedDevice
	if err := json.Unmarshal(val, &c); err != nil || c.ID == 0 || c.IMEI != imei {
		logrus.WithField("imei", imei).Warn("ignoring malformed cache entry")
		return nil, false
	}
	dev := &models.Device{IMEI: c.IMEI, Alias: c.Alias}
	dev.ID = c.ID
	return dev, true
}

func (r *RedisRegistry) remember(ctx context.Context, dev *models.Device) {
	b, err := json.Marshal(cachedDevice{ID: dev.ID, IMEI: dev.IMEI, Alias: dev.Alias})
	if err != nil {
		return
	}
	if err := r.rdb.Set(ctx, Key(dev.IMEI), b, r.ttl).Err(); err != nil {
		logrus.WithError(err).WithField("imei", dev.IMEI).Warn("redis SET failed")
	}
}
