package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Xcertik-Realist/X-name-change-bot/internal/metrics"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const redisBreakerDuration = 30 * time.Second

// SettingsProvider supplies the latest settings snapshot.
type SettingsProvider func() SettingsConfig

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

type redisConfig struct {
	addr     string
	password string
	prefix   string
	db       int
}

// ErrBackendUnavailable is returned while Redis is enabled but cannot be reached.
// Admission fails closed; counts are never split across two stores.
var ErrBackendUnavailable = errors.New("rate limit: redis backend unavailable")

// Manager selects a limiter backend and enforces the admission policy.
// Redis decides when enabled; otherwise the primary limiter does. While the
// Redis breaker is open, Allow returns ErrBackendUnavailable.
type Manager struct {
	provider       SettingsProvider
	nowFn          func() time.Time
	primary        Limiter
	newRedisClient RedisClientFactory
	mu             sync.Mutex
	redisLimiter   *RedisLimiter
	redisCfg       redisConfig
	breakerUntil   time.Time
}

// NewManager constructs a Manager with default dependencies when nil.
func NewManager(provider SettingsProvider, primary Limiter, nowFn func() time.Time, newRedisClient RedisClientFactory) *Manager {
	if provider == nil {
		provider = LoadSettingsConfig
	}
	if primary == nil {
		primary = NewMemoryLimiter()
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if newRedisClient == nil {
		newRedisClient = redis.NewClient
	}
	return &Manager{
		provider:       provider,
		nowFn:          nowFn,
		primary:        primary,
		newRedisClient: newRedisClient,
	}
}

// Allow checks whether identity may run another request using the configured backend.
func (m *Manager) Allow(ctx context.Context, identity int64) (Result, error) {
	if m == nil {
		return Result{Allowed: true}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := m.nowFn()
	cfg := m.provider()
	policy := cfg.Policy()

	if cfg.RedisEnabled {
		result, errRedis := m.allowRedis(ctx, identity, policy, now, cfg)
		if errRedis != nil {
			return Result{}, errRedis
		}
		metrics.ObserveAdmission("redis", result.Allowed)
		return result, nil
	}
	result, errAllow := m.primary.Allow(ctx, identity, policy, now)
	if errAllow != nil {
		return Result{}, errAllow
	}
	metrics.ObserveAdmission("primary", result.Allowed)
	return result, nil
}

// Close releases the Redis client, if any.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redisLimiter == nil {
		return nil
	}
	errClose := m.redisLimiter.client.Close()
	m.redisLimiter = nil
	return errClose
}

func (m *Manager) allowRedis(ctx context.Context, identity int64, policy Policy, now time.Time, cfg SettingsConfig) (Result, error) {
	if m.isBreakerActive(now) {
		return Result{}, ErrBackendUnavailable
	}
	limiter, errEnsure := m.ensureRedis(ctx, cfg)
	if errEnsure != nil {
		m.tripBreaker(errEnsure, now)
		return Result{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, errEnsure)
	}
	result, errAllow := limiter.Allow(ctx, identity, policy, now)
	if errAllow != nil {
		m.tripBreaker(errAllow, now)
		return Result{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, errAllow)
	}
	return result, nil
}

func (m *Manager) isBreakerActive(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breakerUntil.IsZero() {
		return false
	}
	if now.Before(m.breakerUntil) {
		return true
	}
	m.breakerUntil = time.Time{}
	return false
}

func (m *Manager) tripBreaker(err error, now time.Time) {
	if err == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.breakerUntil.IsZero() && now.Before(m.breakerUntil) {
		return
	}
	m.breakerUntil = now.Add(redisBreakerDuration)
	log.WithError(err).Warn("rate limit: redis unavailable, rejecting admissions until it recovers")
}

func (m *Manager) ensureRedis(ctx context.Context, cfg SettingsConfig) (*RedisLimiter, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis: missing address")
	}

	nextCfg := redisConfig{
		addr:     addr,
		password: strings.TrimSpace(cfg.RedisPassword),
		prefix:   strings.TrimSpace(cfg.RedisPrefix),
		db:       cfg.RedisDB,
	}
	if nextCfg.db < 0 {
		nextCfg.db = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.redisLimiter != nil && m.redisCfg == nextCfg {
		return m.redisLimiter, nil
	}
	if m.redisLimiter != nil {
		_ = m.redisLimiter.client.Close()
		m.redisLimiter = nil
	}

	client := m.newRedisClient(&redis.Options{
		Addr:     nextCfg.addr,
		Password: nextCfg.password,
		DB:       nextCfg.db,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	m.redisLimiter = NewRedisLimiter(client, nextCfg.prefix)
	m.redisCfg = nextCfg
	return m.redisLimiter, nil
}
