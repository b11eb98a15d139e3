package settings

// DB config keys and defaults for settings.
const (
	// RateLimitMaxPerWindowKey controls how many lookups an identity may run per window.
	RateLimitMaxPerWindowKey = "RATE_LIMIT_MAX_PER_WINDOW"
	// RateLimitWindowSecondsKey controls the fixed window length in seconds.
	RateLimitWindowSecondsKey = "RATE_LIMIT_WINDOW_SECONDS"
	// RateLimitRedisEnabledKey toggles Redis-backed rate limiting.
	RateLimitRedisEnabledKey = "RATE_LIMIT_REDIS_ENABLED"
	// RateLimitRedisAddrKey defines the Redis address for rate limiting.
	RateLimitRedisAddrKey = "RATE_LIMIT_REDIS_ADDR"
	// RateLimitRedisPasswordKey defines the Redis password for rate limiting.
	RateLimitRedisPasswordKey = "RATE_LIMIT_REDIS_PASSWORD"
	// RateLimitRedisDBKey defines the Redis DB index for rate limiting.
	RateLimitRedisDBKey = "RATE_LIMIT_REDIS_DB"
	// RateLimitRedisPrefixKey defines the Redis key prefix for rate limiting.
	RateLimitRedisPrefixKey = "RATE_LIMIT_REDIS_PREFIX"
	// DefaultRateLimitMaxPerWindow is the fallback number of lookups per window.
	DefaultRateLimitMaxPerWindow = 10
	// DefaultRateLimitWindowSeconds is the fallback window length (one hour).
	DefaultRateLimitWindowSeconds = 3600
	// DefaultRateLimitRedisPrefix is the fallback Redis key prefix.
	DefaultRateLimitRedisPrefix = "namebot:rl"
)
