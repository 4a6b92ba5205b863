package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "llmflows:completion:"

// RedisConfig — настройки подключения к Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Prefix — префикс ключей. По умолчанию "llmflows:completion:".
	Prefix string
}

// RedisConfigFromEnv читает REDIS_ADDR, REDIS_PASSWORD и REDIS_DB.
func RedisConfigFromEnv() RedisConfig {
	cfg := RedisConfig{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
	}
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.DB = db
		}
	}
	return cfg
}

// RedisCache — Cache поверх Redis. Ответы хранятся в JSON.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCache подключается к Redis.
func NewRedisCache(cfg RedisConfig) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisCacheWithClient(client, cfg.Prefix)
}

// NewRedisCacheWithClient использует готовый клиент (cluster, sentinel).
func NewRedisCacheWithClient(client redis.UniversalClient, prefix string) *RedisCache {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisCache{client: client, prefix: prefix}
}

// Ping проверяет соединение.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Get реализует Cache.
func (r *RedisCache) Get(ctx context.Context, key string) (*Completion, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var c Completion
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, false, fmt.Errorf("decode cached completion: %w", err)
	}
	return &c, true, nil
}

// Set реализует Cache.
func (r *RedisCache) Set(ctx context.Context, key string, c *Completion, ttl time.Duration) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode completion: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close закрывает соединение.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
