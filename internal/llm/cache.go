package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"
)

// Cache — хранилище ответов completion моделей.
type Cache interface {
	// Get возвращает ответ и true, если ключ найден.
	Get(ctx context.Context, key string) (*Completion, bool, error)

	// Set сохраняет ответ. ttl == 0 — без срока жизни.
	Set(ctx context.Context, key string, c *Completion, ttl time.Duration) error
}

// CacheConfig — настройки CachedCompleter.
type CacheConfig struct {
	// Namespace отделяет ключи разных моделей и настроек.
	Namespace string

	// TTL — срок жизни записи. 0 — без ограничения.
	TTL time.Duration

	// Logger — логгер. По умолчанию slog.Default().
	Logger *slog.Logger
}

// CachedCompleter возвращает сохранённый ответ для уже виденного промпта.
//
// Ошибки кэша не прерывают генерацию: они логируются, и вызов идёт
// в backend.
type CachedCompleter struct {
	next   Completer
	cache  Cache
	cfg    CacheConfig
	logger *slog.Logger
}

// NewCachedCompleter оборачивает Completer кэшем.
func NewCachedCompleter(next Completer, cache Cache, cfg CacheConfig) *CachedCompleter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedCompleter{next: next, cache: cache, cfg: cfg, logger: logger}
}

// Complete реализует Completer.
func (c *CachedCompleter) Complete(ctx context.Context, prompt string) (*Completion, error) {
	key := cacheKey(c.cfg.Namespace, prompt)

	cached, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("completion cache get failed", "key", key, "error", err)
	}
	if ok {
		out := *cached
		out.Cached = true
		out.Retries = 0
		return &out, nil
	}

	res, err := c.next.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, res, c.cfg.TTL); err != nil {
		c.logger.Warn("completion cache set failed", "key", key, "error", err)
	}
	return res, nil
}

// cacheKey — sha256 от namespace и промпта.
func cacheKey(namespace, prompt string) string {
	h := sha256.New()
	h.Write([]byte(namespace))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}

// MemoryCache — Cache в памяти процесса.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	completion Completion
	expiresAt  time.Time
}

// NewMemoryCache создаёт пустой кэш.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]memoryItem), now: time.Now}
}

// Get реализует Cache.
func (m *MemoryCache) Get(_ context.Context, key string) (*Completion, bool, error) {
	m.mu.RLock()
	item, ok := m.items[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if !item.expiresAt.IsZero() && m.now().After(item.expiresAt) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return nil, false, nil
	}

	c := item.completion
	return &c, true, nil
}

// Set реализует Cache.
func (m *MemoryCache) Set(_ context.Context, key string, c *Completion, ttl time.Duration) error {
	item := memoryItem{completion: *c}
	if ttl > 0 {
		item.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.items[key] = item
	m.mu.Unlock()
	return nil
}

// Len возвращает количество записей.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
