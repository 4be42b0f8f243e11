package cache

import (
	"container/list"
	"context"
	"path"
	"sync"
	"time"
)

const defaultMemoryTTL = 7 * 24 * time.Hour

type memoryItem struct {
	key      string
	data     []byte
	expireAt time.Time
}

func (m *memoryItem) expired(now time.Time) bool {
	return now.After(m.expireAt)
}

// MemoryCache implements Service in process with LRU eviction.
// Values are kept in encoded form so readers never share mutable state.
type MemoryCache struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	order   *list.List // front = most recently used
	maxSize int
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		items:   make(map[string]*list.Element),
		order:   list.New(),
		maxSize: cfg.MaxSize,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if cfg.Clock != nil {
		mc.now = cfg.Clock
	}

	if cfg.CleanupInterval > 0 {
		go mc.cleanupExpired(cfg.CleanupInterval)
	}
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	mc.setBytes(key, data, expiration)
	return nil
}

func (mc *MemoryCache) setBytes(key string, data []byte, expiration time.Duration) {
	if expiration <= 0 {
		expiration = defaultMemoryTTL
	}
	stored := make([]byte, len(data))
	copy(stored, data)

	mc.mu.Lock()
	defer mc.mu.Unlock()

	item := &memoryItem{key: key, data: stored, expireAt: mc.now().Add(expiration)}
	if el, ok := mc.items[key]; ok {
		el.Value = item
		mc.order.MoveToFront(el)
		return
	}
	for mc.order.Len() >= mc.maxSize {
		mc.removeElement(mc.order.Back())
	}
	mc.items[key] = mc.order.PushFront(item)
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	data, ok := mc.getBytes(key)
	if !ok {
		return ErrCacheMiss
	}
	return decode(data, dest)
}

func (mc *MemoryCache) getBytes(key string) ([]byte, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	el, ok := mc.items[key]
	if !ok {
		return nil, false
	}
	item := el.Value.(*memoryItem)
	if item.expired(mc.now()) {
		mc.removeElement(el)
		return nil, false
	}
	mc.order.MoveToFront(el)
	return item.data, true
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	for _, key := range keys {
		if el, ok := mc.items[key]; ok {
			mc.removeElement(el)
		}
	}
	return nil
}

// DeleteByPattern removes keys matching a glob pattern ("decision:AAPL:*").
func (mc *MemoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	for key, el := range mc.items {
		matched, err := path.Match(pattern, key)
		if err != nil {
			return err
		}
		if matched {
			mc.removeElement(el)
		}
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := mc.now()
	for _, key := range keys {
		if el, ok := mc.items[key]; ok && !el.Value.(*memoryItem).expired(now) {
			return true, nil
		}
	}
	return false, nil
}

// Len reports the number of stored entries, expired or not.
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.order.Len()
}

func (mc *MemoryCache) removeElement(el *list.Element) {
	if el == nil {
		return
	}
	mc.order.Remove(el)
	delete(mc.items, el.Value.(*memoryItem).key)
}

func (mc *MemoryCache) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			mc.mu.Lock()
			now := mc.now()
			for _, el := range mc.items {
				if el.Value.(*memoryItem).expired(now) {
					mc.removeElement(el)
				}
			}
			mc.mu.Unlock()
		case <-mc.stop:
			return
		}
	}
}

// Close stops the cleanup loop.
func (mc *MemoryCache) Close() error {
	mc.once.Do(func() { close(mc.stop) })
	return nil
}
