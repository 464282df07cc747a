package bytecode

import (
	"container/list"
	"context"
	"sync"
	"time"

	"sentinel/internal/errors"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultTTL 缓存条目存活时间
	DefaultTTL = 10 * time.Minute

	// DefaultMaxEntries LRU缓存容量上限
	DefaultMaxEntries = 1000

	// DefaultBatchConcurrency 批量获取的默认并发上限
	DefaultBatchConcurrency = 5
)

// CacheConfig 缓存配置
type CacheConfig struct {
	TTL              time.Duration `mapstructure:"ttl"`
	MaxEntries       int           `mapstructure:"max_entries"`
	BatchConcurrency int           `mapstructure:"batch_concurrency"`
}

// DefaultCacheConfig 默认缓存配置
var DefaultCacheConfig = &CacheConfig{
	TTL:              DefaultTTL,
	MaxEntries:       DefaultMaxEntries,
	BatchConcurrency: DefaultBatchConcurrency,
}

// entry 缓存条目。插入后不原地修改，过期或LRU压力下整体淘汰
type entry struct {
	address    string
	code       []byte
	insertedAt time.Time
	element    *list.Element
}

// inflightCall 进行中的取码请求。同一地址的并发调用共享同一次
// 底层获取，首个完成者的结果对所有等待者可见
type inflightCall struct {
	done chan struct{}
	code []byte
	err  error
}

// CacheStats 缓存统计
type CacheStats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Expired   uint64 `json:"expired"`
	Entries   int    `json:"entries"`
}

// Cache 时间和容量双重限制的字节码缓存，封装底层取码能力。
// 过期在访问时惰性检查，不依赖后台清理协程
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	lru      *list.List // front为最近使用
	inflight map[string]*inflightCall

	source Source
	store  *BoltStore // 可选的持久化层
	config *CacheConfig
	logger *logrus.Logger
	stats  CacheStats

	// 时间来源，测试中可注入
	now func() time.Time
}

// NewCache 创建字节码缓存
func NewCache(source Source, config *CacheConfig, logger *logrus.Logger) *Cache {
	if config == nil {
		config = DefaultCacheConfig
	}
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultMaxEntries
	}
	if config.BatchConcurrency <= 0 {
		config.BatchConcurrency = DefaultBatchConcurrency
	}

	return &Cache{
		entries:  make(map[string]*entry),
		lru:      list.New(),
		inflight: make(map[string]*inflightCall),
		source:   source,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// WithStore 挂载持久化存储层。未命中内存时先查磁盘再访问网络
func (c *Cache) WithStore(store *BoltStore) *Cache {
	c.store = store
	return c
}

// Get 获取地址的字节码。命中未过期的缓存直接返回；否则触发一次
// 底层获取，期间同一地址的并发调用共享该次获取
func (c *Cache) Get(ctx context.Context, addr string) ([]byte, error) {
	c.mu.Lock()

	// 检查缓存命中
	if e, exists := c.entries[addr]; exists {
		if c.now().Sub(e.insertedAt) < c.config.TTL {
			c.lru.MoveToFront(e.element)
			c.stats.Hits++
			c.mu.Unlock()
			return e.code, nil
		}
		// 过期条目淘汰，绝不返回过期数据
		c.removeLocked(e)
		c.stats.Expired++
	}

	// 检查是否已有进行中的获取
	if call, exists := c.inflight[addr]; exists {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.code, call.err
		case <-ctx.Done():
			// 调用方放弃等待不会取消他人正在进行的获取
			return nil, ctx.Err()
		}
	}

	// 登记本次获取
	call := &inflightCall{done: make(chan struct{})}
	c.inflight[addr] = call
	c.stats.Misses++
	c.mu.Unlock()

	code, err := c.fetch(ctx, addr)

	call.code = code
	call.err = err
	close(call.done)

	c.mu.Lock()
	delete(c.inflight, addr)
	if err == nil {
		c.insertLocked(addr, code)
	}
	c.mu.Unlock()

	return code, err
}

// fetch 从持久层或底层来源获取字节码
func (c *Cache) fetch(ctx context.Context, addr string) ([]byte, error) {
	if c.store != nil {
		if code, insertedAt, found := c.store.Load(addr); found {
			if c.now().Sub(insertedAt) < c.config.TTL {
				return code, nil
			}
			// 磁盘条目同样遵守TTL
			c.store.Delete(addr)
		}
	}

	code, err := c.source.CodeAt(ctx, addr)
	if err != nil {
		return nil, errors.NewAnalysisError("字节码获取失败", err).WithAddress(addr)
	}

	if c.store != nil {
		if storeErr := c.store.Save(addr, code, c.now()); storeErr != nil && c.logger != nil {
			c.logger.Warnf("持久化字节码失败: %v", storeErr)
		}
	}

	return code, nil
}

// insertLocked 插入条目并执行LRU淘汰，调用方持有锁
func (c *Cache) insertLocked(addr string, code []byte) {
	if old, exists := c.entries[addr]; exists {
		c.removeLocked(old)
	}

	e := &entry{
		address:    addr,
		code:       code,
		insertedAt: c.now(),
	}
	e.element = c.lru.PushFront(e)
	c.entries[addr] = e

	for c.lru.Len() > c.config.MaxEntries {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest.Value.(*entry))
		c.stats.Evictions++
	}
}

// removeLocked 移除条目，调用方持有锁
func (c *Cache) removeLocked(e *entry) {
	c.lru.Remove(e.element)
	delete(c.entries, e.address)
}

// BatchResult 批量获取结果。失败的地址不出现在Codes中，
// 错误单独上报
type BatchResult struct {
	Codes  map[string][]byte
	Errors map[string]error
}

// GetBatch 并行获取一批地址的字节码，并发数受配置限制。
// 单个地址失败不影响其余地址
func (c *Cache) GetBatch(ctx context.Context, addrs []string) *BatchResult {
	result := &BatchResult{
		Codes:  make(map[string][]byte, len(addrs)),
		Errors: make(map[string]error),
	}

	if len(addrs) == 0 {
		return result
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	sem := make(chan struct{}, c.config.BatchConcurrency)

	for _, addr := range addrs {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				mu.Lock()
				result.Errors[addr] = ctx.Err()
				mu.Unlock()
				return
			}

			code, err := c.Get(ctx, addr)

			mu.Lock()
			if err != nil {
				result.Errors[addr] = err
			} else {
				result.Codes[addr] = code
			}
			mu.Unlock()
		}(addr)
	}

	wg.Wait()

	if len(result.Errors) > 0 && c.logger != nil {
		c.logger.Warnf("批量获取字节码部分失败: %d/%d 个地址", len(result.Errors), len(addrs))
	}

	return result
}

// Clear 清空缓存，用于测试隔离和运维主动失效
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
	c.lru.Init()
}

// Stats 返回缓存统计快照
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Entries = len(c.entries)
	return stats
}
