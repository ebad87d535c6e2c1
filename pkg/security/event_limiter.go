package security

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
	"time"
)

const limiterShardCount = 16

// EventLimiterConfig 固定窗口计数 + 超限封禁
type EventLimiterConfig struct {
	Window    time.Duration
	MaxEvents int
	Block     time.Duration
}

// DefaultEventLimiterConfig 每秒 15 个事件，超限封禁 30 秒
func DefaultEventLimiterConfig() EventLimiterConfig {
	return EventLimiterConfig{Window: time.Second, MaxEvents: 15, Block: 30 * time.Second}
}

func (c EventLimiterConfig) normalize() EventLimiterConfig {
	def := DefaultEventLimiterConfig()
	if c.Window <= 0 {
		c.Window = def.Window
	}
	if c.MaxEvents <= 0 {
		c.MaxEvents = def.MaxEvents
	}
	if c.Block <= 0 {
		c.Block = def.Block
	}
	return c
}

type limiterEntry struct {
	windowStart  time.Time
	count        int
	blockedUntil time.Time
}

type limiterShard struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
}

// EventLimiter 按身份（用户）限制实时事件频率
// 不是令牌桶：窗口内超过 MaxEvents 后整段封禁 Block 时长
type EventLimiter struct {
	shards [limiterShardCount]*limiterShard

	cfgMu sync.RWMutex
	cfg   EventLimiterConfig

	now func() time.Time
}

func NewEventLimiter(cfg EventLimiterConfig) *EventLimiter {
	l := &EventLimiter{cfg: cfg.normalize(), now: time.Now}
	for i := range l.shards {
		l.shards[i] = &limiterShard{entries: make(map[string]*limiterEntry)}
	}
	return l
}

// WithNowFunc 测试中替换时间源
func (l *EventLimiter) WithNowFunc(now func() time.Time) *EventLimiter {
	l.now = now
	return l
}

// UpdateConfig 配置热更新，已有计数保留
func (l *EventLimiter) UpdateConfig(cfg EventLimiterConfig) {
	l.cfgMu.Lock()
	l.cfg = cfg.normalize()
	l.cfgMu.Unlock()
}

func (l *EventLimiter) Config() EventLimiterConfig {
	l.cfgMu.RLock()
	defer l.cfgMu.RUnlock()
	return l.cfg
}

func (l *EventLimiter) shard(id string) *limiterShard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return l.shards[h.Sum32()%limiterShardCount]
}

// IsAllowed 记录一次事件并返回是否放行
func (l *EventLimiter) IsAllowed(id string) bool {
	cfg := l.Config()
	now := l.now()

	s := l.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		e = &limiterEntry{windowStart: now}
		s.entries[id] = e
	}

	// 封禁期间直接拒绝，不动计数
	if now.Before(e.blockedUntil) {
		return false
	}

	if now.Sub(e.windowStart) >= cfg.Window {
		e.windowStart = now
		e.count = 0
	}

	e.count++
	if e.count > cfg.MaxEvents {
		e.blockedUntil = now.Add(cfg.Block)
		return false
	}
	return true
}

// BlockedSecondsRemaining 剩余封禁秒数（向上取整），未封禁为 0
func (l *EventLimiter) BlockedSecondsRemaining(id string) int {
	now := l.now()

	s := l.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || !now.Before(e.blockedUntil) {
		return 0
	}
	return int(math.Ceil(e.blockedUntil.Sub(now).Seconds()))
}

// Sweep 清理窗口已过期且未被封禁的条目，返回清理数量
func (l *EventLimiter) Sweep() int {
	cfg := l.Config()
	now := l.now()
	removed := 0

	for _, s := range l.shards {
		s.mu.Lock()
		for id, e := range s.entries {
			if now.Sub(e.windowStart) >= cfg.Window && !now.Before(e.blockedUntil) {
				delete(s.entries, id)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len 当前跟踪的身份数量
func (l *EventLimiter) Len() int {
	n := 0
	for _, s := range l.shards {
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

// Start 周期性执行 Sweep，ctx 取消后退出
func (l *EventLimiter) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
