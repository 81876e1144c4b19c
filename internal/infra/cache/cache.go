package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize 是单次运行内最多缓存的条目数。
const DefaultSize = 4096

// LRU 是单次运行内的内存缓存（key -> 解析结果），只存在于内存中。
//
// 约束：
// - 只缓存解析成功的结果；失败不缓存，保证下次仍会重新请求
// - 存放解析后的小结构体而不是页面 body，避免整页 HTML 常驻内存
// - 并发安全（lru.Cache 内部加锁）
// - 不落盘：进程结束即丢弃
type LRU[V any] struct {
	storage *lru.Cache[string, V]
}

// New 创建容量为 size 的缓存；size<=0 时使用 DefaultSize。
func New[V any](size int) *LRU[V] {
	if size <= 0 {
		size = DefaultSize
	}
	c, _ := lru.New[string, V](size)
	return &LRU[V]{storage: c}
}

// Get 返回缓存的值。nil 的 *LRU 视为始终未命中。
func (c *LRU[V]) Get(key string) (V, bool) {
	if c == nil {
		var zero V
		return zero, false
	}
	return c.storage.Get(key)
}

// Put 写入；nil 的 *LRU 忽略写入。
func (c *LRU[V]) Put(key string, v V) {
	if c == nil {
		return
	}
	c.storage.Add(key, v)
}

func (c *LRU[V]) Len() int {
	if c == nil {
		return 0
	}
	return c.storage.Len()
}
