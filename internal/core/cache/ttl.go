package cache

import (
	"sync"
	"time"
)

// TTL は有効期限付きのインプロセスキャッシュ
// 並行アクセスに対して安全で、期限切れエントリは読み出し時と
// 書き込み時に破棄される
type TTL[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	now     func() time.Time
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// NewTTL は新しいTTLキャッシュを作成します
func NewTTL[V any]() *TTL[V] {
	return &TTL[V]{
		entries: make(map[string]entry[V]),
		now:     time.Now,
	}
}

// Get はキーに対応する値を返します
// 期限切れまたは未登録の場合は二番目の戻り値が false
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().After(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set は値をTTL付きで保存します
func (c *TTL[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}

	// 期限切れエントリを掃除して無制限な成長を防ぐ
	if len(c.entries) > 1 && len(c.entries)%256 == 0 {
		now := c.now()
		for k, e := range c.entries {
			if now.After(e.expiresAt) {
				delete(c.entries, k)
			}
		}
	}
}

// Delete はキーを削除します
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Flush は全エントリを削除します
func (c *TTL[V]) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[V])
}

// Len は現在のエントリ数を返します（期限切れを含む）
func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
