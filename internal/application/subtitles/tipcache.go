package subtitles

import (
	"sync"

	"subtitle-history-api/internal/domain/entity"
)

type tipKey struct {
	languageID int64
	class      entity.Class
}

// TipCache 按 (分支, 类别) 缓存 tip；缓存 nil 表示已确认不存在。
// 只加速读取，写路径从不读取它；任何变更后整体失效而不是原地修补。
type TipCache struct {
	mu    sync.Mutex
	slots map[tipKey]*entity.SubtitleVersion
}

// NewTipCache 创建空缓存
func NewTipCache() *TipCache {
	return &TipCache{slots: make(map[tipKey]*entity.SubtitleVersion)}
}

// Get 第二个返回值表示是否命中（命中时版本可能为 nil）
func (c *TipCache) Get(languageID int64, class entity.Class) (*entity.SubtitleVersion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.slots[tipKey{languageID, class}]
	return v, ok
}

func (c *TipCache) Set(languageID int64, class entity.Class, v *entity.SubtitleVersion) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots[tipKey{languageID, class}] = v
}

// Invalidate 清除分支在所有类别下的缓存
func (c *TipCache) Invalidate(languageID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, class := range entity.ClassFull.Covers() {
		delete(c.slots, tipKey{languageID, class})
	}
}

// Reset 清空全部槽位；改动跨分支生效时使用（例如语言代码改名改写了其他分支的谱系）
func (c *TipCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots = make(map[tipKey]*entity.SubtitleVersion)
}

// Len 当前缓存槽位数
func (c *TipCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}
