// Package kbcache 持有知识库语料的整体内存快照。
// 这是一个有意为之的"全语料"缓存而非按查询缓存：查询组合只发生在
// 内存快照上，过滤逻辑因此与存储无关。快照是本核心中唯一的共享
// 可变状态，重载遵循"读取后整体替换"的原子纪律，并发读者永远
// 看不到半套快照。
package kbcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"medkb-go/internal/model"
	"medkb-go/internal/repository"
	"medkb-go/pkg/log"

	"github.com/go-redis/redis/v8"
)

// ErrReloadFailed 表示一次全量重载失败；缓存保留上一份完好的快照。
var ErrReloadFailed = errors.New("知识库快照重载失败")

// versionKey 是跨进程的语料版本号。每次失效将其加一；
// Get 看到版本变化时视同 TTL 过期。加一操作可交换且幂等
// （失效两次与一次的效果相同），因此失效方之间无需约定顺序。
const versionKey = "kb:corpus:version"

// Cache 是带 TTL 的语料快照缓存。
type Cache struct {
	repo repository.KbDocumentRepository
	rdb  *redis.Client // 可为 nil，此时退化为纯本地 TTL 语义
	ttl  time.Duration

	mu         sync.Mutex
	snapshot   []model.KbDocument
	lastLoadAt time.Time
	version    int64 // 上次重载时看到的语料版本

	now func() time.Time // 可注入的时钟，测试用
}

// New 创建一个快照缓存。ttl 非正时使用默认的 30 秒。
func New(repo repository.KbDocumentRepository, rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{
		repo: repo,
		rdb:  rdb,
		ttl:  ttl,
		now:  time.Now,
	}
}

// Get 返回语料快照。force 为 false 且快照未过期、非空、版本未变时
// 直接返回缓存的快照，不触达存储；否则全量重载并整体替换。
// 重载失败时返回错误，旧快照原样保留。
func (c *Cache) Get(ctx context.Context, force bool) ([]model.KbDocument, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	remoteVersion := c.remoteVersion(ctx)

	if !force && len(c.snapshot) > 0 &&
		c.now().Sub(c.lastLoadAt) < c.ttl &&
		remoteVersion == c.version {
		return c.snapshot, nil
	}

	docs, err := c.repo.ListAll()
	if err != nil {
		log.Errorf("[KbCache] 全量重载语料失败: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrReloadFailed, err)
	}

	// 整体替换：要么换上完整的新快照，要么上面已经带着旧快照返回。
	c.snapshot = docs
	c.lastLoadAt = c.now()
	c.version = remoteVersion
	return c.snapshot, nil
}

// Invalidate 使当前快照立即过期，并广播语料版本变化。
// 失效是幂等的；Redis 不可用时仅本进程失效（记日志，不报错）。
func (c *Cache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	c.lastLoadAt = time.Time{}
	c.mu.Unlock()

	if c.rdb == nil {
		return
	}
	if err := c.rdb.Incr(ctx, versionKey).Err(); err != nil {
		log.Warnf("[KbCache] 广播语料版本失败，仅本地失效: %v", err)
	}
}

// remoteVersion 读取跨进程语料版本；Redis 不可用时沿用本地版本，
// 缓存退化为纯 TTL 语义。
func (c *Cache) remoteVersion(ctx context.Context) int64 {
	if c.rdb == nil {
		return c.version
	}
	v, err := c.rdb.Get(ctx, versionKey).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warnf("[KbCache] 读取语料版本失败: %v", err)
			return c.version
		}
		return 0
	}
	return v
}
