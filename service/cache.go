package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
	"github.com/bhavanareddy19/cardicarrestnewborn/feature"
)

// CachedEmbedder 是 core.Embedder 的缓存装饰器。
//
// 核心思想：
//   - 以编码器名加叙述文本指纹为 key，把向量缓存进 core.Store，
//     重复运行不再重复编码
//   - 缓存只是优化：读写缓存失败记警告并退回远端编码，
//     绝不把缓存故障变成错误的向量
//   - 未命中行聚成一次批量调用，行序契约与被装饰编码器一致
type CachedEmbedder struct {
	inner  core.Embedder
	store  core.Store
	ttl    int
	logger *zap.Logger
}

var _ core.Embedder = (*CachedEmbedder)(nil)

// CacheOption 缓存装饰器配置选项
type CacheOption func(*CachedEmbedder)

// WithCacheTTL 设置缓存条目的过期秒数，零值表示不过期。
func WithCacheTTL(seconds int) CacheOption {
	return func(c *CachedEmbedder) {
		if seconds > 0 {
			c.ttl = seconds
		}
	}
}

// WithCacheLogger 注入结构化日志器，默认静默。
func WithCacheLogger(l *zap.Logger) CacheOption {
	return func(c *CachedEmbedder) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCachedEmbedder 用 store 包装一个编码器。
func NewCachedEmbedder(inner core.Embedder, store core.Store, opts ...CacheOption) *CachedEmbedder {
	c := &CachedEmbedder{
		inner:  inner,
		store:  store,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name 返回装饰后的来源名称。
func (c *CachedEmbedder) Name() string {
	return fmt.Sprintf("cached(%s)", c.inner.Name())
}

// Dimension 返回被装饰编码器的向量宽度。
func (c *CachedEmbedder) Dimension() int { return c.inner.Dimension() }

// cacheKey 用叙述文本的 64 位指纹构造缓存 key。
// 同一记录的叙述是确定性的，key 跨运行稳定。
func (c *CachedEmbedder) cacheKey(text string) string {
	return fmt.Sprintf("emb:%s:%016x", c.inner.Name(), xxhash.Sum64String(text))
}

// EmbedRecords 先批量查缓存，只对未命中的行调用底层编码器，
// 新向量批量写回后按输入行序组装完整矩阵。
func (c *CachedEmbedder) EmbedRecords(ctx context.Context, records []core.Record) (*mat.Dense, error) {
	if len(records) == 0 {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeMissingInput,
			"service: no records to embed")
	}
	texts := feature.ClinicalNarratives(records)
	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = c.cacheKey(text)
	}

	hits, err := c.store.BatchGet(ctx, keys)
	if err != nil {
		c.logger.Warn("embedding cache read failed, falling back to encoder",
			zap.String("store", c.store.Name()), zap.Error(err))
		hits = nil
	}

	dim := c.Dimension()
	out := mat.NewDense(len(records), dim, nil)
	var missRows []int
	for i, key := range keys {
		raw, ok := hits[key]
		if !ok {
			missRows = append(missRows, i)
			continue
		}
		var vec []float64
		if err := json.Unmarshal(raw, &vec); err != nil || len(vec) != dim {
			// 损坏的缓存条目当作未命中重新编码
			c.logger.Warn("corrupt embedding cache entry", zap.String("key", key))
			missRows = append(missRows, i)
			continue
		}
		out.SetRow(i, vec)
	}

	if len(missRows) > 0 {
		missRecords := make([]core.Record, len(missRows))
		for j, i := range missRows {
			missRecords[j] = records[i]
		}
		fresh, err := c.inner.EmbedRecords(ctx, missRecords)
		if err != nil {
			return nil, err
		}
		writeBack := make(map[string][]byte, len(missRows))
		for j, i := range missRows {
			row := mat.Row(nil, j, fresh)
			out.SetRow(i, row)
			if encoded, err := json.Marshal(row); err == nil {
				writeBack[keys[i]] = encoded
			}
		}
		if err := c.store.BatchSet(ctx, writeBack, c.ttl); err != nil {
			c.logger.Warn("embedding cache write failed",
				zap.String("store", c.store.Name()), zap.Error(err))
		}
	}

	c.logger.Debug("embeddings served",
		zap.Int("rows", len(records)),
		zap.Int("cache_hits", len(records)-len(missRows)),
		zap.Int("encoded", len(missRows)))
	return out, nil
}

// Close 关闭底层编码器。缓存 Store 可能被多处共享，由创建方负责关闭。
func (c *CachedEmbedder) Close(ctx context.Context) error {
	return c.inner.Close(ctx)
}
