package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
)

// EmbedderConfig 描述嵌入来源的装配方式。
type EmbedderConfig struct {
	// Endpoint 主编码端点，如 "http://localhost:8080"
	Endpoint string

	// SecondEndpoint 第二编码端点（可选）。
	// 非空时并联两个端点并拼接输出（双 768 → 1536）。
	SecondEndpoint string

	// ModelName 推理端点使用的模型名
	ModelName string

	// Dim 单个端点的输出向量宽度
	Dim int

	// BatchSize 单次请求的文本条数
	BatchSize int

	// Timeout 超时时间（秒）
	Timeout int

	// Auth 认证信息（可选）
	Auth *AuthConfig

	// Cache 非空时在最外层套缓存装饰器
	Cache core.Store

	// CacheTTL 缓存条目过期秒数，零值表示不过期
	CacheTTL int

	// Logger 结构化日志器（可选）
	Logger *zap.Logger
}

// NewEmbedder 根据配置装配编码器（工厂方法）。
// 装配顺序：BERT 端点 → 可选双端点拼接 → 可选缓存装饰。
func NewEmbedder(cfg *EmbedderConfig) (core.Embedder, error) {
	if cfg == nil {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidConfig,
			"service: embedder config is required")
	}
	if cfg.Endpoint == "" {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidConfig,
			"service: embedding endpoint is required")
	}

	opts := []EncoderOption{
		WithModelName(cfg.ModelName),
		WithDimension(cfg.Dim),
		WithBatchSize(cfg.BatchSize),
		WithEncoderLogger(cfg.Logger),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, WithTimeout(time.Duration(cfg.Timeout)*time.Second))
	}
	if cfg.Auth != nil {
		opts = append(opts, WithAuth(cfg.Auth))
	}

	var emb core.Embedder = NewBERTEncoder(cfg.Endpoint, opts...)
	if cfg.SecondEndpoint != "" {
		emb = NewDualEncoder(emb, NewBERTEncoder(cfg.SecondEndpoint, opts...))
	}
	if cfg.Cache != nil {
		cacheOpts := []CacheOption{WithCacheLogger(cfg.Logger)}
		if cfg.CacheTTL > 0 {
			cacheOpts = append(cacheOpts, WithCacheTTL(cfg.CacheTTL))
		}
		emb = NewCachedEmbedder(emb, cfg.Cache, cacheOpts...)
	}
	return emb, nil
}

// TestConnection 对支持健康检查的编码器做连通性探测。
func TestConnection(ctx context.Context, emb core.Embedder) error {
	if emb == nil {
		return core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidConfig,
			"service: embedder is nil")
	}
	type healthChecker interface {
		Health(ctx context.Context) error
	}
	if hc, ok := emb.(healthChecker); ok {
		return hc.Health(ctx)
	}
	return nil
}
