// Package service 实现临床文本嵌入服务的客户端侧：
// BERT 推理端点的 HTTP 客户端、双端点拼接编码器与 Store 缓存装饰器。
//
// 设计目标：
//   - 所有实现都满足 core.Embedder，嵌入来源可替换
//   - 批量提取按固定批次切分、有界并发扇出，结果按行序重组
//   - 服务不可达/非 200 响应映射为 UNAVAILABLE 领域错误
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
	"github.com/bhavanareddy19/cardicarrestnewborn/feature"
)

const (
	// DefaultBatchSize 是单次请求携带的文本条数。
	DefaultBatchSize = 32

	// DefaultParallel 是并发在途请求的上限。
	DefaultParallel = 4

	// DefaultMaxLength 是随请求下发的分词截断长度。
	DefaultMaxLength = 128

	defaultTimeout   = 30 * time.Second
	defaultModelName = "bert_encoder"
)

// AuthConfig 认证配置
type AuthConfig struct {
	Type     string // "basic", "bearer", "api_key"
	Username string
	Password string
	Token    string
	APIKey   string
}

// BERTEncoder 是 BERT 推理端点的客户端实现。
//
// REST API 格式（TorchServe 风格）：
//   - 推理端点：POST /predictions/{model_name}
//   - 请求体：{"texts": ["...", ...], "max_length": 128}
//   - 响应：{"embeddings": [[768 个浮点], ...]}，行序与请求文本一致
//
// 工程特征：
//   - 批量编码：每批 DefaultBatchSize 条文本，批次间有界并发
//   - 行序契约：无论批次完成顺序如何，输出矩阵严格按输入行序重组
//   - 确定性文本：记录先经 feature.ClinicalNarrative 模板化再编码
type BERTEncoder struct {
	// Endpoint 服务端点，如 "http://localhost:8080"
	Endpoint string

	// ModelName 模型名称（推理路径 /predictions/{ModelName}）
	ModelName string

	// Dim 输出向量宽度
	Dim int

	// BatchSize 单次请求的文本条数
	BatchSize int

	// MaxLength 分词截断长度，随每次请求下发
	MaxLength int

	// Parallel 并发在途请求上限
	Parallel int

	// Timeout 单次请求超时
	Timeout time.Duration

	// Auth 认证信息
	Auth *AuthConfig

	httpClient *http.Client
	logger     *zap.Logger
}

var _ core.Embedder = (*BERTEncoder)(nil)

// EncoderOption BERT 编码器配置选项
type EncoderOption func(*BERTEncoder)

// WithModelName 设置推理端点使用的模型名
func WithModelName(name string) EncoderOption {
	return func(e *BERTEncoder) {
		if name != "" {
			e.ModelName = name
		}
	}
}

// WithDimension 设置输出向量宽度
func WithDimension(dim int) EncoderOption {
	return func(e *BERTEncoder) {
		if dim > 0 {
			e.Dim = dim
		}
	}
}

// WithBatchSize 设置单次请求的文本条数
func WithBatchSize(n int) EncoderOption {
	return func(e *BERTEncoder) {
		if n > 0 {
			e.BatchSize = n
		}
	}
}

// WithMaxLength 设置分词截断长度
func WithMaxLength(n int) EncoderOption {
	return func(e *BERTEncoder) {
		if n > 0 {
			e.MaxLength = n
		}
	}
}

// WithParallel 设置并发在途请求上限
func WithParallel(n int) EncoderOption {
	return func(e *BERTEncoder) {
		if n > 0 {
			e.Parallel = n
		}
	}
}

// WithTimeout 设置单次请求超时
func WithTimeout(timeout time.Duration) EncoderOption {
	return func(e *BERTEncoder) {
		if timeout > 0 {
			e.Timeout = timeout
			if e.httpClient != nil {
				e.httpClient.Timeout = timeout
			}
		}
	}
}

// WithAuth 设置认证信息
func WithAuth(auth *AuthConfig) EncoderOption {
	return func(e *BERTEncoder) { e.Auth = auth }
}

// WithHTTPClient 设置自定义 HTTP 客户端
func WithHTTPClient(client *http.Client) EncoderOption {
	return func(e *BERTEncoder) {
		if client != nil {
			e.httpClient = client
		}
	}
}

// WithEncoderLogger 注入结构化日志器，默认静默
func WithEncoderLogger(l *zap.Logger) EncoderOption {
	return func(e *BERTEncoder) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewBERTEncoder 创建一个新的 BERT 端点客户端。
func NewBERTEncoder(endpoint string, opts ...EncoderOption) *BERTEncoder {
	enc := &BERTEncoder{
		Endpoint:  strings.TrimRight(endpoint, "/"),
		ModelName: defaultModelName,
		Dim:       core.DefaultEmbeddingDim,
		BatchSize: DefaultBatchSize,
		MaxLength: DefaultMaxLength,
		Parallel:  DefaultParallel,
		Timeout:   defaultTimeout,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(enc)
	}
	if enc.httpClient == nil {
		enc.httpClient = &http.Client{Timeout: enc.Timeout}
	}
	return enc
}

// Name 返回嵌入来源名称。
func (e *BERTEncoder) Name() string { return "bert:" + e.ModelName }

// Dimension 返回输出向量宽度。
func (e *BERTEncoder) Dimension() int { return e.Dim }

// embedRequest 推理请求体
type embedRequest struct {
	Texts     []string `json:"texts"`
	MaxLength int      `json:"max_length"`
}

// embedResponse 推理响应体
type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// EmbedRecords 先把记录模板化为临床叙述，再分批并发编码。
// 输出矩阵 (n × Dim) 与输入记录按行一一对应。
func (e *BERTEncoder) EmbedRecords(ctx context.Context, records []core.Record) (*mat.Dense, error) {
	texts := feature.ClinicalNarratives(records)
	return e.EmbedTexts(ctx, texts)
}

// EmbedTexts 对文本列表做批量编码，按输入行序返回向量矩阵。
func (e *BERTEncoder) EmbedTexts(ctx context.Context, texts []string) (*mat.Dense, error) {
	if len(texts) == 0 {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeMissingInput,
			"service: no texts to embed")
	}

	out := mat.NewDense(len(texts), e.Dim, nil)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.Parallel)
	for start := 0; start < len(texts); start += e.BatchSize {
		end := start + e.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		start := start
		g.Go(func() error {
			vectors, err := e.embedBatch(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embed rows [%d,%d): %w", start, end, err)
			}
			// 不同批次写不同的行区间，重组无需加锁
			for i, vec := range vectors {
				out.SetRow(start+i, vec)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	e.logger.Debug("texts embedded",
		zap.Int("rows", len(texts)),
		zap.Int("dim", e.Dim),
		zap.String("encoder", e.Name()))
	return out, nil
}

// embedBatch 对单个批次发起一次推理请求。
func (e *BERTEncoder) embedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	url := fmt.Sprintf("%s/predictions/%s", e.Endpoint, e.ModelName)
	body, err := json.Marshal(embedRequest{Texts: texts, MaxLength: e.MaxLength})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	e.addAuth(httpReq)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeUnavailable,
			fmt.Sprintf("service: embedding endpoint unreachable: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeUnavailable,
			fmt.Sprintf("service: embedding endpoint returned status %d: %s", resp.StatusCode, string(raw)))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInternalError,
			fmt.Sprintf("service: got %d embeddings for %d texts", len(parsed.Embeddings), len(texts)))
	}
	for i, vec := range parsed.Embeddings {
		if len(vec) != e.Dim {
			return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInternalError,
				fmt.Sprintf("service: embedding %d has width %d, expected %d", i, len(vec), e.Dim))
		}
	}
	return parsed.Embeddings, nil
}

// addAuth 添加认证信息到 HTTP 请求
func (e *BERTEncoder) addAuth(req *http.Request) {
	if e.Auth == nil {
		return
	}
	switch e.Auth.Type {
	case "basic":
		req.SetBasicAuth(e.Auth.Username, e.Auth.Password)
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+e.Auth.Token)
	case "api_key":
		req.Header.Set("X-API-Key", e.Auth.APIKey)
	}
}

// Health 健康检查（TorchServe 风格 /ping 端点）。
func (e *BERTEncoder) Health(ctx context.Context) error {
	url := fmt.Sprintf("%s/ping", e.Endpoint)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	e.addAuth(httpReq)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return core.NewDomainError(core.ModuleService, core.ErrorCodeUnavailable,
			fmt.Sprintf("service: health check failed: %v", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return core.NewDomainError(core.ModuleService, core.ErrorCodeUnavailable,
			fmt.Sprintf("service: health check returned status %d: %s", resp.StatusCode, string(raw)))
	}
	return nil
}

// Close 关闭连接。HTTP 客户端无需显式关闭。
func (e *BERTEncoder) Close(ctx context.Context) error { return nil }
