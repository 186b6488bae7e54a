// Package feast 把 Feast 在线特征库里预先物化的临床文本嵌入
// 暴露为 core.Embedder。
//
// 核心思想：
//   - 嵌入向量离线计算一次，物化到 Feast online store
//   - 训练管线按记录行号（实体键）批量取回，免去重复编码
//   - 与 service.BERTEncoder 同接口，调用方无感切换来源
//
// 工程特征：
//   - 使用官方 SDK（gRPC 二进制协议、连接复用）
//   - 逐批拉取，批大小可配
//   - 缺失实体返回 NOT_FOUND，绝不用零向量顶替
package feast

import (
	"context"
	"fmt"
	"strings"

	feastsdk "github.com/feast-dev/feast/sdk/go"
	"github.com/feast-dev/feast/sdk/go/protos/feast/types"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
)

const (
	// DefaultPort 是 Feast Feature Server 的默认 gRPC 端口
	DefaultPort = 6565

	// DefaultFeatureRef 是临床文本嵌入的默认特征引用（视图:特征）
	DefaultFeatureRef = "clinical_notes:bert_vector"

	// DefaultEntityKey 是默认实体键，对应记录的稳定行号
	DefaultEntityKey = "record_id"

	defaultBatchSize = 100
)

// Embedder 从 Feast 在线存储批量取回预计算的嵌入向量。
type Embedder struct {
	// Host Feature Server 主机名
	Host string

	// Port gRPC 端口，0 用 DefaultPort
	Port int

	// Project Feast 项目名
	Project string

	// FeatureRef 特征引用，格式 "视图:特征"
	FeatureRef string

	// EntityKey 实体键名，值取记录行号
	EntityKey string

	// Dim 嵌入向量宽度
	Dim int

	// BatchSize 每次请求的实体行数
	BatchSize int

	client *feastsdk.GrpcClient
	token  string
	logger *zap.Logger
}

// Option 配置 Embedder。
type Option func(*Embedder)

// WithFeatureRef 设置特征引用（"视图:特征"）。
func WithFeatureRef(ref string) Option {
	return func(e *Embedder) {
		if ref != "" {
			e.FeatureRef = ref
		}
	}
}

// WithEntityKey 设置实体键名。
func WithEntityKey(key string) Option {
	return func(e *Embedder) {
		if key != "" {
			e.EntityKey = key
		}
	}
}

// WithDimension 设置嵌入向量宽度。
func WithDimension(dim int) Option {
	return func(e *Embedder) {
		if dim > 0 {
			e.Dim = dim
		}
	}
}

// WithBatchSize 设置每次请求的实体行数。
func WithBatchSize(n int) Option {
	return func(e *Embedder) {
		if n > 0 {
			e.BatchSize = n
		}
	}
}

// WithStaticToken 使用静态 Token 认证连接 Feature Server。
func WithStaticToken(token string) Option {
	return func(e *Embedder) {
		e.token = token
	}
}

// WithLogger 设置日志器。
func WithLogger(logger *zap.Logger) Option {
	return func(e *Embedder) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEmbedder 连接 Feast Feature Server 并返回嵌入客户端。
// 连接是惰性建立的，首次取特征时才真正拨号。
func NewEmbedder(host string, port int, project string, opts ...Option) (*Embedder, error) {
	if strings.TrimSpace(host) == "" {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidConfig,
			"feast embedder needs a host")
	}
	if port == 0 {
		port = DefaultPort
	}

	e := &Embedder{
		Host:       host,
		Port:       port,
		Project:    project,
		FeatureRef: DefaultFeatureRef,
		EntityKey:  DefaultEntityKey,
		Dim:        core.DefaultEmbeddingDim,
		BatchSize:  defaultBatchSize,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	var client *feastsdk.GrpcClient
	var err error
	if e.token != "" {
		security := feastsdk.SecurityConfig{
			EnableTLS:  false,
			Credential: feastsdk.NewStaticCredential(e.token),
		}
		client, err = feastsdk.NewSecureGrpcClient(host, port, security)
	} else {
		client, err = feastsdk.NewGrpcClient(host, port)
	}
	if err != nil {
		return nil, fmt.Errorf("connect feast server %s:%d: %w", host, port, err)
	}
	e.client = client
	return e, nil
}

var _ core.Embedder = (*Embedder)(nil)

// Name 返回嵌入来源名称。
func (e *Embedder) Name() string {
	return "feast:" + e.Project
}

// Dimension 返回嵌入向量宽度。
func (e *Embedder) Dimension() int {
	return e.Dim
}

// EmbedRecords 按记录行号取回预计算的嵌入，行序与输入一致。
// 任一记录在在线存储中缺失即整体失败（NOT_FOUND），
// 宁可失败也不让零向量混进训练数据。
func (e *Embedder) EmbedRecords(ctx context.Context, records []core.Record) (*mat.Dense, error) {
	if len(records) == 0 {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeMissingInput,
			"no records to embed")
	}

	out := mat.NewDense(len(records), e.Dim, nil)
	for start := 0; start < len(records); start += e.BatchSize {
		end := start + e.BatchSize
		if end > len(records) {
			end = len(records)
		}
		if err := e.fetchBatch(ctx, records[start:end], out, start); err != nil {
			return nil, fmt.Errorf("fetch rows [%d,%d): %w", start, end, err)
		}
	}
	e.logger.Debug("feast embeddings fetched",
		zap.String("project", e.Project),
		zap.String("feature", e.FeatureRef),
		zap.Int("rows", len(records)))
	return out, nil
}

// fetchBatch 取一批实体的嵌入并写入 out 的 [offset, offset+len) 行。
func (e *Embedder) fetchBatch(ctx context.Context, records []core.Record, out *mat.Dense, offset int) error {
	req := &feastsdk.OnlineFeaturesRequest{
		Features: []string{e.FeatureRef},
		Entities: entityRows(records, e.EntityKey),
		Project:  e.Project,
	}
	resp, err := e.client.GetOnlineFeatures(ctx, req)
	if err != nil {
		return core.NewDomainError(core.ModuleService, core.ErrorCodeUnavailable,
			fmt.Sprintf("feast online features: %v", err))
	}

	rows := resp.Rows()
	if len(rows) != len(records) {
		return core.NewDomainError(core.ModuleService, core.ErrorCodeInternalError,
			fmt.Sprintf("feast returned %d rows for %d records", len(rows), len(records)))
	}
	for i, row := range rows {
		vec := vectorFromValue(row[e.FeatureRef])
		if vec == nil {
			return core.NewDomainError(core.ModuleService, core.ErrorCodeNotFound,
				fmt.Sprintf("embedding not materialized for record %d", records[i].Index))
		}
		if len(vec) != e.Dim {
			return core.NewDomainError(core.ModuleService, core.ErrorCodeInternalError,
				fmt.Sprintf("embedding width %d for record %d, want %d", len(vec), records[i].Index, e.Dim))
		}
		out.SetRow(offset+i, vec)
	}
	return nil
}

// Close 释放客户端。官方 SDK 的连接由 gRPC 库托管，无显式关闭。
func (e *Embedder) Close(ctx context.Context) error {
	e.client = nil
	return nil
}

// entityRows 把记录行号转成 Feast 实体行。
func entityRows(records []core.Record, key string) []feastsdk.Row {
	rows := make([]feastsdk.Row, len(records))
	for i, r := range records {
		rows[i] = feastsdk.Row{key: feastsdk.Int64Val(int64(r.Index))}
	}
	return rows
}

// vectorFromValue 从 Feast 值中取出浮点向量，
// 同时接受 double 列表和 float 列表两种物化格式。
func vectorFromValue(v *types.Value) []float64 {
	if v == nil {
		return nil
	}
	if dl := v.GetDoubleListVal(); dl != nil {
		return dl.GetVal()
	}
	if fl := v.GetFloatListVal(); fl != nil {
		vals := fl.GetVal()
		vec := make([]float64, len(vals))
		for i, f := range vals {
			vec[i] = float64(f)
		}
		return vec
	}
	return nil
}
