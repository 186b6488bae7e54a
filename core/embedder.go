package core

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// DefaultEmbeddingDim 是外部文本编码服务输出的向量宽度。
const DefaultEmbeddingDim = 768

// Embedder 是临床文本嵌入服务的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（service、ext/feast）实现
//   - 输入是有序的病例记录列表，输出矩阵与输入按行一一对应
//   - 聚合器只依赖行对齐契约，不关心向量如何产生
//
// 实现：
//   - service.BERTEncoder：调用 BERT 推理端点，先生成临床叙述文本再编码
//   - service.CachedEmbedder：带 Store 缓存的装饰器
//   - feast.Embedder：从 Feast 在线特征库按行号取预计算向量
type Embedder interface {
	// Name 返回嵌入来源名称（用于日志/缓存 key）
	Name() string

	// Dimension 返回输出向量宽度
	Dimension() int

	// EmbedRecords 为每条记录生成一个定宽向量，按输入顺序排列
	EmbedRecords(ctx context.Context, records []Record) (*mat.Dense, error)

	// Close 关闭底层连接/释放资源
	Close(ctx context.Context) error
}
