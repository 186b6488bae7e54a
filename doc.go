// Package cardicarrestnewborn 预测新生儿心搏骤停风险（低/中/高）。
//
// 设计要点：
// - Ensemble-first: 十二个结构各异的神经分类器独立训练，按验证集 AUC 加权平均概率
// - 输入契约路由: 每个成员在构建时声明输入类型（表格/实体嵌入/融合），训练期缺输入跳过、预测期缺输入报错
// - 可复现: 固定编码表、分层切分、逐成员派生种子，同种子同结果
package cardicarrestnewborn

import (
	"github.com/bhavanareddy19/cardicarrestnewborn/core"
	"github.com/bhavanareddy19/cardicarrestnewborn/ensemble"
)

// 轻量 facade：便于用户直接 import 根包使用核心抽象。
type Record = core.Record
type Batch = core.Batch
type Trainable = core.Trainable
type InputKind = core.InputKind
type Predictor = ensemble.Predictor

const (
	KindTabular   = core.KindTabular
	KindEmbedding = core.KindEmbedding
	KindFusion    = core.KindFusion
)
