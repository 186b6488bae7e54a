// Package ensemble 把花名册成员的串行训练、加权聚合预测、评估与
// 持久化组织为一个聚合器。
//
// 核心思想：
//   - 成员按输入契约路由：训练期缺可选输入的成员被跳过（警告日志），
//     预测期对在册成员缺输入则是 MISSING_INPUT 硬错误
//   - 加权聚合 Σ(wᵢ·Pᵢ)/Σwᵢ，权重是成员的验证集宏平均 AUC；
//     归一化在聚合时进行，花名册变化后权重自然重算
//   - 生命周期 UNTRAINED → TRAINING → TRAINED，训练严格串行，
//     设备租约由训练器持有
package ensemble

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
	"github.com/bhavanareddy19/cardicarrestnewborn/metrics"
	"github.com/bhavanareddy19/cardicarrestnewborn/train"
)

// State 是聚合器生命周期阶段。
type State int

const (
	StateUntrained State = iota
	StateTraining
	StateTrained
)

func (s State) String() string {
	switch s {
	case StateUntrained:
		return "untrained"
	case StateTraining:
		return "training"
	case StateTrained:
		return "trained"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Member 是训练完成的花名册成员。训练结束后冻结，只读使用。
type Member struct {
	Model core.Trainable
	AUC   float64 // 验证集宏平均一对多 ROC AUC，加权聚合的权重
}

// Name 返回成员模型名。
func (m Member) Name() string { return m.Model.Name() }

// Predictor 管理花名册成员的训练与聚合预测。
type Predictor struct {
	state   State
	members []Member
	trainer *train.Trainer
	logger  *zap.Logger
}

// Option 调整聚合器行为。
type Option func(*Predictor)

// WithTrainer 指定成员训练器，默认 train.NewTrainer()。
func WithTrainer(t *train.Trainer) Option {
	return func(p *Predictor) {
		if t != nil {
			p.trainer = t
		}
	}
}

// WithLogger 注入结构化日志器，默认静默。
func WithLogger(l *zap.Logger) Option {
	return func(p *Predictor) {
		if l != nil {
			p.logger = l
		}
	}
}

// New 创建空聚合器（UNTRAINED）。
func New(opts ...Option) *Predictor {
	p := &Predictor{
		trainer: train.NewTrainer(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFromMembers 用现成成员直接组建聚合器（TRAINED）。
// 加载工件后重建花名册时使用。
func NewFromMembers(members []Member, opts ...Option) *Predictor {
	p := New(opts...)
	p.members = append(p.members, members...)
	if len(p.members) > 0 {
		p.state = StateTrained
	}
	return p
}

// State 返回当前生命周期阶段。
func (p *Predictor) State() State { return p.state }

// Members 返回活动花名册（按加入顺序的副本）。
func (p *Predictor) Members() []Member {
	return append([]Member(nil), p.members...)
}

// Names 返回活动花名册的成员名。
func (p *Predictor) Names() []string {
	names := make([]string, len(p.members))
	for i, m := range p.members {
		names[i] = m.Name()
	}
	return names
}

// FromNetworks 把网络切片适配为训练输入的通用接口切片。
func FromNetworks[T core.Trainable](nets []T) []core.Trainable {
	out := make([]core.Trainable, len(nets))
	for i, n := range nets {
		out[i] = n
	}
	return out
}

// TrainAll 按给定顺序串行训练全部成员，训练完成的成员连同验证 AUC
// 依序加入活动花名册。批次不支持某成员输入契约时该成员被跳过并记
// 警告；任何成员训练出错则整体失败。全部成员都被跳过视为错误。
func (p *Predictor) TrainAll(ctx context.Context, models []core.Trainable, trainIn *core.Batch, trainLabels []int, valIn *core.Batch, valLabels []int) error {
	p.state = StateTraining
	p.members = p.members[:0]
	for _, m := range models {
		if !trainIn.Supports(m.Kind()) || !valIn.Supports(m.Kind()) {
			p.logger.Warn("skipping member: required inputs absent",
				zap.String("model", m.Name()),
				zap.String("kind", m.Kind().String()))
			continue
		}
		res, err := p.trainer.Train(ctx, m, trainIn, trainLabels, valIn, valLabels)
		if err != nil {
			return fmt.Errorf("train member %s: %w", m.Name(), err)
		}
		p.members = append(p.members, Member{Model: m, AUC: res.ValAUC})
		p.logger.Info("member joined roster",
			zap.String("model", m.Name()),
			zap.String("kind", m.Kind().String()),
			zap.Float64("val_auc", res.ValAUC),
			zap.Int("epochs", res.Epochs),
			zap.Bool("early_stopped", res.Stopped))
	}
	if len(p.members) == 0 {
		return core.NewDomainError(core.ModuleEnsemble, core.ErrorCodeMissingInput,
			"ensemble: no member could be trained with the supplied inputs")
	}
	p.state = StateTrained
	p.logger.Info("ensemble trained", zap.Strings("roster", p.Names()))
	return nil
}

// PredictEnsemble 返回全体在册成员概率的等权算术平均。
func (p *Predictor) PredictEnsemble(in *core.Batch) (*mat.Dense, error) {
	weights := make([]float64, len(p.members))
	for i := range weights {
		weights[i] = 1
	}
	return p.aggregate(in, weights)
}

// PredictWeighted 返回按验证 AUC 加权的概率平均 Σ(wᵢ·Pᵢ)/Σwᵢ。
// 连续权重自然消解平票，不需要显式决胜规则。
func (p *Predictor) PredictWeighted(in *core.Batch) (*mat.Dense, error) {
	weights := make([]float64, len(p.members))
	for i, m := range p.members {
		weights[i] = m.AUC
	}
	return p.aggregate(in, weights)
}

func (p *Predictor) requireTrained() error {
	if p.state != StateTrained || len(p.members) == 0 {
		return core.NewDomainError(core.ModuleEnsemble, core.ErrorCodeInternalError,
			fmt.Sprintf("ensemble: not ready (state %s, %d members)", p.state, len(p.members)))
	}
	return nil
}

// aggregate 逐成员预测并按权重线性组合。成员缺输入时其 Predict
// 返回的 MISSING_INPUT 原样上抛：在册成员的输入缺失是数据契约问题，
// 不允许降级成错误的数值结果。
func (p *Predictor) aggregate(in *core.Batch, weights []float64) (*mat.Dense, error) {
	if err := p.requireTrained(); err != nil {
		return nil, err
	}
	var total float64
	for i, w := range weights {
		if w < 0 {
			return nil, core.NewDomainError(core.ModuleEnsemble, core.ErrorCodeInternalError,
				fmt.Sprintf("ensemble: member %s has negative weight %v", p.members[i].Name(), w))
		}
		total += w
	}
	if total <= 0 {
		return nil, core.NewDomainError(core.ModuleEnsemble, core.ErrorCodeInternalError,
			"ensemble: aggregate weight mass is zero")
	}

	var sum *mat.Dense
	rows, cols := 0, 0
	for i, m := range p.members {
		probs, err := m.Model.Predict(in)
		if err != nil {
			return nil, fmt.Errorf("predict with member %s: %w", m.Name(), err)
		}
		r, c := probs.Dims()
		if sum == nil {
			rows, cols = r, c
			sum = mat.NewDense(rows, cols, nil)
		} else if r != rows || c != cols {
			return nil, core.NewDomainError(core.ModuleEnsemble, core.ErrorCodeInternalError,
				fmt.Sprintf("ensemble: member %s returned %dx%d probabilities, expected %dx%d",
					m.Name(), r, c, rows, cols))
		}
		w := weights[i] / total
		for a := 0; a < rows; a++ {
			for b := 0; b < cols; b++ {
				sum.Set(a, b, sum.At(a, b)+w*probs.At(a, b))
			}
		}
	}
	return sum, nil
}

// MemberScore 是单个成员在给定分区上的评估结果。
type MemberScore struct {
	Name string
	AUC  float64
}

// Evaluation 汇总一次分区评估的全部宏平均 AUC。
type Evaluation struct {
	Ensemble float64       // 等权集成
	Weighted float64       // AUC 加权集成
	Members  []MemberScore // 按花名册顺序
}

// EvaluateAUC 在给定分区上重算等权集成、加权集成与每个成员的
// 宏平均一对多 ROC AUC，供报告与回归测试使用。
func (p *Predictor) EvaluateAUC(in *core.Batch, labels []int) (*Evaluation, error) {
	if err := p.requireTrained(); err != nil {
		return nil, err
	}

	mean, err := p.PredictEnsemble(in)
	if err != nil {
		return nil, err
	}
	ev := &Evaluation{}
	if ev.Ensemble, err = metrics.MacroAUC(mean, labels); err != nil {
		return nil, fmt.Errorf("ensemble auc: %w", err)
	}

	weighted, err := p.PredictWeighted(in)
	if err != nil {
		return nil, err
	}
	if ev.Weighted, err = metrics.MacroAUC(weighted, labels); err != nil {
		return nil, fmt.Errorf("weighted ensemble auc: %w", err)
	}

	for _, m := range p.members {
		probs, err := m.Model.Predict(in)
		if err != nil {
			return nil, fmt.Errorf("predict with member %s: %w", m.Name(), err)
		}
		auc, err := metrics.MacroAUC(probs, labels)
		if err != nil {
			return nil, fmt.Errorf("auc for member %s: %w", m.Name(), err)
		}
		ev.Members = append(ev.Members, MemberScore{Name: m.Name(), AUC: auc})
	}
	p.logger.Info("evaluation finished",
		zap.Float64("ensemble_auc", ev.Ensemble),
		zap.Float64("weighted_auc", ev.Weighted),
		zap.Int("members", len(ev.Members)))
	return ev, nil
}
