package train

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"go.uber.org/zap"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
	"github.com/bhavanareddy19/cardicarrestnewborn/metrics"
)

// 默认训练参数
const (
	DefaultEpochs     = 200
	DefaultBatchSize  = 64
	DefaultPatience   = 20
	DefaultLRPatience = 10
	DefaultLRFactor   = 0.5
	DefaultMinLR      = 1e-7
)

// Trainer 驱动单个成员的小批量梯度训练。
//
// 工程特征：
//   - 早停监控验证损失，耐心耗尽后回滚到最优轮权重
//   - 学习率平台期衰减（factor 0.5，下限 1e-7），计数器独立于早停
//   - 每次验证损失刷新最优时，快照写入检查点存储（按模型名取键）
//   - 输入数据不被修改：洗牌作用于下标，小批量是行拷贝
type Trainer struct {
	epochs     int
	batchSize  int
	patience   int
	lrPatience int
	lrFactor   float64
	minLR      float64
	seed       int64
	device     *Device
	checkpoint core.Store
	logger     *zap.Logger
}

// Option 调整训练器行为。
type Option func(*Trainer)

// WithEpochs 设置最大训练轮数。
func WithEpochs(n int) Option {
	return func(t *Trainer) {
		if n > 0 {
			t.epochs = n
		}
	}
}

// WithBatchSize 设置小批量大小。
func WithBatchSize(n int) Option {
	return func(t *Trainer) {
		if n > 0 {
			t.batchSize = n
		}
	}
}

// WithEarlyStopPatience 设置早停耐心轮数，非正值禁用早停。
func WithEarlyStopPatience(n int) Option {
	return func(t *Trainer) { t.patience = n }
}

// WithLRSchedule 设置平台期学习率衰减：耐心轮数、衰减系数与学习率下限。
// patience 非正值禁用衰减。
func WithLRSchedule(patience int, factor, minLR float64) Option {
	return func(t *Trainer) {
		t.lrPatience = patience
		if factor > 0 && factor < 1 {
			t.lrFactor = factor
		}
		if minLR > 0 {
			t.minLR = minLR
		}
	}
}

// WithSeed 设置洗牌种子，同种子下小批量顺序完全可复现。
func WithSeed(seed int64) Option {
	return func(t *Trainer) { t.seed = seed }
}

// WithDevice 指定训练设备，默认使用全进程共享设备。
func WithDevice(d *Device) Option {
	return func(t *Trainer) {
		if d != nil {
			t.device = d
		}
	}
}

// WithCheckpointStore 指定最优权重检查点的存储后端，nil 表示不落盘。
func WithCheckpointStore(s core.Store) Option {
	return func(t *Trainer) { t.checkpoint = s }
}

// WithLogger 注入结构化日志器，默认静默。
func WithLogger(l *zap.Logger) Option {
	return func(t *Trainer) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTrainer 创建训练器。
func NewTrainer(opts ...Option) *Trainer {
	t := &Trainer{
		epochs:     DefaultEpochs,
		batchSize:  DefaultBatchSize,
		patience:   DefaultPatience,
		lrPatience: DefaultLRPatience,
		lrFactor:   DefaultLRFactor,
		minLR:      DefaultMinLR,
		seed:       42,
		device:     DefaultDevice(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// EpochStats 记录一轮训练的观测值。
type EpochStats struct {
	Epoch        int
	TrainLoss    float64
	ValLoss      float64
	LearningRate float64
}

// Result 汇总一次训练的产出。模型本身已就地训练并回滚到最优权重。
type Result struct {
	Model       core.Trainable
	Epochs      int     // 实际执行的轮数
	BestEpoch   int     // 最优验证损失所在轮（1 起）
	BestValLoss float64 // 最优验证损失
	ValAUC      float64 // 验证集宏平均一对多 ROC AUC
	Stopped     bool    // 是否触发早停
	History     []EpochStats
}

// CheckpointKey 返回成员最优权重在存储中的键。
func CheckpointKey(model string) string { return "checkpoint:" + model }

// Train 在给定分区上训练模型：每轮洗牌下标后按小批量执行
// 前向/反向/更新，然后在验证分区上计算损失驱动早停与学习率衰减。
// 返回前回滚到最优轮权重，并给出验证集宏平均 AUC。
func (t *Trainer) Train(ctx context.Context, m core.Trainable, trainIn *core.Batch, trainLabels []int, valIn *core.Batch, valLabels []int) (*Result, error) {
	if m == nil {
		return nil, fmt.Errorf("train: nil model")
	}
	if err := trainIn.CheckKind(m.Kind()); err != nil {
		return nil, err
	}
	if err := valIn.CheckKind(m.Kind()); err != nil {
		return nil, err
	}
	n := trainIn.Rows()
	if n == 0 || len(trainLabels) != n {
		return nil, core.NewDomainError(core.ModuleTrain, core.ErrorCodeRowMismatch,
			fmt.Sprintf("train: %d training rows but %d labels", n, len(trainLabels)))
	}
	nv := valIn.Rows()
	if nv == 0 || len(valLabels) != nv {
		return nil, core.NewDomainError(core.ModuleTrain, core.ErrorCodeRowMismatch,
			fmt.Sprintf("train: %d validation rows but %d labels", nv, len(valLabels)))
	}

	release, err := t.device.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	log := t.logger.With(zap.String("model", m.Name()), zap.String("device", t.device.Name()))
	log.Info("training started",
		zap.Int("train_rows", n), zap.Int("val_rows", nv),
		zap.Int("epochs", t.epochs), zap.Int("batch_size", t.batchSize))

	rng := rand.New(rand.NewSource(t.seed))
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	res := &Result{Model: m}
	bestVal := math.Inf(1)
	var bestState []byte
	wait, lrWait := 0, 0

	for epoch := 1; epoch <= t.epochs; epoch++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("train %s: %w", m.Name(), ctx.Err())
		default:
		}

		rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		var epochLoss float64
		for start := 0; start < n; start += t.batchSize {
			end := start + t.batchSize
			if end > n {
				end = n
			}
			rows := idx[start:end]
			sub := trainIn.Subset(rows)
			subLabels := make([]int, len(rows))
			for i, r := range rows {
				subLabels[i] = trainLabels[r]
			}
			loss, err := m.TrainBatch(sub, subLabels)
			if err != nil {
				return nil, fmt.Errorf("train %s epoch %d: %w", m.Name(), epoch, err)
			}
			epochLoss += loss * float64(len(rows))
		}
		epochLoss /= float64(n)

		valLoss, err := m.Loss(valIn, valLabels)
		if err != nil {
			return nil, fmt.Errorf("validate %s epoch %d: %w", m.Name(), epoch, err)
		}

		res.Epochs = epoch
		res.History = append(res.History, EpochStats{
			Epoch: epoch, TrainLoss: epochLoss, ValLoss: valLoss, LearningRate: m.LearningRate(),
		})
		log.Debug("epoch finished",
			zap.Int("epoch", epoch),
			zap.Float64("train_loss", epochLoss),
			zap.Float64("val_loss", valLoss),
			zap.Float64("lr", m.LearningRate()))

		if valLoss < bestVal {
			bestVal = valLoss
			res.BestEpoch = epoch
			wait, lrWait = 0, 0
			state, err := m.StateBytes()
			if err != nil {
				return nil, fmt.Errorf("snapshot %s at epoch %d: %w", m.Name(), epoch, err)
			}
			bestState = state
			t.writeCheckpoint(ctx, m.Name(), state, log)
			continue
		}

		wait++
		lrWait++
		if t.lrPatience > 0 && lrWait >= t.lrPatience {
			lrWait = 0
			if old := m.LearningRate(); old > t.minLR {
				lr := old * t.lrFactor
				if lr < t.minLR {
					lr = t.minLR
				}
				m.SetLearningRate(lr)
				log.Info("reducing learning rate",
					zap.Int("epoch", epoch), zap.Float64("from", old), zap.Float64("to", lr))
			}
		}
		if t.patience > 0 && wait >= t.patience {
			res.Stopped = true
			log.Info("early stopping",
				zap.Int("epoch", epoch),
				zap.Int("best_epoch", res.BestEpoch),
				zap.Float64("best_val_loss", bestVal))
			break
		}
	}

	if bestState != nil {
		if err := m.RestoreState(bestState); err != nil {
			return nil, fmt.Errorf("restore best weights for %s: %w", m.Name(), err)
		}
	}
	res.BestValLoss = bestVal

	probs, err := m.Predict(valIn)
	if err != nil {
		return nil, fmt.Errorf("score %s on validation: %w", m.Name(), err)
	}
	auc, err := metrics.MacroAUC(probs, valLabels)
	if err != nil {
		return nil, fmt.Errorf("validation auc for %s: %w", m.Name(), err)
	}
	res.ValAUC = auc

	log.Info("training finished",
		zap.Int("epochs", res.Epochs),
		zap.Int("best_epoch", res.BestEpoch),
		zap.Float64("best_val_loss", bestVal),
		zap.Float64("val_auc", auc),
		zap.Bool("early_stopped", res.Stopped))
	return res, nil
}

func (t *Trainer) writeCheckpoint(ctx context.Context, name string, state []byte, log *zap.Logger) {
	if t.checkpoint == nil {
		return
	}
	if err := t.checkpoint.Set(ctx, CheckpointKey(name), state); err != nil {
		log.Warn("checkpoint write failed", zap.String("key", CheckpointKey(name)), zap.Error(err))
	}
}
