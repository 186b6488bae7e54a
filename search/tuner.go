package search

import (
	"context"
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/bhavanareddy19/cardicarrestnewborn/config"
	"github.com/bhavanareddy19/cardicarrestnewborn/core"
	"github.com/bhavanareddy19/cardicarrestnewborn/train"
)

const (
	// DefaultTrials 与运行配置的搜索默认值一致。
	DefaultTrials = 5000

	// DefaultTrialPatience 是试验内早停耐心。搜索追求吞吐，
	// 比全量训练的耐心更激进。
	DefaultTrialPatience = 15
)

// Best 是当前最优试验的完整记录。
// Config 可原样交给 config.Build("spec", ...) 复现网络结构。
type Best struct {
	Trial     int
	Config    map[string]interface{}
	BatchSize int
	ValAUC    float64
	ValLoss   float64
	Epochs    int
}

// Tuner 顺序执行随机超参数试验。
type Tuner struct {
	space    Space
	trials   int
	epochs   int
	patience int
	seed     int64
	device   *train.Device
	logger   *zap.Logger
}

// TunerOption 调整调优器行为。
type TunerOption func(*Tuner)

// WithSpace 指定搜索空间，零值字段回落到默认空间。
func WithSpace(s Space) TunerOption {
	return func(t *Tuner) { t.space = s }
}

// WithTrials 设置试验次数。
func WithTrials(n int) TunerOption {
	return func(t *Tuner) {
		if n > 0 {
			t.trials = n
		}
	}
}

// WithEpochs 设置试验内的最大训练轮数。
func WithEpochs(n int) TunerOption {
	return func(t *Tuner) {
		if n > 0 {
			t.epochs = n
		}
	}
}

// WithTrialPatience 设置试验内早停耐心。
func WithTrialPatience(n int) TunerOption {
	return func(t *Tuner) {
		if n > 0 {
			t.patience = n
		}
	}
}

// WithSeed 设置抽样与试验训练的基准种子。
func WithSeed(seed int64) TunerOption {
	return func(t *Tuner) { t.seed = seed }
}

// WithDevice 指定试验共用的训练设备。
func WithDevice(d *train.Device) TunerOption {
	return func(t *Tuner) { t.device = d }
}

// WithLogger 注入结构化日志器，默认静默。
func WithLogger(l *zap.Logger) TunerOption {
	return func(t *Tuner) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTuner 创建调优器，默认标准空间、5000 次试验、种子 42。
func NewTuner(opts ...TunerOption) *Tuner {
	t := &Tuner{
		space:    DefaultSpace(),
		trials:   DefaultTrials,
		epochs:   train.DefaultEpochs,
		patience: DefaultTrialPatience,
		seed:     42,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.space = t.space.withDefaults()
	return t
}

// Run 顺序执行全部试验并返回最优结果。
// 每次试验独立构建网络、独立持有设备租约；调优器只保留最优
// 配置，不保留任何试验网络的引用。试验失败即整体失败，配置
// 空间里的每个点都应当可构建。
func (t *Tuner) Run(ctx context.Context, trainIn *core.Batch, trainLabels []int, valIn *core.Batch, valLabels []int) (*Best, error) {
	if t.trials <= 0 {
		return nil, core.NewDomainError(core.ModuleSearch, core.ErrorCodeInvalidConfig,
			"search: trials must be positive")
	}
	rng := rand.New(rand.NewSource(t.seed))
	var best *Best
	for i := 0; i < t.trials; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("search stopped at trial %d: %w", i, ctx.Err())
		default:
		}

		cand := t.space.Sample(rng)
		cand.Model["name"] = fmt.Sprintf("trial_%d", i)
		cand.Model["seed"] = int(t.seed) + i
		net, err := config.Build("spec", cand.Model)
		if err != nil {
			return nil, fmt.Errorf("search trial %d: %w", i, err)
		}

		trainer := train.NewTrainer(
			train.WithEpochs(t.epochs),
			train.WithBatchSize(cand.BatchSize),
			train.WithEarlyStopPatience(t.patience),
			train.WithSeed(t.seed+int64(i)),
			train.WithDevice(t.device),
			train.WithLogger(t.logger),
		)
		res, err := trainer.Train(ctx, net, trainIn, trainLabels, valIn, valLabels)
		if err != nil {
			return nil, fmt.Errorf("search trial %d: %w", i, err)
		}
		t.logger.Info("trial finished",
			zap.Int("trial", i),
			zap.Float64("val_auc", res.ValAUC),
			zap.Float64("val_loss", res.BestValLoss),
			zap.Int("epochs", res.Epochs),
			zap.Int("batch_size", cand.BatchSize))

		// 严格更优才换人，并列保留先到的试验，结果可复现
		if best == nil || res.ValAUC > best.ValAUC {
			best = &Best{
				Trial:     i,
				Config:    cand.Model,
				BatchSize: cand.BatchSize,
				ValAUC:    res.ValAUC,
				ValLoss:   res.BestValLoss,
				Epochs:    res.Epochs,
			}
			t.logger.Info("new best trial",
				zap.Int("trial", i),
				zap.Float64("val_auc", res.ValAUC),
				zap.Any("config", cand.Model))
		}
	}
	return best, nil
}
