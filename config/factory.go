package config

import (
	"fmt"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
	"github.com/bhavanareddy19/cardicarrestnewborn/model"
	"github.com/bhavanareddy19/cardicarrestnewborn/nn"
	"github.com/bhavanareddy19/cardicarrestnewborn/pkg/conv"
)

func init() {
	// 十二个内置成员：超参数表只认 seed 与 embedding_dim，
	// 种子规则与花名册一致（基准种子加成员下标）
	for _, name := range model.MemberNames() {
		name := name
		Register(name, func(cfg map[string]interface{}) (*nn.Network, error) {
			return model.BuildMember(name, rosterConfigFrom(cfg))
		})
	}
	// 声明式表格网络：随机搜索与自定义结构共用
	Register("spec", BuildFromConfig)
}

func rosterConfigFrom(cfg map[string]interface{}) model.RosterConfig {
	return model.RosterConfig{
		Seed:         int64(conv.ConfigGetInt(cfg, "seed", 0)),
		EmbeddingDim: conv.ConfigGetInt(cfg, "embedding_dim", 0),
	}
}

// BuildFromConfig 把超参数表转成声明式结构描述并构建表格网络。
// 随机搜索的试验配置与 YAML 中的 "spec" 条目都走这条路径。
func BuildFromConfig(cfg map[string]interface{}) (*nn.Network, error) {
	widths := conv.SliceAnyToInt(cfg["widths"])
	if len(widths) == 0 {
		return nil, core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidConfig,
			"config: spec model needs a non-empty widths list")
	}
	spec := model.Spec{
		Name:        conv.ConfigGet[string](cfg, "name", "spec"),
		InDim:       conv.ConfigGetInt(cfg, "in_dim", 0),
		Classes:     conv.ConfigGetInt(cfg, "classes", 0),
		Widths:      widths,
		Activation:  conv.ConfigGet[string](cfg, "activation", ""),
		Dropout:     conv.ConfigGetFloat64(cfg, "dropout", 0),
		Norm:        conv.ConfigGet[string](cfg, "norm", ""),
		Init:        conv.ConfigGet[string](cfg, "init", ""),
		L1:          conv.ConfigGetFloat64(cfg, "l1", 0),
		L2:          conv.ConfigGetFloat64(cfg, "l2", 0),
		Optimizer:   conv.ConfigGet[string](cfg, "optimizer", ""),
		LR:          conv.ConfigGetFloat64(cfg, "learning_rate", 0),
		WeightDecay: conv.ConfigGetFloat64(cfg, "weight_decay", 0),
		Seed:        int64(conv.ConfigGetInt(cfg, "seed", 0)),
	}
	return spec.Build()
}

// BuildModels 构建本次运行的成员列表。
// 未配置 models 时构建完整花名册；配置了则按声明顺序逐个构建，
// 条目未给 seed 的用运行种子，未给 embedding_dim 的用嵌入配置维度。
func (c *RunConfig) BuildModels() ([]*nn.Network, error) {
	if len(c.Models) == 0 {
		return model.Roster(model.RosterConfig{
			Seed:         c.Train.Seed,
			EmbeddingDim: c.Embedding.Dim,
		})
	}
	nets := make([]*nn.Network, 0, len(c.Models))
	for i, mc := range c.Models {
		cfg := make(map[string]interface{}, len(mc.Config)+2)
		for k, v := range mc.Config {
			cfg[k] = v
		}
		if _, ok := cfg["seed"]; !ok {
			cfg["seed"] = c.Train.Seed
		}
		if _, ok := cfg["embedding_dim"]; !ok {
			cfg["embedding_dim"] = c.Embedding.Dim
		}
		net, err := Build(mc.Type, cfg)
		if err != nil {
			return nil, fmt.Errorf("build models[%d] (%s): %w", i, mc.Type, err)
		}
		nets = append(nets, net)
	}
	return nets, nil
}
