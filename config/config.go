// Package config 提供 YAML 运行配置与配置驱动的成员构建。
//
// 核心思想：
//   - 一份 RunConfig 覆盖整次运行：数据路径与切分比例、训练参数、
//     嵌入服务端点、搜索试验数、可选的花名册覆盖
//   - 成员构建走注册表：内置成员在 init 中注册，外部模型类型
//     可自行 Register 后通过配置引用
//   - 超参数用 map[string]interface{} 承载，pkg/conv 做类型化提取
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
)

// DataConfig 是数据加载与切分配置。
type DataConfig struct {
	// Path 是病例 CSV 文件路径
	Path string `yaml:"path" json:"path"`

	// TestFraction 与 ValFraction 是分层切分比例（相对全量）
	TestFraction float64 `yaml:"test_fraction" json:"test_fraction"`
	ValFraction  float64 `yaml:"validation_fraction" json:"validation_fraction"`

	// Filter 是可选的 CEL 记录过滤表达式，空串表示不过滤
	Filter string `yaml:"filter,omitempty" json:"filter,omitempty"`
}

// TrainConfig 是训练参数配置。
type TrainConfig struct {
	Seed      int64  `yaml:"seed" json:"seed"`
	Epochs    int    `yaml:"epochs" json:"epochs"`
	BatchSize int    `yaml:"batch_size" json:"batch_size"`
	ModelDir  string `yaml:"model_dir" json:"model_dir"`
}

// EmbeddingConfig 是外部嵌入服务配置。
// SecondEndpoint 非空时启用双编码器拼接，维度翻倍。
type EmbeddingConfig struct {
	Endpoint       string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	SecondEndpoint string `yaml:"second_endpoint,omitempty" json:"second_endpoint,omitempty"`
	CacheDir       string `yaml:"cache_dir,omitempty" json:"cache_dir,omitempty"`
	Dim            int    `yaml:"dim" json:"dim"`
}

// SearchConfig 是超参随机搜索配置。
type SearchConfig struct {
	Trials int `yaml:"trials" json:"trials"`
}

// ModelConfig 是花名册覆盖中的单个成员声明。
// Type 为注册表中的模型类型（十二个内置成员名或 "spec"），
// Config 为该成员的超参数表。
type ModelConfig struct {
	Type   string                 `yaml:"type" json:"type"`
	Config map[string]interface{} `yaml:"config" json:"config"`
}

// RunConfig 聚合一次完整运行的全部配置。
type RunConfig struct {
	Data      DataConfig      `yaml:"data" json:"data"`
	Train     TrainConfig     `yaml:"train" json:"train"`
	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding"`
	Search    SearchConfig    `yaml:"search" json:"search"`

	// Models 非空时覆盖默认花名册，按声明顺序构建
	Models []ModelConfig `yaml:"models,omitempty" json:"models,omitempty"`
}

// Default 返回各字段的默认运行配置。
func Default() *RunConfig {
	cfg := &RunConfig{}
	cfg.Data.TestFraction = 0.15
	cfg.Data.ValFraction = 0.15
	cfg.Train.Seed = 42
	cfg.Train.Epochs = 200
	cfg.Train.BatchSize = 64
	cfg.Train.ModelDir = "saved_models"
	cfg.Embedding.Dim = core.DefaultEmbeddingDim
	cfg.Search.Trials = 5000
	return cfg
}

// LoadFromYAML 从 YAML 文件加载运行配置，未给出的字段保持默认值。
func LoadFromYAML(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromJSON 从 JSON 文件加载运行配置，未给出的字段保持默认值。
func LoadFromJSON(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置的内部一致性，问题以 INVALID_CONFIG 领域错误返回。
func (c *RunConfig) Validate() error {
	if c.Data.TestFraction <= 0 || c.Data.TestFraction >= 1 {
		return invalid(fmt.Sprintf("test_fraction %v out of (0,1)", c.Data.TestFraction))
	}
	if c.Data.ValFraction <= 0 || c.Data.ValFraction >= 1 {
		return invalid(fmt.Sprintf("validation_fraction %v out of (0,1)", c.Data.ValFraction))
	}
	if c.Data.TestFraction+c.Data.ValFraction >= 1 {
		return invalid(fmt.Sprintf("test_fraction %v + validation_fraction %v leave no training data",
			c.Data.TestFraction, c.Data.ValFraction))
	}
	if c.Train.Epochs <= 0 {
		return invalid(fmt.Sprintf("epochs %d must be positive", c.Train.Epochs))
	}
	if c.Train.BatchSize <= 0 {
		return invalid(fmt.Sprintf("batch_size %d must be positive", c.Train.BatchSize))
	}
	if c.Embedding.Dim <= 0 {
		return invalid(fmt.Sprintf("embedding dim %d must be positive", c.Embedding.Dim))
	}
	if c.Search.Trials <= 0 {
		return invalid(fmt.Sprintf("search trials %d must be positive", c.Search.Trials))
	}
	for i, mc := range c.Models {
		if mc.Type == "" {
			return invalid(fmt.Sprintf("models[%d] has no type", i))
		}
	}
	return nil
}

func invalid(msg string) error {
	return core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidConfig, "config: "+msg)
}
