package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
	"github.com/bhavanareddy19/cardicarrestnewborn/nn"
)

// ModelBuilder 根据超参数表构建一个成员网络。
// 内置成员在本包 init 中注册，外部模型类型调用 Register 即可被配置驱动。
type ModelBuilder func(cfg map[string]interface{}) (*nn.Network, error)

var (
	defaultBuilders   = make(map[string]ModelBuilder)
	defaultBuildersMu sync.RWMutex
)

// Register 注册一种模型类型的构建逻辑。
// 重复注册同名类型时后注册者生效。
func Register(typeName string, builder ModelBuilder) {
	if typeName == "" || builder == nil {
		return
	}
	defaultBuildersMu.Lock()
	defer defaultBuildersMu.Unlock()
	defaultBuilders[typeName] = builder
}

// SupportedTypes 返回已注册的模型类型列表（排序），用于错误提示与校验。
func SupportedTypes() []string {
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	types := make([]string, 0, len(defaultBuilders))
	for t := range defaultBuilders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Build 按类型名与超参数表构建模型；未注册的类型返回含已支持列表的错误。
func Build(typeName string, cfg map[string]interface{}) (*nn.Network, error) {
	defaultBuildersMu.RLock()
	builder, ok := defaultBuilders[typeName]
	defaultBuildersMu.RUnlock()
	if !ok {
		return nil, core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidConfig,
			fmt.Sprintf("config: unsupported model type %q (supported: %v)", typeName, SupportedTypes()))
	}
	return builder(cfg)
}

// ValidateModels 校验配置中所有模型类型均已注册。
func ValidateModels(cfg *RunConfig) error {
	if cfg == nil {
		return nil
	}
	for _, mc := range cfg.Models {
		defaultBuildersMu.RLock()
		_, ok := defaultBuilders[mc.Type]
		defaultBuildersMu.RUnlock()
		if !ok {
			return core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidConfig,
				fmt.Sprintf("config: unsupported model type %q (supported: %v)", mc.Type, SupportedTypes()))
		}
	}
	return nil
}
