package model

import (
	"fmt"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
	"github.com/bhavanareddy19/cardicarrestnewborn/nn"
)

// memberOrder 是花名册的固定成员顺序。
// 集成权重向量、概率聚合与工件目录布局都按此顺序对齐，不可改动。
var memberOrder = []string{
	NameShallowWide,
	NameDeepNarrow,
	NamePyramidBN,
	NameDiamondSELU,
	NameResidualBlock,
	NameSwishLayerNorm,
	NameMixedActivation,
	NameHeavyRegularization,
	NameAttentionNet,
	NameVeryDeep,
	NameEmbeddingNet,
	NameBERTFusion,
}

// RosterConfig 控制花名册构建。
// Seed 是基准种子，成员 i 取 Seed+i，保证同配置可完全复现；
// EmbeddingDim 是融合成员的外部嵌入维度，非正值取 core.DefaultEmbeddingDim。
type RosterConfig struct {
	Seed         int64
	EmbeddingDim int
}

// MemberNames 返回花名册成员名（固定顺序的副本）。
func MemberNames() []string {
	return append([]string(nil), memberOrder...)
}

// MemberIndex 返回成员在花名册中的下标，未知名字返回 -1。
func MemberIndex(name string) int {
	for i, n := range memberOrder {
		if n == name {
			return i
		}
	}
	return -1
}

// BuildMember 按名字构建单个成员，种子为 cfg.Seed 加花名册下标。
func BuildMember(name string, cfg RosterConfig) (*nn.Network, error) {
	i := MemberIndex(name)
	if i < 0 {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeNotFound,
			fmt.Sprintf("model: unknown roster member %q", name))
	}
	seed := cfg.Seed + int64(i)
	switch name {
	case NameShallowWide:
		return NewShallowWide(seed)
	case NameDeepNarrow:
		return NewDeepNarrow(seed)
	case NamePyramidBN:
		return NewPyramidBN(seed)
	case NameDiamondSELU:
		return NewDiamondSELU(seed)
	case NameResidualBlock:
		return NewResidualBlock(seed)
	case NameSwishLayerNorm:
		return NewSwishLayerNorm(seed)
	case NameMixedActivation:
		return NewMixedActivation(seed)
	case NameHeavyRegularization:
		return NewHeavyRegularization(seed)
	case NameAttentionNet:
		return NewAttentionNet(seed)
	case NameVeryDeep:
		return NewVeryDeep(seed)
	case NameEmbeddingNet:
		return NewEntityEmbedding(seed)
	case NameBERTFusion:
		return NewBERTFusion(seed, cfg.EmbeddingDim)
	}
	return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInternalError,
		fmt.Sprintf("model: member %q listed but not buildable", name))
}

// Roster 按固定顺序构建全部十二个成员。
func Roster(cfg RosterConfig) ([]*nn.Network, error) {
	nets := make([]*nn.Network, 0, len(memberOrder))
	for _, name := range memberOrder {
		net, err := BuildMember(name, cfg)
		if err != nil {
			return nil, fmt.Errorf("build roster member %q: %w", name, err)
		}
		nets = append(nets, net)
	}
	return nets, nil
}
