package nn

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
)

// 序列化格式：拓扑加权重的 JSON 快照。
// 同一份字节既用于早停的最优权重回滚（RestoreState 原地覆写），
// 也用于检查点落盘后的整机重建（FromState）。

type weightState struct {
	Name string    `json:"name"`
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

type layerState struct {
	Kind string `json:"kind"`

	Act  string  `json:"act,omitempty"`
	Init string  `json:"init,omitempty"`
	In   int     `json:"in,omitempty"`
	Out  int     `json:"out,omitempty"`
	L1   float64 `json:"l1,omitempty"`
	L2   float64 `json:"l2,omitempty"`
	Rate float64 `json:"rate,omitempty"`
	Dim  int     `json:"dim,omitempty"`

	NumFeatures int `json:"num_features,omitempty"`
	VocabSize   int `json:"vocab_size,omitempty"`
	EmbDim      int `json:"emb_dim,omitempty"`

	Momentum float64   `json:"momentum,omitempty"`
	Eps      float64   `json:"eps,omitempty"`
	RunMean  []float64 `json:"run_mean,omitempty"`
	RunVar   []float64 `json:"run_var,omitempty"`

	Inner []layerState `json:"inner,omitempty"`

	Weights []weightState `json:"weights,omitempty"`
}

type networkState struct {
	Name        string       `json:"name"`
	Kind        string       `json:"kind"`
	Optimizer   string       `json:"optimizer"`
	LR          float64      `json:"learning_rate"`
	WeightDecay float64      `json:"weight_decay,omitempty"`
	Stack       []layerState `json:"stack,omitempty"`
	TabBranch   []layerState `json:"tab_branch,omitempty"`
	AuxBranch   []layerState `json:"aux_branch,omitempty"`
	Head        []layerState `json:"head,omitempty"`
}

// StateBytes 序列化网络拓扑与全部权重
func (n *Network) StateBytes() ([]byte, error) {
	st := networkState{
		Name:      n.name,
		Kind:      n.kind.String(),
		Optimizer: n.opt.Name(),
		LR:        n.opt.LearningRate(),
	}
	if a, ok := n.opt.(*Adam); ok && a.decoupled {
		st.WeightDecay = a.WeightDecay
	}
	var err error
	if n.kind == core.KindFusion {
		if st.TabBranch, err = layersToState(n.tabBranch); err != nil {
			return nil, err
		}
		if st.AuxBranch, err = layersToState(n.auxBranch); err != nil {
			return nil, err
		}
		if st.Head, err = layersToState(n.head); err != nil {
			return nil, err
		}
	} else {
		if st.Stack, err = layersToState(n.stack); err != nil {
			return nil, err
		}
	}
	return json.Marshal(st)
}

// RestoreState 把快照中的权重原地写回当前网络。
// 参数矩阵指针保持不变，更新器按下标维护的状态不会失配，
// 这使早停可以在训练中途安全回滚到最优轮次。
func (n *Network) RestoreState(data []byte) error {
	var st networkState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("nn: decode state for %q: %w", n.name, err)
	}
	if st.Kind != n.kind.String() {
		return fmt.Errorf("nn: state kind %q does not match network kind %q", st.Kind, n.kind)
	}
	if n.kind == core.KindFusion {
		if err := restoreLayers(n.tabBranch, st.TabBranch); err != nil {
			return err
		}
		if err := restoreLayers(n.auxBranch, st.AuxBranch); err != nil {
			return err
		}
		return restoreLayers(n.head, st.Head)
	}
	return restoreLayers(n.stack, st.Stack)
}

// FromState 从快照重建完整网络（加载落盘工件时使用）
func FromState(data []byte) (*Network, error) {
	var st networkState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("nn: decode network state: %w", err)
	}
	kind, err := parseKind(st.Kind)
	if err != nil {
		return nil, err
	}
	opt, err := NewOptimizer(st.Optimizer, st.LR, st.WeightDecay)
	if err != nil {
		return nil, err
	}
	// 重建时的随机初始化会被快照权重覆盖，种子无关紧要
	rng := rand.New(rand.NewSource(1))

	if kind == core.KindFusion {
		tab, err := layersFromState(st.TabBranch, rng)
		if err != nil {
			return nil, err
		}
		aux, err := layersFromState(st.AuxBranch, rng)
		if err != nil {
			return nil, err
		}
		head, err := layersFromState(st.Head, rng)
		if err != nil {
			return nil, err
		}
		return NewFusionNetwork(st.Name, opt, tab, aux, head)
	}
	stack, err := layersFromState(st.Stack, rng)
	if err != nil {
		return nil, err
	}
	return NewNetwork(st.Name, kind, opt, stack...)
}

func parseKind(s string) (core.InputKind, error) {
	switch s {
	case "tabular":
		return core.KindTabular, nil
	case "embedding":
		return core.KindEmbedding, nil
	case "fusion":
		return core.KindFusion, nil
	default:
		return 0, fmt.Errorf("nn: unknown input kind %q", s)
	}
}

func layersToState(layers []Layer) ([]layerState, error) {
	out := make([]layerState, len(layers))
	for i, l := range layers {
		st, err := layerToState(l)
		if err != nil {
			return nil, err
		}
		out[i] = st
	}
	return out, nil
}

func layerToState(l Layer) (layerState, error) {
	switch v := l.(type) {
	case *Dense:
		return layerState{
			Kind: v.Kind(), Act: v.Act, Init: v.Init,
			In: v.InDim, Out: v.Units, L1: v.L1, L2: v.L2,
			Weights: []weightState{weightOf(v.W), weightOf(v.B)},
		}, nil
	case *Activation:
		return layerState{Kind: v.Kind(), Act: v.Name}, nil
	case *Dropout:
		return layerState{Kind: v.Kind(), Rate: v.Rate}, nil
	case *AlphaDropout:
		return layerState{Kind: v.Kind(), Rate: v.Rate}, nil
	case *PReLU:
		return layerState{Kind: v.Kind(), Dim: v.Dim, Weights: []weightState{weightOf(v.Alpha)}}, nil
	case *BatchNorm:
		return layerState{
			Kind: v.Kind(), Dim: v.Dim, Momentum: v.Momentum, Eps: v.Eps,
			RunMean: append([]float64(nil), v.RunningMean...),
			RunVar:  append([]float64(nil), v.RunningVar...),
			Weights: []weightState{weightOf(v.Gamma), weightOf(v.Beta)},
		}, nil
	case *LayerNorm:
		return layerState{
			Kind: v.Kind(), Dim: v.Dim, Eps: v.Eps,
			Weights: []weightState{weightOf(v.Gamma), weightOf(v.Beta)},
		}, nil
	case *EmbeddingBank:
		ws := make([]weightState, len(v.Tables))
		for i, t := range v.Tables {
			ws[i] = weightOf(t)
		}
		return layerState{
			Kind: v.Kind(), NumFeatures: v.NumFeatures, VocabSize: v.VocabSize, EmbDim: v.EmbDim,
			Weights: ws,
		}, nil
	case *Residual:
		inner, err := layersToState(v.Inner)
		if err != nil {
			return layerState{}, err
		}
		return layerState{Kind: v.Kind(), Act: v.Act, Inner: inner}, nil
	case *FeatureGate:
		inner, err := layersToState(v.Gate)
		if err != nil {
			return layerState{}, err
		}
		return layerState{Kind: v.Kind(), Inner: inner}, nil
	default:
		return layerState{}, fmt.Errorf("nn: cannot serialize layer kind %q", l.Kind())
	}
}

func layersFromState(states []layerState, rng *rand.Rand) ([]Layer, error) {
	out := make([]Layer, len(states))
	for i, st := range states {
		l, err := layerFromState(st, rng)
		if err != nil {
			return nil, err
		}
		out[i] = l
	}
	return out, nil
}

func layerFromState(st layerState, rng *rand.Rand) (Layer, error) {
	switch st.Kind {
	case "dense":
		var opts []DenseOption
		if st.L1 != 0 || st.L2 != 0 {
			opts = append(opts, WithL1L2(st.L1, st.L2))
		}
		if st.Init != "" {
			opts = append(opts, WithInit(st.Init))
		}
		d, err := NewDense(rng, st.In, st.Out, st.Act, opts...)
		if err != nil {
			return nil, err
		}
		if err := copyWeights(st.Weights, d.W, d.B); err != nil {
			return nil, err
		}
		return d, nil
	case "activation":
		return NewActivation(st.Act)
	case "dropout":
		return NewDropout(rng, st.Rate), nil
	case "alpha_dropout":
		return NewAlphaDropout(rng, st.Rate), nil
	case "prelu":
		p := NewPReLU(st.Dim)
		if err := copyWeights(st.Weights, p.Alpha); err != nil {
			return nil, err
		}
		return p, nil
	case "batch_norm":
		b := NewBatchNorm(st.Dim)
		b.Momentum = st.Momentum
		b.Eps = st.Eps
		copy(b.RunningMean, st.RunMean)
		copy(b.RunningVar, st.RunVar)
		if err := copyWeights(st.Weights, b.Gamma, b.Beta); err != nil {
			return nil, err
		}
		return b, nil
	case "layer_norm":
		l := NewLayerNorm(st.Dim)
		l.Eps = st.Eps
		if err := copyWeights(st.Weights, l.Gamma, l.Beta); err != nil {
			return nil, err
		}
		return l, nil
	case "embedding_bank":
		e, err := NewEmbeddingBank(rng, st.NumFeatures, st.VocabSize, st.EmbDim)
		if err != nil {
			return nil, err
		}
		if err := copyWeights(st.Weights, e.Tables...); err != nil {
			return nil, err
		}
		return e, nil
	case "residual":
		inner, err := layersFromState(st.Inner, rng)
		if err != nil {
			return nil, err
		}
		return NewResidual(st.Act, inner...)
	case "feature_gate":
		inner, err := layersFromState(st.Inner, rng)
		if err != nil {
			return nil, err
		}
		return NewFeatureGate(inner...)
	default:
		return nil, fmt.Errorf("nn: cannot rebuild layer kind %q", st.Kind)
	}
}

func restoreLayers(layers []Layer, states []layerState) error {
	if len(layers) != len(states) {
		return fmt.Errorf("nn: state has %d layers, network has %d", len(states), len(layers))
	}
	for i, l := range layers {
		if err := restoreLayer(l, states[i]); err != nil {
			return fmt.Errorf("nn: restore layer %d: %w", i, err)
		}
	}
	return nil
}

func restoreLayer(l Layer, st layerState) error {
	if l.Kind() != st.Kind {
		return fmt.Errorf("kind mismatch: network %q, state %q", l.Kind(), st.Kind)
	}
	switch v := l.(type) {
	case *Dense:
		return copyWeights(st.Weights, v.W, v.B)
	case *Activation, *Dropout, *AlphaDropout:
		return nil
	case *PReLU:
		return copyWeights(st.Weights, v.Alpha)
	case *BatchNorm:
		copy(v.RunningMean, st.RunMean)
		copy(v.RunningVar, st.RunVar)
		return copyWeights(st.Weights, v.Gamma, v.Beta)
	case *LayerNorm:
		return copyWeights(st.Weights, v.Gamma, v.Beta)
	case *EmbeddingBank:
		return copyWeights(st.Weights, v.Tables...)
	case *Residual:
		return restoreLayers(v.Inner, st.Inner)
	case *FeatureGate:
		return restoreLayers(v.Gate, st.Inner)
	default:
		return fmt.Errorf("unsupported layer kind %q", l.Kind())
	}
}

func weightOf(p *Param) weightState {
	r, c := p.W.Dims()
	data := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			data = append(data, p.W.At(i, j))
		}
	}
	return weightState{Name: p.Name, Rows: r, Cols: c, Data: data}
}

// copyWeights 把快照权重按顺序原地写入参数矩阵，维度必须逐一匹配
func copyWeights(states []weightState, params ...*Param) error {
	if len(states) != len(params) {
		return fmt.Errorf("state has %d tensors, layer has %d", len(states), len(params))
	}
	for i, p := range params {
		st := states[i]
		r, c := p.W.Dims()
		if st.Rows != r || st.Cols != c {
			return fmt.Errorf("tensor %q is %dx%d, layer expects %dx%d", st.Name, st.Rows, st.Cols, r, c)
		}
		if len(st.Data) != r*c {
			return fmt.Errorf("tensor %q has %d values for %dx%d", st.Name, len(st.Data), r, c)
		}
		for a := 0; a < r; a++ {
			for b := 0; b < c; b++ {
				p.W.Set(a, b, st.Data[a*c+b])
			}
		}
	}
	return nil
}
