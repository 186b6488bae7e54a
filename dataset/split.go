package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
)

// StratifiedSplit 将数据集切分为 train/validation/test 三个分区。
//
// 切分是两阶段的：先按 testFrac 分出测试集，再从剩余记录中按
// valFrac/(1-testFrac) 分出验证集。每一阶段都按类别分层，
// 两阶段使用同一个 seed 派生的独立随机源，同种子严格复现。
//
// 失败语义（均为致命数据契约错误）：
//   - 数据集中存在未编码行：UNMAPPED_CATEGORY
//   - 某个分区缺少某个类别（记录太少无法分层）：MISSING_CLASS
func StratifiedSplit(ds *Dataset, testFrac, valFrac float64, seed int64) (*Splits, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	if testFrac <= 0 || valFrac <= 0 || testFrac+valFrac >= 1 {
		return nil, core.NewDomainError(core.ModuleDataset, core.ErrorCodeInvalidConfig,
			fmt.Sprintf("dataset: invalid fractions test=%v val=%v", testFrac, valFrac))
	}

	all := make([]int, ds.Len())
	for i := range all {
		all[i] = i
	}

	testIdx, rest := stratifiedTake(ds.Labels, all, testFrac, seed)
	relVal := valFrac / (1 - testFrac)
	valIdx, trainIdx := stratifiedTake(ds.Labels, rest, relVal, seed)

	splits := &Splits{
		Train:      newPartition("train", ds, trainIdx),
		Validation: newPartition("validation", ds, valIdx),
		Test:       newPartition("test", ds, testIdx),
	}

	for _, p := range splits.Partitions() {
		for class, count := range p.ClassCounts() {
			if count == 0 {
				return nil, core.NewDomainError(core.ModuleDataset, core.ErrorCodeMissingClass,
					fmt.Sprintf("dataset: partition %q has no records of class %q; not enough data to stratify",
						p.Name, core.ClassNames[class]))
			}
		}
	}
	return splits, nil
}

// SplitAndScale 是 StratifiedSplit + ScaleFeatures 的组合入口。
func SplitAndScale(ds *Dataset, testFrac, valFrac float64, seed int64) (*Splits, error) {
	splits, err := StratifiedSplit(ds, testFrac, valFrac, seed)
	if err != nil {
		return nil, err
	}
	if err := splits.ScaleFeatures(); err != nil {
		return nil, err
	}
	return splits, nil
}

// stratifiedTake 从 pool 中按类别分层抽取约 frac 比例的下标。
//
// 配额分配用最大余数法：每类先取 floor(frac*n_c)，
// 再把与 round(frac*len(pool)) 的差额按余数从大到小补齐，
// 保证总量精确到 ±0（类内四舍五入误差不累积）。
// 返回的两个下标集都按升序排列，作为分区的稳定行顺序。
func stratifiedTake(labels []int, pool []int, frac float64, seed int64) (taken, rest []int) {
	rng := rand.New(rand.NewSource(seed))

	byClass := make(map[int][]int)
	for _, idx := range pool {
		byClass[labels[idx]] = append(byClass[labels[idx]], idx)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	type quota struct {
		class int
		base  int
		rem   float64
	}
	quotas := make([]quota, 0, len(classes))
	sumBase := 0
	for _, c := range classes {
		// 洗牌顺序只取决于 seed 与类别遍历顺序，后者已固定为升序
		rng.Shuffle(len(byClass[c]), func(i, j int) {
			byClass[c][i], byClass[c][j] = byClass[c][j], byClass[c][i]
		})
		exact := frac * float64(len(byClass[c]))
		base := int(math.Floor(exact))
		quotas = append(quotas, quota{class: c, base: base, rem: exact - float64(base)})
		sumBase += base
	}

	target := int(math.Round(frac * float64(len(pool))))
	extra := target - sumBase
	sort.SliceStable(quotas, func(i, j int) bool {
		if quotas[i].rem != quotas[j].rem {
			return quotas[i].rem > quotas[j].rem
		}
		return quotas[i].class < quotas[j].class
	})
	for i := 0; extra > 0 && i < len(quotas); i++ {
		if quotas[i].base < len(byClass[quotas[i].class]) {
			quotas[i].base++
			extra--
		}
	}

	for _, q := range quotas {
		members := byClass[q.class]
		taken = append(taken, members[:q.base]...)
		rest = append(rest, members[q.base:]...)
	}
	sort.Ints(taken)
	sort.Ints(rest)
	return taken, rest
}

// newPartition 按下标集从数据集中抽取分区，行顺序为下标升序。
func newPartition(name string, ds *Dataset, indices []int) *Partition {
	p := &Partition{
		Name:    name,
		Records: make([]core.Record, len(indices)),
		Labels:  make([]int, len(indices)),
		Indices: indices,
	}
	flat := make([]float64, 0, len(indices)*core.NumFeatures)
	for i, idx := range indices {
		p.Records[i] = ds.Records[idx]
		p.Labels[i] = ds.Labels[idx]
		flat = append(flat, ds.Raw.RawRowView(idx)...)
	}
	if len(indices) > 0 {
		p.Raw = mat.NewDense(len(indices), core.NumFeatures, flat)
	}
	return p
}
