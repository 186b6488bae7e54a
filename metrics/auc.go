// Package metrics 提供分类评估指标：ROC AUC、准确率、精确率/召回率/F1 与混淆矩阵。
//
// 设计原则：
//   - 一对多（OVR）多分类 AUC：逐类把任务二值化后取宏平均或按支持度加权
//   - 集成权重使用验证集宏平均 AUC，本包只算指标，不持有模型
//   - 概率矩阵行为样本、列为类别，与 nn 包的输出约定一致
package metrics

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// BinaryROCAUC 计算二分类 ROC 曲线下面积。
// positives 标记每个得分是否属于正类，两类都必须至少出现一次。
func BinaryROCAUC(scores []float64, positives []bool) (float64, error) {
	if len(scores) != len(positives) {
		return 0, fmt.Errorf("metrics: got %d scores for %d labels", len(scores), len(positives))
	}
	var pos, neg int
	for _, p := range positives {
		if p {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0, fmt.Errorf("metrics: ROC AUC needs both classes present, got %d positives and %d negatives", pos, neg)
	}

	y := append([]float64(nil), scores...)
	cls := append([]bool(nil), positives...)
	stat.SortWeightedLabeled(y, cls, nil)
	tpr, fpr, _ := stat.ROC(nil, y, cls, nil)
	return integrate.Trapezoidal(fpr, tpr), nil
}

// PerClassAUC 逐类做一对多二值化后计算 AUC，列数即类别数。
func PerClassAUC(probs *mat.Dense, labels []int) ([]float64, error) {
	rows, classes := probs.Dims()
	if rows != len(labels) {
		return nil, fmt.Errorf("metrics: got %d probability rows for %d labels", rows, len(labels))
	}
	aucs := make([]float64, classes)
	for c := 0; c < classes; c++ {
		scores := make([]float64, rows)
		positives := make([]bool, rows)
		for i := 0; i < rows; i++ {
			scores[i] = probs.At(i, c)
			positives[i] = labels[i] == c
		}
		auc, err := BinaryROCAUC(scores, positives)
		if err != nil {
			return nil, fmt.Errorf("metrics: class %d: %w", c, err)
		}
		aucs[c] = auc
	}
	return aucs, nil
}

// MacroAUC 返回逐类 AUC 的简单平均（集成权重使用此口径）。
func MacroAUC(probs *mat.Dense, labels []int) (float64, error) {
	aucs, err := PerClassAUC(probs, labels)
	if err != nil {
		return 0, err
	}
	return floats.Sum(aucs) / float64(len(aucs)), nil
}

// WeightedAUC 返回按类支持度加权的逐类 AUC 平均。
func WeightedAUC(probs *mat.Dense, labels []int) (float64, error) {
	aucs, err := PerClassAUC(probs, labels)
	if err != nil {
		return 0, err
	}
	counts := make([]float64, len(aucs))
	for _, y := range labels {
		if y >= 0 && y < len(counts) {
			counts[y]++
		}
	}
	total := floats.Sum(counts)
	if total == 0 {
		return 0, fmt.Errorf("metrics: no labeled rows")
	}
	return floats.Dot(aucs, counts) / total, nil
}

// ArgmaxRows 把概率矩阵转成预测类别（逐行取最大列，平手取先出现的列）。
func ArgmaxRows(probs *mat.Dense) []int {
	rows, _ := probs.Dims()
	out := make([]int, rows)
	for i := 0; i < rows; i++ {
		out[i] = floats.MaxIdx(probs.RawRowView(i))
	}
	return out
}
