package metrics

import (
	"fmt"
	"strings"
)

// ClassMetrics 是单个类别（或某种平均口径）的精确率、召回率与 F1。
type ClassMetrics struct {
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// ClassReport 汇总分类结果：准确率、逐类指标、两种平均与混淆矩阵。
type ClassReport struct {
	Accuracy float64
	Names    []string
	Classes  []ClassMetrics
	Macro    ClassMetrics
	Weighted ClassMetrics

	// Confusion[truth][pred]
	Confusion [][]int
}

// Report 由预测类别与真实类别构建评估报告。
// names 给出类别显示名，长度即类别数；越界标签视为数据错误。
func Report(pred, truth []int, names []string) (*ClassReport, error) {
	if len(pred) != len(truth) {
		return nil, fmt.Errorf("metrics: got %d predictions for %d labels", len(pred), len(truth))
	}
	if len(pred) == 0 {
		return nil, fmt.Errorf("metrics: empty evaluation set")
	}
	classes := len(names)
	if classes == 0 {
		return nil, fmt.Errorf("metrics: no class names")
	}

	confusion := make([][]int, classes)
	for c := range confusion {
		confusion[c] = make([]int, classes)
	}
	correct := 0
	for i := range truth {
		t, p := truth[i], pred[i]
		if t < 0 || t >= classes || p < 0 || p >= classes {
			return nil, fmt.Errorf("metrics: label out of range at row %d: truth %d, pred %d", i, t, p)
		}
		confusion[t][p]++
		if t == p {
			correct++
		}
	}

	rep := &ClassReport{
		Accuracy:  float64(correct) / float64(len(truth)),
		Names:     append([]string(nil), names...),
		Classes:   make([]ClassMetrics, classes),
		Confusion: confusion,
	}

	total := len(truth)
	for c := 0; c < classes; c++ {
		var tp, fp, fn int
		for o := 0; o < classes; o++ {
			if o == c {
				tp = confusion[c][c]
				continue
			}
			fn += confusion[c][o]
			fp += confusion[o][c]
		}
		m := ClassMetrics{Support: tp + fn}
		if tp+fp > 0 {
			m.Precision = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			m.Recall = float64(tp) / float64(tp+fn)
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		rep.Classes[c] = m

		rep.Macro.Precision += m.Precision / float64(classes)
		rep.Macro.Recall += m.Recall / float64(classes)
		rep.Macro.F1 += m.F1 / float64(classes)
		w := float64(m.Support) / float64(total)
		rep.Weighted.Precision += m.Precision * w
		rep.Weighted.Recall += m.Recall * w
		rep.Weighted.F1 += m.F1 * w
	}
	rep.Macro.Support = total
	rep.Weighted.Support = total
	return rep, nil
}

// String 以对齐文本表渲染报告，示例程序与日志使用。
func (r *ClassReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %9s %9s %9s %9s\n", "", "precision", "recall", "f1", "support")
	for c, m := range r.Classes {
		fmt.Fprintf(&b, "%-12s %9.4f %9.4f %9.4f %9d\n", r.Names[c], m.Precision, m.Recall, m.F1, m.Support)
	}
	fmt.Fprintf(&b, "%-12s %9.4f %9s %9s %9d\n", "accuracy", r.Accuracy, "", "", r.Macro.Support)
	fmt.Fprintf(&b, "%-12s %9.4f %9.4f %9.4f %9d\n", "macro avg", r.Macro.Precision, r.Macro.Recall, r.Macro.F1, r.Macro.Support)
	fmt.Fprintf(&b, "%-12s %9.4f %9.4f %9.4f %9d\n", "weighted avg", r.Weighted.Precision, r.Weighted.Recall, r.Weighted.F1, r.Weighted.Support)
	return b.String()
}
