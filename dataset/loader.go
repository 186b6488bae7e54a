package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
	"github.com/bhavanareddy19/cardicarrestnewborn/feature"
	"github.com/bhavanareddy19/cardicarrestnewborn/pkg/dsl"
)

// LoadOption 是加载器配置选项
type LoadOption func(*loadOptions)

type loadOptions struct {
	filterExpr string
}

// WithFilter 设置 CEL 队列筛选表达式，只保留匹配的记录。
// 例如 `row.DeliveryType != "C_Section"` 或 `level.BirthWeight >= 2`。
func WithFilter(expr string) LoadOption {
	return func(o *loadOptions) {
		o.filterExpr = expr
	}
}

// Load 读取 CSV 文件并按固定编码表编码。
func Load(path string, opts ...LoadOption) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset file: %w", err)
	}
	defer f.Close()
	return Decode(f, opts...)
}

// Decode 从 reader 读取 CSV 并编码为 Dataset。
//
// 输入契约：
//   - 首行是表头，必须包含全部 10 个特征列与目标列（顺序任意）
//   - 每行一个病例；未知类别值编码为 NaN，未知标签编码为 -1，
//     由 Dataset.Validate 在切分前统一报致命错误
//   - 原始字符串保留在 Record 上，供临床文本与嵌入服务使用
func Decode(r io.Reader, opts ...LoadOption) (*Dataset, error) {
	var options loadOptions
	for _, opt := range opts {
		opt(&options)
	}

	filter, err := dsl.NewFilter(options.filterExpr)
	if err != nil {
		return nil, core.NewDomainError(core.ModuleDataset, core.ErrorCodeInvalidConfig,
			fmt.Sprintf("dataset: bad filter expression: %v", err))
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read dataset header: %w", err)
	}
	colIdx := make(map[string]int, len(header))
	for i, name := range header {
		colIdx[name] = i
	}
	for _, col := range append(append([]string{}, core.FeatureColumns...), core.TargetColumn) {
		if _, ok := colIdx[col]; !ok {
			return nil, core.NewDomainError(core.ModuleDataset, core.ErrorCodeInvalidConfig,
				fmt.Sprintf("dataset: input file missing column %q", col))
		}
	}

	enc := feature.NewOrdinalEncoder()
	ds := &Dataset{}
	var flat []float64

	for rowNum := 0; ; rowNum++ {
		raw, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset row %d: %w", rowNum, err)
		}

		rec := core.Record{
			Index:  rowNum,
			Values: make(map[string]string, core.NumFeatures),
		}
		for _, col := range core.FeatureColumns {
			rec.Values[col] = raw[colIdx[col]]
		}
		rec.Target = raw[colIdx[core.TargetColumn]]

		keep, err := filter.Match(rec, enc.LevelMap(rec))
		if err != nil {
			return nil, core.NewDomainError(core.ModuleDataset, core.ErrorCodeInvalidConfig,
				fmt.Sprintf("dataset: filter failed on source row %d: %v", rowNum, err))
		}
		if !keep {
			continue
		}

		row, _ := enc.EncodeRecord(rec)
		label, ok := enc.EncodeTarget(rec.Target)
		if !ok {
			label = -1
		}

		ds.Records = append(ds.Records, rec)
		ds.Labels = append(ds.Labels, label)
		flat = append(flat, row...)
	}

	if len(ds.Records) == 0 {
		return nil, core.NewDomainError(core.ModuleDataset, core.ErrorCodeInvalidConfig,
			"dataset: no records after loading")
	}
	ds.Raw = mat.NewDense(len(ds.Records), core.NumFeatures, flat)
	return ds, nil
}
