package feature

import (
	"math"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
)

// CategoryLevels 是固定的类别编码表（列名 → 类别值 → 有序级别）。
// 每列 3 个级别，按严重程度从重到轻编码为 3/2/1。
// 编码表是静态领域知识，不从数据拟合。
var CategoryLevels = map[string]map[string]int{
	"BirthWeight": {
		"WeightTooLow": 3, "LowWeight": 2, "NormalWeight": 1,
	},
	"FamilyHistory": {
		"AboveTwoCases": 3, "ZeroToTwoCases": 2, "NoCases": 1,
	},
	"PretermBirth": {
		"4orMoreWeeksEarlier": 3, "2To4weeksEarlier": 2, "NotaPreTerm": 1,
	},
	"HeartRate": {
		"RapidHeartRate": 3, "HighHeartRate": 2, "NormalHeartRate": 1,
	},
	"BreathingDifficulty": {
		"HighBreathingDifficulty": 3, "BreathingDifficulty": 2, "NoBreathingDifficulty": 1,
	},
	"SkinTinge": {
		"Bluish": 3, "LightBluish": 2, "NotBluish": 1,
	},
	"Responsiveness": {
		"UnResponsive": 3, "SemiResponsive": 2, "Responsive": 1,
	},
	"Movement": {
		"Diminished": 3, "Decreased": 2, "NormalMovement": 1,
	},
	"DeliveryType": {
		"C_Section": 3, "DifficultDelivery": 2, "NormalDelivery": 1,
	},
	"MothersBPHistory": {
		"VeryHighBP": 3, "HighBP": 2, "BPInRange": 1,
	},
}

// TargetLevels 是目标标签编码表（风险等级 → 整数标签）。
var TargetLevels = map[string]int{
	"Low":    0,
	"Medium": 1,
	"High":   2,
}

// OrdinalEncoder 按固定编码表将类别字符串映射为有序整数。
//
// 设计原则：
//   - 未知类别编码为 NaN，而不是默认 0：下游切分前必须显式失败，
//     绝不在损坏的行上训练
//   - 编码表构造后只读，多协程可安全共享
type OrdinalEncoder struct {
	Levels    map[string]map[string]int // 列名 → 类别值 → 级别
	TargetMap map[string]int            // 标签 → 类别下标
}

// NewOrdinalEncoder 创建使用固定领域编码表的编码器。
func NewOrdinalEncoder() *OrdinalEncoder {
	return &OrdinalEncoder{
		Levels:    CategoryLevels,
		TargetMap: TargetLevels,
	}
}

// EncodeValue 编码单个类别值。未知列或未知类别返回 NaN。
func (e *OrdinalEncoder) EncodeValue(column, value string) float64 {
	levels, ok := e.Levels[column]
	if !ok {
		return math.NaN()
	}
	level, ok := levels[value]
	if !ok {
		return math.NaN()
	}
	return float64(level)
}

// EncodeRecord 按 core.FeatureColumns 顺序编码一条记录，
// 返回特征向量与无法映射的列名列表（空列表表示整行有效）。
func (e *OrdinalEncoder) EncodeRecord(r core.Record) ([]float64, []string) {
	row := make([]float64, len(core.FeatureColumns))
	var unmapped []string
	for i, col := range core.FeatureColumns {
		v := e.EncodeValue(col, r.Value(col))
		if math.IsNaN(v) {
			unmapped = append(unmapped, col)
		}
		row[i] = v
	}
	return row, unmapped
}

// EncodeTarget 编码标签字符串，未知标签返回 (0, false)。
func (e *OrdinalEncoder) EncodeTarget(label string) (int, bool) {
	t, ok := e.TargetMap[label]
	return t, ok
}

// ClassName 返回整数标签对应的类别名，越界返回空串。
func (e *OrdinalEncoder) ClassName(label int) string {
	if label < 0 || label >= len(core.ClassNames) {
		return ""
	}
	return core.ClassNames[label]
}

// LevelMap 返回一条记录的列名 → 级别映射（供 DSL 筛选使用），
// 无法映射的列不出现在结果中。
func (e *OrdinalEncoder) LevelMap(r core.Record) map[string]int {
	out := make(map[string]int, len(core.FeatureColumns))
	for _, col := range core.FeatureColumns {
		if levels, ok := e.Levels[col]; ok {
			if lv, ok := levels[r.Value(col)]; ok {
				out[col] = lv
			}
		}
	}
	return out
}
