package core

// 领域常量：特征列、目标列与类别。
//
// 数据集为新生儿临床指标表，每行一个病例：
//   - 10 个类别型特征列，每列 3 个有序级别（重→轻编码为 3/2/1）
//   - 1 个三级目标列 CardiacArrestChance（Low/Medium/High）
const (
	// TargetColumn 是目标列名
	TargetColumn = "CardiacArrestChance"

	// NumFeatures 是特征列数量
	NumFeatures = 10

	// NumClasses 是目标类别数量
	NumClasses = 3

	// NumLevels 是每个特征的有序级别数（编码为 1..3）
	NumLevels = 3
)

// FeatureColumns 是特征列的固定顺序。
// 编码矩阵、嵌入模型的逐列拆分、临床文本生成都依赖此顺序。
var FeatureColumns = []string{
	"BirthWeight",
	"FamilyHistory",
	"PretermBirth",
	"HeartRate",
	"BreathingDifficulty",
	"SkinTinge",
	"Responsiveness",
	"Movement",
	"DeliveryType",
	"MothersBPHistory",
}

// ClassNames 是目标类别名，下标即整数标签（Low=0, Medium=1, High=2）。
var ClassNames = []string{"Low", "Medium", "High"}

// Record 是一条病例记录（加载后不可变）。
//
// 设计原则：
//   - 保留原始类别字符串，供临床文本生成与嵌入服务使用
//   - Index 是源文件中的稳定行号，用于与外部嵌入矩阵按行对齐
//   - 编码后的整数形式保存在 dataset 的特征矩阵中，不在 Record 上
type Record struct {
	Index  int               // 源文件中的稳定行号（0 起）
	Values map[string]string // 列名 → 原始类别值
	Target string            // 原始标签（"Low"/"Medium"/"High"）
}

// Value 返回指定特征列的原始类别值，缺失时返回空串。
func (r Record) Value(column string) string {
	if r.Values == nil {
		return ""
	}
	return r.Values[column]
}
