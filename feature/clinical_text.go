package feature

import (
	"strings"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
)

// narrativePhrases 是类别值 → 临床叙述短语的固定模板表。
// 生成的段落使用医学词汇，适合送入 BioBERT / ClinicalBERT 类编码服务。
var narrativePhrases = map[string]map[string]string{
	"BirthWeight": {
		"WeightTooLow": "The newborn has a critically low birth weight",
		"LowWeight":    "The newborn has a low birth weight",
		"NormalWeight": "The newborn has a normal birth weight",
	},
	"FamilyHistory": {
		"AboveTwoCases":  "with a significant family history of cardiac conditions (more than two cases)",
		"ZeroToTwoCases": "with a limited family history of cardiac conditions (zero to two cases)",
		"NoCases":        "with no family history of cardiac conditions",
	},
	"PretermBirth": {
		"4orMoreWeeksEarlier": "born four or more weeks premature",
		"2To4weeksEarlier":    "born two to four weeks premature",
		"NotaPreTerm":         "born at full term",
	},
	"HeartRate": {
		"RapidHeartRate":  "presenting with a rapid heart rate indicating tachycardia",
		"HighHeartRate":   "presenting with an elevated heart rate",
		"NormalHeartRate": "with a normal heart rate within expected neonatal range",
	},
	"BreathingDifficulty": {
		"HighBreathingDifficulty": "exhibiting severe respiratory distress",
		"BreathingDifficulty":     "exhibiting moderate breathing difficulty",
		"NoBreathingDifficulty":   "with no signs of respiratory distress",
	},
	"SkinTinge": {
		"Bluish":      "with cyanotic skin coloration suggesting poor oxygenation",
		"LightBluish": "with mild cyanotic skin tinge",
		"NotBluish":   "with normal skin color and adequate oxygenation",
	},
	"Responsiveness": {
		"UnResponsive":   "The infant is unresponsive to external stimuli",
		"SemiResponsive": "The infant shows limited responsiveness to stimuli",
		"Responsive":     "The infant is responsive to external stimuli",
	},
	"Movement": {
		"Diminished":     "with severely diminished motor activity",
		"Decreased":      "with decreased motor activity",
		"NormalMovement": "with normal motor activity and movement patterns",
	},
	"DeliveryType": {
		"C_Section":         "Delivery was via cesarean section",
		"DifficultDelivery": "Delivery was classified as difficult",
		"NormalDelivery":    "Delivery was normal and uncomplicated",
	},
	"MothersBPHistory": {
		"VeryHighBP": "The mother has a history of very high blood pressure indicating severe hypertension",
		"HighBP":     "The mother has a history of high blood pressure",
		"BPInRange":  "The mother's blood pressure history is within normal range",
	},
}

// ClinicalNarrative 将一条原始类别记录转换为临床叙述段落（2~4 句）。
//
// 句子分组固定：
//   1. 出生体重 + 家族史 + 早产情况
//   2. 心率 + 呼吸 + 肤色（以 "The infant is" 开头）
//   3. 反应性 + 运动
//   4. 分娩方式 + 母亲血压史
//
// 未知类别值的短语被省略，输出是确定性的：同一记录总是产生同一段落。
func ClinicalNarrative(r core.Record) string {
	sentence1 := joinPhrases(r, []string{"BirthWeight", "FamilyHistory", "PretermBirth"}, ", ")
	if sentence1 != "" {
		sentence1 += "."
	}

	sentence2 := joinPhrases(r, []string{"HeartRate", "BreathingDifficulty", "SkinTinge"}, ", ")
	if sentence2 != "" {
		sentence2 = "The infant is " + sentence2 + "."
	}

	sentence3 := joinPhrases(r, []string{"Responsiveness", "Movement"}, " ")
	if sentence3 != "" {
		sentence3 += "."
	}

	sentence4 := joinPhrases(r, []string{"DeliveryType", "MothersBPHistory"}, " ")
	if sentence4 != "" {
		sentence4 += "."
	}

	var sentences []string
	for _, s := range []string{sentence1, sentence2, sentence3, sentence4} {
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return strings.Join(sentences, " ")
}

// ClinicalNarratives 为每条记录生成叙述文本，按输入顺序排列。
func ClinicalNarratives(records []core.Record) []string {
	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = ClinicalNarrative(r)
	}
	return texts
}

func joinPhrases(r core.Record, columns []string, sep string) string {
	var parts []string
	for _, col := range columns {
		val := strings.TrimSpace(r.Value(col))
		if phrase := narrativePhrases[col][val]; phrase != "" {
			parts = append(parts, phrase)
		}
	}
	return strings.Join(parts, sep)
}
