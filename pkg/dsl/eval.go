package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvOnce sync.Once
)

// initCELEnv 初始化 CEL 环境，定义变量
func initCELEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		// 定义变量类型
		cel.Variable("row", cel.DynType),
		cel.Variable("level", cel.DynType),
		cel.Variable("target", cel.DynType),
		cel.Variable("index", cel.DynType),
	)
	return env, err
}

// getCELEnv 获取或创建 CEL 环境
func getCELEnv() (*cel.Env, error) {
	var err error
	celEnvOnce.Do(func() {
		celEnv, err = initCELEnv()
	})
	return celEnv, err
}

// Filter 是病例记录的筛选器，使用 CEL (Common Expression Language) 实现。
// 加载数据时可按表达式圈选队列（cohort），例如剔除某类分娩方式的记录。
//
// 表达式语法（CEL 标准语法）：
//   - 原始值：row.BirthWeight == "WeightTooLow" / row.SkinTinge != "Bluish"
//   - 编码值：level.HeartRate >= 2 / level.Movement == 3
//   - 标签：target == "High" / target in ["Medium", "High"]
//   - 行号：index < 500
//   - 逻辑：row.DeliveryType == "C_Section" && level.BirthWeight >= 2
//
// 表达式在构造时编译一次，Match 可对任意多条记录复用。
type Filter struct {
	expr string
	prg  cel.Program
}

// NewFilter 编译表达式并返回筛选器。空表达式匹配所有记录。
func NewFilter(expr string) (*Filter, error) {
	if expr == "" {
		return &Filter{}, nil
	}

	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env error: %v", err)
	}

	// 编译表达式
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %v", issues.Err())
	}

	// 创建程序
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %v", err)
	}

	return &Filter{expr: expr, prg: prg}, nil
}

// Match 对一条记录执行表达式，返回布尔结果。
// levels 是该记录的编码后整数级别（列名 → 1..3），可为 nil。
//
// 注意：CEL 访问不存在的 key 会报错，存在性检查应写 row.key != null。
func (f *Filter) Match(r core.Record, levels map[string]int) (bool, error) {
	if f.prg == nil {
		return true, nil
	}

	out, _, err := f.prg.Eval(f.buildInput(r, levels))
	if err != nil {
		return false, fmt.Errorf("eval error: %v", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}

	return result, nil
}

// String 返回原始表达式（用于日志）。
func (f *Filter) String() string {
	return f.expr
}

// buildInput 构建 CEL 表达式的输入数据
func (f *Filter) buildInput(r core.Record, levels map[string]int) map[string]interface{} {
	row := make(map[string]interface{}, len(r.Values))
	for k, v := range r.Values {
		row[k] = v
	}

	level := make(map[string]interface{}, len(levels))
	for k, v := range levels {
		level[k] = v
	}

	return map[string]interface{}{
		"row":    row,
		"level":  level,
		"target": r.Target,
		"index":  r.Index,
	}
}
