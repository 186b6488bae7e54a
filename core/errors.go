package core

import "errors"

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX）
//
// 使用场景：
//   - 数据契约错误：UNMAPPED_CATEGORY, MISSING_CLASS, ROW_MISMATCH（致命，立即终止）
//   - 预测路由错误：MISSING_INPUT（该次预测调用失败）
//   - 存储/工件错误：NOT_FOUND（加载集成时降级为静默剔除）
//   - 配置错误：INVALID_CONFIG
type DomainError struct {
	Code    string // 错误代码（如 "UNMAPPED_CATEGORY", "MISSING_INPUT"）
	Message string // 错误消息
	Module  string // 模块名称（如 "dataset", "ensemble", "store"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// IsDomainError 检查错误链上是否有 DomainError
func IsDomainError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr)
}

// GetDomainError 从错误链上取出 DomainError，没有则返回 nil。
// 领域错误经 fmt.Errorf("...: %w", err) 包装后仍可被识别。
func GetDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// 错误代码常量
const (
	// 数据契约错误代码（致命）
	ErrorCodeUnmappedCategory = "UNMAPPED_CATEGORY" // 类别值不在编码表中
	ErrorCodeMissingClass     = "MISSING_CLASS"     // 分层切分后某分区缺少类别
	ErrorCodeRowMismatch      = "ROW_MISMATCH"      // 特征矩阵与标签行数不一致

	// 通用错误代码
	ErrorCodeMissingInput  = "MISSING_INPUT"  // 预测时成员所需输入缺失
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源/工件不存在
	ErrorCodeInvalidConfig = "INVALID_CONFIG" // 配置无效
	ErrorCodeUnavailable   = "UNAVAILABLE"    // 外部服务不可用
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误
)

// 模块名称常量
const (
	ModuleDataset  = "dataset"  // 数据加载与切分模块
	ModuleFeature  = "feature"  // 特征编码与标准化模块
	ModuleModel    = "model"    // 模型构建模块
	ModuleTrain    = "train"    // 单模型训练模块
	ModuleEnsemble = "ensemble" // 集成聚合模块
	ModuleStore    = "store"    // 存储模块
	ModuleService  = "service"  // 嵌入服务模块
	ModuleConfig   = "config"   // 配置模块
	ModuleSearch   = "search"   // 超参搜索模块
)

// 通用错误检查函数

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeNotFound
	}
	return false
}

// IsMissingInput 检查错误是否为 MISSING_INPUT
func IsMissingInput(err error) bool {
	if err == nil {
		return false
	}
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeMissingInput
	}
	return false
}

// IsDataContract 检查错误是否为数据契约错误（致命，终止整个运行）
func IsDataContract(err error) bool {
	if err == nil {
		return false
	}
	if domainErr := GetDomainError(err); domainErr != nil {
		switch domainErr.Code {
		case ErrorCodeUnmappedCategory, ErrorCodeMissingClass, ErrorCodeRowMismatch:
			return true
		}
	}
	return false
}

// IsInvalidConfig 检查错误是否为 INVALID_CONFIG
func IsInvalidConfig(err error) bool {
	if err == nil {
		return false
	}
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeInvalidConfig
	}
	return false
}

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeUnavailable
	}
	return false
}
