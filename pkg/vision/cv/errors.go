package cv

import (
	"errors"
	"fmt"
)

// ErrMaskCoversTemplate ignore 区域覆盖了整个模板，没有可计算置信度的区块
var ErrMaskCoversTemplate = errors.New("ignore 区域覆盖了整个模板")

// InputError 输入错误：尺寸、类型、通道不匹配或尺寸非正
type InputError struct {
	Reason     string
	SourceSize [2]int // 宽, 高
	SearchSize [2]int
	Err        error
}

func (e *InputError) Error() string {
	msg := "输入错误: " + e.Reason
	if e.SourceSize != [2]int{} || e.SearchSize != [2]int{} {
		msg += fmt.Sprintf(" (source=%dx%d, search=%dx%d)",
			e.SourceSize[0], e.SourceSize[1], e.SearchSize[0], e.SearchSize[1])
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InputError) Unwrap() error { return e.Err }

// InsufficientFeaturesError 特征点数量不足
type InsufficientFeaturesError struct {
	SearchCount int
	SourceCount int
}

func (e *InsufficientFeaturesError) Error() string {
	return fmt.Sprintf("特征点数量不足: search=%d, source=%d", e.SearchCount, e.SourceCount)
}

// NoGoodCorrespondenceError 过滤后没有可用的匹配点对
type NoGoodCorrespondenceError struct {
	Stage string
}

func (e *NoGoodCorrespondenceError) Error() string {
	return "没有可用的匹配点对: " + e.Stage
}

// HomographyError 单应性矩阵求解失败
type HomographyError struct {
	Reason string
}

func (e *HomographyError) Error() string {
	return "单应性矩阵求解失败: " + e.Reason
}

// PerspectiveTransformError 透视变换数值退化
type PerspectiveTransformError struct {
	Reason string
}

func (e *PerspectiveTransformError) Error() string {
	return "透视变换失败: " + e.Reason
}

// ResultValidityError 识别区域不合常理
type ResultValidityError struct {
	Width        int
	Height       int
	SearchWidth  int
	SearchHeight int
	Reason       string
}

func (e *ResultValidityError) Error() string {
	return fmt.Sprintf("识别结果无效: %s (target=%dx%d, search=%dx%d)",
		e.Reason, e.Width, e.Height, e.SearchWidth, e.SearchHeight)
}

// IsMatchError 判断是否为引擎类型错误
// 这类错误可以换用其他匹配方法重试
func IsMatchError(err error) bool {
	var (
		inputErr    *InputError
		featuresErr *InsufficientFeaturesError
		goodErr     *NoGoodCorrespondenceError
		homoErr     *HomographyError
		perspErr    *PerspectiveTransformError
		validityErr *ResultValidityError
	)
	return errors.As(err, &inputErr) ||
		errors.As(err, &featuresErr) ||
		errors.As(err, &goodErr) ||
		errors.As(err, &homoErr) ||
		errors.As(err, &perspErr) ||
		errors.As(err, &validityErr)
}

// recoverableRoundError 多目标搜索中单轮可跳过的错误
// 只有透视变换退化跳过当前候选，其余错误结束搜索
func recoverableRoundError(err error) bool {
	var perspErr *PerspectiveTransformError
	return errors.As(err, &perspErr)
}

// checkSourceLargerThanSearch 检查源图像是否大于搜索图像
func checkSourceLargerThanSearch(srcW, srcH, schW, schH int) error {
	if srcW <= 0 || srcH <= 0 || schW <= 0 || schH <= 0 {
		return &InputError{
			Reason:     "图像尺寸必须为正",
			SourceSize: [2]int{srcW, srcH},
			SearchSize: [2]int{schW, schH},
		}
	}
	if srcH < schH || srcW < schW {
		return &InputError{
			Reason:     "搜索图像尺寸大于源图像",
			SourceSize: [2]int{srcW, srcH},
			SearchSize: [2]int{schW, schH},
		}
	}
	return nil
}
