// Package vision 提供图像匹配功能
//
// 主要功能:
//   - 模板匹配 (tpl) 与多尺度模板匹配 (mstpl)
//   - 特征点匹配: SIFT / KAZE / ORB / BRISK / AKAZE
//   - ignore/focus 掩码匹配
//
// 基本用法:
//
//	pos, err := vision.FindLocation("screen.png", "template.png")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if pos != nil {
//	    fmt.Printf("找到位置: (%d, %d)\n", pos.X, pos.Y)
//	}
package vision

import (
	"context"
	"image"

	"gocv.io/x/gocv"

	"github.com/zoeyai/zoeyvision/pkg/vision/cv"
)

// Version 版本号
const Version = "1.0.0"

// 类型别名
type (
	Point       = cv.Point
	Rect        = cv.Rect
	Rectangle   = cv.Rectangle
	MatchResult = cv.MatchResult
	MatchMethod = cv.MatchMethod
	Resolution  = cv.Resolution
	TargetPos   = cv.TargetPos
	Template    = cv.Template
)

// 匹配方法
const (
	MatchMethodTemplate           = cv.MatchMethodTemplate
	MatchMethodMultiScaleTemplate = cv.MatchMethodMultiScaleTemplate
	MatchMethodKAZE               = cv.MatchMethodKAZE
	MatchMethodBRISK              = cv.MatchMethodBRISK
	MatchMethodAKAZE              = cv.MatchMethodAKAZE
	MatchMethodORB                = cv.MatchMethodORB
	MatchMethodSIFT               = cv.MatchMethodSIFT
)

// ErrMatchTimeout 循环查找超时
var ErrMatchTimeout = cv.ErrMatchTimeout

// NewRect 从左上角和宽高创建矩形
func NewRect(x, y, w, h int) Rect {
	return cv.NewRect(x, y, w, h)
}

// ============ 匹配便捷函数 ============

// FindLocation 在源图像中查找模板位置
// screen: 源图像 (文件路径、[]byte、image.Image 或 gocv.Mat)
// template: 模板 (文件路径、data URL 或 *Template)
// 未找到时返回 nil, nil
func FindLocation(screen, template interface{}, opts ...Option) (*Point, error) {
	return FindLocationContext(context.Background(), screen, template, opts...)
}

// FindLocationContext 同 FindLocation，可通过 ctx 取消
func FindLocationContext(ctx context.Context, screen, template interface{}, opts ...Option) (*Point, error) {
	cfg := newMatchConfig(opts)
	return cv.FindLocationContext(ctx, screen, template, buildCVOptions(cfg)...)
}

// FindResult 在源图像中查找模板，返回完整匹配结果
func FindResult(screen, template interface{}, opts ...Option) (*MatchResult, error) {
	cfg := newMatchConfig(opts)
	return cv.FindResult(screen, template, buildCVOptions(cfg)...)
}

// FindAllLocations 在源图像中查找所有模板位置，按置信度降序
func FindAllLocations(screen, template interface{}, opts ...Option) ([]*MatchResult, error) {
	cfg := newMatchConfig(opts)
	return cv.FindAllLocations(screen, template, buildCVOptions(cfg)...)
}

// MatchLoop 循环截图匹配直到找到、超时或 ctx 取消
// 超时返回 ErrMatchTimeout
func MatchLoop(ctx context.Context, screenshotFn func() (gocv.Mat, error), template string, opts ...Option) (*Point, error) {
	cfg := newMatchConfig(opts)
	return cv.MatchLoop(ctx, screenshotFn, template, cfg.interval, buildCVOptions(cfg)...)
}

// NewTemplate 按全局配置创建模板
func NewTemplate(filename string, opts ...Option) *Template {
	cfg := newMatchConfig(opts)
	return cv.NewTemplate(filename, buildCVOptions(cfg)...)
}

// ============ 工具函数 ============

// ReadImage 读取图像文件
func ReadImage(filename string) (gocv.Mat, error) {
	return cv.ReadImage(filename)
}

// LoadImage 加载图像 (支持多种输入类型)
func LoadImage(input interface{}) (gocv.Mat, error) {
	return cv.LoadImageInput(input)
}

// ImageToMat 将 image.Image 转换为 gocv.Mat
func ImageToMat(img image.Image) (gocv.Mat, error) {
	return cv.ImageToMat(img)
}
