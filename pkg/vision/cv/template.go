package cv

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/zoeyai/zoeyvision/internal/logger"
)

// DefaultThreshold 默认匹配阈值
var DefaultThreshold = 0.8

// 当前工作路径，相对路径的模板以此为基准
var (
	pathMu      sync.RWMutex
	currentPath string
)

// SetCurrentPath 设置相对路径模板的基准目录
func SetCurrentPath(path string) {
	pathMu.Lock()
	currentPath = path
	pathMu.Unlock()
}

// CurrentPath 返回相对路径模板的基准目录
func CurrentPath() string {
	pathMu.RLock()
	defer pathMu.RUnlock()
	return currentPath
}

// ErrMatchTimeout 循环匹配超时
var ErrMatchTimeout = errors.New("匹配超时")

// defaultLoopInterval 循环匹配的默认间隔
const defaultLoopInterval = 100 * time.Millisecond

// TargetPos 结果点位置，按九宫格小键盘排列
//
//	1 2 3
//	4 5 6
//	7 8 9
//
// 0 等同于 5（中心）
type TargetPos int

// Position 取匹配区域上对应位置的点
func (p TargetPos) Position(r *MatchResult) Point {
	if r == nil {
		return Point{}
	}
	if p <= 0 || p > 9 || p == 5 {
		return r.Result
	}

	b := r.Rectangle.Bounds()
	col := int(p-1) % 3
	row := int(p-1) / 3

	xs := [3]int{b.X, b.X + b.Width/2, b.Right()}
	ys := [3]int{b.Y, b.Y + b.Height/2, b.Bottom()}
	return Point{X: xs[col], Y: ys[row]}
}

// Template 模板匹配类
type Template struct {
	// Filename 模板文件路径（或 data URL）
	Filename string
	// Threshold 匹配阈值
	Threshold float64
	// RGB 是否使用彩色校验
	RGB bool
	// Methods 依次尝试的匹配方法
	Methods []MatchMethod
	// Resolution 录制模板时的屏幕分辨率
	Resolution Resolution
	// RecordPos 录制时的点击位置
	RecordPos *RecordPos
	// TargetPos 返回的结果点位置
	TargetPos TargetPos
	// Ignore/Focus 掩码区域，坐标相对模板
	Ignore []Rect
	Focus  []Rect
	// ScaleMax/ScaleStep 多尺度模板匹配参数
	ScaleMax  int
	ScaleStep float64
	// KeypointParams 特征点匹配参数
	KeypointParams KeypointParams
	// ResizeStrategy 跨分辨率缩放规则
	ResizeStrategy ResizeStrategy
	// Timeout 循环匹配的超时时间，0 表示只受 ctx 控制
	Timeout time.Duration

	// 缓存的模板图像
	mu        sync.Mutex
	cachedMat *gocv.Mat
}

// TemplateOption 模板选项
type TemplateOption func(*Template)

// NewTemplate 创建新的 Template
func NewTemplate(filename string, opts ...TemplateOption) *Template {
	t := &Template{
		Filename:       filename,
		Threshold:      DefaultThreshold,
		RGB:            false,
		Methods:        append([]MatchMethod(nil), DefaultMatchMethods...),
		ScaleMax:       defaultScaleMax,
		ScaleStep:      defaultScaleStep,
		KeypointParams: DefaultKeypointParams(),
		ResizeStrategy: CocosMinStrategy(DefaultDesignResolution),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// WithTemplateThreshold 设置阈值
func WithTemplateThreshold(threshold float64) TemplateOption {
	return func(t *Template) {
		t.Threshold = threshold
	}
}

// WithTemplateRGB 设置是否使用彩色校验
func WithTemplateRGB(rgb bool) TemplateOption {
	return func(t *Template) {
		t.RGB = rgb
	}
}

// WithTemplateMethods 设置匹配方法顺序
func WithTemplateMethods(methods ...MatchMethod) TemplateOption {
	return func(t *Template) {
		if len(methods) > 0 {
			t.Methods = methods
		}
	}
}

// WithTemplateResolution 设置录制分辨率
func WithTemplateResolution(width, height int) TemplateOption {
	return func(t *Template) {
		t.Resolution = Resolution{Width: width, Height: height}
	}
}

// WithTemplateRecordPos 设置录制时的点击位置
func WithTemplateRecordPos(x, y float64) TemplateOption {
	return func(t *Template) {
		t.RecordPos = &RecordPos{X: x, Y: y}
	}
}

// WithTemplateTargetPos 设置结果点位置
func WithTemplateTargetPos(pos TargetPos) TemplateOption {
	return func(t *Template) {
		t.TargetPos = pos
	}
}

// WithTemplateMask 设置 ignore/focus 区域
func WithTemplateMask(ignore, focus []Rect) TemplateOption {
	return func(t *Template) {
		t.Ignore = ignore
		t.Focus = focus
	}
}

// WithTemplateScale 设置多尺度模板匹配参数
func WithTemplateScale(scaleMax int, scaleStep float64) TemplateOption {
	return func(t *Template) {
		t.ScaleMax = scaleMax
		t.ScaleStep = scaleStep
	}
}

// WithTemplateKeypointParams 设置特征点匹配参数
func WithTemplateKeypointParams(params KeypointParams) TemplateOption {
	return func(t *Template) {
		t.KeypointParams = params
	}
}

// WithTemplateResizeStrategy 设置缩放规则
func WithTemplateResizeStrategy(strategy ResizeStrategy) TemplateOption {
	return func(t *Template) {
		if strategy != nil {
			t.ResizeStrategy = strategy
		}
	}
}

// WithTemplateTimeout 设置循环匹配超时
func WithTemplateTimeout(timeout time.Duration) TemplateOption {
	return func(t *Template) {
		t.Timeout = timeout
	}
}

// MatchIn 在屏幕图像中匹配模板，返回 TargetPos 对应的点
func (t *Template) MatchIn(screen gocv.Mat) (*Point, error) {
	return t.MatchInContext(context.Background(), screen)
}

// MatchInContext 同 MatchIn
func (t *Template) MatchInContext(ctx context.Context, screen gocv.Mat) (*Point, error) {
	result, err := t.MatchResultInContext(ctx, screen)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	pos := t.TargetPos.Position(result)
	return &pos, nil
}

// MatchResultIn 在屏幕图像中匹配模板，返回完整匹配结果
func (t *Template) MatchResultIn(screen gocv.Mat) (*MatchResult, error) {
	return t.MatchResultInContext(context.Background(), screen)
}

// MatchResultInContext 在屏幕图像中匹配模板
// 有掩码时只用掩码匹配；否则按 Methods 顺序尝试，引擎类错误换下一个方法
func (t *Template) MatchResultInContext(ctx context.Context, screen gocv.Mat) (*MatchResult, error) {
	startTime := time.Now()
	image, err := t.readImage()
	if err != nil {
		return nil, err
	}
	defer image.Close()

	if len(t.Ignore) > 0 || len(t.Focus) > 0 {
		matcher := NewMaskTemplateMatching(t.Threshold, t.RGB, MaskSpec{Ignore: t.Ignore, Focus: t.Focus}).
			WithResolution(t.Resolution, t.ResizeStrategy)
		result, err := matcher.FindBestResultContext(ctx, screen, image)
		t.logEvent(matcher.Name(), result, startTime)
		return result, err
	}

	for _, method := range t.Methods {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, name, err := t.matchWith(ctx, method, screen, image)
		if err != nil {
			if IsMatchError(err) {
				logger.Named("cv").Warnw("匹配方法失败，尝试下一个", "method", method, "error", err)
				continue
			}
			return nil, err
		}
		if result != nil {
			t.logEvent(name, result, startTime)
			return result, nil
		}
	}

	t.logEvent(strings.Join(methodNames(t.Methods), ","), nil, startTime)
	return nil, nil
}

// matchWith 用单个方法匹配
func (t *Template) matchWith(ctx context.Context, method MatchMethod, screen, image gocv.Mat) (*MatchResult, string, error) {
	switch {
	case method == MatchMethodMultiScaleTemplate:
		if t.RecordPos != nil && t.Resolution.Valid() {
			m := NewMultiScaleTemplateMatchingPreWithParams(t.Threshold, t.RGB, *t.RecordPos, t.Resolution, t.ScaleMax, t.ScaleStep)
			result, err := m.FindBestResultContext(ctx, screen, image)
			return result, m.Name(), err
		}
		m := NewMultiScaleTemplateMatchingWithParams(t.Threshold, t.RGB, t.ScaleMax, t.ScaleStep).WithResolution(t.Resolution)
		result, err := m.FindBestResultContext(ctx, screen, image)
		return result, m.Name(), err

	case method == MatchMethodTemplate:
		search := t.resizedImage(image, screen)
		defer search.Close()
		m := NewTemplateMatching(t.Threshold, t.RGB)
		result, err := m.FindBestResultContext(ctx, screen, search)
		return result, m.Name(), err

	case method.isKeypointMethod():
		backend, err := BackendByName(method)
		if err != nil {
			return nil, string(method), err
		}
		m := NewKeypointMatchingWithParams(backend, t.Threshold, t.RGB, t.KeypointParams)
		result, err := m.FindBestResultContext(ctx, screen, image)
		return result, m.Name(), err

	default:
		return nil, string(method), fmt.Errorf("未知的匹配方法: %s", method)
	}
}

// MatchAllIn 在屏幕图像中查找所有匹配
func (t *Template) MatchAllIn(screen gocv.Mat) ([]*MatchResult, error) {
	return t.MatchAllInContext(context.Background(), screen)
}

// MatchAllInContext 先用模板匹配查找全部结果，没有结果时用特征点匹配
func (t *Template) MatchAllInContext(ctx context.Context, screen gocv.Mat) ([]*MatchResult, error) {
	image, err := t.readImage()
	if err != nil {
		return nil, err
	}
	defer image.Close()

	search := t.resizedImage(image, screen)
	results, err := NewTemplateMatching(t.Threshold, t.RGB).FindAllResultsContext(ctx, screen, search)
	search.Close()
	if err != nil && !IsMatchError(err) {
		return nil, err
	}
	if len(results) > 0 {
		return results, nil
	}

	backend := t.keypointBackend()
	results, err = NewKeypointMatchingWithParams(backend, t.Threshold, t.RGB, t.KeypointParams).
		FindAllResultsContext(ctx, screen, image)
	if err != nil {
		if IsMatchError(err) {
			logger.Named("cv").Warnw("特征点匹配失败", "method", backend.Name(), "error", err)
			return nil, nil
		}
		return nil, err
	}
	return results, nil
}

// keypointBackend Methods 中第一个特征点方法，没有时用 SIFT
func (t *Template) keypointBackend() Backend {
	for _, m := range t.Methods {
		if m.isKeypointMethod() {
			if b, err := BackendByName(m); err == nil {
				return b
			}
		}
	}
	return SIFTBackend()
}

// resizedImage 按录制分辨率把模板缩放到当前屏幕
func (t *Template) resizedImage(image, screen gocv.Mat) gocv.Mat {
	return resizeForSource(image, t.Resolution, Resolution{Width: screen.Cols(), Height: screen.Rows()}, t.ResizeStrategy)
}

func (t *Template) logEvent(method string, result *MatchResult, startTime time.Time) {
	elapsed := float64(time.Since(startTime).Milliseconds())
	if result == nil {
		logger.LogEvent("CV", false, elapsed, fmt.Sprintf("%s %s 未找到", t, method))
		return
	}
	logger.LogEvent("CV", true, elapsed, fmt.Sprintf("%s %s confidence=%.3f pos=(%d,%d)",
		t, method, result.Confidence, result.Result.X, result.Result.Y))
}

// readImage 读取模板图像，返回缓存的副本
func (t *Template) readImage() (gocv.Mat, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cachedMat != nil && !t.cachedMat.Empty() {
		return t.cachedMat.Clone(), nil
	}

	filename := t.Filename
	// data URL 直接读取，不处理路径
	base := CurrentPath()
	if !strings.HasPrefix(filename, "data:image/") && base != "" && !filepath.IsAbs(filename) {
		filename = filepath.Join(base, filename)
	}

	mat, err := ReadImage(filename)
	if err != nil {
		return mat, err
	}
	cached := mat.Clone()
	if t.cachedMat != nil {
		t.cachedMat.Close()
	}
	t.cachedMat = &cached
	return mat, nil
}

// Close 释放资源
func (t *Template) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cachedMat != nil {
		t.cachedMat.Close()
		t.cachedMat = nil
	}
}

// String 返回字符串表示
func (t *Template) String() string {
	name := t.Filename
	if strings.HasPrefix(name, "data:image/") {
		name = "data-url"
	}
	return fmt.Sprintf("Template(%s)", name)
}

func methodNames(methods []MatchMethod) []string {
	out := make([]string, len(methods))
	for i, m := range methods {
		out[i] = string(m)
	}
	return out
}

// toTemplate 字符串按文件名创建模板
func toTemplate(template interface{}, opts ...TemplateOption) (*Template, error) {
	switch v := template.(type) {
	case string:
		return NewTemplate(v, opts...), nil
	case *Template:
		return v, nil
	default:
		return nil, fmt.Errorf("不支持的模板类型: %T", template)
	}
}

// FindLocation 便捷函数：在源图像中查找模板位置
func FindLocation(screen, template interface{}, opts ...TemplateOption) (*Point, error) {
	return FindLocationContext(context.Background(), screen, template, opts...)
}

// FindLocationContext 同 FindLocation
func FindLocationContext(ctx context.Context, screen, template interface{}, opts ...TemplateOption) (*Point, error) {
	// 加载源图像
	screenMat, err := LoadImageInput(screen)
	if err != nil {
		return nil, fmt.Errorf("加载源图像失败: %w", err)
	}
	defer screenMat.Close()

	tmpl, err := toTemplate(template, opts...)
	if err != nil {
		return nil, err
	}
	return tmpl.MatchInContext(ctx, screenMat)
}

// FindResult 便捷函数：在源图像中查找模板，返回完整结果
func FindResult(screen, template interface{}, opts ...TemplateOption) (*MatchResult, error) {
	screenMat, err := LoadImageInput(screen)
	if err != nil {
		return nil, fmt.Errorf("加载源图像失败: %w", err)
	}
	defer screenMat.Close()

	tmpl, err := toTemplate(template, opts...)
	if err != nil {
		return nil, err
	}
	return tmpl.MatchResultIn(screenMat)
}

// FindAllLocations 便捷函数：在源图像中查找所有模板位置
func FindAllLocations(screen, template interface{}, opts ...TemplateOption) ([]*MatchResult, error) {
	screenMat, err := LoadImageInput(screen)
	if err != nil {
		return nil, fmt.Errorf("加载源图像失败: %w", err)
	}
	defer screenMat.Close()

	tmpl, err := toTemplate(template, opts...)
	if err != nil {
		return nil, err
	}
	return tmpl.MatchAllIn(screenMat)
}

// MatchLoop 循环截图匹配，直到找到、超时或 ctx 取消
// interval 为两次截图的间隔，<=0 时使用默认值
func MatchLoop(ctx context.Context, screenshotFn func() (gocv.Mat, error), template string, interval time.Duration, opts ...TemplateOption) (*Point, error) {
	tmpl := NewTemplate(template, opts...)
	defer tmpl.Close()

	if interval <= 0 {
		interval = defaultLoopInterval
	}
	if tmpl.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, tmpl.Timeout)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		screen, err := screenshotFn()
		if err != nil {
			return nil, fmt.Errorf("截图失败: %w", err)
		}

		pos, err := tmpl.MatchInContext(ctx, screen)
		screen.Close()

		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if pos != nil {
			return pos, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s", ErrMatchTimeout, tmpl)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
