package vision

import (
	"fmt"
	"sync"
	"time"

	"github.com/zoeyai/zoeyvision/internal/logger"
	"github.com/zoeyai/zoeyvision/pkg/config"
	"github.com/zoeyai/zoeyvision/pkg/vision/cv"
)

// Options 全局配置选项
type Options struct {
	// 匹配配置
	Threshold   float64           // 匹配阈值，默认 0.8
	RGB         bool              // 是否使用彩色校验
	Methods     []MatchMethod     // 依次尝试的匹配方法
	FindTimeout time.Duration     // 循环查找超时时间，默认 20s
	Interval    time.Duration     // 循环查找间隔，默认 500ms
	ScaleMax    int               // 多尺度匹配的最大边长
	ScaleStep   float64           // 多尺度匹配步长
	Keypoint    cv.KeypointParams // 特征点匹配参数

	// 跨分辨率缩放
	ResizeStrategy   string // cocos_min 或 none
	DesignResolution Resolution

	// 日志配置
	LogEnabled bool   // 是否启用日志
	LogLevel   string // 日志级别
	LogConsole bool   // 是否输出到控制台
	LogFile    bool   // 是否输出到文件
	LogPath    string // 日志文件路径

	// 路径配置
	CurrentPath string // 相对路径模板的基准目录
}

// DefaultOptions 默认配置
var DefaultOptions = Options{
	Threshold:   0.8,
	RGB:         false,
	Methods:     []MatchMethod{MatchMethodMultiScaleTemplate, MatchMethodTemplate, MatchMethodSIFT, MatchMethodAKAZE},
	FindTimeout: 20 * time.Second,
	Interval:    500 * time.Millisecond,
	ScaleMax:    800,
	ScaleStep:   0.005,
	Keypoint:    cv.DefaultKeypointParams(),

	ResizeStrategy:   "cocos_min",
	DesignResolution: cv.DefaultDesignResolution,

	LogEnabled: true,
	LogLevel:   "INFO",
	LogConsole: true,
	LogFile:    false,
	LogPath:    "logs/vision.log",
}

var (
	optionsMu     sync.RWMutex
	globalOptions = DefaultOptions
)

// GetOptions 获取当前全局配置的副本
func GetOptions() Options {
	optionsMu.RLock()
	defer optionsMu.RUnlock()
	return globalOptions
}

// SetOptions 设置全局配置
func SetOptions(opts Options) {
	optionsMu.Lock()
	globalOptions = opts
	optionsMu.Unlock()
	cv.SetCurrentPath(opts.CurrentPath)
}

// ResetOptions 重置为默认配置
func ResetOptions() {
	SetOptions(DefaultOptions)
}

// ApplyConfig 把配置文件内容应用到全局配置，并按日志配置设置 logger
func ApplyConfig(cfg *config.MatchConfig) error {
	if cfg == nil {
		return fmt.Errorf("配置为空")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	opts := GetOptions()
	opts.Threshold = cfg.Threshold
	opts.RGB = cfg.RGB
	if len(cfg.Methods) > 0 {
		opts.Methods = make([]MatchMethod, len(cfg.Methods))
		for i, m := range cfg.Methods {
			opts.Methods[i] = MatchMethod(m)
		}
	}
	if cfg.FindTimeout > 0 {
		opts.FindTimeout = cfg.FindTimeout
	}
	if cfg.Interval > 0 {
		opts.Interval = cfg.Interval
	}
	opts.ScaleMax = cfg.MultiScale.ScaleMax
	opts.ScaleStep = cfg.MultiScale.ScaleStep
	opts.Keypoint = cv.KeypointParams{
		Ratio:             cfg.Keypoint.Ratio,
		K:                 cfg.Keypoint.K,
		AngleTolerance:    cfg.Keypoint.AngleTolerance,
		MaxIterations:     cfg.Keypoint.MaxIterations,
		DistanceThreshold: cfg.Keypoint.DistanceThreshold,
		MaxCount:          cfg.Keypoint.MaxCount,
	}
	opts.ResizeStrategy = cfg.Resize.Strategy
	opts.DesignResolution = Resolution{Width: cfg.Resize.DesignWidth, Height: cfg.Resize.DesignHeight}

	opts.LogEnabled = cfg.Log.Enabled
	opts.LogLevel = cfg.Log.Level
	opts.LogConsole = cfg.Log.Console
	opts.LogFile = cfg.Log.File
	opts.LogPath = cfg.Log.Path

	if err := configureLogger(opts); err != nil {
		return err
	}
	SetOptions(opts)
	return nil
}

// configureLogger 按配置设置默认 logger
func configureLogger(opts Options) error {
	l := logger.Default()
	l.SetEnabled(opts.LogEnabled)
	l.SetLevel(logger.ParseLevel(opts.LogLevel))
	l.SetConsole(opts.LogConsole)
	if err := l.SetFile(opts.LogFile, opts.LogPath); err != nil {
		return fmt.Errorf("设置日志文件失败: %w", err)
	}
	return nil
}

// Option 单次匹配的配置函数
type Option func(*matchConfig)

// matchConfig 匹配时的临时配置
type matchConfig struct {
	threshold  float64
	rgb        bool
	methods    []MatchMethod
	timeout    time.Duration
	interval   time.Duration
	resolution Resolution
	recordPos  *cv.RecordPos
	targetPos  TargetPos
	ignore     []Rect
	focus      []Rect
}

// defaultMatchConfig 从全局配置生成默认匹配配置
func defaultMatchConfig() *matchConfig {
	opts := GetOptions()
	return &matchConfig{
		threshold: opts.Threshold,
		rgb:       opts.RGB,
		methods:   append([]MatchMethod(nil), opts.Methods...),
		timeout:   opts.FindTimeout,
		interval:  opts.Interval,
	}
}

func newMatchConfig(opts []Option) *matchConfig {
	cfg := defaultMatchConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithThreshold 设置匹配阈值
func WithThreshold(threshold float64) Option {
	return func(c *matchConfig) {
		c.threshold = threshold
	}
}

// WithTimeout 设置循环查找超时时间
func WithTimeout(timeout time.Duration) Option {
	return func(c *matchConfig) {
		c.timeout = timeout
	}
}

// WithInterval 设置循环查找间隔
func WithInterval(interval time.Duration) Option {
	return func(c *matchConfig) {
		c.interval = interval
	}
}

// WithRGB 设置是否使用彩色校验
func WithRGB(rgb bool) Option {
	return func(c *matchConfig) {
		c.rgb = rgb
	}
}

// WithMethods 设置匹配方法顺序
func WithMethods(methods ...MatchMethod) Option {
	return func(c *matchConfig) {
		if len(methods) > 0 {
			c.methods = methods
		}
	}
}

// WithResolution 设置录制模板时的屏幕分辨率
func WithResolution(width, height int) Option {
	return func(c *matchConfig) {
		c.resolution = Resolution{Width: width, Height: height}
	}
}

// WithRecordPos 设置录制时的点击位置（相对屏幕中心，按宽度归一化）
func WithRecordPos(x, y float64) Option {
	return func(c *matchConfig) {
		c.recordPos = &cv.RecordPos{X: x, Y: y}
	}
}

// WithTargetPos 设置返回结果的位置
func WithTargetPos(pos TargetPos) Option {
	return func(c *matchConfig) {
		c.targetPos = pos
	}
}

// WithIgnore 设置忽略区域，坐标相对模板
func WithIgnore(rects ...Rect) Option {
	return func(c *matchConfig) {
		c.ignore = append(c.ignore, rects...)
	}
}

// WithFocus 设置关注区域，坐标相对模板
func WithFocus(rects ...Rect) Option {
	return func(c *matchConfig) {
		c.focus = append(c.focus, rects...)
	}
}

// buildCVOptions 构建 CV 模板选项
func buildCVOptions(cfg *matchConfig) []cv.TemplateOption {
	opts := GetOptions()

	cvOpts := []cv.TemplateOption{
		cv.WithTemplateThreshold(cfg.threshold),
		cv.WithTemplateRGB(cfg.rgb),
		cv.WithTemplateMethods(cfg.methods...),
		cv.WithTemplateTargetPos(cfg.targetPos),
		cv.WithTemplateKeypointParams(opts.Keypoint),
		cv.WithTemplateResizeStrategy(cv.ResizeStrategyByName(opts.ResizeStrategy, opts.DesignResolution)),
	}
	if opts.ScaleMax > 0 && opts.ScaleStep > 0 {
		cvOpts = append(cvOpts, cv.WithTemplateScale(opts.ScaleMax, opts.ScaleStep))
	}
	if cfg.resolution.Valid() {
		cvOpts = append(cvOpts, cv.WithTemplateResolution(cfg.resolution.Width, cfg.resolution.Height))
	}
	if cfg.recordPos != nil {
		cvOpts = append(cvOpts, cv.WithTemplateRecordPos(cfg.recordPos.X, cfg.recordPos.Y))
	}
	if len(cfg.ignore) > 0 || len(cfg.focus) > 0 {
		cvOpts = append(cvOpts, cv.WithTemplateMask(cfg.ignore, cfg.focus))
	}
	if cfg.timeout > 0 {
		cvOpts = append(cvOpts, cv.WithTemplateTimeout(cfg.timeout))
	}
	return cvOpts
}
