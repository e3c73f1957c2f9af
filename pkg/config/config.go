package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 ZOEYVISION_THRESHOLD=0.9
const EnvPrefix = "ZOEYVISION"

// KnownMethods 支持的匹配方法名
var KnownMethods = []string{"mstpl", "tpl", "kaze", "brisk", "akaze", "orb", "sift"}

var validate = validator.New()

// MatchConfig 匹配配置
type MatchConfig struct {
	Threshold   float64          `mapstructure:"threshold" json:"threshold" validate:"gte=0,lte=1"`
	RGB         bool             `mapstructure:"rgb" json:"rgb"`
	Methods     []string         `mapstructure:"methods" json:"methods" validate:"dive,oneof=mstpl tpl kaze brisk akaze orb sift"`
	FindTimeout time.Duration    `mapstructure:"find_timeout" json:"find_timeout"`
	Interval    time.Duration    `mapstructure:"interval" json:"interval"`
	MultiScale  MultiScaleConfig `mapstructure:"multiscale" json:"multiscale"`
	Keypoint    KeypointConfig   `mapstructure:"keypoint" json:"keypoint"`
	Resize      ResizeConfig     `mapstructure:"resize" json:"resize"`
	Log         LogConfig        `mapstructure:"log" json:"log"`
}

// MultiScaleConfig 多尺度模板匹配参数
type MultiScaleConfig struct {
	ScaleMax  int     `mapstructure:"scale_max" json:"scale_max" validate:"gt=0"`
	ScaleStep float64 `mapstructure:"scale_step" json:"scale_step" validate:"gt=0"`
}

// KeypointConfig 特征点匹配参数
type KeypointConfig struct {
	Ratio             float64 `mapstructure:"ratio" json:"ratio" validate:"gte=0,lte=1"`
	K                 int     `mapstructure:"k" json:"k"`
	AngleTolerance    float64 `mapstructure:"angle_tolerance" json:"angle_tolerance"`
	MaxIterations     int     `mapstructure:"max_iterations" json:"max_iterations"`
	DistanceThreshold float64 `mapstructure:"distance_threshold" json:"distance_threshold"`
	MaxCount          int     `mapstructure:"max_count" json:"max_count"`
}

// ResizeConfig 跨分辨率缩放策略
type ResizeConfig struct {
	// Strategy cocos_min 或 none
	Strategy     string `mapstructure:"strategy" json:"strategy" validate:"omitempty,oneof=cocos_min none"`
	DesignWidth  int    `mapstructure:"design_width" json:"design_width"`
	DesignHeight int    `mapstructure:"design_height" json:"design_height"`
}

// LogConfig 日志配置
type LogConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Level   string `mapstructure:"level" json:"level" validate:"omitempty,oneof=DEBUG INFO WARN WARNING ERROR debug info warn warning error"`
	Console bool   `mapstructure:"console" json:"console"`
	File    bool   `mapstructure:"file" json:"file"`
	Path    string `mapstructure:"path" json:"path"`
}

// DefaultMatchConfig 默认匹配配置
func DefaultMatchConfig() *MatchConfig {
	return &MatchConfig{
		Threshold:   0.8,
		RGB:         false,
		Methods:     []string{"mstpl", "tpl", "sift", "akaze"},
		FindTimeout: 20 * time.Second,
		Interval:    500 * time.Millisecond,
		MultiScale: MultiScaleConfig{
			ScaleMax:  800,
			ScaleStep: 0.005,
		},
		Keypoint: KeypointConfig{
			Ratio:             0.59,
			K:                 10,
			AngleTolerance:    5,
			MaxIterations:     20,
			DistanceThreshold: 150,
			MaxCount:          10,
		},
		Resize: ResizeConfig{
			Strategy:     "cocos_min",
			DesignWidth:  960,
			DesignHeight: 640,
		},
		Log: LogConfig{
			Enabled: true,
			Level:   "INFO",
			Console: true,
			File:    false,
			Path:    "logs/vision.log",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultMatchConfig()

	v.SetDefault("threshold", d.Threshold)
	v.SetDefault("rgb", d.RGB)
	v.SetDefault("methods", d.Methods)
	v.SetDefault("find_timeout", d.FindTimeout)
	v.SetDefault("interval", d.Interval)

	v.SetDefault("multiscale.scale_max", d.MultiScale.ScaleMax)
	v.SetDefault("multiscale.scale_step", d.MultiScale.ScaleStep)

	v.SetDefault("keypoint.ratio", d.Keypoint.Ratio)
	v.SetDefault("keypoint.k", d.Keypoint.K)
	v.SetDefault("keypoint.angle_tolerance", d.Keypoint.AngleTolerance)
	v.SetDefault("keypoint.max_iterations", d.Keypoint.MaxIterations)
	v.SetDefault("keypoint.distance_threshold", d.Keypoint.DistanceThreshold)
	v.SetDefault("keypoint.max_count", d.Keypoint.MaxCount)

	v.SetDefault("resize.strategy", d.Resize.Strategy)
	v.SetDefault("resize.design_width", d.Resize.DesignWidth)
	v.SetDefault("resize.design_height", d.Resize.DesignHeight)

	v.SetDefault("log.enabled", d.Log.Enabled)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.console", d.Log.Console)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.path", d.Log.Path)
}

// newViper 创建带默认值和环境变量覆盖的 viper 实例
func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// configType 根据扩展名判断配置格式
func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	default:
		return "json"
	}
}

// LoadFile 从 YAML/JSON 文件加载配置
// path 为空时只使用默认值和环境变量
func LoadFile(path string) (*MatchConfig, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType(configType(path))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg MatchConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置
func (c *MatchConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Errorf("配置项 %s 不合法 (%s=%s): %v", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Errorf("配置校验失败: %w", err)
}

// Manager 配置管理器
type Manager struct {
	configDir  string
	configFile string
	mu         sync.RWMutex
}

// NewManager 创建配置管理器
func NewManager() *Manager {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	configDir := filepath.Join(homeDir, ".zoey-vision")
	return &Manager{
		configDir:  configDir,
		configFile: filepath.Join(configDir, "config.json"),
	}
}

// NewManagerWithDir 使用指定目录创建配置管理器
func NewManagerWithDir(configDir string) *Manager {
	return &Manager{
		configDir:  configDir,
		configFile: filepath.Join(configDir, "config.json"),
	}
}

// ensureDir 确保配置目录存在
func (m *Manager) ensureDir() error {
	return os.MkdirAll(m.configDir, 0755)
}

// Load 加载配置
// 文件不存在时返回默认配置（仍应用环境变量覆盖）
func (m *Manager) Load() (*MatchConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, err := os.Stat(m.configFile); os.IsNotExist(err) {
		return LoadFile("")
	}

	cfg, err := LoadFile(m.configFile)
	if err != nil {
		return DefaultMatchConfig(), err
	}
	return cfg, nil
}

// Save 保存配置
func (m *Manager) Save(config *MatchConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := config.Validate(); err != nil {
		return err
	}

	if err := m.ensureDir(); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(m.configFile, data, 0600); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}

	return nil
}

// Clear 清除配置
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(m.configFile); os.IsNotExist(err) {
		return nil
	}

	return os.Remove(m.configFile)
}

// GetConfigDir 获取配置目录
func (m *Manager) GetConfigDir() string {
	return m.configDir
}

// GetConfigFile 获取配置文件路径
func (m *Manager) GetConfigFile() string {
	return m.configFile
}

// Exists 检查配置文件是否存在
func (m *Manager) Exists() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, err := os.Stat(m.configFile)
	return err == nil
}

// 全局配置管理器
var defaultManager = NewManager()

// GetDefaultManager 获取默认配置管理器
func GetDefaultManager() *Manager {
	return defaultManager
}

// Load 使用默认管理器加载配置
func Load() (*MatchConfig, error) {
	return defaultManager.Load()
}

// Save 使用默认管理器保存配置
func Save(config *MatchConfig) error {
	return defaultManager.Save(config)
}

// Clear 使用默认管理器清除配置
func Clear() error {
	return defaultManager.Clear()
}
