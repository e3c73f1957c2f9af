package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultMatchConfig(t *testing.T) {
	config := DefaultMatchConfig()

	if config.Threshold != 0.8 {
		t.Errorf("默认 Threshold 应为 0.8, 实际为 %v", config.Threshold)
	}
	if config.MultiScale.ScaleMax != 800 {
		t.Errorf("默认 ScaleMax 应为 800, 实际为 %d", config.MultiScale.ScaleMax)
	}
	if config.Keypoint.Ratio != 0.59 {
		t.Errorf("默认 Ratio 应为 0.59, 实际为 %v", config.Keypoint.Ratio)
	}
	if config.Resize.DesignWidth != 960 || config.Resize.DesignHeight != 640 {
		t.Errorf("默认设计分辨率应为 960x640, 实际为 %dx%d", config.Resize.DesignWidth, config.Resize.DesignHeight)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("默认配置应通过校验: %v", err)
	}

	t.Logf("默认配置: %+v", config)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *MatchConfig)
	}{
		{"阈值过大", func(c *MatchConfig) { c.Threshold = 1.5 }},
		{"步长为零", func(c *MatchConfig) { c.MultiScale.ScaleStep = 0 }},
		{"未知方法", func(c *MatchConfig) { c.Methods = []string{"tpl", "surf"} }},
		{"未知缩放策略", func(c *MatchConfig) { c.Resize.Strategy = "stretch" }},
		{"比率越界", func(c *MatchConfig) { c.Keypoint.Ratio = 1.2 }},
		{"未知日志级别", func(c *MatchConfig) { c.Log.Level = "TRACE" }},
		{"最大边长为负", func(c *MatchConfig) { c.MultiScale.ScaleMax = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultMatchConfig()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("应返回校验错误")
			}
		})
	}
}

func TestValidateKnownMethods(t *testing.T) {
	c := DefaultMatchConfig()
	c.Methods = append([]string(nil), KnownMethods...)
	c.Resize.Strategy = ""
	c.Log.Level = "warn"
	if err := c.Validate(); err != nil {
		t.Errorf("支持的方法不应校验失败: %v", err)
	}
}

func TestLoadFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vision.yaml")
	content := `threshold: 0.9
rgb: true
methods: [tpl, orb]
find_timeout: 5s
multiscale:
  scale_step: 0.01
keypoint:
  angle_tolerance: 3
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	if cfg.Threshold != 0.9 || !cfg.RGB {
		t.Errorf("threshold/rgb 错误: %+v", cfg)
	}
	if len(cfg.Methods) != 2 || cfg.Methods[1] != "orb" {
		t.Errorf("methods 错误: %v", cfg.Methods)
	}
	if cfg.FindTimeout != 5*time.Second {
		t.Errorf("find_timeout 错误: %v", cfg.FindTimeout)
	}
	if cfg.MultiScale.ScaleStep != 0.01 {
		t.Errorf("scale_step 错误: %v", cfg.MultiScale.ScaleStep)
	}
	// 未配置的字段使用默认值
	if cfg.MultiScale.ScaleMax != 800 {
		t.Errorf("scale_max 应保留默认值, 实际为 %d", cfg.MultiScale.ScaleMax)
	}
	if cfg.Keypoint.AngleTolerance != 3 || cfg.Keypoint.K != 10 {
		t.Errorf("keypoint 配置错误: %+v", cfg.Keypoint)
	}
}

func TestLoadFileEnvOverride(t *testing.T) {
	t.Setenv("ZOEYVISION_THRESHOLD", "0.65")
	t.Setenv("ZOEYVISION_KEYPOINT_MAX_COUNT", "3")

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.Threshold != 0.65 {
		t.Errorf("环境变量覆盖 threshold 失败: %v", cfg.Threshold)
	}
	if cfg.Keypoint.MaxCount != 3 {
		t.Errorf("环境变量覆盖 keypoint.max_count 失败: %v", cfg.Keypoint.MaxCount)
	}
}

func TestLoadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"threshold": 2}`), 0644); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("非法阈值应返回错误")
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("不存在的文件应返回错误")
	}
}

func TestManagerSaveAndLoad(t *testing.T) {
	// 使用临时目录
	tempDir := t.TempDir()
	manager := NewManagerWithDir(tempDir)

	// 检查初始状态
	if manager.Exists() {
		t.Error("初始时配置文件不应存在")
	}

	// 保存配置
	config := DefaultMatchConfig()
	config.Threshold = 0.75
	config.Methods = []string{"tpl", "kaze"}
	config.FindTimeout = 3 * time.Second
	config.Keypoint.DistanceThreshold = 120

	err := manager.Save(config)
	if err != nil {
		t.Fatalf("保存配置失败: %v", err)
	}

	// 检查文件是否存在
	if !manager.Exists() {
		t.Error("保存后配置文件应存在")
	}

	// 加载配置
	loaded, err := manager.Load()
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	if loaded.Threshold != 0.75 {
		t.Errorf("Threshold 不匹配: %v", loaded.Threshold)
	}
	if len(loaded.Methods) != 2 || loaded.Methods[1] != "kaze" {
		t.Errorf("Methods 不匹配: %v", loaded.Methods)
	}
	if loaded.FindTimeout != 3*time.Second {
		t.Errorf("FindTimeout 不匹配: %v", loaded.FindTimeout)
	}
	if loaded.Keypoint.DistanceThreshold != 120 {
		t.Errorf("DistanceThreshold 不匹配: %v", loaded.Keypoint.DistanceThreshold)
	}
}

func TestManagerLoadNonExistent(t *testing.T) {
	manager := NewManagerWithDir(t.TempDir())

	config, err := manager.Load()
	if err != nil {
		t.Fatalf("加载不存在的配置应返回默认值而非错误: %v", err)
	}
	if config.Threshold != 0.8 {
		t.Errorf("应返回默认配置, 实际 Threshold=%v", config.Threshold)
	}
}

func TestManagerClear(t *testing.T) {
	manager := NewManagerWithDir(t.TempDir())

	if err := manager.Clear(); err != nil {
		t.Errorf("清除不存在的配置不应报错: %v", err)
	}

	if err := manager.Save(DefaultMatchConfig()); err != nil {
		t.Fatalf("保存配置失败: %v", err)
	}
	if err := manager.Clear(); err != nil {
		t.Fatalf("清除配置失败: %v", err)
	}
	if manager.Exists() {
		t.Error("清除后配置文件不应存在")
	}
}

func TestManagerPaths(t *testing.T) {
	tempDir := t.TempDir()
	manager := NewManagerWithDir(tempDir)

	if manager.GetConfigDir() != tempDir {
		t.Errorf("配置目录不匹配: %s", manager.GetConfigDir())
	}
	if manager.GetConfigFile() != filepath.Join(tempDir, "config.json") {
		t.Errorf("配置文件路径不匹配: %s", manager.GetConfigFile())
	}
}
