// Package logger 提供统一的日志工具
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level 日志级别
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// zapLevel 映射到 zap 级别
func (l Level) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel 解析日志级别字符串
func ParseLevel(s string) Level {
	switch s {
	case "DEBUG", "debug":
		return DEBUG
	case "INFO", "info":
		return INFO
	case "WARN", "warn", "WARNING", "warning":
		return WARN
	case "ERROR", "error":
		return ERROR
	default:
		return INFO
	}
}

// 日志文件滚动参数
const (
	fileMaxSizeMB  = 100
	fileMaxBackups = 3
	fileMaxAgeDays = 7
)

// Logger 日志记录器
type Logger struct {
	mu       sync.Mutex
	level    zap.AtomicLevel
	enabled  bool
	console  bool
	file     bool
	filePath string
	fileOut  *lumberjack.Logger
	zl       *zap.Logger
}

// 全局默认 logger
var defaultLogger = New()

// New 创建新的 Logger 实例
func New() *Logger {
	l := &Logger{
		level:   zap.NewAtomicLevelAt(zapcore.InfoLevel),
		enabled: true,
		console: true,
	}
	l.rebuild()
	return l
}

// Default 获取默认 logger
func Default() *Logger {
	return defaultLogger
}

// encoderConfig 控制台风格: "15:04:05 | INFO  | msg"
func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	cfg.EncodeLevel = func(lvl zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(fmt.Sprintf("%-5s", lvl.CapitalString()))
	}
	cfg.ConsoleSeparator = " | "
	cfg.CallerKey = ""
	cfg.NameKey = "logger"
	cfg.StacktraceKey = ""
	return cfg
}

// rebuild 根据当前输出设置重建 zap core，调用方需持有锁
func (l *Logger) rebuild() {
	var cores []zapcore.Core
	enc := zapcore.NewConsoleEncoder(encoderConfig())

	if l.console {
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stdout), l.level))
	}
	if l.file && l.fileOut != nil {
		cores = append(cores, zapcore.NewCore(enc.Clone(), zapcore.AddSync(l.fileOut), l.level))
	}

	if len(cores) == 0 {
		l.zl = zap.NewNop()
		return
	}
	l.zl = zap.New(zapcore.NewTee(cores...))
}

// SetLevel 设置日志级别
func (l *Logger) SetLevel(level Level) {
	l.level.SetLevel(level.zapLevel())
}

// GetLevel 返回当前日志级别
func (l *Logger) GetLevel() Level {
	switch l.level.Level() {
	case zapcore.DebugLevel:
		return DEBUG
	case zapcore.WarnLevel:
		return WARN
	case zapcore.ErrorLevel, zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return ERROR
	default:
		return INFO
	}
}

// SetEnabled 设置是否启用日志
func (l *Logger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// SetConsole 设置是否输出到控制台
func (l *Logger) SetConsole(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.console = enabled
	l.rebuild()
}

// SetFile 设置是否输出到文件
// 文件按大小滚动，保留 3 个备份、7 天
func (l *Logger) SetFile(enabled bool, path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// 关闭旧文件
	if l.fileOut != nil {
		l.fileOut.Close()
		l.fileOut = nil
	}

	l.file = enabled
	l.filePath = path

	if enabled && path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("无法创建日志目录: %w", err)
		}
		l.fileOut = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    fileMaxSizeMB,
			MaxBackups: fileMaxBackups,
			MaxAge:     fileMaxAgeDays,
			LocalTime:  true,
			Compress:   true,
		}
	}

	l.rebuild()
	return nil
}

// Named 返回带名称的结构化子 logger
func (l *Logger) Named(name string) *zap.SugaredLogger {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled {
		return zap.NewNop().Sugar()
	}
	return l.zl.Named(name).Sugar()
}

// log 内部日志方法
func (l *Logger) log(level Level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled || !l.level.Enabled(level.zapLevel()) {
		return
	}

	msg := fmt.Sprintf(format, args...)
	switch level {
	case DEBUG:
		l.zl.Debug(msg)
	case WARN:
		l.zl.Warn(msg)
	case ERROR:
		l.zl.Error(msg)
	default:
		l.zl.Info(msg)
	}
}

// Debug 输出 DEBUG 级别日志
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DEBUG, format, args...)
}

// Info 输出 INFO 级别日志
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(INFO, format, args...)
}

// Warn 输出 WARN 级别日志
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(WARN, format, args...)
}

// Error 输出 ERROR 级别日志
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ERROR, format, args...)
}

// LogEvent 记录带分类的事件日志
func (l *Logger) LogEvent(category string, ok bool, elapsedMs float64, detail string) {
	status := "OK"
	if !ok {
		status = "NG"
	}

	if ok {
		l.Info("%-4s | %s | %6.1fms | %s", category, status, elapsedMs, detail)
	} else {
		l.Error("%-4s | %s | %6.1fms | %s", category, status, elapsedMs, detail)
	}
}

// Sync 刷新缓冲
func (l *Logger) Sync() {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.zl.Sync()
}

// Close 关闭 logger，释放资源
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_ = l.zl.Sync()
	if l.fileOut != nil {
		err := l.fileOut.Close()
		l.fileOut = nil
		l.file = false
		l.rebuild()
		return err
	}
	return nil
}

// 包级别便捷函数
func Debug(format string, args ...interface{}) { defaultLogger.Debug(format, args...) }
func Info(format string, args ...interface{})  { defaultLogger.Info(format, args...) }
func Warn(format string, args ...interface{})  { defaultLogger.Warn(format, args...) }
func Error(format string, args ...interface{}) { defaultLogger.Error(format, args...) }
func Named(name string) *zap.SugaredLogger     { return defaultLogger.Named(name) }
func LogEvent(category string, ok bool, elapsedMs float64, detail string) {
	defaultLogger.LogEvent(category, ok, elapsedMs, detail)
}
