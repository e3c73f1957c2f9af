package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/zoeyai/zoeyvision/internal/logger"
	"github.com/zoeyai/zoeyvision/pkg/config"
	"github.com/zoeyai/zoeyvision/pkg/vision"
	"github.com/zoeyai/zoeyvision/pkg/vision/cv"
)

// 版本信息 (可通过 ldflags 注入)
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run 解析参数并执行一次匹配，返回退出码
func run(args []string) int {
	fs := flag.NewFlagSet("zoeyvision", flag.ContinueOnError)
	var (
		source      = fs.String("source", "", "屏幕截图路径")
		template    = fs.String("template", "", "模板图片路径")
		threshold   = fs.Float64("threshold", -1, "匹配阈值 (0-1)，默认使用配置")
		rgb         = fs.Bool("rgb", false, "使用彩色校验")
		methods     = fs.String("methods", "", "匹配方法，逗号分隔 (例: mstpl,tpl,sift)")
		resolution  = fs.String("resolution", "", "录制分辨率 WxH (例: 1920x1080)")
		recordPos   = fs.String("record-pos", "", "录制时的点击位置 dx,dy")
		ignore      = fs.String("ignore", "", "忽略区域 x1,y1,x2,y2;...")
		focus       = fs.String("focus", "", "关注区域 x1,y1,x2,y2;...")
		findAll     = fs.Bool("all", false, "查找所有匹配")
		configFile  = fs.String("config", "", "配置文件 (yaml/json)")
		logLevel    = fs.String("log-level", "", "日志级别 (DEBUG/INFO/WARN/ERROR)")
		showVersion = fs.Bool("version", false, "显示版本信息")
		showHelp    = fs.Bool("help", false, "显示帮助信息")
	)
	fs.Usage = printHelp

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *showVersion {
		printVersion()
		return 0
	}
	if *showHelp {
		printHelp()
		return 0
	}

	if *source == "" || *template == "" {
		fmt.Fprintln(os.Stderr, "[ERROR] 缺少 -source 或 -template 参数")
		printHelp()
		return 1
	}

	// 加载配置，命令行参数优先级高于配置文件
	cfg, err := config.LoadFile(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		return 1
	}
	// 输出为 JSON，日志不写到 stdout
	cfg.Log.Console = false
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := vision.ApplyConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		return 1
	}
	defer logger.Default().Close()

	opts, err := buildOptions(*threshold, *rgb, *methods, *resolution, *recordPos, *ignore, *focus)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		return 1
	}

	var out interface{}
	if *findAll {
		results, err := vision.FindAllLocations(*source, *template, opts...)
		if err != nil {
			return reportError(err)
		}
		if results == nil {
			results = []*vision.MatchResult{}
		}
		out = results
	} else {
		result, err := vision.FindResult(*source, *template, opts...)
		if err != nil {
			return reportError(err)
		}
		out = result
	}

	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] 输出结果失败: %v\n", err)
		return 1
	}
	return 0
}

// buildOptions 把命令行参数转换为匹配选项
func buildOptions(threshold float64, rgb bool, methods, resolution, recordPos, ignore, focus string) ([]vision.Option, error) {
	var opts []vision.Option

	if threshold >= 0 {
		if threshold > 1 {
			return nil, fmt.Errorf("threshold 超出范围 [0,1]: %v", threshold)
		}
		opts = append(opts, vision.WithThreshold(threshold))
	}
	if rgb {
		opts = append(opts, vision.WithRGB(true))
	}
	if methods != "" {
		ms, err := parseMethods(methods)
		if err != nil {
			return nil, err
		}
		opts = append(opts, vision.WithMethods(ms...))
	}
	if resolution != "" {
		w, h, err := parseResolution(resolution)
		if err != nil {
			return nil, err
		}
		opts = append(opts, vision.WithResolution(w, h))
	}
	if recordPos != "" {
		x, y, err := parseRecordPos(recordPos)
		if err != nil {
			return nil, err
		}
		opts = append(opts, vision.WithRecordPos(x, y))
	}
	if ignore != "" {
		rects, err := parseRects(ignore)
		if err != nil {
			return nil, err
		}
		opts = append(opts, vision.WithIgnore(rects...))
	}
	if focus != "" {
		rects, err := parseRects(focus)
		if err != nil {
			return nil, err
		}
		opts = append(opts, vision.WithFocus(rects...))
	}
	return opts, nil
}

func parseMethods(s string) ([]vision.MatchMethod, error) {
	var out []vision.MatchMethod
	for _, name := range strings.Split(s, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if !isKnownMethod(name) {
			return nil, fmt.Errorf("未知的匹配方法: %s", name)
		}
		out = append(out, vision.MatchMethod(name))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("匹配方法为空")
	}
	return out, nil
}

func isKnownMethod(name string) bool {
	for _, m := range config.KnownMethods {
		if m == name {
			return true
		}
	}
	return false
}

// parseResolution 解析 WxH
func parseResolution(s string) (int, int, error) {
	parts := strings.Split(strings.ToLower(s), "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("分辨率格式错误: %s", s)
	}
	w, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("分辨率格式错误: %s", s)
	}
	return w, h, nil
}

// parseRecordPos 解析 dx,dy
func parseRecordPos(s string) (float64, float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("录制位置格式错误: %s", s)
	}
	x, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	y, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, fmt.Errorf("录制位置格式错误: %s", s)
	}
	return x, y, nil
}

// parseRects 解析 x1,y1,x2,y2;x1,y1,x2,y2
func parseRects(s string) ([]vision.Rect, error) {
	var out []vision.Rect
	for _, item := range strings.Split(s, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ",")
		if len(parts) != 4 {
			return nil, fmt.Errorf("区域格式错误: %s", item)
		}
		var v [4]int
		for i, p := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return nil, fmt.Errorf("区域格式错误: %s", item)
			}
			v[i] = n
		}
		out = append(out, cv.RectFromBounds(v[0], v[1], v[2], v[3]))
	}
	return out, nil
}

// reportError 输入类错误返回 1，其他引擎错误视为未找到
func reportError(err error) int {
	fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
	if cv.IsMatchError(err) && !isInputError(err) {
		fmt.Println("null")
		return 0
	}
	return 1
}

func isInputError(err error) bool {
	var inputErr *cv.InputError
	return errors.As(err, &inputErr)
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("Zoey Vision v%s\n", vision.Version)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("Zoey Vision - 图像匹配工具")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  zoeyvision -source screen.png -template button.png [选项]")
	fmt.Println()
	fmt.Println("选项:")
	fmt.Println("  -source string      屏幕截图路径")
	fmt.Println("  -template string    模板图片路径")
	fmt.Println("  -threshold float    匹配阈值 (0-1)")
	fmt.Println("  -rgb                使用彩色校验")
	fmt.Println("  -methods string     匹配方法，逗号分隔 (mstpl,tpl,kaze,brisk,akaze,orb,sift)")
	fmt.Println("  -resolution string  录制分辨率 WxH")
	fmt.Println("  -record-pos string  录制时的点击位置 dx,dy")
	fmt.Println("  -ignore string      忽略区域 x1,y1,x2,y2;...")
	fmt.Println("  -focus string       关注区域 x1,y1,x2,y2;...")
	fmt.Println("  -all                查找所有匹配")
	fmt.Println("  -config string      配置文件 (yaml/json)")
	fmt.Println("  -log-level string   日志级别")
	fmt.Println("  -version            显示版本信息")
	fmt.Println("  -help               显示帮助信息")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  # 多尺度匹配，录制分辨率 1920x1080")
	fmt.Println("  zoeyvision -source screen.png -template button.png -resolution 1920x1080")
	fmt.Println()
	fmt.Println("  # 忽略模板左上角 20x20 的区域")
	fmt.Println("  zoeyvision -source screen.png -template button.png -ignore 0,0,20,20")
	fmt.Println()
	fmt.Printf("环境变量前缀: %s_ (例: %s_THRESHOLD=0.9)\n", config.EnvPrefix, config.EnvPrefix)
}
