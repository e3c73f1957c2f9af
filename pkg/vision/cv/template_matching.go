package cv

import (
	"context"
	"image"
	"math"
	"sort"
	"time"

	"gocv.io/x/gocv"

	"github.com/zoeyai/zoeyvision/internal/logger"
)

const (
	// MaxResultCount 最大匹配结果数量
	MaxResultCount = 10
)

// Matcher 匹配器接口
// 实现只持有配置，图像在每次调用时传入，可安全复用
type Matcher interface {
	Name() string
	FindBestResultContext(ctx context.Context, source, search gocv.Mat) (*MatchResult, error)
	FindAllResultsContext(ctx context.Context, source, search gocv.Mat) ([]*MatchResult, error)
}

// TemplateMatching 模板匹配器
type TemplateMatching struct {
	threshold float64
	rgb       bool
	maxCount  int
}

// NewTemplateMatching 创建模板匹配器
func NewTemplateMatching(threshold float64, rgb bool) *TemplateMatching {
	return NewTemplateMatchingWithParams(threshold, rgb, MaxResultCount)
}

// NewTemplateMatchingWithParams 创建模板匹配器（带最大结果数）
func NewTemplateMatchingWithParams(threshold float64, rgb bool, maxCount int) *TemplateMatching {
	if maxCount <= 0 {
		maxCount = MaxResultCount
	}
	return &TemplateMatching{
		threshold: threshold,
		rgb:       rgb,
		maxCount:  maxCount,
	}
}

// Name 方法名
func (t *TemplateMatching) Name() string { return "Template" }

// FindBestResult 查找最佳匹配结果
func (t *TemplateMatching) FindBestResult(source, search gocv.Mat) (*MatchResult, error) {
	return t.FindBestResultContext(context.Background(), source, search)
}

// FindBestResultContext 查找最佳匹配结果
func (t *TemplateMatching) FindBestResultContext(ctx context.Context, source, search gocv.Mat) (*MatchResult, error) {
	startTime := time.Now()

	// 检查图像尺寸
	if err := checkSourceLargerThanSearch(source.Cols(), source.Rows(), search.Cols(), search.Rows()); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 计算模板匹配结果矩阵
	result := getTemplateResultMatrix(source, search)
	defer result.Close()

	// 获取最佳匹配位置
	_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)

	h, w := search.Rows(), search.Cols()
	rect := NewRect(maxLoc.X, maxLoc.Y, w, h)

	// 计算置信度
	confidence, err := t.getConfidence(source, search, rect, float64(maxVal))
	if err != nil {
		return nil, err
	}

	logger.Named("cv").Debugw("template best", "threshold", t.threshold, "confidence", confidence, "rect", rect)

	if confidence < t.threshold {
		return nil, nil
	}

	matchResult := newMatchResult(rect, confidence)
	matchResult.Time = float64(time.Since(startTime).Milliseconds())
	return matchResult, nil
}

// FindAllResults 查找所有匹配结果
func (t *TemplateMatching) FindAllResults(source, search gocv.Mat) ([]*MatchResult, error) {
	return t.FindAllResultsContext(context.Background(), source, search)
}

// FindAllResultsContext 查找所有匹配结果，按置信度从高到低排序
// 每取出一个结果，就把结果矩阵中以该点为中心、模板大小的区域屏蔽掉
func (t *TemplateMatching) FindAllResultsContext(ctx context.Context, source, search gocv.Mat) ([]*MatchResult, error) {
	startTime := time.Now()

	// 检查图像尺寸
	if err := checkSourceLargerThanSearch(source.Cols(), source.Rows(), search.Cols(), search.Rows()); err != nil {
		return nil, err
	}

	// 计算模板匹配结果矩阵
	result := getTemplateResultMatrix(source, search)
	surface := newScoreSurface(result)
	result.Close()

	h, w := search.Rows(), search.Cols()
	var results []*MatchResult

	for len(results) < t.maxCount {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		loc, maxVal, ok := surface.max()
		if !ok {
			break
		}

		rect := NewRect(loc.X, loc.Y, w, h)
		confidence, err := t.getConfidence(source, search, rect, maxVal)
		if err != nil {
			return nil, err
		}
		if confidence < t.threshold {
			break
		}

		res := newMatchResult(rect, confidence)
		res.Time = float64(time.Since(startTime).Milliseconds())
		results = append(results, res)

		// 屏蔽已匹配区域
		surface.suppress(loc, w, h)
	}

	sortByConfidence(results)
	return results, nil
}

// getConfidence 计算置信度
func (t *TemplateMatching) getConfidence(source, search gocv.Mat, rect Rect, maxVal float64) (float64, error) {
	if !t.rgb {
		return finiteOrZero(maxVal), nil
	}
	// 彩色校验
	imgCrop := source.Region(rect.ImageRect())
	defer imgCrop.Close()
	return CalHSVConfidence(imgCrop, search)
}

// getTemplateResultMatrix 计算灰度模板匹配结果矩阵
func getTemplateResultMatrix(source, search gocv.Mat) gocv.Mat {
	// 转换为灰度图
	srcGray := ToGray(source)
	searchGray := ToGray(search)
	defer srcGray.Close()
	defer searchGray.Close()

	noMask := gocv.NewMat()
	defer noMask.Close()

	result := gocv.NewMat()
	gocv.MatchTemplate(srcGray, searchGray, &result, gocv.TmCcoeffNormed, noMask)

	return result
}

// scoreSurface 结果矩阵的 Go 侧副本，active 记录仍可取用的位置
type scoreSurface struct {
	cols, rows int
	values     []float32
	active     []bool
	remaining  int
}

func newScoreSurface(m gocv.Mat) *scoreSurface {
	return scoreSurfaceFromValues(m.Cols(), m.Rows(), matToFloats(m))
}

// scoreSurfaceFromValues NaN 与 ±Inf 位置一开始就不可取用
func scoreSurfaceFromValues(cols, rows int, values []float32) *scoreSurface {
	s := &scoreSurface{
		cols:   cols,
		rows:   rows,
		values: values,
	}
	s.active = make([]bool, len(s.values))
	for i, v := range s.values {
		if f := float64(v); !math.IsNaN(f) && !math.IsInf(f, 0) {
			s.active[i] = true
			s.remaining++
		}
	}
	return s
}

// max 返回仍有效位置中的最大值
func (s *scoreSurface) max() (image.Point, float64, bool) {
	if s.remaining == 0 {
		return image.Point{}, 0, false
	}
	best := -1
	for i, ok := range s.active {
		if ok && (best < 0 || s.values[i] > s.values[best]) {
			best = i
		}
	}
	if best < 0 {
		return image.Point{}, 0, false
	}
	return image.Point{X: best % s.cols, Y: best / s.cols}, float64(s.values[best]), true
}

// suppress 屏蔽以 loc 为中心、w×h 大小的区域（含边界）
func (s *scoreSurface) suppress(loc image.Point, w, h int) {
	xMin, xMax := max(loc.X-w/2, 0), min(loc.X+w/2, s.cols-1)
	yMin, yMax := max(loc.Y-h/2, 0), min(loc.Y+h/2, s.rows-1)
	for y := yMin; y <= yMax; y++ {
		for x := xMin; x <= xMax; x++ {
			i := y*s.cols + x
			if s.active[i] {
				s.active[i] = false
				s.remaining--
			}
		}
	}
}

// sortByConfidence 按置信度从高到低稳定排序
func sortByConfidence(results []*MatchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})
}
