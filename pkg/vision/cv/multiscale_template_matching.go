package cv

import (
	"context"
	"image"
	"math"
	"time"

	"gocv.io/x/gocv"

	"github.com/zoeyai/zoeyvision/internal/logger"
)

const (
	defaultScaleMax  = 800
	defaultScaleStep = 0.005
	// 模板缩放后的最短边需大于该值才参与匹配
	minScaledTemplateSide = 10
	// 模板相对源图的最大比例，超过后改为缩小源图
	maxTemplateRatio = 0.2

	defaultMultiScaleTimeout = 3 * time.Second
	defaultPreTimeout        = 1 * time.Second
	// 预测区域的最小半径（像素）
	preRadiusFloor = 150
)

// MultiScaleTemplateMatching 多尺度模板匹配
// 适用场景：
//   - 不同分辨率显示器（1080p vs 4K）
//   - DPI 缩放（125%/150%/200%）
//   - 响应式 UI 元素大小变化
//   - 录制和回放时分辨率不同
type MultiScaleTemplateMatching struct {
	threshold  float64
	rgb        bool
	scaleMax   int           // 源图像最大尺寸限制，默认 800
	scaleStep  float64       // 搜索步长，默认 0.005
	resolution Resolution    // 模板录制时的屏幕分辨率，可为空
	timeout    time.Duration // 超过该时间且已有达标结果时提前结束
}

// NewMultiScaleTemplateMatching 创建多尺度模板匹配器
func NewMultiScaleTemplateMatching(threshold float64, rgb bool) *MultiScaleTemplateMatching {
	return NewMultiScaleTemplateMatchingWithParams(threshold, rgb, defaultScaleMax, defaultScaleStep)
}

// NewMultiScaleTemplateMatchingWithParams 创建多尺度模板匹配器（带参数）
func NewMultiScaleTemplateMatchingWithParams(threshold float64, rgb bool, scaleMax int, scaleStep float64) *MultiScaleTemplateMatching {
	if scaleMax <= 0 {
		scaleMax = defaultScaleMax
	}
	if scaleStep <= 0 {
		scaleStep = defaultScaleStep
	}
	return &MultiScaleTemplateMatching{
		threshold: threshold,
		rgb:       rgb,
		scaleMax:  scaleMax,
		scaleStep: scaleStep,
		timeout:   defaultMultiScaleTimeout,
	}
}

// WithResolution 返回带录制分辨率的副本
func (m *MultiScaleTemplateMatching) WithResolution(res Resolution) *MultiScaleTemplateMatching {
	c := *m
	c.resolution = res
	return &c
}

// WithTimeout 返回使用新时间预算的副本
func (m *MultiScaleTemplateMatching) WithTimeout(timeout time.Duration) *MultiScaleTemplateMatching {
	c := *m
	c.timeout = timeout
	return &c
}

// Name 方法名
func (m *MultiScaleTemplateMatching) Name() string { return "MSTemplate" }

// FindBestResult 查找最佳匹配结果
func (m *MultiScaleTemplateMatching) FindBestResult(source, search gocv.Mat) (*MatchResult, error) {
	return m.FindBestResultContext(context.Background(), source, search)
}

// FindBestResultContext 查找最佳匹配结果
func (m *MultiScaleTemplateMatching) FindBestResultContext(ctx context.Context, source, search gocv.Mat) (*MatchResult, error) {
	startTime := time.Now()

	// 校验图像输入
	if err := checkSourceLargerThanSearch(source.Cols(), source.Rows(), search.Cols(), search.Rows()); err != nil {
		return nil, err
	}

	// 转换为灰度图
	sourceGray := ToGray(source)
	searchGray := ToGray(search)
	defer sourceGray.Close()
	defer searchGray.Close()

	rMin, rMax := m.getRatio(source, search)
	best, err := m.multiScaleSearch(ctx, sourceGray, searchGray, max(rMin, m.scaleStep), min(rMax, 0.99))
	if err != nil {
		return nil, err
	}
	confidence, err := m.confidenceOf(source, search, best)
	if err != nil {
		return nil, err
	}

	// 预估范围内没有达标结果时，扩大到全范围搜索
	if confidence < m.threshold {
		best, err = m.multiScaleSearch(ctx, sourceGray, searchGray, 0.01, 0.99)
		if err != nil {
			return nil, err
		}
		confidence, err = m.confidenceOf(source, search, best)
		if err != nil {
			return nil, err
		}
	}

	if best == nil || confidence < m.threshold {
		return nil, nil
	}

	logger.Named("cv").Debugw("multiscale best", "ratio", best.ratio, "confidence", confidence,
		"elapsed", time.Since(startTime))

	result := newMatchResult(best.rect, confidence)
	result.Time = float64(time.Since(startTime).Milliseconds())
	return result, nil
}

// FindAllResults 查找所有匹配结果（多尺度匹配不支持，返回最佳结果）
func (m *MultiScaleTemplateMatching) FindAllResults(source, search gocv.Mat) ([]*MatchResult, error) {
	return m.FindAllResultsContext(context.Background(), source, search)
}

// FindAllResultsContext 同 FindAllResults
func (m *MultiScaleTemplateMatching) FindAllResultsContext(ctx context.Context, source, search gocv.Mat) ([]*MatchResult, error) {
	result, err := m.FindBestResultContext(ctx, source, search)
	if err != nil || result == nil {
		return nil, err
	}
	return []*MatchResult{result}, nil
}

// getRatio 获取缩放比的上下限
// 模板长边相对源图的比例，录制分辨率已知时按新旧屏幕比例展开
func (m *MultiScaleTemplateMatching) getRatio(source, search gocv.Mat) (float64, float64) {
	H, W := float64(source.Rows()), float64(source.Cols())
	th, tw := float64(search.Rows()), float64(search.Cols())

	ratio := math.Max(th/H, tw/W)
	if !m.resolution.Valid() {
		return ratio, ratio
	}

	w, h := float64(m.resolution.Width), float64(m.resolution.Height)
	rmin := math.Min(H/h, W/w) // 新旧屏幕比下限
	rmax := math.Max(H/h, W/w) // 新旧屏幕比上限
	return ratio * rmin, ratio * rmax
}

// scaleCandidate 单次搜索的最佳信息，rect 已还原到原始源图坐标
type scaleCandidate struct {
	ratio  float64
	maxVal float64
	rect   Rect
}

// multiScaleSearch 多尺度搜索核心算法
func (m *MultiScaleTemplateMatching) multiScaleSearch(ctx context.Context, source, search gocv.Mat, ratioMin, ratioMax float64) (*scaleCandidate, error) {
	startTime := time.Now()

	// 源图像最大尺寸限制
	gr := float64(m.scaleMax) / float64(max(source.Rows(), source.Cols()))
	work := source.Clone()
	defer work.Close()
	if gr < 1.0 {
		gocv.Resize(source, &work, image.Point{
			X: max(int(float64(source.Cols())*gr), 1),
			Y: max(int(float64(source.Rows())*gr), 1),
		}, 0, 0, gocv.InterpolationLinear)
	} else {
		gr = 1.0
	}

	ratioMin = math.Max(ratioMin, m.scaleStep)
	ratioMax = math.Max(ratioMax, m.scaleStep)
	steps := int(math.Floor((ratioMax-ratioMin)/m.scaleStep + 1e-9))

	noMask := gocv.NewMat()
	defer noMask.Close()

	var best *scaleCandidate
	var bestSr float64
	var bestLoc image.Point
	var bestW, bestH int

	for i := 0; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ratio := ratioMin + float64(i)*m.scaleStep

		// 按比例缩放
		scaledSource, scaledSearch, sr := resizeByRatio(work, search, ratio)

		// 检查模板最小尺寸
		if min(scaledSearch.Rows(), scaledSearch.Cols()) > minScaledTemplateSide &&
			scaledSource.Rows() >= scaledSearch.Rows() && scaledSource.Cols() >= scaledSearch.Cols() {

			// 模板匹配
			result := gocv.NewMat()
			gocv.MatchTemplate(scaledSource, scaledSearch, &result, gocv.TmCcoeffNormed, noMask)
			_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)
			result.Close()

			val := finiteOrZero(float64(maxVal))
			if best == nil || val > best.maxVal {
				best = &scaleCandidate{ratio: ratio, maxVal: val}
				bestSr = sr
				bestLoc = maxLoc
				bestW, bestH = scaledSearch.Cols(), scaledSearch.Rows()
			}
		}

		scaledSource.Close()
		scaledSearch.Close()

		// 超时且已有达标结果时直接接受
		if best != nil && best.maxVal >= m.threshold && time.Since(startTime) > m.timeout {
			break
		}
	}

	if best == nil {
		return nil, nil
	}

	best.rect = orgSize(bestLoc, bestW, bestH, bestSr, gr)
	return best, nil
}

// resizeByRatio 根据模板相对屏幕的长边按比例缩放
// 模板相对比例超过 0.2 后改为缩小源图，只做缩小不做放大
func resizeByRatio(source, search gocv.Mat, ratio float64) (gocv.Mat, gocv.Mat, float64) {
	th, tw := float64(search.Rows()), float64(search.Cols())
	h, w := float64(source.Rows()), float64(source.Cols())

	tr, sr := 1.0, 1.0
	if th/h >= tw/w {
		if ratio < maxTemplateRatio {
			tr = (h * ratio) / th
		} else {
			tr = (h * maxTemplateRatio) / th
			sr = (th * tr / ratio) / h
		}
	} else {
		if ratio < maxTemplateRatio {
			tr = (w * ratio) / tw
		} else {
			tr = (w * maxTemplateRatio) / tw
			sr = (tw * tr / ratio) / w
		}
	}

	scaledSearch := gocv.NewMat()
	if tr <= 1 {
		gocv.Resize(search, &scaledSearch, image.Point{
			X: max(int(tw*tr), 1),
			Y: max(int(th*tr), 1),
		}, 0, 0, gocv.InterpolationLinear)
	} else {
		search.CopyTo(&scaledSearch)
	}

	scaledSource := gocv.NewMat()
	if sr < 1 {
		gocv.Resize(source, &scaledSource, image.Point{
			X: max(int(w*sr), 1),
			Y: max(int(h*sr), 1),
		}, 0, 0, gocv.InterpolationLinear)
	} else {
		source.CopyTo(&scaledSource)
		sr = 1
	}

	return scaledSource, scaledSearch, sr
}

// orgSize 还原到原始尺寸，sr 为单步缩放比，gr 为源图整体限幅比
func orgSize(loc image.Point, w, h int, sr, gr float64) Rect {
	scale := sr * gr
	return NewRect(
		int(float64(loc.X)/scale),
		int(float64(loc.Y)/scale),
		int(float64(w)/scale),
		int(float64(h)/scale),
	)
}

// confidenceOf 计算候选结果的置信度
// 彩色模式下把原图中的区域缩放到模板大小后做 BGR 三通道校验
func (m *MultiScaleTemplateMatching) confidenceOf(source, search gocv.Mat, best *scaleCandidate) (float64, error) {
	if best == nil {
		return 0, nil
	}
	if !m.rgb {
		return best.maxVal, nil
	}

	rect := best.rect.Clip(source.Cols(), source.Rows())
	if rect.Empty() {
		return 0, nil
	}
	roi := source.Region(rect.ImageRect())
	defer roi.Close()

	resized := ResizeImage(roi, search.Cols(), search.Rows())
	defer resized.Close()
	return CalRGBConfidence(resized, search)
}

// MultiScaleTemplateMatchingPre 基于录制位置预测区域的多尺度模板匹配
type MultiScaleTemplateMatchingPre struct {
	base       *MultiScaleTemplateMatching
	recordPos  RecordPos
	resolution Resolution
}

// NewMultiScaleTemplateMatchingPre 创建带区域预测的多尺度模板匹配器
func NewMultiScaleTemplateMatchingPre(threshold float64, rgb bool, recordPos RecordPos, resolution Resolution) *MultiScaleTemplateMatchingPre {
	return NewMultiScaleTemplateMatchingPreWithParams(threshold, rgb, recordPos, resolution, defaultScaleMax, defaultScaleStep)
}

// NewMultiScaleTemplateMatchingPreWithParams 创建带区域预测的多尺度模板匹配器（带参数）
func NewMultiScaleTemplateMatchingPreWithParams(threshold float64, rgb bool, recordPos RecordPos, resolution Resolution, scaleMax int, scaleStep float64) *MultiScaleTemplateMatchingPre {
	base := NewMultiScaleTemplateMatchingWithParams(threshold, rgb, scaleMax, scaleStep).WithTimeout(defaultPreTimeout)
	return &MultiScaleTemplateMatchingPre{
		base:       base,
		recordPos:  recordPos,
		resolution: resolution,
	}
}

// Name 方法名
func (p *MultiScaleTemplateMatchingPre) Name() string { return "MSTemplatePre" }

// FindBestResult 查找最佳匹配结果
func (p *MultiScaleTemplateMatchingPre) FindBestResult(source, search gocv.Mat) (*MatchResult, error) {
	return p.FindBestResultContext(context.Background(), source, search)
}

// FindBestResultContext 在预测区域内查找最佳匹配结果
func (p *MultiScaleTemplateMatchingPre) FindBestResultContext(ctx context.Context, source, search gocv.Mat) (*MatchResult, error) {
	startTime := time.Now()

	if !p.resolution.Valid() {
		return nil, &InputError{Reason: "缺少录制分辨率"}
	}
	tw, th := search.Cols(), search.Rows()
	if tw > p.resolution.Width || th > p.resolution.Height {
		return nil, &InputError{
			Reason:     "模板尺寸大于录制分辨率",
			SourceSize: [2]int{p.resolution.Width, p.resolution.Height},
			SearchSize: [2]int{tw, th},
		}
	}
	if err := checkSourceLargerThanSearch(source.Cols(), source.Rows(), tw, th); err != nil {
		return nil, err
	}

	area, ok := p.predictArea(source.Cols(), source.Rows(), tw, th)
	if !ok {
		return nil, nil
	}

	crop := source.Region(area.ImageRect())
	defer crop.Close()

	// 录制分辨率按裁剪比例同步调整，保持缩放比不变
	W, H := source.Cols(), source.Rows()
	cropRes := Resolution{
		Width:  max(int(math.Round(float64(p.resolution.Width)*float64(area.Width)/float64(W))), 1),
		Height: max(int(math.Round(float64(p.resolution.Height)*float64(area.Height)/float64(H))), 1),
	}

	result, err := p.base.WithResolution(cropRes).FindBestResultContext(ctx, crop, search)
	if err != nil || result == nil {
		return nil, err
	}

	// 结果位置还原到整张源图
	result.Result = Point{X: result.Result.X + area.X, Y: result.Result.Y + area.Y}
	result.Rectangle = result.Rectangle.Offset(area.X, area.Y)
	result.Time = float64(time.Since(startTime).Milliseconds())
	return result, nil
}

// FindAllResults 返回最佳结果
func (p *MultiScaleTemplateMatchingPre) FindAllResults(source, search gocv.Mat) ([]*MatchResult, error) {
	return p.FindAllResultsContext(context.Background(), source, search)
}

// FindAllResultsContext 同 FindAllResults
func (p *MultiScaleTemplateMatchingPre) FindAllResultsContext(ctx context.Context, source, search gocv.Mat) ([]*MatchResult, error) {
	result, err := p.FindBestResultContext(ctx, source, search)
	if err != nil || result == nil {
		return nil, err
	}
	return []*MatchResult{result}, nil
}

// predictArea 根据录制位置求出源图中的预测区域
// 预测点: x = dx*W + W/2, y = dy*W + H/2；半径至少 150 像素
func (p *MultiScaleTemplateMatchingPre) predictArea(W, H, tw, th int) (Rect, bool) {
	x := p.recordPos.X*float64(W) + float64(W)/2
	y := p.recordPos.Y*float64(W) + float64(H)/2

	scale := float64(W) / float64(p.resolution.Width)
	rx := max(int(float64(tw)*scale), preRadiusFloor)
	ry := max(int(float64(th)*scale), preRadiusFloor)

	area := RectFromBounds(int(x)-rx, int(y)-ry, int(x)+rx, int(y)+ry).Clip(W, H)
	if area.Empty() || area.Width < tw || area.Height < th {
		return Rect{}, false
	}
	return area, true
}
