package cv

import (
	"context"
	"image"
	"image/color"
	"sort"
	"time"

	"gocv.io/x/gocv"

	"github.com/zoeyai/zoeyvision/internal/logger"
)

// MaskTemplateMatching 带 ignore/focus 区域的模板匹配
// 只求最佳结果，不支持 findAll
type MaskTemplateMatching struct {
	threshold     float64
	rgb           bool
	mask          MaskSpec
	schResolution Resolution
	strategy      ResizeStrategy
}

// NewMaskTemplateMatching 创建带掩码的模板匹配器
// mask 中的区域坐标相对于原始模板
func NewMaskTemplateMatching(threshold float64, rgb bool, mask MaskSpec) *MaskTemplateMatching {
	return &MaskTemplateMatching{
		threshold: threshold,
		rgb:       rgb,
		mask:      mask,
		strategy:  CocosMinStrategy(DefaultDesignResolution),
	}
}

// WithResolution 返回带录制分辨率和缩放策略的副本
func (m *MaskTemplateMatching) WithResolution(res Resolution, strategy ResizeStrategy) *MaskTemplateMatching {
	c := *m
	c.schResolution = res
	if strategy != nil {
		c.strategy = strategy
	}
	return &c
}

// Name 方法名
func (m *MaskTemplateMatching) Name() string { return "MaskTemplate" }

// FindBestResult 查找最佳匹配结果
func (m *MaskTemplateMatching) FindBestResult(source, search gocv.Mat) (*MatchResult, error) {
	return m.FindBestResultContext(context.Background(), source, search)
}

// FindAllResults 返回最佳结果
func (m *MaskTemplateMatching) FindAllResults(source, search gocv.Mat) ([]*MatchResult, error) {
	return m.FindAllResultsContext(context.Background(), source, search)
}

// FindAllResultsContext 同 FindAllResults
func (m *MaskTemplateMatching) FindAllResultsContext(ctx context.Context, source, search gocv.Mat) ([]*MatchResult, error) {
	result, err := m.FindBestResultContext(ctx, source, search)
	if err != nil || result == nil {
		return nil, err
	}
	return []*MatchResult{result}, nil
}

// FindBestResultContext 查找最佳匹配结果
//   - 有 ignore: 用掩码匹配定位，再按 focus 或 ignore 以外的细分块计算加权置信度
//   - 只有 focus: 先普通模板匹配定位，再计算 focus 加权置信度
//   - 都没有: 等同普通模板匹配
func (m *MaskTemplateMatching) FindBestResultContext(ctx context.Context, source, search gocv.Mat) (*MatchResult, error) {
	startTime := time.Now()

	if search.Empty() || source.Empty() {
		return nil, &InputError{Reason: "图像为空"}
	}
	tw, th := search.Cols(), search.Rows()
	ignore := clipRects(m.mask.Ignore, tw, th)
	focus := clipRects(m.mask.Focus, tw, th)
	if len(m.mask.Focus) > 0 && len(focus) == 0 {
		return nil, &InputError{Reason: "focus 区域全部落在模板之外"}
	}

	var cells []Rect
	if len(ignore) > 0 && len(focus) == 0 {
		cells = AtomRects(tw, th, ignore)
		if len(cells) == 0 {
			return nil, &InputError{Reason: "没有可计算置信度的区块", Err: ErrMaskCoversTemplate}
		}
	}

	srcResolution := Resolution{Width: source.Cols(), Height: source.Rows()}
	schResized := resizeForSource(search, m.schResolution, srcResolution, m.strategy)
	defer schResized.Close()

	if err := checkSourceLargerThanSearch(source.Cols(), source.Rows(), schResized.Cols(), schResized.Rows()); err != nil {
		return nil, err
	}

	// 都没有时退化为普通模板匹配
	if len(ignore) == 0 && len(focus) == 0 {
		return NewTemplateMatching(m.threshold, m.rgb).FindBestResultContext(ctx, source, schResized)
	}

	var anchor Rect
	if len(ignore) > 0 {
		maskImg := generateMaskImage(tw, th, ignore)
		maskResized := resizeForSource(maskImg, m.schResolution, srcResolution, m.strategy)
		maskImg.Close()
		anchor = templateWithMask(source, schResized, maskResized)
		maskResized.Close()
	} else {
		res, err := NewTemplateMatching(0, m.rgb).FindBestResultContext(ctx, source, schResized)
		if err != nil || res == nil {
			return nil, err
		}
		anchor = res.Rectangle.Bounds()
	}

	anchor = anchor.Clip(source.Cols(), source.Rows())
	if anchor.Empty() {
		return nil, nil
	}
	target := source.Region(anchor.ImageRect())
	defer target.Close()

	rects := focus
	if len(rects) == 0 {
		rects = cells
	}
	confidence, err := m.regionsConfidence(ctx, target, search, rects, srcResolution)
	if err != nil {
		return nil, err
	}

	logger.Named("cv").Debugw("mask template", "ignore", len(ignore), "focus", len(focus),
		"regions", len(rects), "confidence", confidence)

	if confidence < m.threshold {
		return nil, nil
	}

	result := newMatchResult(anchor, confidence)
	result.Time = float64(time.Since(startTime).Milliseconds())
	return result, nil
}

// regionsConfidence 逐个区块匹配并按面积加权
// 区块坐标相对原始模板，先截取再按分辨率缩放；权重使用缩放前的面积
func (m *MaskTemplateMatching) regionsConfidence(ctx context.Context, target, search gocv.Mat, rects []Rect, srcResolution Resolution) (float64, error) {
	matcher := NewTemplateMatching(0, m.rgb)
	confidences := make([]float64, 0, len(rects))
	areas := make([]float64, 0, len(rects))

	for _, rect := range rects {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		part := search.Region(rect.ImageRect())
		partResized := resizeForSource(part, m.schResolution, srcResolution, m.strategy)
		part.Close()

		confidence := 0.0
		if partResized.Cols() <= target.Cols() && partResized.Rows() <= target.Rows() {
			res, err := matcher.FindBestResultContext(ctx, target, partResized)
			if err != nil {
				partResized.Close()
				return 0, err
			}
			if res != nil {
				confidence = res.Confidence
			}
		}
		partResized.Close()

		confidences = append(confidences, dampConfidence(confidence))
		areas = append(areas, float64(rect.Area()))
	}

	return WeightedConfidence(confidences, areas), nil
}

// templateWithMask 用 TM_CCORR_NORMED 掩码匹配求出唯一的定位区域
func templateWithMask(source, search, mask gocv.Mat) Rect {
	srcGray := ToGray(source)
	searchGray := ToGray(search)
	maskGray := ToGray(mask)
	defer srcGray.Close()
	defer searchGray.Close()
	defer maskGray.Close()

	result := gocv.NewMat()
	defer result.Close()
	gocv.MatchTemplate(srcGray, searchGray, &result, gocv.TmCcorrNormed, maskGray)

	surface := newScoreSurface(result)
	loc, _, ok := surface.max()
	if !ok {
		return Rect{}
	}
	return NewRect(loc.X, loc.Y, search.Cols(), search.Rows())
}

// generateMaskImage 生成掩码图: 背景为 255，ignore 区域为 0
func generateMaskImage(w, h int, ignore []Rect) gocv.Mat {
	mask := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8U)
	white := color.RGBA{255, 255, 255, 0}
	black := color.RGBA{0, 0, 0, 0}

	// 将全部区域涂白作为背景
	gocv.Rectangle(&mask, image.Rect(0, 0, w-1, h-1), white, -1)
	// 将 ignore 区域涂黑，填充绘制包含右下角点
	for _, r := range ignore {
		gocv.Rectangle(&mask, image.Rect(r.X, r.Y, r.Right()-1, r.Bottom()-1), black, -1)
	}
	return mask
}

// AtomRects 用 ignore 区域的边界把模板切成细分块，返回不在任何 ignore 区域内的非空细分块
func AtomRects(w, h int, ignore []Rect) []Rect {
	xs := []int{0, w}
	ys := []int{0, h}
	for _, r := range ignore {
		xs = append(xs, clampInt(r.X, 0, w), clampInt(r.Right(), 0, w))
		ys = append(ys, clampInt(r.Y, 0, h), clampInt(r.Bottom(), 0, h))
	}
	xs = uniqueSorted(xs)
	ys = uniqueSorted(ys)

	var cells []Rect
	for j := 0; j+1 < len(ys); j++ {
		for i := 0; i+1 < len(xs); i++ {
			cell := RectFromBounds(xs[i], ys[j], xs[i+1], ys[j+1])
			if cell.Empty() || inAnyRect(cell, ignore) {
				continue
			}
			cells = append(cells, cell)
		}
	}
	return cells
}

// WeightedConfidence 按面积加权平均置信度
func WeightedConfidence(confidences, areas []float64) float64 {
	wholeArea, wholeConfidence := 0.0, 0.0
	for i := 0; i < len(confidences) && i < len(areas); i++ {
		wholeArea += areas[i]
		wholeConfidence += areas[i] * confidences[i]
	}
	if wholeArea <= 0 {
		return 0
	}
	return wholeConfidence / wholeArea
}

func inAnyRect(cell Rect, rects []Rect) bool {
	for _, r := range rects {
		if r.ContainsRect(cell) {
			return true
		}
	}
	return false
}

// clipRects 裁剪到模板范围，丢弃空区域
func clipRects(rects []Rect, w, h int) []Rect {
	var out []Rect
	for _, r := range rects {
		if c := r.Clip(w, h); !c.Empty() {
			out = append(out, c)
		}
	}
	return out
}

func uniqueSorted(v []int) []int {
	sort.Ints(v)
	out := v[:0]
	for i, x := range v {
		if i == 0 || x != v[i-1] {
			out = append(out, x)
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
