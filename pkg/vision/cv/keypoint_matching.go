package cv

import (
	"context"
	"fmt"
	"image"
	"math"
	"sort"
	"time"

	"gocv.io/x/gocv"

	"github.com/zoeyai/zoeyvision/internal/logger"
)

const (
	defaultKeypointRatio     = 0.59
	defaultKnnK              = 10
	defaultAngleTolerance    = 5.0
	defaultMaxIterations     = 20
	defaultDistanceThreshold = 150.0
	defaultMinTargetSize     = 5
	defaultScaleBandMin      = 0.2
	defaultScaleBandMax      = 5.0

	// singlePointConfidence 只有一个匹配点时的固定置信度
	singlePointConfidence = 0.5
)

// KeypointParams 特征点匹配参数
type KeypointParams struct {
	// Ratio 比率测试系数，保留距离不超过 Ratio × 最差候选距离的匹配
	Ratio float64
	// K 每个模板特征点取多少个近邻
	K int
	// AngleTolerance 几何过滤允许的角度偏差（度）
	AngleTolerance float64
	// MaxIterations 多目标搜索的最大轮数
	MaxIterations int
	// DistanceThreshold 基准点描述符距离超过该值后停止搜索
	DistanceThreshold float64
	// MaxCount 最多返回的结果数
	MaxCount int
	// MinSize 识别区域最小边长（像素）
	MinSize int
	// ScaleMin/ScaleMax 识别区域相对模板的缩放范围
	ScaleMin float64
	ScaleMax float64
}

// DefaultKeypointParams 默认特征点匹配参数
func DefaultKeypointParams() KeypointParams {
	return KeypointParams{
		Ratio:             defaultKeypointRatio,
		K:                 defaultKnnK,
		AngleTolerance:    defaultAngleTolerance,
		MaxIterations:     defaultMaxIterations,
		DistanceThreshold: defaultDistanceThreshold,
		MaxCount:          MaxResultCount,
		MinSize:           defaultMinTargetSize,
		ScaleMin:          defaultScaleBandMin,
		ScaleMax:          defaultScaleBandMax,
	}
}

// withDefaults 未设置的字段使用默认值
func (p KeypointParams) withDefaults() KeypointParams {
	d := DefaultKeypointParams()
	if p.Ratio <= 0 {
		p.Ratio = d.Ratio
	}
	if p.K <= 0 {
		p.K = d.K
	}
	if p.AngleTolerance <= 0 {
		p.AngleTolerance = d.AngleTolerance
	}
	if p.MaxIterations <= 0 {
		p.MaxIterations = d.MaxIterations
	}
	if p.DistanceThreshold <= 0 {
		p.DistanceThreshold = d.DistanceThreshold
	}
	if p.MaxCount <= 0 {
		p.MaxCount = d.MaxCount
	}
	if p.MinSize <= 0 {
		p.MinSize = d.MinSize
	}
	if p.ScaleMin <= 0 {
		p.ScaleMin = d.ScaleMin
	}
	if p.ScaleMax <= 0 {
		p.ScaleMax = d.ScaleMax
	}
	return p
}

// KeypointMatching 特征点匹配器
type KeypointMatching struct {
	backend   Backend
	threshold float64
	rgb       bool
	params    KeypointParams
}

// NewKeypointMatching 创建特征点匹配器
func NewKeypointMatching(backend Backend, threshold float64, rgb bool) *KeypointMatching {
	return NewKeypointMatchingWithParams(backend, threshold, rgb, DefaultKeypointParams())
}

// NewKeypointMatchingWithParams 创建特征点匹配器（带参数）
func NewKeypointMatchingWithParams(backend Backend, threshold float64, rgb bool, params KeypointParams) *KeypointMatching {
	if backend == nil {
		backend = SIFTBackend()
	}
	return &KeypointMatching{
		backend:   backend,
		threshold: threshold,
		rgb:       rgb,
		params:    params.withDefaults(),
	}
}

// NewSIFTMatching 创建 SIFT 匹配器
func NewSIFTMatching(threshold float64, rgb bool) *KeypointMatching {
	return NewKeypointMatching(SIFTBackend(), threshold, rgb)
}

// NewKAZEMatching 创建 KAZE 匹配器
func NewKAZEMatching(threshold float64, rgb bool) *KeypointMatching {
	return NewKeypointMatching(KAZEBackend(), threshold, rgb)
}

// NewORBMatching 创建 ORB 匹配器
func NewORBMatching(threshold float64, rgb bool) *KeypointMatching {
	return NewKeypointMatching(ORBBackend(), threshold, rgb)
}

// NewBRISKMatching 创建 BRISK 匹配器
func NewBRISKMatching(threshold float64, rgb bool) *KeypointMatching {
	return NewKeypointMatching(BRISKBackend(), threshold, rgb)
}

// NewAKAZEMatching 创建 AKAZE 匹配器
func NewAKAZEMatching(threshold float64, rgb bool) *KeypointMatching {
	return NewKeypointMatching(AKAZEBackend(), threshold, rgb)
}

// Name 方法名
func (k *KeypointMatching) Name() string { return k.backend.Name() }

// Params 当前参数
func (k *KeypointMatching) Params() KeypointParams { return k.params }

// FindBestResult 查找最佳匹配结果
func (k *KeypointMatching) FindBestResult(source, search gocv.Mat) (*MatchResult, error) {
	return k.FindBestResultContext(context.Background(), source, search)
}

// FindBestResultContext 查找最佳匹配结果，等同于最多取一个结果的 FindAllResults
func (k *KeypointMatching) FindBestResultContext(ctx context.Context, source, search gocv.Mat) (*MatchResult, error) {
	results, err := k.findAll(ctx, source, search, 1)
	if err != nil || len(results) == 0 {
		return nil, err
	}
	return results[0], nil
}

// FindAllResults 查找所有匹配结果
func (k *KeypointMatching) FindAllResults(source, search gocv.Mat) ([]*MatchResult, error) {
	return k.FindAllResultsContext(context.Background(), source, search)
}

// FindAllResultsContext 查找所有匹配结果，按置信度从高到低排序
func (k *KeypointMatching) FindAllResultsContext(ctx context.Context, source, search gocv.Mat) ([]*MatchResult, error) {
	return k.findAll(ctx, source, search, k.params.MaxCount)
}

// findAll 多目标搜索
// 每轮从候选池中选出一组点对求区域，用过的点对移出候选池；
// 结果被接受时，落在区域内的候选点也一并移出
func (k *KeypointMatching) findAll(ctx context.Context, source, search gocv.Mat, maxCount int) ([]*MatchResult, error) {
	startTime := time.Now()
	log := logger.Named("cv")

	if source.Empty() || search.Empty() {
		return nil, &InputError{Reason: "图像为空"}
	}
	if source.Channels() != search.Channels() {
		return nil, &InputError{
			Reason:     fmt.Sprintf("通道数不一致 source=%d, search=%d", source.Channels(), search.Channels()),
			SourceSize: [2]int{source.Cols(), source.Rows()},
			SearchSize: [2]int{search.Cols(), search.Rows()},
		}
	}

	kpSch, kpSrc, pool, err := k.matchFeatures(source, search)
	if err != nil {
		return nil, err
	}

	results, err := k.searchRegions(ctx, source, search, kpSch, kpSrc, pool, maxCount)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		r.Time = float64(time.Since(startTime).Milliseconds())
	}
	log.Debugw("keypoint", "method", k.Name(), "threshold", k.threshold, "results", len(results))
	return results, nil
}

// searchRegions 在候选点对池上逐轮求区域
// 停止条件: 候选池为空、结果数达到 maxCount、轮数达到上限、基准点对距离超过阈值，
// 或者出现透视变换退化以外的错误。没有任何结果时返回最后一次的错误
func (k *KeypointMatching) searchRegions(ctx context.Context, source, search gocv.Mat, kpSch, kpSrc []KeyPoint, pool []Correspondence, maxCount int) ([]*MatchResult, error) {
	log := logger.Named("cv")

	var results []*MatchResult
	var lastErr error
	for iter := 0; len(pool) > 0 && len(results) < maxCount && iter < k.params.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		good, anchor := SelectByRotation(kpSch, kpSrc, pool)
		if anchor.Distance > k.params.DistanceThreshold {
			break
		}

		filtered, err := FilterByGeometry(kpSch, kpSrc, good, k.params.AngleTolerance)
		if err != nil {
			return nil, err
		}

		rect, center, confidence, err := k.extractRegion(source, search, kpSch, kpSrc, filtered)
		if err != nil {
			lastErr = err
			if !recoverableRoundError(err) {
				log.Debugw("keypoint search stopped", "method", k.Name(), "round", iter, "error", err)
				break
			}
			log.Debugw("keypoint round skipped", "method", k.Name(), "round", iter, "error", err)
		}

		pool = removeCorrespondences(pool, filtered)
		if err != nil || confidence < k.threshold {
			continue
		}

		pool = removeInside(pool, kpSrc, rect)
		result := newMatchResult(rect, confidence)
		result.Result = center
		results = append(results, result)
	}

	if len(results) == 0 && lastErr != nil {
		return nil, lastErr
	}
	sortByConfidence(results)
	return results, nil
}

// matchFeatures 检测特征点并做 knn 匹配，返回通过比率测试的候选点对
func (k *KeypointMatching) matchFeatures(source, search gocv.Mat) ([]KeyPoint, []KeyPoint, []Correspondence, error) {
	detector, err := k.backend.CreateDetector()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("创建 %s 检测器失败: %w", k.Name(), err)
	}
	defer detector.Close()

	schGray := ToGray(search)
	srcGray := ToGray(source)
	defer schGray.Close()
	defer srcGray.Close()

	noMask := gocv.NewMat()
	defer noMask.Close()

	rawSch, desSch := detector.DetectAndCompute(schGray, noMask)
	rawSrc, desSrc := detector.DetectAndCompute(srcGray, noMask)
	defer desSch.Close()
	defer desSrc.Close()

	schCount, srcCount := len(rawSch), len(rawSrc)
	if desSch.Empty() {
		schCount = 0
	}
	if desSrc.Empty() {
		srcCount = 0
	}
	if schCount < 2 || srcCount < 2 {
		return nil, nil, nil, &InsufficientFeaturesError{SearchCount: schCount, SourceCount: srcCount}
	}

	matcher, err := k.backend.CreateMatcher()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("创建 %s 匹配器失败: %w", k.Name(), err)
	}
	defer matcher.Close()

	knn := matcher.KnnMatch(desSch, desSrc, k.params.K)
	pool := FilterByRatio(knn, k.params.Ratio)

	logger.Named("cv").Debugw("keypoint features", "method", k.Name(),
		"search", schCount, "source", srcCount, "good", len(pool))

	return toKeyPoints(rawSch), toKeyPoints(rawSrc), pool, nil
}

// FilterByRatio 比率测试
// 每个模板特征点的 k 个近邻中，保留距离不超过 ratio × 最差近邻距离的匹配，结果按距离升序
func FilterByRatio(knn [][]gocv.DMatch, ratio float64) []Correspondence {
	var good []Correspondence
	for _, row := range knn {
		if len(row) == 0 {
			continue
		}
		worst := float64(row[len(row)-1].Distance)
		for _, m := range row {
			d := float64(m.Distance)
			if d <= ratio*worst {
				good = append(good, Correspondence{QueryIdx: m.QueryIdx, TrainIdx: m.TrainIdx, Distance: d})
			}
		}
	}

	sort.SliceStable(good, func(i, j int) bool {
		return good[i].Distance < good[j].Distance
	})
	return good
}

// SelectByRotation 以距离最小的点对为基准，为每个模板特征点选出旋转最一致的候选
// 返回结果中基准点对排在第一位
func SelectByRotation(kpSch, kpSrc []KeyPoint, candidates []Correspondence) ([]Correspondence, Correspondence) {
	if len(candidates) == 0 {
		return nil, Correspondence{}
	}

	anchor := candidates[0]
	for _, c := range candidates[1:] {
		if c.Distance < anchor.Distance {
			anchor = c
		}
	}
	offset := kpSrc[anchor.TrainIdx].Angle - kpSch[anchor.QueryIdx].Angle

	type choice struct {
		c   Correspondence
		gap float64
	}
	best := make(map[int]choice)
	for _, c := range candidates {
		if c.QueryIdx == anchor.QueryIdx {
			continue
		}
		expected := normalizeAngle(kpSch[c.QueryIdx].Angle + offset)
		gap := angleGap(kpSrc[c.TrainIdx].Angle, expected)
		if cur, ok := best[c.QueryIdx]; !ok || gap < cur.gap {
			best[c.QueryIdx] = choice{c: c, gap: gap}
		}
	}

	queries := make([]int, 0, len(best))
	for q := range best {
		queries = append(queries, q)
	}
	sort.Ints(queries)

	out := make([]Correspondence, 0, len(queries)+1)
	out = append(out, anchor)
	for _, q := range queries {
		out = append(out, best[q].c)
	}
	return out, anchor
}

// FilterByGeometry 几何一致性过滤
// 分别在模板和源图中求每个点相对基准点的极角（减去基准点自身角度），
// 两侧极角之差不超过 tolerance 的点保留；源图中同一像素只保留第一个
func FilterByGeometry(kpSch, kpSrc []KeyPoint, good []Correspondence, tolerance float64) ([]Correspondence, error) {
	if len(good) == 0 {
		return nil, &NoGoodCorrespondenceError{Stage: "geometry"}
	}

	anchor := good[0]
	schAnchor := kpSch[anchor.QueryIdx]
	srcAnchor := kpSrc[anchor.TrainIdx]

	seen := make(map[image.Point]bool, len(good))
	var out []Correspondence
	for _, c := range good {
		schAngle := relativePolarAngle(schAnchor, kpSch[c.QueryIdx])
		srcPoint := kpSrc[c.TrainIdx]
		srcAngle := relativePolarAngle(srcAnchor, srcPoint)
		if angleGap(schAngle, srcAngle) > tolerance {
			continue
		}

		px := image.Point{X: int(srcPoint.X), Y: int(srcPoint.Y)}
		if seen[px] {
			continue
		}
		seen[px] = true
		out = append(out, c)
	}

	if len(out) == 0 {
		return nil, &NoGoodCorrespondenceError{Stage: "geometry"}
	}
	return out, nil
}

// ExtractRegion 按点对数量求识别区域和置信度
//   - 1 对: 区域退化为该点，置信度固定 0.5
//   - 2 对: 由两点在两侧的距离估算缩放比例
//   - 3 对: 第 2、3 点合并为中点后按 2 对处理
//   - 4 对及以上: 两轮 RANSAC 求单应性矩阵
func (k *KeypointMatching) ExtractRegion(source, search gocv.Mat, kpSch, kpSrc []KeyPoint, good []Correspondence) (Rect, float64, error) {
	rect, _, confidence, err := k.extractRegion(source, search, kpSch, kpSrc, good)
	return rect, confidence, err
}

// extractRegion 同 ExtractRegion，另外返回结果中心点
// 2、3 对点时中心点取校正后的映射中点，不随区域裁剪移动
func (k *KeypointMatching) extractRegion(source, search gocv.Mat, kpSch, kpSrc []KeyPoint, good []Correspondence) (Rect, Point, float64, error) {
	rgb := k.rgb && source.Channels() >= 3

	switch n := len(good); {
	case n == 0:
		return Rect{}, Point{}, 0, &NoGoodCorrespondenceError{Stage: "extract"}
	case n == 1:
		rect := pointRect(kpSrc[good[0].TrainIdx])
		return rect, rect.Middle(), singlePointConfidence, nil
	case n == 2:
		sch1, sch2 := kpPixel(kpSch[good[0].QueryIdx]), kpPixel(kpSch[good[1].QueryIdx])
		src1, src2 := kpPixel(kpSrc[good[0].TrainIdx]), kpPixel(kpSrc[good[1].TrainIdx])
		return k.twoPointsRegion(source, search, sch1, sch2, src1, src2, rgb)
	case n == 3:
		sch1 := kpPixel(kpSch[good[0].QueryIdx])
		src1 := kpPixel(kpSrc[good[0].TrainIdx])
		sch2 := midPixel(kpSch[good[1].QueryIdx], kpSch[good[2].QueryIdx])
		src2 := midPixel(kpSrc[good[1].TrainIdx], kpSrc[good[2].TrainIdx])
		return k.twoPointsRegion(source, search, sch1, sch2, src1, src2, rgb)
	default:
		rect, confidence, err := k.homographyRegion(source, search, kpSch, kpSrc, good, rgb)
		return rect, rect.Middle(), confidence, err
	}
}

// twoPointsRegion 两对点求区域
// 点在任一侧同 x 或同 y 时无法求缩放比例，按单点处理
func (k *KeypointMatching) twoPointsRegion(source, search gocv.Mat, sch1, sch2, src1, src2 image.Point, rgb bool) (Rect, Point, float64, error) {
	if sch1.X == sch2.X || sch1.Y == sch2.Y || src1.X == src2.X || src1.Y == src2.Y {
		return Rect{X: src1.X, Y: src1.Y}, Point{X: src1.X, Y: src1.Y}, singlePointConfidence, nil
	}

	W, H := source.Cols(), source.Rows()
	w, h := search.Cols(), search.Rows()

	xScale := math.Abs(float64(src2.X-src1.X) / float64(sch2.X-sch1.X))
	yScale := math.Abs(float64(src2.Y-src1.Y) / float64(sch2.Y-sch1.Y))

	// 中点需要校正为模板中心映射到源图的位置
	midX, midY := (src1.X+src2.X)/2, (src1.Y+src2.Y)/2
	schMidX, schMidY := (sch1.X+sch2.X)/2, (sch1.Y+sch2.Y)/2
	midX -= int((float64(schMidX) - float64(w)/2) * xScale)
	midY -= int((float64(schMidY) - float64(h)/2) * yScale)
	midX = clampInt(midX, 0, W-1)
	midY = clampInt(midY, 0, H-1)

	xMin := int(max(float64(midX)-float64(w)*xScale/2, 0))
	xMax := int(min(float64(midX)+float64(w)*xScale/2, float64(W-1)))
	yMin := int(max(float64(midY)-float64(h)*yScale/2, 0))
	yMax := int(min(float64(midY)+float64(h)*yScale/2, float64(H-1)))
	rect := RectFromBounds(xMin, yMin, xMax, yMax)
	center := Point{X: midX, Y: midY}

	if err := k.checkTarget(rect, w, h); err != nil {
		return Rect{}, Point{}, 0, err
	}
	confidence, err := cropConfidence(source, search, rect, rgb)
	return rect, center, confidence, err
}

// homographyRegion 单应性矩阵求区域，角点越界时裁剪到源图范围
func (k *KeypointMatching) homographyRegion(source, search gocv.Mat, kpSch, kpSrc []KeyPoint, good []Correspondence, rgb bool) (Rect, float64, error) {
	schPts := make([]gocv.Point2f, len(good))
	srcPts := make([]gocv.Point2f, len(good))
	for i, c := range good {
		s, d := kpSch[c.QueryIdx], kpSrc[c.TrainIdx]
		schPts[i] = gocv.Point2f{X: float32(s.X), Y: float32(s.Y)}
		srcPts[i] = gocv.Point2f{X: float32(d.X), Y: float32(d.Y)}
	}

	H, _, err := EstimateHomography(schPts, srcPts)
	if err != nil {
		return Rect{}, 0, err
	}

	w, h := search.Cols(), search.Rows()
	corners, err := H.MapCorners(w, h)
	if err != nil {
		return Rect{}, 0, err
	}

	xMin, yMin := math.Inf(1), math.Inf(1)
	xMax, yMax := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		xMin, xMax = min(xMin, c[0]), max(xMax, c[0])
		yMin, yMax = min(yMin, c[1]), max(yMax, c[1])
	}

	W, Hs := source.Cols(), source.Rows()
	rect := RectFromBounds(
		clampInt(int(xMin), 0, W-1), clampInt(int(yMin), 0, Hs-1),
		clampInt(int(xMax), 0, W-1), clampInt(int(yMax), 0, Hs-1),
	)

	if err := k.checkTarget(rect, w, h); err != nil {
		return Rect{}, 0, err
	}
	confidence, err := warpConfidence(source, search, H, rgb)
	return rect, confidence, err
}

// checkTarget 识别区域合理性检查：过小或与模板尺寸相差过大都视为无效
func (k *KeypointMatching) checkTarget(rect Rect, w, h int) error {
	p := k.params
	if rect.Width < p.MinSize || rect.Height < p.MinSize {
		return &ResultValidityError{
			Width: rect.Width, Height: rect.Height, SearchWidth: w, SearchHeight: h,
			Reason: fmt.Sprintf("区域边长小于 %d", p.MinSize),
		}
	}
	tw, th := float64(rect.Width), float64(rect.Height)
	if tw < float64(w)*p.ScaleMin || tw > float64(w)*p.ScaleMax ||
		th < float64(h)*p.ScaleMin || th > float64(h)*p.ScaleMax {
		return &ResultValidityError{
			Width: rect.Width, Height: rect.Height, SearchWidth: w, SearchHeight: h,
			Reason: fmt.Sprintf("缩放比例超出 [%.1f, %.1f]", p.ScaleMin, p.ScaleMax),
		}
	}
	return nil
}

// cropConfidence 截取区域并缩放到模板大小后计算置信度
func cropConfidence(source, search gocv.Mat, rect Rect, rgb bool) (float64, error) {
	target, err := CropImage(source, rect)
	if err != nil {
		return 0, err
	}
	defer target.Close()

	resized := ResizeImage(target, search.Cols(), search.Rows())
	defer resized.Close()
	return patchConfidence(resized, search, rgb)
}

// warpConfidence 用逆矩阵把源图变换回模板空间后计算置信度
func warpConfidence(source, search gocv.Mat, H *Homography, rgb bool) (float64, error) {
	inv, err := H.Inverse()
	if err != nil {
		return 0, err
	}
	m := inv.ToMat()
	defer m.Close()

	warped := gocv.NewMat()
	defer warped.Close()
	gocv.WarpPerspective(source, &warped, m, image.Point{X: search.Cols(), Y: search.Rows()})
	if warped.Empty() {
		return 0, &PerspectiveTransformError{Reason: "透视变换结果为空"}
	}
	return patchConfidence(warped, search, rgb)
}

// patchConfidence 同尺寸图像的置信度，做 (1+c)/2 修正
func patchConfidence(target, search gocv.Mat, rgb bool) (float64, error) {
	var (
		confidence float64
		err        error
	)
	if rgb {
		confidence, err = CalHSVConfidence(target, search)
	} else {
		confidence, err = CalCcoeffConfidence(target, search)
	}
	if err != nil {
		return 0, err
	}
	return dampConfidence(confidence), nil
}

// removeCorrespondences 从候选池中移除指定点对
func removeCorrespondences(pool, used []Correspondence) []Correspondence {
	if len(used) == 0 {
		return pool
	}
	drop := make(map[[2]int]bool, len(used))
	for _, c := range used {
		drop[[2]int{c.QueryIdx, c.TrainIdx}] = true
	}
	out := pool[:0]
	for _, c := range pool {
		if !drop[[2]int{c.QueryIdx, c.TrainIdx}] {
			out = append(out, c)
		}
	}
	return out
}

// removeInside 移除源图位置落在区域内的候选点对
func removeInside(pool []Correspondence, kpSrc []KeyPoint, rect Rect) []Correspondence {
	out := pool[:0]
	for _, c := range pool {
		p := kpSrc[c.TrainIdx]
		if !rect.ContainsPoint(p.X, p.Y) {
			out = append(out, c)
		}
	}
	return out
}

func toKeyPoints(kps []gocv.KeyPoint) []KeyPoint {
	out := make([]KeyPoint, len(kps))
	for i, kp := range kps {
		out[i] = NewKeyPoint(float64(kp.X), float64(kp.Y), float64(kp.Angle))
	}
	return out
}

// relativePolarAngle p 以 origin 为原点的极角减去 origin 自身角度，重合时为 0
func relativePolarAngle(origin, p KeyPoint) float64 {
	dx, dy := p.X-origin.X, p.Y-origin.Y
	if dx == 0 && dy == 0 {
		return 0
	}
	a := math.Atan2(dy, dx) * 180 / math.Pi
	return normalizeAngle(normalizeAngle(a) - origin.Angle)
}

// angleGap 两个角度的环形差 [0,180]
func angleGap(a, b float64) float64 {
	d := math.Abs(normalizeAngle(a) - normalizeAngle(b))
	return min(d, 360-d)
}

func pointRect(kp KeyPoint) Rect {
	return Rect{X: int(kp.X), Y: int(kp.Y)}
}

func kpPixel(kp KeyPoint) image.Point {
	return image.Point{X: int(kp.X), Y: int(kp.Y)}
}

func midPixel(a, b KeyPoint) image.Point {
	return image.Point{X: int((a.X + b.X) / 2), Y: int((a.Y + b.Y) / 2)}
}
