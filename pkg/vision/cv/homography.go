package cv

import (
	"fmt"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"
)

const (
	// ransacReprojThreshold RANSAC 重投影误差阈值
	ransacReprojThreshold = 5.0
	ransacMaxIters        = 2000
	ransacConfidence      = 0.995
	// minHomographyPoints 求单应性矩阵最少需要的点对
	minHomographyPoints = 4
	// degenerateEpsilon 齐次坐标 w 的退化阈值
	degenerateEpsilon = 1e-10
)

// Homography 3x3 单应性矩阵
type Homography struct {
	m *mat.Dense
}

// NewHomography 按行优先的 9 个元素创建单应性矩阵
func NewHomography(values [9]float64) *Homography {
	return &Homography{m: mat.NewDense(3, 3, values[:])}
}

// HomographyFromMat 从 OpenCV 的 3x3 CV_64F 矩阵转换
func HomographyFromMat(m gocv.Mat) (*Homography, error) {
	if m.Empty() || m.Rows() != 3 || m.Cols() != 3 {
		return nil, &HomographyError{Reason: fmt.Sprintf("矩阵尺寸错误 %dx%d", m.Rows(), m.Cols())}
	}
	var values [9]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			v := m.GetDoubleAt(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &HomographyError{Reason: "矩阵包含非有限值"}
			}
			values[i*3+j] = v
		}
	}
	return NewHomography(values), nil
}

// At 返回 (i, j) 位置的元素
func (h *Homography) At(i, j int) float64 {
	return h.m.At(i, j)
}

// ToMat 转换为 OpenCV 的 3x3 CV_64F 矩阵，调用方负责关闭
func (h *Homography) ToMat() gocv.Mat {
	out := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.SetDoubleAt(i, j, h.m.At(i, j))
		}
	}
	return out
}

// Inverse 求逆矩阵，奇异或病态时返回 PerspectiveTransformError
func (h *Homography) Inverse() (*Homography, error) {
	var inv mat.Dense
	if err := inv.Inverse(h.m); err != nil {
		return nil, &PerspectiveTransformError{Reason: "单应性矩阵不可逆: " + err.Error()}
	}
	return &Homography{m: &inv}, nil
}

// Apply 对点 (x, y) 做透视变换
func (h *Homography) Apply(x, y float64) (float64, float64, bool) {
	w := h.m.At(2, 0)*x + h.m.At(2, 1)*y + h.m.At(2, 2)
	if math.Abs(w) < degenerateEpsilon {
		return 0, 0, false
	}
	px := (h.m.At(0, 0)*x + h.m.At(0, 1)*y + h.m.At(0, 2)) / w
	py := (h.m.At(1, 0)*x + h.m.At(1, 1)*y + h.m.At(1, 2)) / w
	if math.IsNaN(px) || math.IsNaN(py) || math.IsInf(px, 0) || math.IsInf(py, 0) {
		return 0, 0, false
	}
	return px, py, true
}

// MapCorners 变换 w×h 模板的四个角点: 左上 -> 左下 -> 右下 -> 右上
func (h *Homography) MapCorners(w, hgt int) ([4][2]float64, error) {
	corners := [4][2]float64{
		{0, 0},
		{0, float64(hgt)},
		{float64(w), float64(hgt)},
		{float64(w), 0},
	}
	var out [4][2]float64
	for i, c := range corners {
		x, y, ok := h.Apply(c[0], c[1])
		if !ok {
			return out, &PerspectiveTransformError{Reason: fmt.Sprintf("角点 (%v, %v) 映射退化", c[0], c[1])}
		}
		out[i] = [2]float64{x, y}
	}
	if polygonArea(out) < degenerateEpsilon {
		return out, &PerspectiveTransformError{Reason: "映射后的区域面积为 0"}
	}
	return out, nil
}

// EstimateHomography 两轮 RANSAC 求单应性矩阵
// 第一轮筛出内点，第二轮只用内点重新求解
func EstimateHomography(schPts, srcPts []gocv.Point2f) (*Homography, int, error) {
	if len(schPts) != len(srcPts) {
		return nil, 0, &HomographyError{Reason: "点对数量不一致"}
	}
	if len(schPts) < minHomographyPoints {
		return nil, 0, &HomographyError{Reason: fmt.Sprintf("点对不足 %d 个", minHomographyPoints)}
	}

	_, mask, err := solveHomography(schPts, srcPts)
	if err != nil {
		return nil, 0, err
	}

	var inSch, inSrc []gocv.Point2f
	for i := range schPts {
		if i < len(mask) && mask[i] {
			inSch = append(inSch, schPts[i])
			inSrc = append(inSrc, srcPts[i])
		}
	}
	if len(inSch) < minHomographyPoints {
		return nil, len(inSch), &HomographyError{Reason: fmt.Sprintf("内点只有 %d 个", len(inSch))}
	}

	// 针对内点再次计算出更精确的矩阵
	refined, _, err := solveHomography(inSch, inSrc)
	if err != nil {
		return nil, len(inSch), err
	}
	return refined, len(inSch), nil
}

// solveHomography 单轮求解，测试中可替换
var solveHomography = findHomography

// findHomography 调用 OpenCV RANSAC，返回矩阵和内点掩码
func findHomography(schPts, srcPts []gocv.Point2f) (*Homography, []bool, error) {
	srcMat := pointsToMat(schPts)
	dstMat := pointsToMat(srcPts)
	defer srcMat.Close()
	defer dstMat.Close()

	mask := gocv.NewMat()
	defer mask.Close()
	m := gocv.FindHomography(srcMat, dstMat, gocv.HomographyMethodRANSAC, ransacReprojThreshold, &mask, ransacMaxIters, ransacConfidence)
	defer m.Close()

	if m.Empty() {
		return nil, nil, &HomographyError{Reason: "没有求出矩阵"}
	}
	if mask.Empty() {
		return nil, nil, &HomographyError{Reason: "没有内点掩码"}
	}

	H, err := HomographyFromMat(m)
	if err != nil {
		return nil, nil, err
	}

	inliers := make([]bool, mask.Rows())
	for i := range inliers {
		inliers[i] = mask.GetUCharAt(i, 0) > 0
	}
	return H, inliers, nil
}

// pointsToMat 点集转为 N×1 的 CV_32FC2 矩阵
func pointsToMat(pts []gocv.Point2f) gocv.Mat {
	m := gocv.NewMatWithSize(len(pts), 1, gocv.MatTypeCV32FC2)
	for i, p := range pts {
		m.SetFloatAt(i, 0, p.X)
		m.SetFloatAt(i, 1, p.Y)
	}
	return m
}

// polygonArea 多边形面积（鞋带公式）
func polygonArea(pts [4][2]float64) float64 {
	area := 0.0
	for i := range pts {
		j := (i + 1) % len(pts)
		area += pts[i][0]*pts[j][1] - pts[j][0]*pts[i][1]
	}
	return math.Abs(area) / 2
}
