package cv

import (
	"encoding/json"
	"fmt"
	"math"
)

// Point 表示二维坐标点
// JSON 格式为 [x, y]
type Point struct {
	X int
	Y int
}

// MarshalJSON 序列化为 [x, y]
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.X, p.Y})
}

// UnmarshalJSON 从 [x, y] 反序列化
func (p *Point) UnmarshalJSON(data []byte) error {
	var xy [2]int
	if err := json.Unmarshal(data, &xy); err != nil {
		return fmt.Errorf("解析坐标点失败: %w", err)
	}
	p.X, p.Y = xy[0], xy[1]
	return nil
}

// Rectangle 表示矩形区域（四个角点）
// JSON 格式为 [[x,y],[x,y],[x,y],[x,y]]，顺序: 左上 -> 左下 -> 右下 -> 右上
type Rectangle struct {
	TopLeft     Point
	BottomLeft  Point
	BottomRight Point
	TopRight    Point
}

// MarshalJSON 按 左上、左下、右下、右上 顺序序列化
func (r Rectangle) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]Point{r.TopLeft, r.BottomLeft, r.BottomRight, r.TopRight})
}

// UnmarshalJSON 反序列化四个角点
func (r *Rectangle) UnmarshalJSON(data []byte) error {
	var pts [4]Point
	if err := json.Unmarshal(data, &pts); err != nil {
		return fmt.Errorf("解析矩形失败: %w", err)
	}
	r.TopLeft, r.BottomLeft, r.BottomRight, r.TopRight = pts[0], pts[1], pts[2], pts[3]
	return nil
}

// MatchResult 图像匹配结果
// nil 表示未找到
type MatchResult struct {
	// Result 匹配到的中心点坐标
	Result Point `json:"result"`
	// Rectangle 匹配区域的四个角点
	Rectangle Rectangle `json:"rectangle"`
	// Confidence 匹配置信度 (0-1)
	Confidence float64 `json:"confidence"`
	// Time 匹配耗时（毫秒）
	Time float64 `json:"time,omitempty"`
}

// newMatchResult 根据目标区域生成结果
func newMatchResult(rect Rect, confidence float64) *MatchResult {
	return &MatchResult{
		Result:     rect.Middle(),
		Rectangle:  rect.Corners(),
		Confidence: confidence,
	}
}

// KeyPoint 特征点，Angle 归一化到 [0,360)
type KeyPoint struct {
	X     float64
	Y     float64
	Angle float64
}

// NewKeyPoint 创建特征点，角度会被归一化
func NewKeyPoint(x, y, angle float64) KeyPoint {
	return KeyPoint{X: x, Y: y, Angle: normalizeAngle(angle)}
}

// Correspondence 特征点对应关系
type Correspondence struct {
	QueryIdx int
	TrainIdx int
	Distance float64
}

// MaskSpec ignore/focus 区域，坐标相对于原始模板
type MaskSpec struct {
	Ignore []Rect
	Focus  []Rect
}

// Empty 是否没有任何区域
func (m MaskSpec) Empty() bool {
	return len(m.Ignore) == 0 && len(m.Focus) == 0
}

// Resolution 屏幕分辨率
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Valid 宽高均为正
func (r Resolution) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

// RecordPos 录制时的点击位置
// 相对屏幕中心的偏移，x/y 均以录制宽度归一化
type RecordPos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MatchMethod 匹配方法枚举
type MatchMethod string

const (
	MatchMethodTemplate           MatchMethod = "tpl"   // 模板匹配
	MatchMethodMultiScaleTemplate MatchMethod = "mstpl" // 多尺度模板匹配
	MatchMethodKAZE               MatchMethod = "kaze"
	MatchMethodBRISK              MatchMethod = "brisk"
	MatchMethodAKAZE              MatchMethod = "akaze"
	MatchMethodORB                MatchMethod = "orb"
	MatchMethodSIFT               MatchMethod = "sift" // SIFT 特征点匹配（更稳但更慢）
)

// DefaultMatchMethods 默认匹配方法顺序
var DefaultMatchMethods = []MatchMethod{
	MatchMethodMultiScaleTemplate,
	MatchMethodTemplate,
	MatchMethodSIFT,
	MatchMethodAKAZE,
}

// isKeypointMethod 是否为特征点匹配方法
func (m MatchMethod) isKeypointMethod() bool {
	switch m {
	case MatchMethodKAZE, MatchMethodBRISK, MatchMethodAKAZE, MatchMethodORB, MatchMethodSIFT:
		return true
	}
	return false
}

// normalizeAngle 把角度归一化到 [0,360)
func normalizeAngle(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		a = 0
	}
	return a
}
