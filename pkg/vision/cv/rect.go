package cv

import "image"

// Rect 轴对齐矩形，坐标为源图像像素
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewRect 从左上角和宽高创建矩形
func NewRect(x, y, w, h int) Rect {
	return Rect{X: x, Y: y, Width: w, Height: h}
}

// RectFromBounds 从 [xMin, yMin, xMax, yMax] 创建矩形
func RectFromBounds(xMin, yMin, xMax, yMax int) Rect {
	if xMax < xMin {
		xMin, xMax = xMax, xMin
	}
	if yMax < yMin {
		yMin, yMax = yMax, yMin
	}
	return Rect{X: xMin, Y: yMin, Width: xMax - xMin, Height: yMax - yMin}
}

// Right 右边界（不含）
func (r Rect) Right() int { return r.X + r.Width }

// Bottom 下边界（不含）
func (r Rect) Bottom() int { return r.Y + r.Height }

// Area 面积
func (r Rect) Area() int {
	if r.Empty() {
		return 0
	}
	return r.Width * r.Height
}

// Empty 宽或高不为正
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Clip 裁剪到 [0,width)×[0,height)
func (r Rect) Clip(width, height int) Rect {
	xMin := max(r.X, 0)
	yMin := max(r.Y, 0)
	xMax := min(r.Right(), width)
	yMax := min(r.Bottom(), height)
	if xMax <= xMin || yMax <= yMin {
		return Rect{X: xMin, Y: yMin}
	}
	return Rect{X: xMin, Y: yMin, Width: xMax - xMin, Height: yMax - yMin}
}

// ContainsPoint 点是否在矩形内（含边界）
func (r Rect) ContainsPoint(x, y float64) bool {
	return x >= float64(r.X) && x <= float64(r.Right()) &&
		y >= float64(r.Y) && y <= float64(r.Bottom())
}

// ContainsRect o 是否完全落在 r 内
func (r Rect) ContainsRect(o Rect) bool {
	return o.X >= r.X && o.Y >= r.Y && o.Right() <= r.Right() && o.Bottom() <= r.Bottom()
}

// Middle 中心点
func (r Rect) Middle() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Corners 四个角点: 左上 -> 左下 -> 右下 -> 右上
func (r Rect) Corners() Rectangle {
	return Rectangle{
		TopLeft:     Point{X: r.X, Y: r.Y},
		BottomLeft:  Point{X: r.X, Y: r.Bottom()},
		BottomRight: Point{X: r.Right(), Y: r.Bottom()},
		TopRight:    Point{X: r.Right(), Y: r.Y},
	}
}

// ImageRect 转换为 image.Rectangle
func (r Rect) ImageRect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.Right(), r.Bottom())
}

// Offset 平移
func (r Rect) Offset(dx, dy int) Rect {
	r.X += dx
	r.Y += dy
	return r
}

// Bounds 返回矩形的外接框
func (rc Rectangle) Bounds() Rect {
	xMin := min(min(rc.TopLeft.X, rc.BottomLeft.X), min(rc.BottomRight.X, rc.TopRight.X))
	xMax := max(max(rc.TopLeft.X, rc.BottomLeft.X), max(rc.BottomRight.X, rc.TopRight.X))
	yMin := min(min(rc.TopLeft.Y, rc.BottomLeft.Y), min(rc.BottomRight.Y, rc.TopRight.Y))
	yMax := max(max(rc.TopLeft.Y, rc.BottomLeft.Y), max(rc.BottomRight.Y, rc.TopRight.Y))
	return RectFromBounds(xMin, yMin, xMax, yMax)
}

// Offset 平移四个角点
func (rc Rectangle) Offset(dx, dy int) Rectangle {
	move := func(p Point) Point { return Point{X: p.X + dx, Y: p.Y + dy} }
	return Rectangle{
		TopLeft:     move(rc.TopLeft),
		BottomLeft:  move(rc.BottomLeft),
		BottomRight: move(rc.BottomRight),
		TopRight:    move(rc.TopRight),
	}
}
