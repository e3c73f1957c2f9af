package cv

import (
	"gocv.io/x/gocv"

	"github.com/zoeyai/zoeyvision/internal/logger"
)

// DefaultDesignResolution 默认设计分辨率
var DefaultDesignResolution = Resolution{Width: 960, Height: 640}

// ResizeStrategy 跨分辨率缩放规则
// 输入待缩放图像的宽高、录制分辨率和当前屏幕分辨率，返回缩放后的宽高
type ResizeStrategy func(w, h int, schResolution, srcResolution Resolution) (int, int)

// CocosMinStrategy COCOS 中的 MIN 策略
// 分别求出录制、当前分辨率相对设计分辨率的缩放比，再得到有效缩放比
func CocosMinStrategy(design Resolution) ResizeStrategy {
	if !design.Valid() {
		design = DefaultDesignResolution
	}
	return func(w, h int, sch, src Resolution) (int, int) {
		scaleSch := min(float64(sch.Width)/float64(design.Width), float64(sch.Height)/float64(design.Height))
		scaleSrc := min(float64(src.Width)/float64(design.Width), float64(src.Height)/float64(design.Height))
		scale := scaleSrc / scaleSch
		return int(float64(w) * scale), int(float64(h) * scale)
	}
}

// NoResize 不缩放
func NoResize(w, h int, _, _ Resolution) (int, int) {
	return w, h
}

// ResizeStrategyByName 按名称取缩放策略，未知名称返回 nil
func ResizeStrategyByName(name string, design Resolution) ResizeStrategy {
	switch name {
	case "", "cocos_min":
		return CocosMinStrategy(design)
	case "none":
		return NoResize
	default:
		return nil
	}
}

// resizedSize 计算缩放后的尺寸，至少 1 像素
// 分辨率一致或未知时不缩放
func resizedSize(w, h int, sch, src Resolution, strategy ResizeStrategy) (int, int, bool) {
	if strategy == nil || !sch.Valid() || !src.Valid() || sch == src {
		return w, h, false
	}
	wRe, hRe := strategy(w, h, sch, src)
	wRe, hRe = max(wRe, 1), max(hRe, 1)
	return wRe, hRe, wRe != w || hRe != h
}

// resizeForSource 按策略把模板（或模板切片、掩码）适配到当前分辨率
// 不需要缩放时返回副本
func resizeForSource(img gocv.Mat, sch, src Resolution, strategy ResizeStrategy) gocv.Mat {
	w, h, changed := resizedSize(img.Cols(), img.Rows(), sch, src, strategy)
	if !changed {
		return img.Clone()
	}
	logger.Named("cv").Debugw("resize", "from", [2]int{img.Cols(), img.Rows()}, "to", [2]int{w, h},
		"sch", sch, "src", src)
	return ResizeImage(img, w, h)
}
