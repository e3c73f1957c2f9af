package cv

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Detector 特征点检测器
type Detector interface {
	DetectAndCompute(src gocv.Mat, mask gocv.Mat) ([]gocv.KeyPoint, gocv.Mat)
	Close() error
}

// DescriptorMatcher 描述符匹配器
type DescriptorMatcher interface {
	KnnMatch(query, train gocv.Mat, k int) [][]gocv.DMatch
	Close() error
}

// Backend 特征点算法后端
// 每次匹配都会新建检测器和匹配器，用完即关闭
type Backend interface {
	Name() string
	CreateDetector() (Detector, error)
	CreateMatcher() (DescriptorMatcher, error)
}

// bfBackend 使用暴力匹配器的后端，按描述符类型选择距离
type bfBackend struct {
	name     string
	norm     gocv.NormType
	detector func() Detector
}

func (b *bfBackend) Name() string { return b.name }

func (b *bfBackend) CreateDetector() (Detector, error) {
	return b.detector(), nil
}

func (b *bfBackend) CreateMatcher() (DescriptorMatcher, error) {
	m := gocv.NewBFMatcherWithParams(b.norm, false)
	return &m, nil
}

// SIFTBackend SIFT，浮点描述符，L2 距离
func SIFTBackend() Backend {
	return &bfBackend{name: "SIFT", norm: gocv.NormL2, detector: func() Detector {
		d := gocv.NewSIFT()
		return &d
	}}
}

// KAZEBackend KAZE，浮点描述符，L2 距离
func KAZEBackend() Backend {
	return &bfBackend{name: "KAZE", norm: gocv.NormL2, detector: func() Detector {
		d := gocv.NewKAZE()
		return &d
	}}
}

// ORBBackend ORB，二进制描述符，汉明距离
func ORBBackend() Backend {
	return &bfBackend{name: "ORB", norm: gocv.NormHamming, detector: func() Detector {
		d := gocv.NewORB()
		return &d
	}}
}

// BRISKBackend BRISK，二进制描述符，汉明距离
func BRISKBackend() Backend {
	return &bfBackend{name: "BRISK", norm: gocv.NormHamming, detector: func() Detector {
		d := gocv.NewBRISK()
		return &d
	}}
}

// AKAZEBackend AKAZE，二进制描述符，汉明距离
func AKAZEBackend() Backend {
	return &bfBackend{name: "AKAZE", norm: gocv.NormHamming, detector: func() Detector {
		d := gocv.NewAKAZE()
		return &d
	}}
}

// BackendByName 根据匹配方法取后端
func BackendByName(method MatchMethod) (Backend, error) {
	switch method {
	case MatchMethodSIFT:
		return SIFTBackend(), nil
	case MatchMethodKAZE:
		return KAZEBackend(), nil
	case MatchMethodORB:
		return ORBBackend(), nil
	case MatchMethodBRISK:
		return BRISKBackend(), nil
	case MatchMethodAKAZE:
		return AKAZEBackend(), nil
	default:
		return nil, fmt.Errorf("不是特征点匹配方法: %s", method)
	}
}
