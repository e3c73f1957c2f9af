package cv

import (
	"image/color"

	"gocv.io/x/gocv"
)

// confidencePadding 置信度计算时对一侧图像的扩边像素
const confidencePadding = 10

// 像素有效范围，削弱纯黑/纯白的影响
const (
	validPixelMin = 10
	validPixelMax = 245
)

// CalCcoeffConfidence 使用 TM_CCOEFF_NORMED 计算两张同尺寸图像的灰度置信度
func CalCcoeffConfidence(imgSource, imgSearch gocv.Mat) (float64, error) {
	if err := checkPatchPair(imgSource, imgSearch); err != nil {
		return 0, err
	}

	// 转为灰度图
	srcGray := ToGray(imgSource)
	searchGray := ToGray(imgSearch)
	defer srcGray.Close()
	defer searchGray.Close()

	return paddedChannelConfidence(srcGray, searchGray), nil
}

// CalHSVConfidence 同大小彩图在 HSV 空间计算相似度，返回最小通道的置信度
func CalHSVConfidence(imgSource, imgSearch gocv.Mat) (float64, error) {
	scores, err := ChannelConfidences(imgSource, imgSearch, true)
	if err != nil {
		return 0, err
	}
	return minScore(scores), nil
}

// CalRGBConfidence 同大小彩图直接在 BGR 三通道上计算相似度，返回最小通道的置信度
func CalRGBConfidence(imgSource, imgSearch gocv.Mat) (float64, error) {
	scores, err := ChannelConfidences(imgSource, imgSearch, false)
	if err != nil {
		return 0, err
	}
	return minScore(scores), nil
}

// ChannelConfidences 返回每个通道的置信度
// hsv 为 true 时先转换到 HSV 空间
func ChannelConfidences(imgSource, imgSearch gocv.Mat, hsv bool) ([]float64, error) {
	if err := checkPatchPair(imgSource, imgSearch); err != nil {
		return nil, err
	}

	srcBGR := ToBGR(imgSource)
	searchBGR := ToBGR(imgSearch)
	defer srcBGR.Close()
	defer searchBGR.Close()

	// 裁剪到有效像素范围 [10, 245]
	srcClipped := cropToValidRange(srcBGR)
	searchClipped := cropToValidRange(searchBGR)
	defer srcClipped.Close()
	defer searchClipped.Close()

	srcSpace, searchSpace := srcClipped, searchClipped
	if hsv {
		// 转 HSV 强化颜色的影响
		srcHSV := gocv.NewMat()
		searchHSV := gocv.NewMat()
		defer srcHSV.Close()
		defer searchHSV.Close()
		gocv.CvtColor(srcClipped, &srcHSV, gocv.ColorBGRToHSV)
		gocv.CvtColor(searchClipped, &searchHSV, gocv.ColorBGRToHSV)
		srcSpace, searchSpace = srcHSV, searchHSV
	}

	// 分离三个通道
	srcChannels := gocv.Split(srcSpace)
	searchChannels := gocv.Split(searchSpace)
	defer func() {
		for _, ch := range srcChannels {
			ch.Close()
		}
		for _, ch := range searchChannels {
			ch.Close()
		}
	}()

	scores := make([]float64, 0, len(srcChannels))
	for i := 0; i < len(srcChannels) && i < len(searchChannels); i++ {
		scores = append(scores, paddedChannelConfidence(srcChannels[i], searchChannels[i]))
	}
	return scores, nil
}

// checkPatchPair 校验两张图尺寸、通道一致且非空
func checkPatchPair(a, b gocv.Mat) error {
	if a.Empty() || b.Empty() || a.Cols() <= 0 || a.Rows() <= 0 {
		return &InputError{Reason: "置信度计算的图像为空"}
	}
	if a.Rows() != b.Rows() || a.Cols() != b.Cols() {
		return &InputError{
			Reason:     "置信度计算的两张图像尺寸不一致",
			SourceSize: [2]int{a.Cols(), a.Rows()},
			SearchSize: [2]int{b.Cols(), b.Rows()},
		}
	}
	if a.Channels() != b.Channels() {
		return &InputError{Reason: "置信度计算的两张图像通道数不一致"}
	}
	return nil
}

// cropToValidRange 把像素值限制到 [10, 245]
func cropToValidRange(img gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	// 上限截断到 245
	gocv.Threshold(img, &dst, validPixelMax, 255, gocv.ThresholdTrunc)
	// 取反后再截断一次，相当于下限截断到 10
	gocv.BitwiseNot(dst, &dst)
	gocv.Threshold(dst, &dst, 255-validPixelMin, 255, gocv.ThresholdTrunc)
	gocv.BitwiseNot(dst, &dst)
	return dst
}

// paddedChannelConfidence 单通道置信度
// search 扩边后，两侧在对齐位置写入 0/255 两个锚点，避免纯色区域相关系数无定义
func paddedChannelConfidence(src, search gocv.Mat) float64 {
	p := confidencePadding

	srcAnchored := src.Clone()
	defer srcAnchored.Close()

	padded := gocv.NewMat()
	defer padded.Close()
	gocv.CopyMakeBorder(search, &padded, p, p, p, p, gocv.BorderReplicate, color.RGBA{})

	if r, c, ok := secondAnchor(src.Rows(), src.Cols()); ok {
		srcAnchored.SetUCharAt(0, 0, 0)
		srcAnchored.SetUCharAt(r, c, 255)
		padded.SetUCharAt(p, p, 0)
		padded.SetUCharAt(p+r, p+c, 255)
	}

	result := gocv.NewMat()
	defer result.Close()
	noMask := gocv.NewMat()
	defer noMask.Close()
	gocv.MatchTemplate(padded, srcAnchored, &result, gocv.TmCcoeffNormed, noMask)

	_, maxVal, _, _ := gocv.MinMaxLoc(result)
	return finiteOrZero(float64(maxVal))
}

// secondAnchor 第二个锚点位置，优先 (0,1)，单列图像用 (1,0)
func secondAnchor(rows, cols int) (int, int, bool) {
	switch {
	case cols > 1:
		return 0, 1, true
	case rows > 1:
		return 1, 0, true
	default:
		return 0, 0, false
	}
}

func minScore(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	m := scores[0]
	for _, s := range scores[1:] {
		if s < m {
			m = s
		}
	}
	return m
}

// dampConfidence 置信度修正 (1 + c) / 2
func dampConfidence(c float64) float64 {
	return (1 + c) / 2
}
