package cv

import (
	"errors"
	"math"
	"testing"

	"gocv.io/x/gocv"
)

func TestCalCcoeffConfidenceIdentical(t *testing.T) {
	patch := toMat(t, newScene(60, 40, 31))
	defer patch.Close()
	same := patch.Clone()
	defer same.Close()

	c, err := CalCcoeffConfidence(patch, same)
	if err != nil {
		t.Fatalf("计算置信度失败: %v", err)
	}
	if c < 0.97 {
		t.Errorf("相同图像的灰度置信度应接近 1，实际 %.4f", c)
	}
}

func TestCalHSVConfidenceIdentical(t *testing.T) {
	patch := toMat(t, newScene(48, 48, 32))
	defer patch.Close()

	c, err := CalHSVConfidence(patch, patch)
	if err != nil {
		t.Fatalf("计算置信度失败: %v", err)
	}
	if c < 0.97 {
		t.Errorf("相同图像的 HSV 置信度应接近 1，实际 %.4f", c)
	}
}

func TestChannelConfidenceIsMinimum(t *testing.T) {
	a := toMat(t, newScene(40, 40, 33))
	defer a.Close()
	b := toMat(t, newScene(40, 40, 34))
	defer b.Close()

	for _, hsv := range []bool{false, true} {
		scores, err := ChannelConfidences(a, b, hsv)
		if err != nil {
			t.Fatalf("计算通道置信度失败: %v", err)
		}
		if len(scores) != 3 {
			t.Fatalf("期望 3 个通道，实际 %d", len(scores))
		}

		var got float64
		if hsv {
			got, err = CalHSVConfidence(a, b)
		} else {
			got, err = CalRGBConfidence(a, b)
		}
		if err != nil {
			t.Fatalf("计算置信度失败: %v", err)
		}

		want := math.Min(scores[0], math.Min(scores[1], scores[2]))
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("hsv=%v 时置信度应为最小通道值 %.6f，实际 %.6f", hsv, want, got)
		}
	}
}

func TestConfidenceFlatPatch(t *testing.T) {
	// 纯色图像也能得到有限的置信度
	flat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(200, 200, 200, 0), 20, 20, gocv.MatTypeCV8UC3)
	defer flat.Close()

	c, err := CalCcoeffConfidence(flat, flat)
	if err != nil {
		t.Fatalf("计算置信度失败: %v", err)
	}
	if math.IsNaN(c) || math.IsInf(c, 0) {
		t.Errorf("置信度应为有限值，实际 %v", c)
	}
	if c < 0.97 {
		t.Errorf("相同纯色图像的置信度应接近 1，实际 %.4f", c)
	}
}

func TestConfidenceSizeMismatch(t *testing.T) {
	a := toMat(t, newScene(30, 30, 35))
	defer a.Close()
	b := toMat(t, newScene(31, 30, 36))
	defer b.Close()

	_, err := CalCcoeffConfidence(a, b)
	var inputErr *InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("尺寸不一致应返回 InputError，实际 %v", err)
	}

	if _, err := CalHSVConfidence(a, b); !IsMatchError(err) {
		t.Errorf("尺寸不一致应返回引擎错误，实际 %v", err)
	}
}

func TestDampConfidence(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-1, 0},
		{0, 0.5},
		{1, 1},
		{0.6, 0.8},
	}
	for _, tt := range tests {
		if got := dampConfidence(tt.in); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("dampConfidence(%v) = %v, 期望 %v", tt.in, got, tt.want)
		}
	}
}
