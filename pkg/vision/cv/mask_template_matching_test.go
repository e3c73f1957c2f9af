package cv

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"gocv.io/x/gocv"
)

func TestAtomRects(t *testing.T) {
	cells := AtomRects(40, 40, []Rect{NewRect(0, 0, 20, 20)})
	if len(cells) != 3 {
		t.Fatalf("期望 3 个细分块，实际 %d: %+v", len(cells), cells)
	}
	area := 0
	for _, c := range cells {
		if c.ContainsRect(NewRect(0, 0, 20, 20)) || NewRect(0, 0, 20, 20).ContainsRect(c) {
			t.Errorf("细分块不应落在 ignore 区域内: %+v", c)
		}
		area += c.Area()
	}
	if area != 40*40-20*20 {
		t.Errorf("细分块总面积错误: %d", area)
	}

	// 中间挖空时切成 8 块
	if cells := AtomRects(30, 30, []Rect{NewRect(10, 10, 10, 10)}); len(cells) != 8 {
		t.Errorf("期望 8 个细分块，实际 %d", len(cells))
	}

	// 覆盖整个模板时没有细分块
	if cells := AtomRects(30, 30, []Rect{NewRect(-5, -5, 50, 50)}); len(cells) != 0 {
		t.Errorf("完全覆盖时不应有细分块，实际 %+v", cells)
	}
}

func TestWeightedConfidence(t *testing.T) {
	got := WeightedConfidence([]float64{1, 0.5}, []float64{3, 1})
	if math.Abs(got-0.875) > 1e-12 {
		t.Errorf("加权置信度错误: %v", got)
	}
	if got := WeightedConfidence(nil, nil); got != 0 {
		t.Errorf("空输入应返回 0，实际 %v", got)
	}
}

func TestGenerateMaskImage(t *testing.T) {
	mask := generateMaskImage(20, 20, []Rect{NewRect(0, 0, 10, 10)})
	defer mask.Close()

	tests := []struct {
		row, col int
		want     uint8
	}{
		{0, 0, 0},
		{9, 9, 0},
		{10, 10, 255},
		{0, 10, 255},
		{19, 19, 255},
	}
	for _, tt := range tests {
		if got := mask.GetUCharAt(tt.row, tt.col); got != tt.want {
			t.Errorf("掩码 (%d,%d) = %d, 期望 %d", tt.row, tt.col, got, tt.want)
		}
	}
}

func TestMaskTemplateMatchingIgnoreInvariance(t *testing.T) {
	source, template := sceneWithTemplate(t, 300, 300, 51, NewRect(100, 80, 60, 60))
	defer source.Close()
	defer template.Close()

	// 修改 ignore 区域内的像素
	mutated := template.Clone()
	defer mutated.Close()
	gocv.Rectangle(&mutated, image.Rect(0, 0, 29, 29), color.RGBA{0, 0, 0, 0}, -1)

	matcher := NewMaskTemplateMatching(0.8, false, MaskSpec{Ignore: []Rect{NewRect(0, 0, 30, 30)}})

	r1, err := matcher.FindBestResult(source, template)
	if err != nil || r1 == nil {
		t.Fatalf("原模板匹配失败: %v", err)
	}
	r2, err := matcher.FindBestResult(source, mutated)
	if err != nil || r2 == nil {
		t.Fatalf("修改后的模板匹配失败: %v", err)
	}

	if r1.Rectangle.TopLeft != (Point{X: 100, Y: 80}) {
		t.Errorf("左上角错误: %+v", r1.Rectangle.TopLeft)
	}
	if r1.Rectangle != r2.Rectangle {
		t.Errorf("ignore 区域内的修改不应影响结果: %+v vs %+v", r1.Rectangle, r2.Rectangle)
	}
	if math.Abs(r1.Confidence-r2.Confidence) > 1e-9 {
		t.Errorf("置信度不应变化: %.6f vs %.6f", r1.Confidence, r2.Confidence)
	}
}

func TestMaskTemplateMatchingFocus(t *testing.T) {
	source, template := sceneWithTemplate(t, 300, 300, 52, NewRect(40, 150, 60, 60))
	defer source.Close()
	defer template.Close()

	focus := []Rect{NewRect(10, 10, 20, 20), NewRect(35, 35, 20, 20)}
	result, err := NewMaskTemplateMatching(0.8, true, MaskSpec{Focus: focus}).FindBestResult(source, template)
	if err != nil {
		t.Fatalf("focus 匹配失败: %v", err)
	}
	if result == nil {
		t.Fatal("应找到匹配")
	}
	if result.Rectangle.TopLeft != (Point{X: 40, Y: 150}) {
		t.Errorf("左上角错误: %+v", result.Rectangle.TopLeft)
	}
	// 每个区块的置信度经过 (1+c)/2 修正，加权后落在 [0.5, 1]
	if result.Confidence < 0.5 || result.Confidence > 1+1e-9 {
		t.Errorf("加权置信度越界: %.4f", result.Confidence)
	}
}

func TestMaskTemplateMatchingInvalidMask(t *testing.T) {
	source, template := sceneWithTemplate(t, 200, 200, 53, NewRect(20, 20, 40, 40))
	defer source.Close()
	defer template.Close()

	t.Run("ignore 覆盖整个模板", func(t *testing.T) {
		m := NewMaskTemplateMatching(0.8, false, MaskSpec{Ignore: []Rect{NewRect(0, 0, 40, 40)}})
		_, err := m.FindBestResult(source, template)
		if !errors.Is(err, ErrMaskCoversTemplate) {
			t.Errorf("期望 ErrMaskCoversTemplate，实际 %v", err)
		}
		var inputErr *InputError
		if !errors.As(err, &inputErr) {
			t.Errorf("期望 InputError，实际 %T", err)
		}
	})

	t.Run("focus 在模板之外", func(t *testing.T) {
		m := NewMaskTemplateMatching(0.8, false, MaskSpec{Focus: []Rect{NewRect(100, 100, 10, 10)}})
		_, err := m.FindBestResult(source, template)
		var inputErr *InputError
		if !errors.As(err, &inputErr) {
			t.Errorf("期望 InputError，实际 %v", err)
		}
	})
}

func TestMaskTemplateMatchingNoMask(t *testing.T) {
	source, template := sceneWithTemplate(t, 200, 200, 54, NewRect(70, 30, 40, 40))
	defer source.Close()
	defer template.Close()

	masked, err := NewMaskTemplateMatching(0.8, false, MaskSpec{}).FindBestResult(source, template)
	if err != nil || masked == nil {
		t.Fatalf("无掩码匹配失败: %v", err)
	}
	plain, err := NewTemplateMatching(0.8, false).FindBestResult(source, template)
	if err != nil || plain == nil {
		t.Fatalf("模板匹配失败: %v", err)
	}
	if masked.Rectangle != plain.Rectangle || masked.Confidence != plain.Confidence {
		t.Errorf("无掩码时应等同于模板匹配: %+v vs %+v", masked, plain)
	}
}

func TestMaskTemplateMatchingResolution(t *testing.T) {
	source, template := sceneWithTemplate(t, 300, 300, 55, NewRect(100, 80, 60, 60))
	defer source.Close()
	defer template.Close()

	// 在 2 倍分辨率下录制的模板
	recorded := ResizeImage(template, 120, 120)
	defer recorded.Close()

	matcher := NewMaskTemplateMatching(0.7, false, MaskSpec{Ignore: []Rect{NewRect(0, 0, 60, 60)}}).
		WithResolution(Resolution{Width: 600, Height: 600}, nil)

	result, err := matcher.FindBestResult(source, recorded)
	if err != nil {
		t.Fatalf("匹配失败: %v", err)
	}
	if result == nil {
		t.Fatal("应找到匹配")
	}
	if !nearPoint(result.Rectangle.TopLeft, Point{X: 100, Y: 80}, 2) {
		t.Errorf("左上角错误: %+v", result.Rectangle.TopLeft)
	}
}
