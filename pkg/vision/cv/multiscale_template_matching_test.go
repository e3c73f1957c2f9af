package cv

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"
)

func TestMultiScaleTemplateMatching_Basic(t *testing.T) {
	source, template := sceneWithTemplate(t, 500, 500, 41, NewRect(300, 200, 50, 50))
	defer source.Close()
	defer template.Close()

	result, err := NewMultiScaleTemplateMatching(0.8, false).FindBestResult(source, template)
	if err != nil {
		t.Fatalf("匹配失败: %v", err)
	}
	if result == nil {
		t.Fatal("应找到匹配")
	}
	if !nearPoint(result.Result, Point{X: 325, Y: 225}, 3) {
		t.Errorf("中心点错误: %+v", result.Result)
	}
	t.Logf("多尺度匹配结果: 位置=(%d,%d), 置信度=%.4f, 耗时=%.2fms",
		result.Result.X, result.Result.Y, result.Confidence, result.Time)
}

func TestMultiScaleTemplateMatching_ScaledTemplate(t *testing.T) {
	source, template := sceneWithTemplate(t, 500, 500, 42, NewRect(120, 260, 50, 50))
	defer source.Close()
	defer template.Close()

	// 模板放大 1.5 倍，模拟在高分辨率屏幕上录制
	scaled := ResizeImage(template, 75, 75)
	defer scaled.Close()

	matcher := NewMultiScaleTemplateMatchingWithParams(0.9, false, 400, 0.005)
	result, err := matcher.FindBestResult(source, scaled)
	if err != nil {
		t.Fatalf("匹配失败: %v", err)
	}
	if result == nil {
		t.Fatal("缩放后的模板应能找到")
	}
	if !nearPoint(result.Result, Point{X: 145, Y: 285}, 5) {
		t.Errorf("中心点错误: %+v", result.Result)
	}
	b := result.Rectangle.Bounds()
	if abs(b.Width-50) > 5 || abs(b.Height-50) > 5 {
		t.Errorf("区域大小应还原为约 50x50，实际 %dx%d", b.Width, b.Height)
	}
}

func TestMultiScaleTemplateMatching_RGB(t *testing.T) {
	source, template := sceneWithTemplate(t, 400, 400, 43, NewRect(40, 40, 40, 40))
	defer source.Close()
	defer template.Close()

	result, err := NewMultiScaleTemplateMatching(0.8, true).FindBestResult(source, template)
	if err != nil {
		t.Fatalf("匹配失败: %v", err)
	}
	if result == nil {
		t.Fatal("应找到匹配")
	}
	if result.Confidence < 0.9 {
		t.Errorf("彩色置信度过低: %.4f", result.Confidence)
	}
}

func TestMultiScaleTemplateMatching_SearchLarger(t *testing.T) {
	source := toMat(t, newScene(80, 80, 44))
	defer source.Close()
	template := toMat(t, newScene(100, 50, 45))
	defer template.Close()

	_, err := NewMultiScaleTemplateMatching(0.8, false).FindBestResult(source, template)
	var inputErr *InputError
	if !errors.As(err, &inputErr) {
		t.Errorf("模板大于源图应返回 InputError，实际 %v", err)
	}
}

func TestMultiScaleTemplateMatching_Cancelled(t *testing.T) {
	source, template := sceneWithTemplate(t, 200, 200, 46, NewRect(10, 10, 30, 30))
	defer source.Close()
	defer template.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMultiScaleTemplateMatching(0.8, false).FindBestResultContext(ctx, source, template)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("已取消的 ctx 应返回 context.Canceled，实际 %v", err)
	}
}

func TestMultiScaleTemplateMatchingPre(t *testing.T) {
	source, template := sceneWithTemplate(t, 500, 500, 47, NewRect(300, 200, 50, 50))
	defer source.Close()
	defer template.Close()

	// 模板中心 (325, 225)，相对屏幕中心的偏移以宽度归一化
	recordPos := RecordPos{X: (325.0 - 250) / 500, Y: (225.0 - 250) / 500}
	matcher := NewMultiScaleTemplateMatchingPre(0.8, false, recordPos, Resolution{Width: 500, Height: 500})

	result, err := matcher.FindBestResult(source, template)
	if err != nil {
		t.Fatalf("匹配失败: %v", err)
	}
	if result == nil {
		t.Fatal("预测区域内应找到匹配")
	}
	if !nearPoint(result.Result, Point{X: 325, Y: 225}, 3) {
		t.Errorf("结果应还原到整图坐标，实际 %+v", result.Result)
	}
}

func TestMultiScaleTemplateMatchingPre_InvalidInput(t *testing.T) {
	source, template := sceneWithTemplate(t, 200, 200, 48, NewRect(0, 0, 60, 60))
	defer source.Close()
	defer template.Close()

	tests := []struct {
		name       string
		resolution Resolution
	}{
		{"缺少分辨率", Resolution{}},
		{"模板大于录制分辨率", Resolution{Width: 50, Height: 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMultiScaleTemplateMatchingPre(0.8, false, RecordPos{}, tt.resolution)
			_, err := m.FindBestResult(source, template)
			var inputErr *InputError
			if !errors.As(err, &inputErr) {
				t.Errorf("期望 InputError，实际 %v", err)
			}
		})
	}
}

func TestPredictArea(t *testing.T) {
	p := NewMultiScaleTemplateMatchingPre(0.8, false, RecordPos{X: 0, Y: 0}, Resolution{Width: 1000, Height: 1000})

	area, ok := p.predictArea(1000, 1000, 40, 40)
	if !ok {
		t.Fatal("预测区域不应为空")
	}
	// 半径取下限 150
	if area != NewRect(350, 350, 300, 300) {
		t.Errorf("预测区域错误: %+v", area)
	}

	// 靠近边缘时裁剪到屏幕内
	p.recordPos = RecordPos{X: -0.5, Y: -0.5}
	area, ok = p.predictArea(1000, 1000, 40, 40)
	if !ok {
		t.Fatal("预测区域不应为空")
	}
	if area.X != 0 || area.Y != 0 || area.Right() > 1000 || area.Bottom() > 1000 {
		t.Errorf("预测区域应裁剪到屏幕内: %+v", area)
	}
}

func TestOrgSize(t *testing.T) {
	got := orgSize(image.Point{X: 10, Y: 20}, 30, 40, 0.5, 0.5)
	if got != NewRect(40, 80, 120, 160) {
		t.Errorf("还原尺寸错误: %+v", got)
	}
}

func TestMultiScaleWithTimeoutCopies(t *testing.T) {
	base := NewMultiScaleTemplateMatching(0.8, false)
	quick := base.WithTimeout(10 * time.Millisecond)
	if base.timeout == quick.timeout {
		t.Error("WithTimeout 不应修改原匹配器")
	}
	withRes := base.WithResolution(Resolution{Width: 1920, Height: 1080})
	if base.resolution.Valid() || !withRes.resolution.Valid() {
		t.Error("WithResolution 应返回副本")
	}
}
