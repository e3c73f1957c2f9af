package cv

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

// writeTemplate 把模板保存到临时目录并返回路径
func writeTemplate(t *testing.T, img gocv.Mat) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "template.png")
	if err := WriteImage(path, img); err != nil {
		t.Fatalf("保存模板失败: %v", err)
	}
	return path
}

func TestTargetPos(t *testing.T) {
	result := newMatchResult(NewRect(10, 20, 30, 40), 0.9)

	tests := []struct {
		pos  TargetPos
		want Point
	}{
		{0, Point{X: 25, Y: 40}},
		{1, Point{X: 10, Y: 20}},
		{3, Point{X: 40, Y: 20}},
		{5, Point{X: 25, Y: 40}},
		{6, Point{X: 40, Y: 40}},
		{7, Point{X: 10, Y: 60}},
		{9, Point{X: 40, Y: 60}},
	}
	for _, tt := range tests {
		if got := tt.pos.Position(result); got != tt.want {
			t.Errorf("TargetPos(%d) = %+v, 期望 %+v", tt.pos, got, tt.want)
		}
	}

	if got := TargetPos(1).Position(nil); got != (Point{}) {
		t.Errorf("nil 结果应返回零值，实际 %+v", got)
	}
}

func TestFindLocation(t *testing.T) {
	source, template := sceneWithTemplate(t, 240, 180, 71, NewRect(150, 60, 40, 30))
	defer source.Close()
	defer template.Close()
	path := writeTemplate(t, template)

	pos, err := FindLocation(source, path, WithTemplateMethods(MatchMethodTemplate))
	if err != nil {
		t.Fatalf("查找失败: %v", err)
	}
	if pos == nil {
		t.Fatal("应找到模板")
	}
	if *pos != (Point{X: 170, Y: 75}) {
		t.Errorf("位置错误: %+v", *pos)
	}

	pos, err = FindLocation(source, path,
		WithTemplateMethods(MatchMethodTemplate), WithTemplateTargetPos(1))
	if err != nil || pos == nil {
		t.Fatalf("查找失败: %v", err)
	}
	if *pos != (Point{X: 150, Y: 60}) {
		t.Errorf("左上角位置错误: %+v", *pos)
	}
}

func TestTemplateMethodFallback(t *testing.T) {
	source, template := sceneWithTemplate(t, 200, 200, 72, NewRect(90, 40, 20, 20))
	defer source.Close()
	defer template.Close()

	// ORB 在 20x20 的模板上取不到特征点，应换用模板匹配
	tmpl := NewTemplate(writeTemplate(t, template), WithTemplateMethods(MatchMethodORB, MatchMethodTemplate))
	defer tmpl.Close()

	result, err := tmpl.MatchResultIn(source)
	if err != nil {
		t.Fatalf("匹配失败: %v", err)
	}
	if result == nil {
		t.Fatal("应回退到模板匹配并找到结果")
	}
	if result.Rectangle.TopLeft != (Point{X: 90, Y: 40}) {
		t.Errorf("左上角错误: %+v", result.Rectangle.TopLeft)
	}
}

func TestTemplateUnknownMethod(t *testing.T) {
	source, template := sceneWithTemplate(t, 100, 100, 73, NewRect(10, 10, 20, 20))
	defer source.Close()
	defer template.Close()

	tmpl := NewTemplate(writeTemplate(t, template), WithTemplateMethods("surf"))
	defer tmpl.Close()

	if _, err := tmpl.MatchResultIn(source); err == nil {
		t.Error("未知方法应返回错误")
	}
}

func TestTemplateResolution(t *testing.T) {
	source, template := sceneWithTemplate(t, 300, 300, 74, NewRect(100, 80, 60, 60))
	defer source.Close()
	defer template.Close()

	// 在 2 倍分辨率下录制的模板
	recorded := ResizeImage(template, 120, 120)
	defer recorded.Close()

	tmpl := NewTemplate(writeTemplate(t, recorded),
		WithTemplateMethods(MatchMethodTemplate),
		WithTemplateThreshold(0.7),
		WithTemplateResolution(600, 600),
	)
	defer tmpl.Close()

	result, err := tmpl.MatchResultIn(source)
	if err != nil {
		t.Fatalf("匹配失败: %v", err)
	}
	if result == nil {
		t.Fatal("缩放后应能找到模板")
	}
	if !nearPoint(result.Rectangle.TopLeft, Point{X: 100, Y: 80}, 2) {
		t.Errorf("左上角错误: %+v", result.Rectangle.TopLeft)
	}
}

func TestTemplateMaskedMatch(t *testing.T) {
	source, template := sceneWithTemplate(t, 300, 300, 75, NewRect(30, 200, 60, 60))
	defer source.Close()
	defer template.Close()

	tmpl := NewTemplate(writeTemplate(t, template),
		WithTemplateMask([]Rect{NewRect(30, 30, 30, 30)}, nil))
	defer tmpl.Close()

	result, err := tmpl.MatchResultIn(source)
	if err != nil {
		t.Fatalf("匹配失败: %v", err)
	}
	if result == nil {
		t.Fatal("应找到模板")
	}
	if result.Rectangle.TopLeft != (Point{X: 30, Y: 200}) {
		t.Errorf("左上角错误: %+v", result.Rectangle.TopLeft)
	}
}

func TestTemplateMatchAllIn(t *testing.T) {
	scene, spots, patch := threePatchScene(t)
	source := toMat(t, scene)
	defer source.Close()
	template := toMat(t, patch)
	defer template.Close()

	tmpl := NewTemplate(writeTemplate(t, template), WithTemplateThreshold(0.9))
	defer tmpl.Close()

	results, err := tmpl.MatchAllIn(source)
	if err != nil {
		t.Fatalf("查找所有匹配失败: %v", err)
	}
	if len(results) != len(spots) {
		t.Errorf("期望 %d 个结果，实际 %d", len(spots), len(results))
	}
}

func TestTemplateMissingFile(t *testing.T) {
	source := toMat(t, newScene(100, 100, 76))
	defer source.Close()

	tmpl := NewTemplate(filepath.Join(t.TempDir(), "missing.png"))
	defer tmpl.Close()
	if _, err := tmpl.MatchIn(source); err == nil {
		t.Error("模板文件不存在应返回错误")
	}
}

func TestTemplateCurrentPath(t *testing.T) {
	source, template := sceneWithTemplate(t, 240, 180, 71, NewRect(150, 60, 40, 30))
	defer source.Close()
	defer template.Close()
	dir := filepath.Dir(writeTemplate(t, template))

	SetCurrentPath(dir)
	defer SetCurrentPath("")
	if CurrentPath() != dir {
		t.Fatalf("基准目录设置失败: %s", CurrentPath())
	}

	// 匹配过程中并发修改基准目录
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			SetCurrentPath(dir)
		}
	}()

	for i := 0; i < 3; i++ {
		tmpl := NewTemplate("template.png", WithTemplateMethods(MatchMethodTemplate))
		pos, err := tmpl.MatchIn(source)
		tmpl.Close()
		if err != nil {
			t.Fatalf("相对路径模板匹配失败: %v", err)
		}
		if pos == nil || *pos != (Point{X: 170, Y: 75}) {
			t.Errorf("位置错误: %v", pos)
		}
	}
	wg.Wait()
}

func TestTemplateString(t *testing.T) {
	if got := NewTemplate("data:image/png;base64,AAAA").String(); got != "Template(data-url)" {
		t.Errorf("data URL 的字符串表示错误: %s", got)
	}
	if got := NewTemplate("button.png").String(); got != "Template(button.png)" {
		t.Errorf("字符串表示错误: %s", got)
	}
}

func TestMatchLoop(t *testing.T) {
	source, template := sceneWithTemplate(t, 200, 150, 77, NewRect(60, 50, 30, 30))
	defer source.Close()
	defer template.Close()
	path := writeTemplate(t, template)

	screenshot := func() (gocv.Mat, error) {
		return source.Clone(), nil
	}

	t.Run("立即找到", func(t *testing.T) {
		pos, err := MatchLoop(context.Background(), screenshot, path, 10*time.Millisecond,
			WithTemplateMethods(MatchMethodTemplate))
		if err != nil {
			t.Fatalf("循环匹配失败: %v", err)
		}
		if pos == nil || *pos != (Point{X: 75, Y: 65}) {
			t.Errorf("位置错误: %+v", pos)
		}
	})

	t.Run("超时", func(t *testing.T) {
		other := toMat(t, newScene(200, 150, 78))
		defer other.Close()
		blank := func() (gocv.Mat, error) { return other.Clone(), nil }

		_, err := MatchLoop(context.Background(), blank, path, 20*time.Millisecond,
			WithTemplateMethods(MatchMethodTemplate),
			WithTemplateThreshold(0.99),
			WithTemplateTimeout(150*time.Millisecond))
		if !errors.Is(err, ErrMatchTimeout) {
			t.Errorf("期望 ErrMatchTimeout，实际 %v", err)
		}
	})

	t.Run("取消", func(t *testing.T) {
		other := toMat(t, newScene(200, 150, 79))
		defer other.Close()
		blank := func() (gocv.Mat, error) { return other.Clone(), nil }

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		_, err := MatchLoop(ctx, blank, path, 20*time.Millisecond,
			WithTemplateMethods(MatchMethodTemplate), WithTemplateThreshold(0.99))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("期望 context.Canceled，实际 %v", err)
		}
	})

	t.Run("截图失败", func(t *testing.T) {
		failing := func() (gocv.Mat, error) { return gocv.Mat{}, errors.New("no display") }
		if _, err := MatchLoop(context.Background(), failing, path, 0); err == nil {
			t.Error("截图失败应返回错误")
		}
	})
}
