package cv

import (
	"context"
	"image"
	"image/color"
	"testing"
)

// BenchmarkAlgorithmComparison 各匹配方法的耗时对比
func BenchmarkAlgorithmComparison(b *testing.B) {
	scene := newScene(640, 480, 91)
	drawText(b, scene, 200, 220, "Benchmark 42", 28, color.Black)
	source := toMat(b, scene)
	defer source.Close()
	template := cropMat(b, source, NewRect(190, 210, 200, 50))
	defer template.Close()

	matchers := []Matcher{
		NewTemplateMatching(0.8, false),
		NewMultiScaleTemplateMatching(0.8, false),
		NewMaskTemplateMatching(0.8, false, MaskSpec{Ignore: []Rect{NewRect(0, 0, 50, 25)}}),
		NewSIFTMatching(0.8, false),
		NewAKAZEMatching(0.8, false),
		NewBRISKMatching(0.8, false),
	}

	for _, m := range matchers {
		b.Run(m.Name(), func(b *testing.B) {
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = m.FindBestResultContext(context.Background(), source, template)
			}
		})
	}
}

// BenchmarkTemplateFindAll 多目标模板匹配
func BenchmarkTemplateFindAll(b *testing.B) {
	scene := newScene(640, 480, 92)
	patch := newScene(120, 120, 93).SubImage(image.Rect(40, 40, 70, 70))
	for _, p := range []image.Point{{X: 20, Y: 20}, {X: 300, Y: 100}, {X: 500, Y: 400}} {
		pastePatch(scene, patch, p)
	}
	source := toMat(b, scene)
	defer source.Close()
	template := toMat(b, patch)
	defer template.Close()

	matcher := NewTemplateMatching(0.9, false)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = matcher.FindAllResults(source, template)
	}
}
