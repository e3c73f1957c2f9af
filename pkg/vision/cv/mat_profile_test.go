//go:build matprofile

package cv

import (
	"testing"

	"gocv.io/x/gocv"
)

// 需要 -tags matprofile 运行，检查匹配过程中创建的 Mat 都已释放
func TestMatchingReleasesMats(t *testing.T) {
	source, template := sceneWithTemplate(t, 200, 200, 81, NewRect(60, 70, 40, 40))
	defer source.Close()
	defer template.Close()

	before := gocv.MatProfile.Count()

	if _, err := NewTemplateMatching(0.8, false).FindBestResult(source, template); err != nil {
		t.Fatalf("模板匹配失败: %v", err)
	}
	if _, err := NewMultiScaleTemplateMatching(0.8, false).FindBestResult(source, template); err != nil {
		t.Fatalf("多尺度匹配失败: %v", err)
	}
	if _, err := CalCcoeffConfidence(template, template); err != nil {
		t.Fatalf("计算置信度失败: %v", err)
	}

	if after := gocv.MatProfile.Count(); after != before {
		t.Errorf("存在未释放的 Mat: %d -> %d", before, after)
	}
}
