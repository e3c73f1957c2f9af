// Package cv 提供图像匹配功能
//
// 支持以下匹配方法:
//   - 模板匹配 (tpl)，支持 findAll
//   - 多尺度模板匹配 (mstpl)，已知录制坐标时只在预测区域内搜索
//   - 带 ignore/focus 区域的掩码模板匹配
//   - SIFT/KAZE/ORB/BRISK/AKAZE 特征点匹配
//
// 匹配器只持有配置，图像在每次调用时传入，可以在多个 goroutine 间复用。
// 未找到时返回 nil 结果和 nil 错误；输入不合法或特征点不足时返回带类型的错误，
// 可用 IsMatchError 判断后换用其他方法。
//
// 基本用法:
//
//	// 在屏幕截图中查找模板
//	pos, err := cv.FindLocation("screen.png", "template.png")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("找到位置: (%d, %d)\n", pos.X, pos.Y)
//
//	// 使用自定义选项
//	pos, err := cv.FindLocation("screen.png", "template.png",
//	    cv.WithTemplateThreshold(0.9),
//	    cv.WithTemplateRGB(true),
//	    cv.WithTemplateMethods(cv.MatchMethodTemplate, cv.MatchMethodSIFT),
//	)
package cv
