package cv

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ReadImage 读取图像文件
// 支持 data:image/...;base64, 形式的内联图像
func ReadImage(filename string) (gocv.Mat, error) {
	if strings.HasPrefix(filename, "data:image/") {
		return decodeDataURL(filename)
	}
	mat := gocv.IMRead(filename, gocv.IMReadColor)
	if mat.Empty() {
		return mat, fmt.Errorf("无法读取图像: %s", filename)
	}
	return mat, nil
}

// ReadImageGray 读取灰度图像
func ReadImageGray(filename string) (gocv.Mat, error) {
	mat := gocv.IMRead(filename, gocv.IMReadGrayScale)
	if mat.Empty() {
		return mat, fmt.Errorf("无法读取图像: %s", filename)
	}
	return mat, nil
}

// WriteImage 保存图像文件
func WriteImage(filename string, img gocv.Mat) error {
	// 确保目录存在
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	if ok := gocv.IMWrite(filename, img); !ok {
		return fmt.Errorf("保存图像失败: %s", filename)
	}
	return nil
}

// DecodeImage 解码内存中的图像数据
// 优先走 OpenCV，失败时回退到 image.Decode（支持 bmp/webp/tiff）
func DecodeImage(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.NewMat(), &InputError{Reason: "图像数据为空"}
	}
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err == nil && !mat.Empty() {
		return mat, nil
	}
	mat.Close()

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("图像解码失败: %w", err)
	}
	return ImageToMat(img)
}

func decodeDataURL(s string) (gocv.Mat, error) {
	idx := strings.Index(s, ",")
	if idx < 0 {
		return gocv.NewMat(), &InputError{Reason: "data URL 格式错误"}
	}
	data, err := base64.StdEncoding.DecodeString(s[idx+1:])
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("base64 解码失败: %w", err)
	}
	return DecodeImage(data)
}

// ToGray 转换为灰度图
func ToGray(src gocv.Mat) gocv.Mat {
	if src.Channels() == 1 {
		return src.Clone()
	}
	dst := gocv.NewMat()
	if src.Channels() == 4 {
		gocv.CvtColor(src, &dst, gocv.ColorBGRAToGray)
		return dst
	}
	gocv.CvtColor(src, &dst, gocv.ColorBGRToGray)
	return dst
}

// ToBGR 统一为三通道 BGR
func ToBGR(src gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	switch src.Channels() {
	case 1:
		gocv.CvtColor(src, &dst, gocv.ColorGrayToBGR)
	case 4:
		gocv.CvtColor(src, &dst, gocv.ColorBGRAToBGR)
	default:
		src.CopyTo(&dst)
	}
	return dst
}

// GetResolution 获取图像分辨率 (width, height)
func GetResolution(img gocv.Mat) (int, int) {
	return img.Cols(), img.Rows()
}

// CropImage 裁剪图像，区域会先裁剪到图像范围内
func CropImage(img gocv.Mat, rect Rect) (gocv.Mat, error) {
	clipped := rect.Clip(img.Cols(), img.Rows())
	if clipped.Empty() {
		return gocv.NewMat(), &InputError{
			Reason:     fmt.Sprintf("裁剪区域为空: %+v", rect),
			SourceSize: [2]int{img.Cols(), img.Rows()},
		}
	}

	region := img.Region(clipped.ImageRect())
	defer region.Close()
	return region.Clone(), nil
}

// ResizeImage 调整图像大小
func ResizeImage(img gocv.Mat, width, height int) gocv.Mat {
	dst := gocv.NewMat()
	gocv.Resize(img, &dst, image.Point{X: max(width, 1), Y: max(height, 1)}, 0, 0, gocv.InterpolationLinear)
	return dst
}

// RotateImage 旋转图像
func RotateImage(img gocv.Mat, angle float64) gocv.Mat {
	center := image.Point{X: img.Cols() / 2, Y: img.Rows() / 2}
	rotMat := gocv.GetRotationMatrix2D(center, angle, 1.0)
	defer rotMat.Close()

	dst := gocv.NewMat()
	gocv.WarpAffine(img, &dst, rotMat, image.Point{X: img.Cols(), Y: img.Rows()})
	return dst
}

// ImageToMat 将 image.Image 转换为 gocv.Mat
// ImageToMatRGB 输出的已经是 OpenCV 的 BGR 排列
func ImageToMat(img image.Image) (gocv.Mat, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("图像转换失败: %w", err)
	}
	return mat, nil
}

// MatToImage 将 gocv.Mat 转换为 image.Image
func MatToImage(mat gocv.Mat) (image.Image, error) {
	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("Mat 转换失败: %w", err)
	}
	return img, nil
}

// LoadImageInput 加载图像输入
// 支持 string (文件路径或 data URL)、[]byte、io.Reader、image.Image、gocv.Mat
func LoadImageInput(input interface{}) (gocv.Mat, error) {
	switch v := input.(type) {
	case string:
		return ReadImage(v)
	case []byte:
		return DecodeImage(v)
	case gocv.Mat:
		return v.Clone(), nil
	case *gocv.Mat:
		return v.Clone(), nil
	case image.Image:
		return ImageToMat(v)
	case io.Reader:
		data, err := io.ReadAll(v)
		if err != nil {
			return gocv.Mat{}, fmt.Errorf("读取图像数据失败: %w", err)
		}
		return DecodeImage(data)
	default:
		return gocv.Mat{}, fmt.Errorf("不支持的图像输入类型: %T", input)
	}
}

// matToFloats 把 CV_32F 单通道结果矩阵复制为 Go 切片
// 非有限值替换为 -Inf，调用方据此视为无效
func matToFloats(m gocv.Mat) []float32 {
	rows, cols := m.Rows(), m.Cols()
	out := make([]float32, rows*cols)

	if data, err := m.DataPtrFloat32(); err == nil && len(data) >= len(out) {
		copy(out, data)
	} else {
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				out[y*cols+x] = m.GetFloatAt(y, x)
			}
		}
	}

	for i, v := range out {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			out[i] = float32(math.Inf(-1))
		}
	}
	return out
}

// finiteOrZero 非有限值按 0 处理
func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// abs 返回绝对值
func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
