package canvasrenderer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// placement 是图片在盒子内的实际绘制位置（mm）与分辨率（像素/mm）。
type placement struct {
	X, Y float64
	DPMM float64
	Img  image.Image
}

func (r *Renderer) loadImage(src string) (image.Image, error) {
	r.imageMu.Lock()
	defer r.imageMu.Unlock()
	if img, ok := r.images[src]; ok {
		return img, nil
	}

	var (
		img image.Image
		err error
	)
	switch {
	case strings.HasPrefix(src, "built-in:") || strings.HasPrefix(src, "builtin:"):
		name := strings.TrimPrefix(strings.TrimPrefix(src, "built-in:"), "builtin:")
		blob, ok := r.imageBlobs[name]
		if !ok {
			return nil, fmt.Errorf("找不到内置图片资源 builtin:%s", name)
		}
		img, _, err = image.Decode(bytes.NewReader(blob))
		if err != nil {
			return nil, fmt.Errorf("解码内置图片 builtin:%s 失败: %w", name, err)
		}
	default:
		if r.baseDir == "" && !filepath.IsAbs(src) {
			return nil, fmt.Errorf("未指定资源目录时不允许直接使用路径：%s（请改用 builtin:）", src)
		}
		path := src
		if !filepath.IsAbs(path) {
			path = filepath.Join(r.baseDir, path)
		}
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("读取图片 %s 失败: %w", src, err)
		}
		img, _, err = image.Decode(file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("解码图片 %s 失败: %w", src, err)
		}
	}
	r.images[src] = img
	return img, nil
}

// fitImage 按 fit 模式把图片放进 x,y,w,h 描述的盒子：
// contain（默认）保持比例完整放入并居中，cover 保持比例裁剪铺满，fill 拉伸铺满。
func fitImage(img image.Image, fit string, x, y, w, h float64) placement {
	b := img.Bounds()
	pw, ph := float64(b.Dx()), float64(b.Dy())
	if pw <= 0 || ph <= 0 || w <= 0 || h <= 0 {
		return placement{X: x, Y: y, DPMM: 1, Img: img}
	}

	switch strings.ToLower(fit) {
	case "fill", "stretch":
		// 按盒子比例重采样，使单一分辨率下正好铺满
		tw := int(pw + 0.5)
		th := int(pw*h/w + 0.5)
		if th < 1 {
			th = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, tw, th))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
		return placement{X: x, Y: y, DPMM: float64(tw) / w, Img: dst}
	case "cover":
		scale := pw / w
		if ph/h < scale {
			scale = ph / h
		}
		cw, ch := int(w*scale+0.5), int(h*scale+0.5)
		x0 := b.Min.X + (b.Dx()-cw)/2
		y0 := b.Min.Y + (b.Dy()-ch)/2
		return placement{X: x, Y: y, DPMM: scale, Img: crop(img, image.Rect(x0, y0, x0+cw, y0+ch))}
	default:
		scale := pw / w
		if ph/h > scale {
			scale = ph / h
		}
		dw, dh := pw/scale, ph/scale
		return placement{X: x + (w-dw)/2, Y: y + (h-dh)/2, DPMM: scale, Img: img}
	}
}

func crop(img image.Image, rect image.Rectangle) image.Image {
	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	if s, ok := img.(subImager); ok {
		return s.SubImage(rect)
	}
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	xdraw.Draw(dst, dst.Bounds(), img, rect.Min, xdraw.Src)
	return dst
}

// withOpacity 返回按 opacity 衰减 alpha 之后的副本，opacity >= 1 时原样返回。
func withOpacity(img image.Image, opacity float64) image.Image {
	if opacity >= 1 || opacity < 0 {
		return img
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	mask := image.NewUniform(color.Alpha{A: uint8(opacity*255 + 0.5)})
	xdraw.DrawMask(dst, dst.Bounds(), img, b.Min, mask, image.Point{}, xdraw.Over)
	return dst
}
