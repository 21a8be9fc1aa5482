package renderer

import "github.com/ByLCY/quire/layout"

// Renderer 将布局结果输出为最终文件，例如 PDF 或 HTML。
// Render 返回生成的二进制数据以及可能的错误。
type Renderer interface {
	Render(result *layout.Result) ([]byte, error)
}

// PageRenderer 为每一页单独输出一份文件（例如 SVG）。
type PageRenderer interface {
	RenderPages(result *layout.Result) ([][]byte, error)
}
