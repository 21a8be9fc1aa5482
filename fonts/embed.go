package fonts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-fonts/latin-modern/lmroman10bold"
	"github.com/go-fonts/latin-modern/lmroman10italic"
	"github.com/go-fonts/latin-modern/lmroman10regular"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

// 内置字体表，设计文件中写作 src = "builtin:<name>"。
var builtin = map[string][]byte{
	"regular":      goregular.TTF,
	"bold":         gobold.TTF,
	"italic":       goitalic.TTF,
	"bolditalic":   gobolditalic.TTF,
	"mono":         gomono.TTF,
	"serif":        lmroman10regular.TTF,
	"serif-bold":   lmroman10bold.TTF,
	"serif-italic": lmroman10italic.TTF,
}

// Load 返回内置字体的字节数据，name 可写为 "builtin:bold"、"embed:bold" 或直接 "bold"。
func Load(name string) ([]byte, error) {
	name = strings.TrimPrefix(name, "builtin:")
	name = strings.TrimPrefix(name, "built-in:")
	name = strings.TrimPrefix(name, "embed:")
	key := strings.ToLower(strings.ReplaceAll(name, "_", "-"))
	if key == "" {
		key = "regular"
	}
	data, ok := builtin[key]
	if !ok {
		return nil, fmt.Errorf("未知的内置字体 %q（可用: %s）", name, strings.Join(Names(), ", "))
	}
	return data, nil
}

// Names 列出全部内置字体名。
func Names() []string {
	out := make([]string, 0, len(builtin))
	for name := range builtin {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
