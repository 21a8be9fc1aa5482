package binding

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrAmbiguous 表示要求唯一结果的路径解析到了多个对象。
	ErrAmbiguous = errors.New("binding: path is ambiguous")
	// ErrNotFound 表示要求唯一结果的路径没有解析到任何对象。
	ErrNotFound = errors.New("binding: path not found")
)

var exprPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Ref 指向内容数据中的一个具体对象。Root 是整份数据，用于 $ 开头的绝对路径。
type Ref struct {
	Path  string
	Value any
	Root  any
	Index int // 在所属数组中的位置，-1 表示不来自数组
}

// NewRoot 返回指向整份数据的引用。
func NewRoot(data any) Ref {
	return Ref{Path: "$", Value: data, Root: data, Index: -1}
}

// IsZero 表示没有关联任何内容对象（例如纯字符串生成的节点）。
func (r Ref) IsZero() bool {
	return r.Path == "" && r.Value == nil && r.Root == nil
}

func (r Ref) String() string {
	if r.Path == "" {
		return "<none>"
	}
	return r.Path
}

// Resolve 将 path 相对 from 解析为零个、一个或多个对象。
// 途经数组且未给出下标时按元素展开；终点为数组时每个元素各产出一个引用。
func Resolve(from Ref, path string) ([]Ref, error) {
	path = strings.TrimSpace(path)
	start := from
	switch {
	case path == "" || path == ".":
		return []Ref{from}, nil
	case path == "$":
		return []Ref{NewRoot(from.Root)}, nil
	case strings.HasPrefix(path, "$."):
		start = NewRoot(from.Root)
		path = strings.TrimPrefix(path, "$.")
	}

	current := []Ref{start}
	for _, segment := range strings.Split(path, ".") {
		name, indexes := parseSegment(segment)
		if name == "" && len(indexes) == 0 {
			return nil, fmt.Errorf("binding: 路径 %q 含空段", path)
		}
		var next []Ref
		for _, ref := range current {
			for _, item := range fanOut(ref) {
				if name != "" {
					val, ok := descendMap(item.Value, name)
					if !ok || val == nil {
						continue
					}
					item = Ref{Path: join(item.Path, name), Value: val, Root: item.Root, Index: -1}
				}
				ok := true
				for _, idxStr := range indexes {
					idx, err := strconv.Atoi(idxStr)
					if err != nil {
						return nil, fmt.Errorf("binding: 路径 %q 的下标 %q 不是整数", path, idxStr)
					}
					val, found := descendArray(item.Value, idx)
					if !found {
						ok = false
						break
					}
					item = Ref{Path: fmt.Sprintf("%s[%d]", item.Path, idx), Value: val, Root: item.Root, Index: idx}
				}
				if ok {
					next = append(next, item)
				}
			}
		}
		current = next
		if len(current) == 0 {
			return nil, nil
		}
	}

	var out []Ref
	for _, ref := range current {
		out = append(out, fanOut(ref)...)
	}
	return out, nil
}

// ResolveOne 要求 path 恰好解析到一个对象。
func ResolveOne(from Ref, path string) (Ref, error) {
	refs, err := Resolve(from, path)
	if err != nil {
		return Ref{}, err
	}
	switch len(refs) {
	case 0:
		return Ref{}, fmt.Errorf("%w: %s (相对 %s)", ErrNotFound, path, from)
	case 1:
		return refs[0], nil
	default:
		return Ref{}, fmt.Errorf("%w: %s 解析到 %d 个对象", ErrAmbiguous, path, len(refs))
	}
}

// fanOut 将数组引用展开为逐个元素的引用，其余值原样返回。
func fanOut(ref Ref) []Ref {
	arr, ok := ref.Value.([]any)
	if !ok {
		return []Ref{ref}
	}
	out := make([]Ref, 0, len(arr))
	for i, v := range arr {
		if v == nil {
			continue
		}
		out = append(out, Ref{Path: fmt.Sprintf("%s[%d]", ref.Path, i), Value: v, Root: ref.Root, Index: i})
	}
	return out
}

func join(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}

// Truthy 是内容包含判断：nil、空字符串、空集合、false 与 0 视为不满足。
func Truthy(v any) bool {
	switch c := v.(type) {
	case nil:
		return false
	case bool:
		return c
	case string:
		return strings.TrimSpace(c) != ""
	case float64:
		return c != 0
	case int:
		return c != 0
	case []any:
		return len(c) > 0
	case map[string]any:
		return len(c) > 0
	default:
		return true
	}
}

// Satisfied 判断 path 相对 ref 是否解析到至少一个真值对象。
func Satisfied(ref Ref, path string) bool {
	refs, err := Resolve(ref, path)
	if err != nil {
		return false
	}
	for _, r := range refs {
		if Truthy(r.Value) {
			return true
		}
	}
	return false
}

// Interpolate 替换文本中的 ${path}：先相对当前对象解析，没有结果时回退到整份数据，$. 前缀强制从根解析。
// 没有结果的占位符原样保留；解析到多个对象时返回 ErrAmbiguous。
func (r Ref) Interpolate(text string) (string, error) {
	var firstErr error
	out := exprPattern.ReplaceAllStringFunc(text, func(match string) string {
		path := strings.TrimSpace(exprPattern.FindStringSubmatch(match)[1])
		if path == "" || firstErr != nil {
			return match
		}
		refs, err := Resolve(r, path)
		if err == nil && len(refs) == 0 && !strings.HasPrefix(path, "$") {
			refs, err = Resolve(NewRoot(r.Root), path)
		}
		switch {
		case err != nil:
			firstErr = err
		case len(refs) == 1:
			return format(refs[0].Value)
		case len(refs) > 1:
			firstErr = fmt.Errorf("%w: ${%s} 解析到 %d 个对象", ErrAmbiguous, path, len(refs))
		}
		return match
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func format(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func parseSegment(segment string) (string, []string) {
	name := segment
	indexes := []string{}
	if i := strings.Index(segment, "["); i != -1 {
		name = segment[:i]
		rest := segment[i:]
		for len(rest) > 0 {
			if rest[0] != '[' {
				break
			}
			end := strings.IndexByte(rest, ']')
			if end == -1 {
				break
			}
			indexes = append(indexes, rest[1:end])
			rest = rest[end+1:]
		}
	}
	return name, indexes
}

func descendMap(current any, key string) (any, bool) {
	switch c := current.(type) {
	case map[string]interface{}:
		val, ok := c[key]
		return val, ok
	default:
		return nil, false
	}
}

func descendArray(current any, idx int) (any, bool) {
	switch c := current.(type) {
	case []interface{}:
		if idx < 0 || idx >= len(c) {
			return nil, false
		}
		return c[idx], true
	default:
		return nil, false
	}
}
