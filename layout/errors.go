package layout

import (
	"errors"
	"fmt"
)

var (
	ErrMissingStyle    = errors.New("layout: missing style")
	ErrMissingFont     = errors.New("layout: missing font")
	ErrUnsupportedKind = errors.New("layout: unsupported element")
	ErrBadRule         = errors.New("layout: malformed page-break rule")
	ErrMissingTarget   = errors.New("layout: condition target not found")
	ErrInvariant       = errors.New("layout: tree invariant violated")
	ErrConflict        = errors.New("layout: conflicting conditions")
	ErrTooManyPages    = errors.New("layout: page limit exceeded")
)

// DesignError 把设计文件中的出错位置与底层错误绑在一起，方便定位模板元素。
type DesignError struct {
	Element  string
	Origin   string
	Tracking int
	Err      error
}

func (e *DesignError) Error() string {
	if e.Origin != "" {
		return fmt.Sprintf("%s (%s, tracking %d): %v", e.Element, e.Origin, e.Tracking, e.Err)
	}
	return fmt.Sprintf("%s (tracking %d): %v", e.Element, e.Tracking, e.Err)
}

func (e *DesignError) Unwrap() error { return e.Err }

func designErr(n *Node, err error) error {
	if n == nil {
		return err
	}
	return &DesignError{Element: n.Kind.String(), Origin: n.Origin, Tracking: n.Tracking, Err: err}
}
