package cv

import (
	"fmt"
	"image"
	"strconv"
	"strings"
)

// Region is a rectangular sub-window (left, top, right, bottom) of a frame.
// Right and bottom are exclusive.
type Region struct {
	X1, Y1, X2, Y2 int
}

type Point struct {
	X, Y int
}

// NewRegion creates a new region
func NewRegion(x1, y1, x2, y2 int) Region {
	return Region{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// Contains checks if a point is within the region
func (r Region) Contains(p Point) bool {
	return p.X >= r.X1 && p.X < r.X2 && p.Y >= r.Y1 && p.Y < r.Y2
}

// Width returns the width of the region
func (r Region) Width() int {
	return r.X2 - r.X1
}

// Height returns the height of the region
func (r Region) Height() int {
	return r.Y2 - r.Y1
}

// Empty reports whether the region has no area
func (r Region) Empty() bool {
	return r.Width() <= 0 || r.Height() <= 0
}

// Rectangle converts Region to image.Rectangle
func (r Region) Rectangle() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

func (r Region) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", r.X1, r.Y1, r.X2, r.Y2)
}

// ParseRegion parses "left,top,right,bottom"
func ParseRegion(s string) (Region, error) {
	v, err := parseInts(s, 4)
	if err != nil {
		return Region{}, fmt.Errorf("parse region %q: %w", s, err)
	}
	r := NewRegion(v[0], v[1], v[2], v[3])
	if r.Empty() {
		return Region{}, fmt.Errorf("parse region %q: empty region", s)
	}
	return r, nil
}

// ParsePoint parses "x,y"
func ParsePoint(s string) (Point, error) {
	v, err := parseInts(s, 2)
	if err != nil {
		return Point{}, fmt.Errorf("parse point %q: %w", s, err)
	}
	return Point{X: v[0], Y: v[1]}, nil
}

func parseInts(s string, n int) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma separated values, got %d", n, len(parts))
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
