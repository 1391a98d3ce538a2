package geometry

import "fmt"

// WindowPoint is a point relative to a window's top-left corner.
type WindowPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ScreenPoint is a point in absolute screen coordinates.
type ScreenPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p WindowPoint) String() string { return fmt.Sprintf("window(%g,%g)", p.X, p.Y) }
func (p ScreenPoint) String() string { return fmt.Sprintf("screen(%g,%g)", p.X, p.Y) }

// Size describes a width and height.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect describes a window frame: origin in screen coordinates plus size.
type Rect struct {
	Origin ScreenPoint `json:"origin"`
	Size   Size        `json:"size"`
}

// NewRect builds a Rect from integer geometry as reported by the window system.
func NewRect(x, y, width, height int) Rect {
	return Rect{
		Origin: ScreenPoint{X: float64(x), Y: float64(y)},
		Size:   Size{Width: float64(width), Height: float64(height)},
	}
}

// Contains reports whether p lies inside the rectangle.
func (r Rect) Contains(p ScreenPoint) bool {
	return p.X >= r.Origin.X && p.X < r.Origin.X+r.Size.Width &&
		p.Y >= r.Origin.Y && p.Y < r.Origin.Y+r.Size.Height
}

// Center returns the window-relative center of the rectangle.
func (r Rect) Center() WindowPoint {
	return WindowPoint{X: r.Size.Width / 2, Y: r.Size.Height / 2}
}

// Overlap returns the area shared by r and o.
func (r Rect) Overlap(o Rect) float64 {
	left := max(r.Origin.X, o.Origin.X)
	top := max(r.Origin.Y, o.Origin.Y)
	right := min(r.Origin.X+r.Size.Width, o.Origin.X+o.Size.Width)
	bottom := min(r.Origin.Y+r.Size.Height, o.Origin.Y+o.Size.Height)
	if right <= left || bottom <= top {
		return 0
	}
	return (right - left) * (bottom - top)
}
