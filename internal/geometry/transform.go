package geometry

import "math"

// WindowToScreen translates a window-relative point into screen space using
// the frame origin. No scaling is applied.
func WindowToScreen(p WindowPoint, frame Rect) ScreenPoint {
	return ScreenPoint{X: p.X + frame.Origin.X, Y: p.Y + frame.Origin.Y}
}

// ScreenToWindow is the exact inverse of WindowToScreen.
func ScreenToWindow(p ScreenPoint, frame Rect) WindowPoint {
	return WindowPoint{X: p.X - frame.Origin.X, Y: p.Y - frame.Origin.Y}
}

// Lerp interpolates between a and b; t is clamped to [0, 1].
func Lerp(a, b ScreenPoint, t float64) ScreenPoint {
	t = math.Max(0, math.Min(1, t))
	return ScreenPoint{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}
}

// Round returns the nearest integer pixel position.
func (p ScreenPoint) Round() (int, int) {
	return int(math.Round(p.X)), int(math.Round(p.Y))
}
