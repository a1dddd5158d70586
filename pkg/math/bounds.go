package math

import "github.com/chewxy/math32"

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min, Max Vec3
}

// ClearBounds returns an inverted box that any AddPoint call will reset.
func ClearBounds() Bounds {
	return Bounds{
		Min: Vec3{math32.MaxFloat32, math32.MaxFloat32, math32.MaxFloat32},
		Max: Vec3{-math32.MaxFloat32, -math32.MaxFloat32, -math32.MaxFloat32},
	}
}

// AddPoint grows the box to contain p.
func (b *Bounds) AddPoint(p Vec3) {
	b.Min = MinV(b.Min, p)
	b.Max = MaxV(b.Max, p)
}

// Union returns the smallest box containing both b and other.
func (b Bounds) Union(other Bounds) Bounds {
	return Bounds{
		Min: MinV(b.Min, other.Min),
		Max: MaxV(b.Max, other.Max),
	}
}

// Center returns the midpoint of the box.
func (b Bounds) Center() Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Radius returns the distance from the center to a corner.
func (b Bounds) Radius() float32 {
	return b.Max.Sub(b.Center()).Length()
}
