package render

import (
	qm "github.com/Faultbox/tremor/pkg/math"
)

// Plane is a frustum side in point-normal form: points with
// dot(p, Normal) > Dist are on the visible side.
type Plane struct {
	Normal qm.Vec3
	Dist   float32
}

// Frustum is a set of clip planes expressed in the model's local space.
// The caller transforms the view frustum into entity space before
// culling, so bounds can be tested without transforming every corner.
type Frustum []Plane

// CullSphere classifies a bounding sphere.
func (f Frustum) CullSphere(center qm.Vec3, radius float32) CullResult {
	mightBeClipped := false
	for i := range f {
		dist := center.Dot(f[i].Normal) - f[i].Dist
		if dist < -radius {
			return CullOut
		}
		if dist <= radius {
			mightBeClipped = true
		}
	}
	if mightBeClipped {
		return CullClip
	}
	return CullIn
}

// CullBounds classifies an axis-aligned box by testing its corners
// against each plane.
func (f Frustum) CullBounds(b qm.Bounds) CullResult {
	var corners [8]qm.Vec3
	for i := range corners {
		corners[i] = qm.Vec3{X: b.Min.X, Y: b.Min.Y, Z: b.Min.Z}
		if i&1 != 0 {
			corners[i].X = b.Max.X
		}
		if i&2 != 0 {
			corners[i].Y = b.Max.Y
		}
		if i&4 != 0 {
			corners[i].Z = b.Max.Z
		}
	}

	anyBack := false
	for i := range f {
		front := false
		back := false
		for _, c := range corners {
			if c.Dot(f[i].Normal) > f[i].Dist {
				front = true
			} else {
				back = true
			}
		}
		if !front {
			return CullOut
		}
		if back {
			anyBack = true
		}
	}
	if !anyBack {
		return CullIn
	}
	return CullClip
}
