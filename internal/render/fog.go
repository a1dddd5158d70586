package render

import (
	qm "github.com/Faultbox/tremor/pkg/math"
)

// Fog is one fog volume's world-space box.
type Fog struct {
	Bounds qm.Bounds
}

// FogSet is the world's fog volumes. Index 0 is reserved for "no fog",
// matching how fog numbers travel through draw surface sorting.
type FogSet []Fog

// FogNum returns the index of the first fog volume whose box overlaps
// the given world-space sphere, or 0 when none does. Each axis can
// reject independently, so most volumes are dismissed after one or two
// comparisons.
func (fs FogSet) FogNum(origin qm.Vec3, radius float32) int {
	for i := 1; i < len(fs); i++ {
		b := &fs[i].Bounds
		lo := [3]float32{b.Min.X, b.Min.Y, b.Min.Z}
		hi := [3]float32{b.Max.X, b.Max.Y, b.Max.Z}
		o := [3]float32{origin.X, origin.Y, origin.Z}

		j := 0
		for ; j < 3; j++ {
			if o[j]-radius >= hi[j] {
				break
			}
			if o[j]+radius <= lo[j] {
				break
			}
		}
		if j == 3 {
			return i
		}
	}
	return 0
}
