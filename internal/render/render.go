// Package render evaluates animated models per frame: culling and fog
// classification, skinned and morphed vertex generation, and attachment
// tag resolution. It is pure computation over parsed model data; nothing
// here touches the GPU.
package render

import (
	qm "github.com/Faultbox/tremor/pkg/math"
)

// CullResult classifies a volume against the view frustum.
type CullResult int

const (
	// CullIn means completely inside every frustum plane.
	CullIn CullResult = iota
	// CullClip means straddling at least one plane.
	CullClip
	// CullOut means completely outside, nothing to draw.
	CullOut
)

func (c CullResult) String() string {
	switch c {
	case CullIn:
		return "in"
	case CullClip:
		return "clip"
	case CullOut:
		return "out"
	}
	return "unknown"
}

// Entity flags.
const (
	// FlagThirdPerson marks surfaces that belong to the viewer's own
	// model: skipped in the main view, drawn in portals and mirrors.
	FlagThirdPerson = 1 << iota
	// FlagWrapFrames folds frame numbers back into range with a modulo
	// instead of the usual clamp to zero.
	FlagWrapFrames
	// FlagInPortal marks that the current view is a portal or mirror.
	FlagInPortal
)

// Entity is one model instance to evaluate: its animation state and
// placement. Frame fields may arrive out of range from game code and are
// sanitized once per add pass.
type Entity struct {
	Frame    int
	OldFrame int
	// Backlerp is the share of OldFrame in the blend: 0 shows Frame
	// exactly, 1 shows OldFrame exactly.
	Backlerp float32
	Origin   qm.Vec3
	Flags    uint32
	// NonNormalizedAxes disables sphere culling, whose radius would be
	// wrong under scaled axes.
	NonNormalizedAxes bool
	// Skin overrides surface shaders by surface name when non-nil.
	Skin *Skin
	// CustomShader forces one shader for every surface when nonzero.
	CustomShader int
}

// Orientation is a resolved attachment point: an origin and three axis
// vectors in model space.
type Orientation struct {
	Origin qm.Vec3
	Axis   [3]qm.Vec3
}

// IdentityOrientation is the sentinel returned for missing tags.
func IdentityOrientation() Orientation {
	return Orientation{
		Axis: [3]qm.Vec3{{X: 1}, {Y: 1}, {Z: 1}},
	}
}

// SkinSurface maps one surface name to a shader handle.
type SkinSurface struct {
	Name   string
	Shader int
}

// Skin is a set of per-surface shader overrides.
type Skin struct {
	Surfaces []SkinSurface
}

// FindShader returns the override for a surface name, or defaultShader
// when the skin does not cover it.
func (s *Skin) FindShader(name string, defaultShader int) int {
	for i := range s.Surfaces {
		if s.Surfaces[i].Name == name {
			return s.Surfaces[i].Shader
		}
	}
	return defaultShader
}

// personalModel reports whether the entity's surfaces should be skipped
// entirely: first-person arms and similar are hidden from the main view
// but still drawn in portal views.
func personalModel(ent *Entity) bool {
	return ent.Flags&FlagThirdPerson != 0 && ent.Flags&FlagInPortal == 0
}
