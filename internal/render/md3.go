package render

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/tremor/pkg/formats"
	qm "github.com/Faultbox/tremor/pkg/math"
)

// Packed normals index a 256-entry angle table: the high byte is the
// latitude, the low byte the longitude.
var (
	latLngSin [256]float32
	latLngCos [256]float32
)

func init() {
	for i := range latLngSin {
		a := float32(i) * (2 * math32.Pi / 256)
		latLngSin[i] = math32.Sin(a)
		latLngCos[i] = math32.Cos(a)
	}
}

// DecodeNormal expands a latitude/longitude packed normal.
func DecodeNormal(packed uint16) qm.Vec3 {
	lat := (packed >> 8) & 0xff
	lng := packed & 0xff
	return qm.Vec3{
		X: latLngCos[lat] * latLngSin[lng],
		Y: latLngSin[lat] * latLngSin[lng],
		Z: latLngCos[lng],
	}
}

// MD3Cull classifies the whole model against the frustum using the
// keyframe bounds: the cheap sphere test first, the box only when the
// spheres straddle the planes.
func MD3Cull(m *formats.MD3, ent *Entity, fr Frustum) CullResult {
	newFrame := &m.Frames[ent.Frame]
	oldFrame := &m.Frames[ent.OldFrame]

	// sphere cull only when axes are normalized, a scaled entity would
	// need a scaled radius
	if !ent.NonNormalizedAxes {
		if ent.Frame == ent.OldFrame {
			switch fr.CullSphere(newFrame.LocalOrigin, newFrame.Radius) {
			case CullOut:
				return CullOut
			case CullIn:
				return CullIn
			}
		} else {
			cullA := fr.CullSphere(newFrame.LocalOrigin, newFrame.Radius)
			cullB := fr.CullSphere(oldFrame.LocalOrigin, oldFrame.Radius)
			if cullA == cullB {
				switch cullA {
				case CullOut:
					return CullOut
				case CullIn:
					return CullIn
				}
			}
		}
	}

	return fr.CullBounds(oldFrame.Bounds.Union(newFrame.Bounds))
}

// MD3FogNum classifies the current frame's bounding sphere against the
// world fog volumes.
func MD3FogNum(m *formats.MD3, ent *Entity, fogs FogSet) int {
	frame := &m.Frames[ent.Frame]
	return fogs.FogNum(ent.Origin.Add(frame.LocalOrigin), frame.Radius)
}

// MD3EvalSurface writes one surface's vertices for the entity's frame
// blend into the buffer. With a zero backlerp the new frame is decoded
// directly; otherwise both frames are decoded and blended linearly,
// normals included.
func MD3EvalSurface(surf *formats.MD3Surface, ent *Entity, buf *MeshBuffer) error {
	if err := buf.checkOverflow(surf.NumVerts, len(surf.Indexes)); err != nil {
		return err
	}

	base := uint32(buf.NumVertexes())
	newVerts := surf.FrameVertices(ent.Frame)

	if ent.Backlerp == 0 {
		for i := range newVerts {
			v := &newVerts[i]
			buf.XYZ = append(buf.XYZ, qm.Vec3{
				X: float32(v.X) * formats.XyzScale,
				Y: float32(v.Y) * formats.XyzScale,
				Z: float32(v.Z) * formats.XyzScale,
			})
			buf.Normals = append(buf.Normals, DecodeNormal(v.Normal))
		}
	} else {
		oldVerts := surf.FrameVertices(ent.OldFrame)
		newScale := (1 - ent.Backlerp) * formats.XyzScale
		oldScale := ent.Backlerp * formats.XyzScale
		for i := range newVerts {
			nv, ov := &newVerts[i], &oldVerts[i]
			buf.XYZ = append(buf.XYZ, qm.Vec3{
				X: float32(nv.X)*newScale + float32(ov.X)*oldScale,
				Y: float32(nv.Y)*newScale + float32(ov.Y)*oldScale,
				Z: float32(nv.Z)*newScale + float32(ov.Z)*oldScale,
			})
			nn := DecodeNormal(nv.Normal)
			on := DecodeNormal(ov.Normal)
			buf.Normals = append(buf.Normals,
				nn.Scale(1-ent.Backlerp).Add(on.Scale(ent.Backlerp)))
		}
	}

	for i := range newVerts {
		buf.TexCoords = append(buf.TexCoords, surf.TexCoords[i])
		buf.Colors = append(buf.Colors, [4]uint8{})
	}
	for _, idx := range surf.Indexes {
		buf.Indexes = append(buf.Indexes, base+uint32(idx))
	}
	return nil
}

// md3Tag finds a tag by name for one frame, clamping out-of-range frame
// numbers into the stored range.
func md3Tag(m *formats.MD3, frame int, name string) *formats.MD3Tag {
	if frame >= m.NumFrames {
		// a bad frame while changing models is not an error
		frame = m.NumFrames - 1
	}
	if frame < 0 {
		frame = 0
	}
	for i := 0; i < m.NumTags; i++ {
		tag := m.Tag(frame, i)
		if tag.Name == name {
			return tag
		}
	}
	return nil
}

// MD3LerpTag resolves an attachment tag blended between two frames. The
// blended axes are re-normalized. Returns the identity orientation and
// false when the model has no tag of that name.
func MD3LerpTag(m *formats.MD3, startFrame, endFrame int, frac float32, name string) (Orientation, bool) {
	start := md3Tag(m, startFrame, name)
	end := md3Tag(m, endFrame, name)
	if start == nil || end == nil {
		return IdentityOrientation(), false
	}

	var out Orientation
	out.Origin = qm.Lerp(start.Origin, end.Origin, frac)
	for i := 0; i < 3; i++ {
		out.Axis[i] = qm.Lerp(start.Axis[i], end.Axis[i], frac).Normalize()
	}
	return out, true
}
