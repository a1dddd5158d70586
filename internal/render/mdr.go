package render

import (
	"github.com/Faultbox/tremor/pkg/formats"
	qm "github.com/Faultbox/tremor/pkg/math"
)

// MDRCull classifies the whole model using the per-frame bounds stored
// with the skeleton frames. Same sphere-then-box strategy as MD3.
func MDRCull(m *formats.MDR, ent *Entity, fr Frustum) CullResult {
	newFrame := &m.Frames[ent.Frame]
	oldFrame := &m.Frames[ent.OldFrame]

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

// MDRFogNum classifies the current frame's bounding sphere against the
// world fog volumes.
func MDRFogNum(m *formats.MDR, ent *Entity, fogs FogSet) int {
	frame := &m.Frames[ent.Frame]
	return fogs.FogNum(ent.Origin.Add(frame.LocalOrigin), frame.Radius)
}

// MDRComputeBones returns the skeleton for the entity's frame blend.
// With a zero backlerp the stored frame is returned directly; otherwise
// every bone matrix is blended value by value, the same linear
// approximation the vertex blend assumes.
func MDRComputeBones(m *formats.MDR, frame, oldFrame int, backlerp float32) []qm.Mat34 {
	if backlerp == 0 {
		return m.Frames[frame].Bones
	}

	frontlerp := 1 - backlerp
	newBones := m.Frames[frame].Bones
	oldBones := m.Frames[oldFrame].Bones
	bones := make([]qm.Mat34, len(newBones))
	for b := range bones {
		for k := 0; k < 12; k++ {
			bones[b][k] = frontlerp*newBones[b][k] + backlerp*oldBones[b][k]
		}
	}
	return bones
}

// MDREvalSurface skins one surface against the blended skeleton and
// appends the result to the buffer. Each vertex accumulates its
// weighted bone transforms; weights are used as stored, so files with
// non-normalized sums keep their scaling.
func MDREvalSurface(m *formats.MDR, surf *formats.MDRSurface, ent *Entity, buf *MeshBuffer) error {
	if err := buf.checkOverflow(len(surf.Vertices), len(surf.Indexes)); err != nil {
		return err
	}

	bones := MDRComputeBones(m, ent.Frame, ent.OldFrame, ent.Backlerp)

	base := uint32(buf.NumVertexes())
	for i := range surf.Vertices {
		v := &surf.Vertices[i]
		var xyz, normal qm.Vec3
		for _, w := range v.Weights {
			bone := &bones[w.BoneIndex]
			xyz = xyz.Add(bone.TransformPoint(w.Offset).Scale(w.Weight))
			normal = normal.Add(bone.TransformDir(v.Normal).Scale(w.Weight))
		}
		buf.XYZ = append(buf.XYZ, xyz)
		buf.Normals = append(buf.Normals, normal)
		buf.TexCoords = append(buf.TexCoords, v.TexCoord)
		buf.Colors = append(buf.Colors, [4]uint8{})
	}
	for _, idx := range surf.Indexes {
		buf.Indexes = append(buf.Indexes, base+uint32(idx))
	}
	return nil
}

// MDRTag resolves an attachment tag for one frame from the animated
// skeleton: the bone's columns become the axes, its translation the
// origin. Out-of-range frame numbers clamp into the stored range.
func MDRTag(m *formats.MDR, frame int, name string) (Orientation, bool) {
	if frame >= len(m.Frames) {
		frame = len(m.Frames) - 1
	}
	if frame < 0 {
		frame = 0
	}
	for i := range m.Tags {
		if m.Tags[i].Name != name {
			continue
		}
		bone := &m.Frames[frame].Bones[m.Tags[i].BoneIndex]
		var out Orientation
		for j := 0; j < 3; j++ {
			out.Axis[j] = qm.Vec3{X: bone[j], Y: bone[4+j], Z: bone[8+j]}
		}
		out.Origin = bone.Translation()
		return out, true
	}
	return IdentityOrientation(), false
}

// MDRLerpTag blends a tag between two frames and re-normalizes the
// axes, mirroring the MD3 path.
func MDRLerpTag(m *formats.MDR, startFrame, endFrame int, frac float32, name string) (Orientation, bool) {
	start, okA := MDRTag(m, startFrame, name)
	end, okB := MDRTag(m, endFrame, name)
	if !okA || !okB {
		return IdentityOrientation(), false
	}

	var out Orientation
	out.Origin = qm.Lerp(start.Origin, end.Origin, frac)
	for i := 0; i < 3; i++ {
		out.Axis[i] = qm.Lerp(start.Axis[i], end.Axis[i], frac).Normalize()
	}
	return out, true
}
