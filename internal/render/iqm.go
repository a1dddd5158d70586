package render

import (
	"github.com/Faultbox/tremor/pkg/formats"
	qm "github.com/Faultbox/tremor/pkg/math"
)

// IQMCull classifies the model against the frustum. Files without
// stored bounds fall through to clip: the surfaces still draw, clipped
// per triangle.
func IQMCull(m *formats.IQM, ent *Entity, fr Frustum) CullResult {
	if m.Bounds == nil {
		return CullClip
	}
	oldBounds := m.Bounds[boundsFrame(m, ent.OldFrame)]
	newBounds := m.Bounds[boundsFrame(m, ent.Frame)]
	return fr.CullBounds(oldBounds.Union(newBounds))
}

// IQMFogNum classifies the model against the world fog volumes using a
// sphere derived from the frame bounds, or a small default box for
// models without bounds.
func IQMFogNum(m *formats.IQM, ent *Entity, fogs FogSet) int {
	b := qm.Bounds{Min: qm.Vec3{X: -8, Y: -8, Z: -8}, Max: qm.Vec3{X: 8, Y: 8, Z: 8}}
	if m.Bounds != nil {
		b = m.Bounds[boundsFrame(m, ent.Frame)]
	}
	return fogs.FogNum(ent.Origin.Add(b.Center()), b.Radius())
}

func boundsFrame(m *formats.IQM, frame int) int {
	if frame < 0 || frame >= len(m.Bounds) {
		return 0
	}
	return frame
}

func sanitizeFrame(frame, numFrames int) int {
	if numFrames <= 0 || frame < 0 || frame >= numFrames {
		return 0
	}
	return frame
}

// ComputePoseMats builds the interpolated skinning matrices for a frame
// blend: each joint's pose transforms are lerped (rotations slerped),
// converted to matrices, premultiplied by the parent's bind pose and the
// joint's inverse bind pose, then chained onto the parent's result.
func ComputePoseMats(m *formats.IQM, frame, oldFrame int, backlerp float32) []qm.Mat34 {
	frame = sanitizeFrame(frame, m.NumFrames)
	oldFrame = sanitizeFrame(oldFrame, m.NumFrames)

	relative := make([]formats.IQMTransform, m.NumPoses)
	if frame == oldFrame {
		copy(relative, m.FramePoses(frame))
	} else {
		lerp := 1 - backlerp
		poses := m.FramePoses(frame)
		oldPoses := m.FramePoses(oldFrame)
		for i := range relative {
			relative[i] = formats.IQMTransform{
				Translate: qm.Lerp(oldPoses[i].Translate, poses[i].Translate, lerp),
				Rotate:    oldPoses[i].Rotate.Slerp(poses[i].Rotate, lerp),
				Scale:     qm.Lerp(oldPoses[i].Scale, poses[i].Scale, lerp),
			}
		}
	}

	poseMats := make([]qm.Mat34, m.NumPoses)
	for i := range poseMats {
		local := qm.Mat34FromQuat(relative[i].Rotate, relative[i].Scale, relative[i].Translate)
		if parent := m.JointParents[i]; parent >= 0 {
			mat := m.BindMats[parent].Mul(local).Mul(m.InvBindMats[i])
			poseMats[i] = poseMats[parent].Mul(mat)
		} else {
			poseMats[i] = local.Mul(m.InvBindMats[i])
		}
	}
	return poseMats
}

// ComputeJointMats returns world-of-model joint matrices for a frame
// blend, for attachment lookups. Unanimated models return the bind pose.
func ComputeJointMats(m *formats.IQM, frame, oldFrame int, backlerp float32) []qm.Mat34 {
	if m.NumPoses == 0 {
		mats := make([]qm.Mat34, m.NumJoints)
		copy(mats, m.BindMats)
		return mats
	}

	poseMats := ComputePoseMats(m, frame, oldFrame, backlerp)
	mats := make([]qm.Mat34, m.NumJoints)
	for i := range mats {
		mats[i] = poseMats[i].Mul(m.BindMats[i])
	}
	return mats
}

// IQMEvalSurface skins one surface and appends the result to the
// buffer. Vertices sharing a blend combination share one blended matrix;
// a combination whose first weight is zero skins with the identity.
// Unanimated models copy their arrays through untouched.
func IQMEvalSurface(m *formats.IQM, surf *formats.IQMSurface, ent *Entity, buf *MeshBuffer) error {
	if err := buf.checkOverflow(surf.NumVertexes, 3*surf.NumTriangles); err != nil {
		return err
	}

	base := uint32(buf.NumVertexes())

	if m.NumPoses > 0 {
		poseMats := ComputePoseMats(m, ent.Frame, ent.OldFrame, ent.Backlerp)

		vtxMats := make([]qm.Mat34, surf.NumInfluences)
		nrmMats := make([][9]float32, surf.NumInfluences)
		for i := 0; i < surf.NumInfluences; i++ {
			blend := &m.Blends[surf.FirstInfluence+i]

			if blend.Weights[0] <= 0 {
				vtxMats[i] = qm.Mat34Identity()
			} else {
				var mat qm.Mat34
				for j := 0; j < 4; j++ {
					w := blend.Weights[j]
					if w <= 0 {
						break
					}
					pose := &poseMats[blend.Indexes[j]]
					for k := 0; k < 12; k++ {
						mat[k] += w * pose[k]
					}
				}
				vtxMats[i] = mat
			}
			nrmMats[i] = vtxMats[i].NormalMatrix()
		}

		for i := 0; i < surf.NumVertexes; i++ {
			vtx := surf.FirstVertex + i
			influence := int(m.Influences[vtx]) - surf.FirstInfluence
			vm := &vtxMats[influence]
			nm := &nrmMats[influence]

			pos := qm.Vec3{X: m.Positions[3*vtx], Y: m.Positions[3*vtx+1], Z: m.Positions[3*vtx+2]}
			nrm := qm.Vec3{X: m.Normals[3*vtx], Y: m.Normals[3*vtx+1], Z: m.Normals[3*vtx+2]}

			buf.XYZ = append(buf.XYZ, vm.TransformPoint(pos))
			buf.Normals = append(buf.Normals, qm.Vec3{
				X: nm[0]*nrm.X + nm[1]*nrm.Y + nm[2]*nrm.Z,
				Y: nm[3]*nrm.X + nm[4]*nrm.Y + nm[5]*nrm.Z,
				Z: nm[6]*nrm.X + nm[7]*nrm.Y + nm[8]*nrm.Z,
			})
		}
	} else {
		for i := 0; i < surf.NumVertexes; i++ {
			vtx := surf.FirstVertex + i
			buf.XYZ = append(buf.XYZ, qm.Vec3{
				X: m.Positions[3*vtx], Y: m.Positions[3*vtx+1], Z: m.Positions[3*vtx+2]})
			buf.Normals = append(buf.Normals, qm.Vec3{
				X: m.Normals[3*vtx], Y: m.Normals[3*vtx+1], Z: m.Normals[3*vtx+2]})
		}
	}

	for i := 0; i < surf.NumVertexes; i++ {
		vtx := surf.FirstVertex + i
		buf.TexCoords = append(buf.TexCoords, [2]float32{m.TexCoords[2*vtx], m.TexCoords[2*vtx+1]})
		var color [4]uint8
		if m.Colors != nil {
			copy(color[:], m.Colors[4*vtx:])
		}
		buf.Colors = append(buf.Colors, color)
	}

	for i := 0; i < 3*surf.NumTriangles; i++ {
		tri := m.Triangles[3*surf.FirstTriangle+i]
		buf.Indexes = append(buf.Indexes, base+uint32(int(tri)-surf.FirstVertex))
	}
	return nil
}

// IQMLerpTag resolves a joint as an attachment point for a frame blend.
// The joint matrix columns become the axes without re-normalization, so
// scaled skeletons keep their scale.
func IQMLerpTag(m *formats.IQM, startFrame, endFrame int, frac float32, name string) (Orientation, bool) {
	joint := -1
	for i, jointName := range m.JointNames {
		if jointName == name {
			joint = i
			break
		}
	}
	if joint < 0 {
		return IdentityOrientation(), false
	}

	mats := ComputeJointMats(m, startFrame, endFrame, frac)
	mat := &mats[joint]

	var out Orientation
	for j := 0; j < 3; j++ {
		out.Axis[j] = qm.Vec3{X: mat[j], Y: mat[4+j], Z: mat[8+j]}
	}
	out.Origin = mat.Translation()
	return out, true
}
