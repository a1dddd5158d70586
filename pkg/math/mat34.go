package math

// Mat34 is a 3×4 affine matrix stored row-major: three rows of four values,
// with the translation in the fourth column. It is the top of a 4×4 matrix
// whose implicit last row is (0 0 0 1). Bone and joint transforms use this
// layout throughout.
type Mat34 [12]float32

// Mat34Identity returns the identity transform.
func Mat34Identity() Mat34 {
	return Mat34{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
	}
}

// Mul returns m * other, composing other first.
func (m Mat34) Mul(other Mat34) Mat34 {
	return Mat34{
		m[0]*other[0] + m[1]*other[4] + m[2]*other[8],
		m[0]*other[1] + m[1]*other[5] + m[2]*other[9],
		m[0]*other[2] + m[1]*other[6] + m[2]*other[10],
		m[0]*other[3] + m[1]*other[7] + m[2]*other[11] + m[3],
		m[4]*other[0] + m[5]*other[4] + m[6]*other[8],
		m[4]*other[1] + m[5]*other[5] + m[6]*other[9],
		m[4]*other[2] + m[5]*other[6] + m[6]*other[10],
		m[4]*other[3] + m[5]*other[7] + m[6]*other[11] + m[7],
		m[8]*other[0] + m[9]*other[4] + m[10]*other[8],
		m[8]*other[1] + m[9]*other[5] + m[10]*other[9],
		m[8]*other[2] + m[9]*other[6] + m[10]*other[10],
		m[8]*other[3] + m[9]*other[7] + m[10]*other[11] + m[11],
	}
}

// TransformPoint applies the full affine transform to a point.
func (m Mat34) TransformPoint(p Vec3) Vec3 {
	return Vec3{
		m[0]*p.X + m[1]*p.Y + m[2]*p.Z + m[3],
		m[4]*p.X + m[5]*p.Y + m[6]*p.Z + m[7],
		m[8]*p.X + m[9]*p.Y + m[10]*p.Z + m[11],
	}
}

// TransformDir applies only the 3×3 block, ignoring translation.
func (m Mat34) TransformDir(d Vec3) Vec3 {
	return Vec3{
		m[0]*d.X + m[1]*d.Y + m[2]*d.Z,
		m[4]*d.X + m[5]*d.Y + m[6]*d.Z,
		m[8]*d.X + m[9]*d.Y + m[10]*d.Z,
	}
}

// Invert inverts an affine transform whose 3×3 block is a rotation with
// per-axis scale: the block is transposed with each row rescaled by its
// inverse squared length, and the translation re-derived as the negative
// dot of the old translation against the new rows.
func (m Mat34) Invert() Mat34 {
	var out Mat34
	out[0], out[1], out[2] = m[0], m[4], m[8]
	out[4], out[5], out[6] = m[1], m[5], m[9]
	out[8], out[9], out[10] = m[2], m[6], m[10]

	for r := 0; r < 12; r += 4 {
		invSqrLen := 1 / (out[r]*out[r] + out[r+1]*out[r+1] + out[r+2]*out[r+2])
		out[r] *= invSqrLen
		out[r+1] *= invSqrLen
		out[r+2] *= invSqrLen
	}

	trans := Vec3{m[3], m[7], m[11]}
	out[3] = -(out[0]*trans.X + out[1]*trans.Y + out[2]*trans.Z)
	out[7] = -(out[4]*trans.X + out[5]*trans.Y + out[6]*trans.Z)
	out[11] = -(out[8]*trans.X + out[9]*trans.Y + out[10]*trans.Z)
	return out
}

// NormalMatrix returns the transpose of the adjugate of the 3×3 block,
// the correct normal transform under non-uniform scale.
func (m Mat34) NormalMatrix() [9]float32 {
	return [9]float32{
		m[5]*m[10] - m[6]*m[9],
		m[6]*m[8] - m[4]*m[10],
		m[4]*m[9] - m[5]*m[8],
		m[2]*m[9] - m[1]*m[10],
		m[0]*m[10] - m[2]*m[8],
		m[1]*m[8] - m[0]*m[9],
		m[1]*m[6] - m[2]*m[5],
		m[2]*m[4] - m[0]*m[6],
		m[0]*m[5] - m[1]*m[4],
	}
}

// Mat34FromQuat composes a rotation quaternion, per-axis scale and
// translation into a 3×4 matrix.
func Mat34FromQuat(rot Quat, scale, trans Vec3) Mat34 {
	xx := 2 * rot.X * rot.X
	yy := 2 * rot.Y * rot.Y
	zz := 2 * rot.Z * rot.Z
	xy := 2 * rot.X * rot.Y
	xz := 2 * rot.X * rot.Z
	yz := 2 * rot.Y * rot.Z
	wx := 2 * rot.W * rot.X
	wy := 2 * rot.W * rot.Y
	wz := 2 * rot.W * rot.Z

	return Mat34{
		scale.X * (1 - (yy + zz)), scale.X * (xy - wz), scale.X * (xz + wy), trans.X,
		scale.Y * (xy + wz), scale.Y * (1 - (xx + zz)), scale.Y * (yz - wx), trans.Y,
		scale.Z * (xz - wy), scale.Z * (yz + wx), scale.Z * (1 - (xx + yy)), trans.Z,
	}
}

// Row returns one row of the 3×3 block.
func (m Mat34) Row(i int) Vec3 {
	return Vec3{m[i*4], m[i*4+1], m[i*4+2]}
}

// Translation returns the fourth column.
func (m Mat34) Translation() Vec3 {
	return Vec3{m[3], m[7], m[11]}
}
