package math

import "github.com/chewxy/math32"

// Quat is a rotation quaternion. Components are X, Y, Z, W with W the
// scalar part.
type Quat struct {
	X, Y, Z, W float32
}

// QuatIdentity returns the identity quaternion (no rotation).
func QuatIdentity() Quat {
	return Quat{X: 0, Y: 0, Z: 0, W: 1}
}

// Dot returns the dot product of two quaternions.
func (q Quat) Dot(other Quat) float32 {
	return q.X*other.X + q.Y*other.Y + q.Z*other.Z + q.W*other.W
}

// Neg returns the negated quaternion (same rotation, opposite sign).
func (q Quat) Neg() Quat {
	return Quat{-q.X, -q.Y, -q.Z, -q.W}
}

// Normalize returns a unit quaternion. A zero-length input normalizes to
// {0,0,0,-1}, matching the joint loaders' treatment of degenerate rotations.
func (q Quat) Normalize() Quat {
	length := q.Dot(q)
	if length == 0 {
		return Quat{0, 0, 0, -1}
	}
	inv := 1 / math32.Sqrt(length)
	return Quat{q.X * inv, q.Y * inv, q.Z * inv, q.W * inv}
}

// Slerp performs spherical linear interpolation from q to other.
// The destination is negated when the dot product is negative so the
// rotation takes the shorter arc. Nearly-aligned quaternions fall back to
// a plain linear blend, avoiding the division by a near-zero sine.
func (q Quat) Slerp(other Quat, frac float32) Quat {
	to := other
	cosAngle := q.Dot(other)
	if cosAngle < 0 {
		cosAngle = -cosAngle
		to = other.Neg()
	}

	var backlerp, lerp float32
	if cosAngle < 0.999999 {
		angle := math32.Acos(cosAngle)
		sinAngle := math32.Sin(angle)
		backlerp = math32.Sin((1-frac)*angle) / sinAngle
		lerp = math32.Sin(frac*angle) / sinAngle
	} else {
		backlerp = 1 - frac
		lerp = frac
	}

	return Quat{
		q.X*backlerp + to.X*lerp,
		q.Y*backlerp + to.Y*lerp,
		q.Z*backlerp + to.Z*lerp,
		q.W*backlerp + to.W*lerp,
	}
}
