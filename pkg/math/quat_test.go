package math

import (
	"testing"

	"github.com/chewxy/math32"
)

func quatAlmostEqual(a, b Quat, eps float32) bool {
	return almostEqual(a.X, b.X, eps) && almostEqual(a.Y, b.Y, eps) &&
		almostEqual(a.Z, b.Z, eps) && almostEqual(a.W, b.W, eps)
}

func axisAngleQuat(axis Vec3, angle float32) Quat {
	s := math32.Sin(angle / 2)
	return Quat{axis.X * s, axis.Y * s, axis.Z * s, math32.Cos(angle / 2)}
}

func TestQuatNormalize(t *testing.T) {
	q := Quat{0, 3, 0, 4}.Normalize()
	if !quatAlmostEqual(q, Quat{0, 0.6, 0, 0.8}, 1e-6) {
		t.Errorf("Normalize = %+v", q)
	}

	if got := (Quat{}).Normalize(); got != (Quat{0, 0, 0, -1}) {
		t.Errorf("zero Normalize = %+v, want {0 0 0 -1}", got)
	}
}

func TestSlerpEndpoints(t *testing.T) {
	a := axisAngleQuat(Vec3{0, 0, 1}, 0.3)
	b := axisAngleQuat(Vec3{0, 0, 1}, 1.7)

	if got := a.Slerp(b, 0); !quatAlmostEqual(got, a, 1e-6) {
		t.Errorf("Slerp(0) = %+v, want %+v", got, a)
	}
	if got := a.Slerp(b, 1); !quatAlmostEqual(got, b, 1e-6) {
		t.Errorf("Slerp(1) = %+v, want %+v", got, b)
	}
}

func TestSlerpHalfway(t *testing.T) {
	a := axisAngleQuat(Vec3{0, 0, 1}, 0)
	b := axisAngleQuat(Vec3{0, 0, 1}, math32.Pi/2)
	want := axisAngleQuat(Vec3{0, 0, 1}, math32.Pi/4)

	if got := a.Slerp(b, 0.5); !quatAlmostEqual(got, want, 1e-5) {
		t.Errorf("Slerp(0.5) = %+v, want %+v", got, want)
	}
}

func TestSlerpShortestArc(t *testing.T) {
	a := axisAngleQuat(Vec3{0, 0, 1}, 0.2)
	b := axisAngleQuat(Vec3{0, 0, 1}, 0.4).Neg()

	// The negated destination represents the same rotation; the blend must
	// take the short way around, not swing through the far hemisphere.
	got := a.Slerp(b, 1)
	want := b.Neg()
	if !quatAlmostEqual(got, want, 1e-6) {
		t.Errorf("Slerp toward negated dest = %+v, want %+v", got, want)
	}
}

func TestSlerpNearlyAligned(t *testing.T) {
	a := axisAngleQuat(Vec3{0, 0, 1}, 0.1)
	b := axisAngleQuat(Vec3{0, 0, 1}, 0.1000001)

	got := a.Slerp(b, 0.5)
	if math32.IsNaN(got.X) || math32.IsNaN(got.W) {
		t.Fatalf("Slerp of nearly aligned quats produced NaN: %+v", got)
	}
	if !almostEqual(got.Dot(got), 1, 1e-4) {
		t.Errorf("Slerp of nearly aligned quats lost unit length: %+v", got)
	}
}
