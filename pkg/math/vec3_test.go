package math

import "testing"

func almostEqual(a, b, eps float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}

func vecAlmostEqual(a, b Vec3, eps float32) bool {
	return almostEqual(a.X, b.X, eps) && almostEqual(a.Y, b.Y, eps) && almostEqual(a.Z, b.Z, eps)
}

func TestVec3Basics(t *testing.T) {
	a := Vec3{1, 2, 3}
	b := Vec3{4, -5, 6}

	if got := a.Add(b); got != (Vec3{5, -3, 9}) {
		t.Errorf("Add = %v", got)
	}
	if got := a.Sub(b); got != (Vec3{-3, 7, -3}) {
		t.Errorf("Sub = %v", got)
	}
	if got := a.Scale(2); got != (Vec3{2, 4, 6}) {
		t.Errorf("Scale = %v", got)
	}
	if got := a.Dot(b); got != 12 {
		t.Errorf("Dot = %v, want 12", got)
	}
}

func TestVec3Cross(t *testing.T) {
	x := Vec3{1, 0, 0}
	y := Vec3{0, 1, 0}
	if got := x.Cross(y); got != (Vec3{0, 0, 1}) {
		t.Errorf("x cross y = %v, want z", got)
	}
	if got := y.Cross(x); got != (Vec3{0, 0, -1}) {
		t.Errorf("y cross x = %v, want -z", got)
	}
}

func TestVec3Normalize(t *testing.T) {
	v := Vec3{3, 0, 4}
	n := v.Normalize()
	if !almostEqual(n.Length(), 1, 1e-6) {
		t.Errorf("normalized length = %v", n.Length())
	}
	if !vecAlmostEqual(n, Vec3{0.6, 0, 0.8}, 1e-6) {
		t.Errorf("Normalize = %v", n)
	}

	if got := (Vec3{}).Normalize(); got != (Vec3{}) {
		t.Errorf("zero Normalize = %v, want zero", got)
	}
}

func TestLerp(t *testing.T) {
	a := Vec3{0, 0, 0}
	b := Vec3{10, -10, 2}

	if got := Lerp(a, b, 0); got != a {
		t.Errorf("Lerp(0) = %v, want %v", got, a)
	}
	if got := Lerp(a, b, 1); got != b {
		t.Errorf("Lerp(1) = %v, want %v", got, b)
	}
	if got := Lerp(a, b, 0.5); !vecAlmostEqual(got, Vec3{5, -5, 1}, 1e-6) {
		t.Errorf("Lerp(0.5) = %v", got)
	}
}

func TestMinMaxV(t *testing.T) {
	a := Vec3{1, 5, -3}
	b := Vec3{2, -4, 0}
	if got := MinV(a, b); got != (Vec3{1, -4, -3}) {
		t.Errorf("MinV = %v", got)
	}
	if got := MaxV(a, b); got != (Vec3{2, 5, 0}) {
		t.Errorf("MaxV = %v", got)
	}
}

func TestBounds(t *testing.T) {
	b := ClearBounds()
	b.AddPoint(Vec3{1, 2, 3})
	b.AddPoint(Vec3{-1, 0, 5})

	if b.Min != (Vec3{-1, 0, 3}) || b.Max != (Vec3{1, 2, 5}) {
		t.Fatalf("bounds = %v..%v", b.Min, b.Max)
	}
	if got := b.Center(); !vecAlmostEqual(got, Vec3{0, 1, 4}, 1e-6) {
		t.Errorf("Center = %v", got)
	}

	u := b.Union(Bounds{Min: Vec3{-5, 0, 0}, Max: Vec3{0, 0, 0}})
	if u.Min != (Vec3{-5, 0, 0}) || u.Max != (Vec3{1, 2, 5}) {
		t.Errorf("Union = %v..%v", u.Min, u.Max)
	}
}
