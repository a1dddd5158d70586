package render

import (
	"errors"
	"testing"

	"github.com/chewxy/math32"

	"github.com/Faultbox/tremor/pkg/formats"
	qm "github.com/Faultbox/tremor/pkg/math"
)

func almostEqual(a, b float32) bool {
	return math32.Abs(a-b) < 1e-4
}

func vecAlmostEqual(a, b qm.Vec3) bool {
	return almostEqual(a.X, b.X) && almostEqual(a.Y, b.Y) && almostEqual(a.Z, b.Z)
}

func TestDecodeNormal(t *testing.T) {
	tests := []struct {
		name   string
		packed uint16
		want   qm.Vec3
	}{
		{"up", 0x0000, qm.Vec3{Z: 1}},
		{"x axis", 0x0040, qm.Vec3{X: 1}},
		{"y axis", 0x4040, qm.Vec3{Y: 1}},
		{"down", 0x0080, qm.Vec3{Z: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeNormal(tt.packed)
			if !vecAlmostEqual(got, tt.want) {
				t.Errorf("DecodeNormal(%#04x) = %v, want %v", tt.packed, got, tt.want)
			}
			if !almostEqual(got.Length(), 1) {
				t.Errorf("DecodeNormal(%#04x) not unit length: %v", tt.packed, got.Length())
			}
		})
	}
}

// testMD3 builds a two-frame model with one triangle surface and one
// tag. The single distinguished vertex sits at (1,0,0) in frame zero and
// (2,1,0) in frame one.
func testMD3() *formats.MD3 {
	vtx := func(x, y, z int16) formats.MD3Vertex {
		return formats.MD3Vertex{X: x, Y: y, Z: z}
	}
	return &formats.MD3{
		Name:      "models/players/visor/upper.md3",
		NumFrames: 2,
		NumTags:   1,
		Frames: []formats.MD3Frame{
			{Radius: 10, Bounds: qm.Bounds{Min: qm.Vec3{X: -5, Y: -5, Z: -5}, Max: qm.Vec3{X: 5, Y: 5, Z: 5}}},
			{Radius: 10, Bounds: qm.Bounds{Min: qm.Vec3{X: -5, Y: -5, Z: -5}, Max: qm.Vec3{X: 5, Y: 5, Z: 5}}},
		},
		Tags: []formats.MD3Tag{
			{Name: "tag_head", Origin: qm.Vec3{Z: 2}, Axis: [3]qm.Vec3{{X: 1}, {Y: 1}, {Z: 1}}},
			{Name: "tag_head", Origin: qm.Vec3{Z: 4}, Axis: [3]qm.Vec3{{X: 1}, {Y: 1}, {Z: 1}}},
		},
		Surfaces: []formats.MD3Surface{{
			Name:      "torso",
			Shaders:   []formats.MD3Shader{{Name: "models/players/visor/torso", Index: 7}},
			Indexes:   []int32{0, 1, 2},
			TexCoords: [][2]float32{{0, 0}, {1, 0}, {0, 1}},
			NumVerts:  3,
			Vertices: []formats.MD3Vertex{
				// frame 0
				vtx(64, 0, 0), vtx(0, 64, 0), vtx(0, 0, 64),
				// frame 1
				vtx(128, 64, 0), vtx(0, 128, 0), vtx(0, 0, 128),
			},
		}},
	}
}

func TestMD3EvalSurface(t *testing.T) {
	m := testMD3()
	surf := &m.Surfaces[0]

	tests := []struct {
		name     string
		ent      Entity
		wantVtx0 qm.Vec3
	}{
		{"frame zero", Entity{Frame: 0, OldFrame: 0}, qm.Vec3{X: 1}},
		{"frame one", Entity{Frame: 1, OldFrame: 0}, qm.Vec3{X: 2, Y: 1}},
		{"full backlerp", Entity{Frame: 1, OldFrame: 0, Backlerp: 1}, qm.Vec3{X: 1}},
		{"halfway", Entity{Frame: 1, OldFrame: 0, Backlerp: 0.5}, qm.Vec3{X: 1.5, Y: 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewMeshBuffer()
			if err := MD3EvalSurface(surf, &tt.ent, buf); err != nil {
				t.Fatalf("MD3EvalSurface: %v", err)
			}
			if buf.NumVertexes() != 3 || buf.NumIndexes() != 3 {
				t.Fatalf("got %d verts %d indexes, want 3/3", buf.NumVertexes(), buf.NumIndexes())
			}
			if !vecAlmostEqual(buf.XYZ[0], tt.wantVtx0) {
				t.Errorf("vertex 0 = %v, want %v", buf.XYZ[0], tt.wantVtx0)
			}
		})
	}
}

func TestMD3EvalSurfaceAppends(t *testing.T) {
	m := testMD3()
	surf := &m.Surfaces[0]
	ent := Entity{}

	buf := NewMeshBuffer()
	for i := 0; i < 2; i++ {
		if err := MD3EvalSurface(surf, &ent, buf); err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
	}
	if buf.NumVertexes() != 6 {
		t.Fatalf("got %d verts, want 6", buf.NumVertexes())
	}
	// second surface's indexes must be rebased past the first
	if buf.Indexes[3] != 3 {
		t.Errorf("rebased index = %d, want 3", buf.Indexes[3])
	}
	// identical input, identical output
	if buf.XYZ[0] != buf.XYZ[3] || buf.Normals[0] != buf.Normals[3] {
		t.Error("two passes over the same surface disagree")
	}
}

func TestMD3EvalSurfaceDeterministic(t *testing.T) {
	m := testMD3()
	surf := &m.Surfaces[0]
	ent := Entity{Frame: 1, OldFrame: 0, Backlerp: 0.3}

	a, b := NewMeshBuffer(), NewMeshBuffer()
	for _, buf := range []*MeshBuffer{a, b} {
		if err := MD3EvalSurface(surf, &ent, buf); err != nil {
			t.Fatalf("MD3EvalSurface: %v", err)
		}
	}
	// same frame pair and fraction, bit-identical output
	for i := range a.XYZ {
		if a.XYZ[i] != b.XYZ[i] || a.Normals[i] != b.Normals[i] {
			t.Fatalf("vertex %d differs between identical evaluations", i)
		}
	}
}

func TestMeshBufferOverflow(t *testing.T) {
	buf := NewMeshBuffer()
	if err := buf.checkOverflow(MaxBufferVerts+1, 0); !errors.Is(err, ErrMeshOverflow) {
		t.Errorf("vertex overflow error = %v, want ErrMeshOverflow", err)
	}
	if err := buf.checkOverflow(0, MaxBufferIndexes+1); !errors.Is(err, ErrMeshOverflow) {
		t.Errorf("index overflow error = %v, want ErrMeshOverflow", err)
	}
	if err := buf.checkOverflow(MaxBufferVerts, MaxBufferIndexes); err != nil {
		t.Errorf("exact fit rejected: %v", err)
	}
}

func TestMD3LerpTag(t *testing.T) {
	m := testMD3()

	tests := []struct {
		name       string
		start, end int
		frac       float32
		tag        string
		wantOK     bool
		wantOrigin qm.Vec3
	}{
		{"start frame", 0, 1, 0, "tag_head", true, qm.Vec3{Z: 2}},
		{"end frame", 0, 1, 1, "tag_head", true, qm.Vec3{Z: 4}},
		{"halfway", 0, 1, 0.5, "tag_head", true, qm.Vec3{Z: 3}},
		{"overshoot clamps", 0, 99, 1, "tag_head", true, qm.Vec3{Z: 4}},
		{"negative frame clamps", -3, 1, 0, "tag_head", true, qm.Vec3{Z: 2}},
		{"missing tag", 0, 1, 0.5, "tag_flag", false, qm.Vec3{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MD3LerpTag(m, tt.start, tt.end, tt.frac, tt.tag)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				if got.Axis != IdentityOrientation().Axis {
					t.Errorf("missing tag axes = %v, want identity", got.Axis)
				}
				return
			}
			if !vecAlmostEqual(got.Origin, tt.wantOrigin) {
				t.Errorf("origin = %v, want %v", got.Origin, tt.wantOrigin)
			}
			if !almostEqual(got.Axis[0].Length(), 1) {
				t.Errorf("axis 0 not normalized: %v", got.Axis[0])
			}
		})
	}
}

func TestMD3AddSurfaces(t *testing.T) {
	m := testMD3()
	fr := boxFrustum(100)
	var fogs FogSet

	t.Run("default shader", func(t *testing.T) {
		ent := Entity{}
		surfs := MD3AddSurfaces(m, &ent, fr, fogs)
		if len(surfs) != 1 {
			t.Fatalf("got %d surfaces, want 1", len(surfs))
		}
		if surfs[0].Shader != 7 {
			t.Errorf("shader = %d, want surface shader 7", surfs[0].Shader)
		}
	})

	t.Run("skin override", func(t *testing.T) {
		ent := Entity{Skin: &Skin{Surfaces: []SkinSurface{{Name: "torso", Shader: 42}}}}
		surfs := MD3AddSurfaces(m, &ent, fr, fogs)
		if len(surfs) != 1 || surfs[0].Shader != 42 {
			t.Errorf("skin override not applied: %+v", surfs)
		}
	})

	t.Run("skin misses falls back", func(t *testing.T) {
		ent := Entity{Skin: &Skin{Surfaces: []SkinSurface{{Name: "legs", Shader: 42}}}}
		surfs := MD3AddSurfaces(m, &ent, fr, fogs)
		if len(surfs) != 1 || surfs[0].Shader != 7 {
			t.Errorf("fallback shader not used: %+v", surfs)
		}
	})

	t.Run("custom shader wins", func(t *testing.T) {
		ent := Entity{
			CustomShader: 9,
			Skin:         &Skin{Surfaces: []SkinSurface{{Name: "torso", Shader: 42}}},
		}
		surfs := MD3AddSurfaces(m, &ent, fr, fogs)
		if len(surfs) != 1 || surfs[0].Shader != 9 {
			t.Errorf("custom shader not applied: %+v", surfs)
		}
	})

	t.Run("personal model skipped", func(t *testing.T) {
		ent := Entity{Flags: FlagThirdPerson}
		if surfs := MD3AddSurfaces(m, &ent, fr, fogs); surfs != nil {
			t.Errorf("first person surfaces not skipped: %+v", surfs)
		}
	})

	t.Run("personal model drawn in portal", func(t *testing.T) {
		ent := Entity{Flags: FlagThirdPerson | FlagInPortal}
		if surfs := MD3AddSurfaces(m, &ent, fr, fogs); len(surfs) != 1 {
			t.Errorf("portal view should draw, got %+v", surfs)
		}
	})

	t.Run("culled out", func(t *testing.T) {
		ent := Entity{}
		if surfs := MD3AddSurfaces(m, &ent, boxFrustum(100).offset(qm.Vec3{X: 1000}), fogs); surfs != nil {
			t.Errorf("out-of-frustum surfaces not culled: %+v", surfs)
		}
	})
}

// offset shifts a frustum so its planes enclose a region around p
// instead of the origin.
func (f Frustum) offset(p qm.Vec3) Frustum {
	out := make(Frustum, len(f))
	for i, pl := range f {
		out[i] = Plane{Normal: pl.Normal, Dist: pl.Dist + p.Dot(pl.Normal)}
	}
	return out
}

func TestSanitizeFrames(t *testing.T) {
	tests := []struct {
		name         string
		ent          Entity
		numFrames    int
		wantFrame    int
		wantOldFrame int
	}{
		{"in range untouched", Entity{Frame: 1, OldFrame: 0}, 2, 1, 0},
		{"overshoot resets both", Entity{Frame: 5, OldFrame: 1}, 2, 0, 0},
		{"negative resets both", Entity{Frame: -1, OldFrame: 1}, 2, 0, 0},
		{"wrap folds", Entity{Frame: 5, OldFrame: 4, Flags: FlagWrapFrames}, 3, 2, 1},
		{"wrap negative", Entity{Frame: -1, OldFrame: 0, Flags: FlagWrapFrames}, 3, 2, 0},
		{"no frames", Entity{Frame: 3, OldFrame: 3}, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ent := tt.ent
			sanitizeFrames(&ent, tt.numFrames, "test")
			if ent.Frame != tt.wantFrame || ent.OldFrame != tt.wantOldFrame {
				t.Errorf("frames = %d/%d, want %d/%d",
					ent.Frame, ent.OldFrame, tt.wantFrame, tt.wantOldFrame)
			}
		})
	}
}
