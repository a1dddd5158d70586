package formats

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

var le = binary.LittleEndian

func putF32(b []byte, f float32) {
	le.PutUint32(b, math.Float32bits(f))
}

// makeMinimalMD3 builds a two-frame model with one tag and one surface of
// three vertices and one triangle.
func makeMinimalMD3() []byte {
	const (
		numFrames = 2
		numTags   = 1
		ofsFrames = md3HeaderSize
		ofsTags   = ofsFrames + numFrames*md3FrameSize
		ofsSurf   = ofsTags + numFrames*numTags*md3TagSize

		// surface content, relative to the surface start
		ofsShaders = md3SurfaceSize
		ofsTris    = ofsShaders + md3ShaderSize
		ofsSt      = ofsTris + md3TriangleSize
		ofsXyz     = ofsSt + 3*md3StSize
		surfEnd    = ofsXyz + numFrames*3*md3VertexSize

		total = ofsSurf + surfEnd
	)

	buf := make([]byte, total)
	copy(buf, MD3Ident)
	le.PutUint32(buf[4:], MD3Version)
	copy(buf[8:], "testmodel")
	le.PutUint32(buf[76:], numFrames)
	le.PutUint32(buf[80:], numTags)
	le.PutUint32(buf[84:], 1) // numSurfaces
	le.PutUint32(buf[92:], ofsFrames)
	le.PutUint32(buf[96:], ofsTags)
	le.PutUint32(buf[100:], ofsSurf)
	le.PutUint32(buf[104:], total)

	for f := 0; f < numFrames; f++ {
		rec := buf[ofsFrames+f*md3FrameSize:]
		putF32(rec[0:], -1)
		putF32(rec[4:], -1)
		putF32(rec[8:], -1)
		putF32(rec[12:], 1)
		putF32(rec[16:], 1)
		putF32(rec[20:], 1)
		putF32(rec[36:], 2) // radius
		copy(rec[40:], "frame")
	}

	for f := 0; f < numFrames; f++ {
		rec := buf[ofsTags+f*md3TagSize:]
		copy(rec, "tag_head")
		putF32(rec[64:], 1)
		putF32(rec[68:], 2)
		putF32(rec[72:], float32(3+f))
		putF32(rec[76:], 1)  // axis[0].x
		putF32(rec[92:], 1)  // axis[1].y
		putF32(rec[108:], 1) // axis[2].z
	}

	surf := buf[ofsSurf:]
	copy(surf[4:], "Body_1")
	le.PutUint32(surf[72:], numFrames)
	le.PutUint32(surf[76:], 1) // numShaders
	le.PutUint32(surf[80:], 3) // numVerts
	le.PutUint32(surf[84:], 1) // numTriangles
	le.PutUint32(surf[88:], ofsTris)
	le.PutUint32(surf[92:], ofsShaders)
	le.PutUint32(surf[96:], ofsSt)
	le.PutUint32(surf[100:], ofsXyz)
	le.PutUint32(surf[104:], surfEnd)

	copy(surf[ofsShaders:], "models/test/skin")

	le.PutUint32(surf[ofsTris:], 0)
	le.PutUint32(surf[ofsTris+4:], 1)
	le.PutUint32(surf[ofsTris+8:], 2)

	st := surf[ofsSt:]
	putF32(st[8:], 1)  // vertex 1: (1, 0)
	putF32(st[20:], 1) // vertex 2: (0, 1)

	for f := 0; f < numFrames; f++ {
		vtx := surf[ofsXyz+f*3*md3VertexSize:]
		le.PutUint16(vtx[0:], uint16(64*(f+1))) // vertex 0: x grows per frame
		le.PutUint16(vtx[10:], 64)              // vertex 1: y = 1 unit
		le.PutUint16(vtx[20:], 64)              // vertex 2: z = 1 unit
	}

	return buf
}

func TestParseMD3Minimal(t *testing.T) {
	md3, err := ParseMD3(makeMinimalMD3(), "models/test.md3", nil)
	if err != nil {
		t.Fatalf("ParseMD3: %v", err)
	}

	if md3.Name != "models/test.md3" {
		t.Errorf("Name = %q", md3.Name)
	}
	if md3.NumFrames != 2 || md3.NumTags != 1 {
		t.Fatalf("NumFrames = %d, NumTags = %d", md3.NumFrames, md3.NumTags)
	}
	if md3.Frames[0].Radius != 2 {
		t.Errorf("frame radius = %v", md3.Frames[0].Radius)
	}

	tag := md3.Tag(1, 0)
	if tag.Name != "tag_head" {
		t.Errorf("tag name = %q", tag.Name)
	}
	if tag.Origin.Z != 4 {
		t.Errorf("frame 1 tag origin z = %v, want 4", tag.Origin.Z)
	}
	if tag.Axis[0].X != 1 || tag.Axis[1].Y != 1 || tag.Axis[2].Z != 1 {
		t.Errorf("tag axis not identity: %+v", tag.Axis)
	}

	if len(md3.Surfaces) != 1 {
		t.Fatalf("surfaces = %d", len(md3.Surfaces))
	}
	surf := &md3.Surfaces[0]
	if surf.Name != "body" {
		t.Errorf("surface name = %q, want lowercased with LOD suffix stripped", surf.Name)
	}
	if surf.NumVerts != 3 || len(surf.Indexes) != 3 {
		t.Fatalf("NumVerts = %d, indexes = %d", surf.NumVerts, len(surf.Indexes))
	}
	if surf.TexCoords[2] != [2]float32{0, 1} {
		t.Errorf("texcoord 2 = %v", surf.TexCoords[2])
	}
	if len(surf.Vertices) != 6 {
		t.Fatalf("vertex records = %d, want frames*verts = 6", len(surf.Vertices))
	}
	if got := surf.FrameVertices(1)[0].X; got != 128 {
		t.Errorf("frame 1 vertex 0 x = %d, want 128", got)
	}
}

func TestParseMD3Shaders(t *testing.T) {
	data := makeMinimalMD3()

	md3, err := ParseMD3(data, "", resolverFunc(func(name string) (int, bool) {
		if name != "models/test/skin" {
			return 0, true
		}
		return 7, false
	}))
	if err != nil {
		t.Fatalf("ParseMD3: %v", err)
	}
	if got := md3.Surfaces[0].Shaders[0].Index; got != 7 {
		t.Errorf("resolved shader index = %d, want 7", got)
	}

	md3, err = ParseMD3(data, "", resolverFunc(func(string) (int, bool) {
		return 9, true // default shader: stored as 0
	}))
	if err != nil {
		t.Fatalf("ParseMD3: %v", err)
	}
	if got := md3.Surfaces[0].Shaders[0].Index; got != 0 {
		t.Errorf("defaulted shader index = %d, want 0", got)
	}
}

type resolverFunc func(string) (int, bool)

func (f resolverFunc) FindShader(name string) (int, bool) { return f(name) }

func TestParseMD3Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func([]byte) []byte
		wantErr error
	}{
		{
			name:    "truncated header",
			mutate:  func(b []byte) []byte { return b[:50] },
			wantErr: ErrCorrupt,
		},
		{
			name: "bad ident",
			mutate: func(b []byte) []byte {
				copy(b, "IDPX")
				return b
			},
			wantErr: ErrInvalidMD3Ident,
		},
		{
			name: "bad version",
			mutate: func(b []byte) []byte {
				le.PutUint32(b[4:], 14)
				return b
			},
			wantErr: ErrUnsupportedMD3Version,
		},
		{
			name: "zero frames",
			mutate: func(b []byte) []byte {
				le.PutUint32(b[76:], 0)
				return b
			},
			wantErr: ErrCorrupt,
		},
		{
			name: "end offset beyond file",
			mutate: func(b []byte) []byte {
				le.PutUint32(b[104:], uint32(len(b)+1))
				return b
			},
			wantErr: ErrCorrupt,
		},
		{
			name: "frame offset beyond file",
			mutate: func(b []byte) []byte {
				le.PutUint32(b[92:], uint32(len(b)))
				return b
			},
			wantErr: ErrCorrupt,
		},
		{
			name: "tag count wraps 32 bits",
			mutate: func(b []byte) []byte {
				// 2 frames * count * 112 bytes overflows int32 but must
				// still be caught by the 64-bit range check.
				le.PutUint32(b[80:], 0x0fffffff)
				return b
			},
			wantErr: ErrCorrupt,
		},
		{
			name: "surface frame count mismatch",
			mutate: func(b []byte) []byte {
				surf := b[le.Uint32(b[100:]):]
				le.PutUint32(surf[72:], 3)
				return b
			},
			wantErr: ErrCorrupt,
		},
		{
			name: "oversized surface",
			mutate: func(b []byte) []byte {
				surf := b[le.Uint32(b[100:]):]
				le.PutUint32(surf[80:], MaxSurfaceVerts+1)
				return b
			},
			wantErr: ErrTooLarge,
		},
		{
			name: "surface at vertex limit",
			mutate: func(b []byte) []byte {
				surf := b[le.Uint32(b[100:]):]
				le.PutUint32(surf[80:], MaxSurfaceVerts)
				return b
			},
			wantErr: ErrTooLarge,
		},
		{
			name: "triangle index out of range",
			mutate: func(b []byte) []byte {
				surf := b[le.Uint32(b[100:]):]
				le.PutUint32(surf[md3SurfaceSize+md3ShaderSize:], 3)
				return b
			},
			wantErr: ErrCorrupt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.mutate(makeMinimalMD3())
			_, err := ParseMD3(data, "", nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseMD3 error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
