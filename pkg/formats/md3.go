package formats

import (
	"fmt"
	"os"
	"strings"

	qm "github.com/Faultbox/tremor/pkg/math"
)

// MD3 format errors.
var (
	ErrInvalidMD3Ident       = fmt.Errorf("%w: invalid MD3 ident", ErrWrongFormat)
	ErrUnsupportedMD3Version = fmt.Errorf("%w: unsupported MD3 version", ErrWrongFormat)
)

// MD3Ident is the four bytes opening every MD3 file.
const MD3Ident = "IDP3"

// MD3Version is the only supported MD3 revision.
const MD3Version = 15

// MD3MaxLODs caps the number of level-of-detail variants a registered MD3
// model may carry.
const MD3MaxLODs = 3

// On-disk record sizes.
const (
	md3HeaderSize   = 108
	md3FrameSize    = 56
	md3TagSize      = 112
	md3SurfaceSize  = 108
	md3ShaderSize   = 68
	md3TriangleSize = 12
	md3StSize       = 8
	md3VertexSize   = 8
)

// MD3Frame is one keyframe's bounding volume.
type MD3Frame struct {
	Bounds      qm.Bounds
	LocalOrigin qm.Vec3
	Radius      float32
	Name        string
}

// MD3Tag is an attachment point: an origin and orthonormal axes, stored
// once per frame.
type MD3Tag struct {
	Name   string
	Origin qm.Vec3
	Axis   [3]qm.Vec3
}

// MD3Shader is a surface material reference, resolved to a shader handle
// at load time.
type MD3Shader struct {
	Name  string
	Index int
}

// MD3Vertex is a quantized vertex: coordinates in 1/64 model units and a
// latitude/longitude packed normal. Decoding happens at draw time since
// every frame carries its own run of vertices.
type MD3Vertex struct {
	X, Y, Z int16
	Normal  uint16
}

// MD3Surface is one drawable mesh. Triangle indexes and texture
// coordinates are shared by all frames; vertices are stored as NumFrames
// consecutive runs.
type MD3Surface struct {
	Name      string
	Shaders   []MD3Shader
	Indexes   []int32
	TexCoords [][2]float32
	Vertices  []MD3Vertex
	NumVerts  int
}

// FrameVertices returns the vertex run for one keyframe.
func (s *MD3Surface) FrameVertices(frame int) []MD3Vertex {
	start := frame * s.NumVerts
	return s.Vertices[start : start+s.NumVerts]
}

// MD3 is a parsed keyframe-animated model.
type MD3 struct {
	Name      string
	NumFrames int
	NumTags   int
	Frames    []MD3Frame
	Tags      []MD3Tag
	Surfaces  []MD3Surface
}

// Tag returns the tag at the given frame and slot.
func (m *MD3) Tag(frame, index int) *MD3Tag {
	return &m.Tags[frame*m.NumTags+index]
}

// ParseMD3 parses an MD3 file from raw bytes. The shader resolver may be
// nil for tools that only inspect geometry.
func ParseMD3(data []byte, name string, shaders ShaderResolver) (*MD3, error) {
	if len(data) < md3HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is too small for an MD3 header", ErrCorrupt, len(data))
	}

	c := newCursor(data)
	if ident := string(c.take(4)); ident != MD3Ident {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidMD3Ident, ident)
	}
	if version := c.Int32(); version != MD3Version {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedMD3Version, version, MD3Version)
	}

	md3 := &MD3{Name: c.Name(MaxQPath)}
	if name != "" {
		md3.Name = name
	}
	c.Skip(4) // flags

	numFrames := c.Int32()
	numTags := c.Int32()
	numSurfaces := c.Int32()
	c.Skip(4) // numSkins, unused
	ofsFrames := c.Int32()
	ofsTags := c.Int32()
	ofsSurfaces := c.Int32()
	ofsEnd := c.Int32()

	if numFrames < 1 {
		return nil, fmt.Errorf("%w: model has no frames", ErrCorrupt)
	}
	if int64(ofsEnd) > int64(len(data)) || ofsEnd < md3HeaderSize {
		return nil, fmt.Errorf("%w: end offset %d outside file of %d bytes", ErrCorrupt, ofsEnd, len(data))
	}
	md3.NumFrames = int(numFrames)
	md3.NumTags = int(numTags)

	fc, err := c.section(int64(ofsFrames), int64(numFrames), md3FrameSize)
	if err != nil {
		return nil, fmt.Errorf("frames: %w", err)
	}
	md3.Frames = make([]MD3Frame, numFrames)
	for i := range md3.Frames {
		f := &md3.Frames[i]
		f.Bounds.Min = qm.Vec3{X: fc.Float32(), Y: fc.Float32(), Z: fc.Float32()}
		f.Bounds.Max = qm.Vec3{X: fc.Float32(), Y: fc.Float32(), Z: fc.Float32()}
		f.LocalOrigin = qm.Vec3{X: fc.Float32(), Y: fc.Float32(), Z: fc.Float32()}
		f.Radius = fc.Float32()
		f.Name = fc.Name(16)
	}

	tc, err := c.section(int64(ofsTags), int64(numFrames)*int64(numTags), md3TagSize)
	if err != nil {
		return nil, fmt.Errorf("tags: %w", err)
	}
	md3.Tags = make([]MD3Tag, int(numFrames)*int(numTags))
	for i := range md3.Tags {
		t := &md3.Tags[i]
		t.Name = tc.Name(MaxQPath)
		t.Origin = qm.Vec3{X: tc.Float32(), Y: tc.Float32(), Z: tc.Float32()}
		for a := 0; a < 3; a++ {
			t.Axis[a] = qm.Vec3{X: tc.Float32(), Y: tc.Float32(), Z: tc.Float32()}
		}
	}

	md3.Surfaces = make([]MD3Surface, 0, numSurfaces)
	offset := int64(ofsSurfaces)
	for i := int32(0); i < numSurfaces; i++ {
		surf, next, err := parseMD3Surface(data, offset, numFrames, shaders)
		if err != nil {
			return nil, fmt.Errorf("surface %d: %w", i, err)
		}
		md3.Surfaces = append(md3.Surfaces, surf)
		offset = next
	}

	if err := fc.Err(); err != nil {
		return nil, err
	}
	if err := tc.Err(); err != nil {
		return nil, err
	}
	return md3, nil
}

// parseMD3Surface parses one surface record. Surfaces are self
// terminating: each header's end offset, relative to the surface start,
// locates the next record.
func parseMD3Surface(data []byte, offset int64, modelFrames int32, shaders ShaderResolver) (MD3Surface, int64, error) {
	if err := checkRange(len(data), offset, 1, md3SurfaceSize); err != nil {
		return MD3Surface{}, 0, err
	}

	c := newCursor(data[offset:])
	c.Skip(4) // surface ident, ignored like the shader index below

	var surf MD3Surface
	surf.Name = strings.ToLower(c.Name(MaxQPath))
	// Strip a trailing LOD suffix such as "_1" so skin lookups match
	// across detail levels.
	if n := len(surf.Name); n > 2 && surf.Name[n-2] == '_' {
		surf.Name = surf.Name[:n-2]
	}
	c.Skip(4) // flags

	numFrames := c.Int32()
	numShaders := c.Int32()
	numVerts := c.Int32()
	numTriangles := c.Int32()
	ofsTriangles := c.Int32()
	ofsShaders := c.Int32()
	ofsSt := c.Int32()
	ofsXyzNormals := c.Int32()
	ofsEnd := c.Int32()

	if numFrames != modelFrames {
		return MD3Surface{}, 0, fmt.Errorf("%w: surface has %d frames, model has %d",
			ErrCorrupt, numFrames, modelFrames)
	}
	if numVerts >= MaxSurfaceVerts {
		return MD3Surface{}, 0, fmt.Errorf("%w: %d verts on surface %q (max %d)",
			ErrTooLarge, numVerts, surf.Name, MaxSurfaceVerts)
	}
	if numTriangles*3 >= MaxSurfaceIndexes {
		return MD3Surface{}, 0, fmt.Errorf("%w: %d triangles on surface %q (max %d)",
			ErrTooLarge, numTriangles, surf.Name, MaxSurfaceIndexes/3)
	}
	if err := checkRange(len(data), offset, int64(ofsEnd), 1); err != nil {
		return MD3Surface{}, 0, err
	}
	surf.NumVerts = int(numVerts)

	// All content offsets are relative to the surface start.
	sd := newCursor(data[offset : offset+int64(ofsEnd)])

	sc, err := sd.section(int64(ofsShaders), int64(numShaders), md3ShaderSize)
	if err != nil {
		return MD3Surface{}, 0, fmt.Errorf("shaders: %w", err)
	}
	surf.Shaders = make([]MD3Shader, numShaders)
	for i := range surf.Shaders {
		name := sc.Name(MaxQPath)
		sc.Skip(4) // stored shader index, replaced by the resolver
		surf.Shaders[i] = MD3Shader{Name: name, Index: resolveShader(shaders, name)}
	}

	tric, err := sd.section(int64(ofsTriangles), int64(numTriangles), md3TriangleSize)
	if err != nil {
		return MD3Surface{}, 0, fmt.Errorf("triangles: %w", err)
	}
	surf.Indexes = make([]int32, 3*numTriangles)
	for i := range surf.Indexes {
		idx := tric.Int32()
		if idx < 0 || idx >= numVerts {
			return MD3Surface{}, 0, fmt.Errorf("%w: triangle index %d outside %d verts",
				ErrCorrupt, idx, numVerts)
		}
		surf.Indexes[i] = idx
	}

	stc, err := sd.section(int64(ofsSt), int64(numVerts), md3StSize)
	if err != nil {
		return MD3Surface{}, 0, fmt.Errorf("texcoords: %w", err)
	}
	surf.TexCoords = make([][2]float32, numVerts)
	for i := range surf.TexCoords {
		surf.TexCoords[i] = [2]float32{stc.Float32(), stc.Float32()}
	}

	vc, err := sd.section(int64(ofsXyzNormals), int64(numVerts)*int64(numFrames), md3VertexSize)
	if err != nil {
		return MD3Surface{}, 0, fmt.Errorf("vertices: %w", err)
	}
	surf.Vertices = make([]MD3Vertex, int(numVerts)*int(numFrames))
	for i := range surf.Vertices {
		surf.Vertices[i] = MD3Vertex{
			X:      vc.Int16(),
			Y:      vc.Int16(),
			Z:      vc.Int16(),
			Normal: vc.Uint16(),
		}
	}

	for _, cur := range []*cursor{sc, tric, stc, vc} {
		if err := cur.Err(); err != nil {
			return MD3Surface{}, 0, err
		}
	}
	return surf, offset + int64(ofsEnd), nil
}

// ParseMD3File parses an MD3 file from disk.
func ParseMD3File(path string, shaders ShaderResolver) (*MD3, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading MD3 file: %w", err)
	}
	return ParseMD3(data, path, shaders)
}
