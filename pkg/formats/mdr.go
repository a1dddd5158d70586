package formats

import (
	"fmt"
	"os"

	qm "github.com/Faultbox/tremor/pkg/math"
)

// MDR format errors.
var (
	ErrInvalidMDRIdent       = fmt.Errorf("%w: invalid MDR ident", ErrWrongFormat)
	ErrUnsupportedMDRVersion = fmt.Errorf("%w: unsupported MDR version", ErrWrongFormat)
)

// MDRIdent is the four bytes opening every MDR file.
const MDRIdent = "RDM5"

// MDRVersion is the only supported MDR revision.
const MDRVersion = 2

// On-disk record sizes. Frames are variable length: a fixed header
// followed by one bone record per skeleton bone.
const (
	mdrHeaderSize        = 104
	mdrFrameHeaderSize   = 56 // includes the 16-byte frame name
	mdrCompFrameHdrSize  = 40 // compressed frames carry no name
	mdrBoneSize          = 48
	mdrCompBoneSize      = 24
	mdrLODSize           = 12
	mdrSurfaceSize       = 168
	mdrVertexHeaderSize  = 24
	mdrWeightSize        = 20
	mdrTriangleSize      = 12
	mdrTagSize           = 36
	mdrTagNameLen        = 32
)

// Compressed bones store each of the 12 matrix values as a biased 16-bit
// integer in 1/64 steps.
const (
	mdrCompBias  = 1 << 15
	mdrCompScale = 1.0 / 64
)

// MDRWeight attaches a vertex to one bone: the vertex contributes
// Offset transformed by the bone matrix, scaled by Weight.
type MDRWeight struct {
	BoneIndex int32
	Weight    float32
	Offset    qm.Vec3
}

// MDRVertex is a skinned vertex with a variable-length weight list.
type MDRVertex struct {
	Normal   qm.Vec3
	TexCoord [2]float32
	Weights  []MDRWeight
}

// MDRSurface is one drawable mesh of one detail level.
type MDRSurface struct {
	Name        string
	Shader      string
	ShaderIndex int
	Indexes     []int32
	Vertices    []MDRVertex
}

// MDRFrame holds the per-frame bounding volume and the skeleton pose as
// bone matrices. Compressed files are expanded at load time, so frames
// are always resident in this form.
type MDRFrame struct {
	Bounds      qm.Bounds
	LocalOrigin qm.Vec3
	Radius      float32
	Name        string
	Bones       []qm.Mat34
}

// MDRLOD is one detail level.
type MDRLOD struct {
	Surfaces []MDRSurface
}

// MDRTag is an attachment point bound to a bone. Unlike MD3 tags the
// transform comes from the animated skeleton, so tags are stored once.
type MDRTag struct {
	Name      string
	BoneIndex int32
}

// MDR is a parsed skeletal model.
type MDR struct {
	Name     string
	NumBones int
	Frames   []MDRFrame
	LODs     []MDRLOD
	Tags     []MDRTag
}

// NumFrames returns the animation frame count.
func (m *MDR) NumFrames() int { return len(m.Frames) }

// ParseMDR parses an MDR file from raw bytes, expanding compressed bone
// frames into full matrices.
func ParseMDR(data []byte, name string, shaders ShaderResolver) (*MDR, error) {
	if len(data) < mdrHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is too small for an MDR header", ErrCorrupt, len(data))
	}

	c := newCursor(data)
	if ident := string(c.take(4)); ident != MDRIdent {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidMDRIdent, ident)
	}
	if version := c.Int32(); version != MDRVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedMDRVersion, version, MDRVersion)
	}

	mdr := &MDR{Name: c.Name(MaxQPath)}
	if name != "" {
		mdr.Name = name
	}

	numFrames := c.Int32()
	numBones := c.Int32()
	ofsFrames := c.Int32()
	numLODs := c.Int32()
	ofsLODs := c.Int32()
	numTags := c.Int32()
	ofsTags := c.Int32()
	ofsEnd := c.Int32()

	if numFrames < 1 {
		return nil, fmt.Errorf("%w: model has no frames", ErrCorrupt)
	}
	if numBones < 0 || numBones > MaxBones {
		return nil, fmt.Errorf("%w: %d bones (max %d)", ErrTooLarge, numBones, MaxBones)
	}
	if int64(ofsEnd) > int64(len(data)) {
		return nil, fmt.Errorf("%w: end offset %d outside file of %d bytes", ErrCorrupt, ofsEnd, len(data))
	}
	mdr.NumBones = int(numBones)

	// A negative frame offset marks compressed bone data at the absolute
	// value of the offset.
	var err error
	if ofsFrames < 0 {
		mdr.Frames, err = parseMDRCompFrames(c, int64(-ofsFrames), numFrames, numBones)
	} else {
		mdr.Frames, err = parseMDRFrames(c, int64(ofsFrames), numFrames, numBones)
	}
	if err != nil {
		return nil, fmt.Errorf("frames: %w", err)
	}

	mdr.LODs = make([]MDRLOD, 0, numLODs)
	lodOffset := int64(ofsLODs)
	for i := int32(0); i < numLODs; i++ {
		lod, next, err := parseMDRLOD(data, lodOffset, numBones, shaders)
		if err != nil {
			return nil, fmt.Errorf("lod %d: %w", i, err)
		}
		mdr.LODs = append(mdr.LODs, lod)
		lodOffset = next
	}

	tagc, err := c.section(int64(ofsTags), int64(numTags), mdrTagSize)
	if err != nil {
		return nil, fmt.Errorf("tags: %w", err)
	}
	mdr.Tags = make([]MDRTag, numTags)
	for i := range mdr.Tags {
		boneIndex := tagc.Int32()
		if boneIndex < 0 || boneIndex >= numBones {
			return nil, fmt.Errorf("%w: tag bone index %d outside %d bones",
				ErrCorrupt, boneIndex, numBones)
		}
		mdr.Tags[i] = MDRTag{BoneIndex: boneIndex, Name: tagc.Name(mdrTagNameLen)}
	}
	if err := tagc.Err(); err != nil {
		return nil, err
	}
	return mdr, nil
}

func parseMDRFrames(c *cursor, offset int64, numFrames, numBones int32) ([]MDRFrame, error) {
	frameSize := mdrFrameHeaderSize + int(numBones)*mdrBoneSize
	fc, err := c.section(offset, int64(numFrames), frameSize)
	if err != nil {
		return nil, err
	}

	frames := make([]MDRFrame, numFrames)
	for i := range frames {
		f := &frames[i]
		f.Bounds.Min = qm.Vec3{X: fc.Float32(), Y: fc.Float32(), Z: fc.Float32()}
		f.Bounds.Max = qm.Vec3{X: fc.Float32(), Y: fc.Float32(), Z: fc.Float32()}
		f.LocalOrigin = qm.Vec3{X: fc.Float32(), Y: fc.Float32(), Z: fc.Float32()}
		f.Radius = fc.Float32()
		f.Name = fc.Name(16)
		f.Bones = make([]qm.Mat34, numBones)
		for b := range f.Bones {
			for k := 0; k < 12; k++ {
				f.Bones[b][k] = fc.Float32()
			}
		}
	}
	return frames, fc.Err()
}

func parseMDRCompFrames(c *cursor, offset int64, numFrames, numBones int32) ([]MDRFrame, error) {
	frameSize := mdrCompFrameHdrSize + int(numBones)*mdrCompBoneSize
	fc, err := c.section(offset, int64(numFrames), frameSize)
	if err != nil {
		return nil, err
	}

	frames := make([]MDRFrame, numFrames)
	for i := range frames {
		f := &frames[i]
		f.Bounds.Min = qm.Vec3{X: fc.Float32(), Y: fc.Float32(), Z: fc.Float32()}
		f.Bounds.Max = qm.Vec3{X: fc.Float32(), Y: fc.Float32(), Z: fc.Float32()}
		f.LocalOrigin = qm.Vec3{X: fc.Float32(), Y: fc.Float32(), Z: fc.Float32()}
		f.Radius = fc.Float32()
		f.Bones = make([]qm.Mat34, numBones)
		for b := range f.Bones {
			f.Bones[b] = uncompressBone(fc)
		}
	}
	return frames, fc.Err()
}

// uncompressBone expands a 24-byte compressed bone record: three
// translation values followed by the nine rotation/scale values, each
// biased by 1<<15 and stored in 1/64 steps.
func uncompressBone(c *cursor) qm.Mat34 {
	dec := func() float32 {
		return float32(int(c.Uint16())-mdrCompBias) * mdrCompScale
	}
	var m qm.Mat34
	m[3] = dec()
	m[7] = dec()
	m[11] = dec()
	m[0], m[1], m[2] = dec(), dec(), dec()
	m[4], m[5], m[6] = dec(), dec(), dec()
	m[8], m[9], m[10] = dec(), dec(), dec()
	return m
}

func parseMDRLOD(data []byte, offset int64, numBones int32, shaders ShaderResolver) (MDRLOD, int64, error) {
	if err := checkRange(len(data), offset, 1, mdrLODSize); err != nil {
		return MDRLOD{}, 0, err
	}
	c := newCursor(data[offset:])
	numSurfaces := c.Int32()
	ofsSurfaces := c.Int32()
	ofsEnd := c.Int32()
	if err := checkRange(len(data), offset, int64(ofsEnd), 1); err != nil {
		return MDRLOD{}, 0, err
	}

	// Surface offsets are relative to the LOD start.
	lodData := data[offset : offset+int64(ofsEnd)]
	lod := MDRLOD{Surfaces: make([]MDRSurface, 0, numSurfaces)}
	surfOffset := int64(ofsSurfaces)
	for i := int32(0); i < numSurfaces; i++ {
		surf, next, err := parseMDRSurface(lodData, surfOffset, numBones, shaders)
		if err != nil {
			return MDRLOD{}, 0, fmt.Errorf("surface %d: %w", i, err)
		}
		lod.Surfaces = append(lod.Surfaces, surf)
		surfOffset = next
	}
	return lod, offset + int64(ofsEnd), nil
}

func parseMDRSurface(data []byte, offset int64, numBones int32, shaders ShaderResolver) (MDRSurface, int64, error) {
	if err := checkRange(len(data), offset, 1, mdrSurfaceSize); err != nil {
		return MDRSurface{}, 0, err
	}

	c := newCursor(data[offset:])
	c.Skip(4) // surface ident

	var surf MDRSurface
	surf.Name = c.Name(MaxQPath)
	surf.Shader = c.Name(MaxQPath)
	c.Skip(4) // stored shader index, replaced by the resolver
	surf.ShaderIndex = resolveShader(shaders, surf.Shader)
	c.Skip(4) // ofsHeader, negative offset back to the file header

	numVerts := c.Int32()
	ofsVerts := c.Int32()
	numTriangles := c.Int32()
	ofsTriangles := c.Int32()
	c.Skip(8) // bone references, unused
	ofsEnd := c.Int32()

	if numVerts >= MaxSurfaceVerts {
		return MDRSurface{}, 0, fmt.Errorf("%w: %d verts on surface %q (max %d)",
			ErrTooLarge, numVerts, surf.Name, MaxSurfaceVerts)
	}
	if numTriangles*3 >= MaxSurfaceIndexes {
		return MDRSurface{}, 0, fmt.Errorf("%w: %d triangles on surface %q (max %d)",
			ErrTooLarge, numTriangles, surf.Name, MaxSurfaceIndexes/3)
	}
	if err := checkRange(len(data), offset, int64(ofsEnd), 1); err != nil {
		return MDRSurface{}, 0, err
	}
	surfData := data[offset : offset+int64(ofsEnd)]

	// Vertices are variable length, so they are walked rather than
	// sectioned: each record declares its own weight count.
	if err := checkRange(len(surfData), int64(ofsVerts), 1, 0); err != nil {
		return MDRSurface{}, 0, fmt.Errorf("vertices: %w", err)
	}
	vc := newCursor(surfData[ofsVerts:])
	surf.Vertices = make([]MDRVertex, numVerts)
	for i := range surf.Vertices {
		v := &surf.Vertices[i]
		v.Normal = qm.Vec3{X: vc.Float32(), Y: vc.Float32(), Z: vc.Float32()}
		v.TexCoord = [2]float32{vc.Float32(), vc.Float32()}
		numWeights := vc.Int32()
		if numWeights < 0 || numWeights > int32(numBones) {
			return MDRSurface{}, 0, fmt.Errorf("%w: vertex %d has %d weights",
				ErrCorrupt, i, numWeights)
		}
		v.Weights = make([]MDRWeight, numWeights)
		for w := range v.Weights {
			boneIndex := vc.Int32()
			if boneIndex < 0 || boneIndex >= numBones {
				return MDRSurface{}, 0, fmt.Errorf("%w: weight bone index %d outside %d bones",
					ErrCorrupt, boneIndex, numBones)
			}
			v.Weights[w] = MDRWeight{
				BoneIndex: boneIndex,
				Weight:    vc.Float32(),
				Offset:    qm.Vec3{X: vc.Float32(), Y: vc.Float32(), Z: vc.Float32()},
			}
		}
		if err := vc.Err(); err != nil {
			return MDRSurface{}, 0, fmt.Errorf("vertex %d: %w", i, err)
		}
	}

	tc, err := newCursor(surfData).section(int64(ofsTriangles), int64(numTriangles), mdrTriangleSize)
	if err != nil {
		return MDRSurface{}, 0, fmt.Errorf("triangles: %w", err)
	}
	surf.Indexes = make([]int32, 3*numTriangles)
	for i := range surf.Indexes {
		idx := tc.Int32()
		if idx < 0 || idx >= numVerts {
			return MDRSurface{}, 0, fmt.Errorf("%w: triangle index %d outside %d verts",
				ErrCorrupt, idx, numVerts)
		}
		surf.Indexes[i] = idx
	}
	if err := tc.Err(); err != nil {
		return MDRSurface{}, 0, err
	}
	return surf, offset + int64(ofsEnd), nil
}

// ParseMDRFile parses an MDR file from disk.
func ParseMDRFile(path string, shaders ShaderResolver) (*MDR, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading MDR file: %w", err)
	}
	return ParseMDR(data, path, shaders)
}
