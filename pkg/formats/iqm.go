package formats

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	qm "github.com/Faultbox/tremor/pkg/math"
)

// IQM format errors.
var (
	ErrInvalidIQMMagic       = fmt.Errorf("%w: invalid IQM magic", ErrWrongFormat)
	ErrUnsupportedIQMVersion = fmt.Errorf("%w: unsupported IQM version", ErrWrongFormat)
)

// IQMMagic is the 16-byte string opening every IQM file, including the
// terminating NUL.
const IQMMagic = "INTERQUAKEMODEL\x00"

// IQMVersion is the only supported IQM revision.
const IQMVersion = 2

// IQMMaxFileSize caps the declared file size. Everything the format can
// express fits well below this.
const IQMMaxFileSize = 16 << 20

// Vertex array types.
const (
	iqmPosition     = 0
	iqmTexCoord     = 1
	iqmNormal       = 2
	iqmTangent      = 3
	iqmBlendIndexes = 4
	iqmBlendWeights = 5
	iqmColor        = 6
)

// Vertex array component formats.
const (
	iqmByte  = 0
	iqmUByte = 1
	iqmInt   = 4
	iqmUInt  = 5
	iqmFloat = 7
)

// On-disk record sizes.
const (
	iqmHeaderSize      = 124
	iqmVertexArraySize = 20
	iqmTriangleSize    = 12
	iqmMeshSize        = 24
	iqmJointSize       = 48
	iqmPoseSize        = 88
	iqmBoundsSize      = 32
)

// IQMTransform is one joint's pose for one frame, decoded from the
// per-channel compressed frame data.
type IQMTransform struct {
	Translate qm.Vec3
	Rotate    qm.Quat
	Scale     qm.Vec3
}

// IQMInfluence is a unique combination of up to four joint indexes and
// blend weights. Vertices sharing a combination share one influence, so
// evaluators blend each matrix set once per combination instead of once
// per vertex.
type IQMInfluence struct {
	Indexes [4]uint8
	Weights [4]float32
}

// IQMSurface is one drawable mesh, addressing shared vertex and triangle
// arrays by range.
type IQMSurface struct {
	Name           string
	Material       string
	ShaderIndex    int
	FirstVertex    int
	NumVertexes    int
	FirstTriangle  int
	NumTriangles   int
	FirstInfluence int
	NumInfluences  int
}

// IQM is a parsed skeletal model. Vertex attributes live in flat arrays
// indexed by global vertex number; surfaces carve out ranges of them.
type IQM struct {
	Name         string
	NumFrames    int
	NumVertexes  int
	NumJoints    int
	NumPoses     int
	Surfaces     []IQMSurface
	Triangles    []int32
	Positions    []float32
	Normals      []float32
	TexCoords    []float32
	Colors       []uint8 // 4 per vertex, nil when the file has none

	// Influences maps each vertex to an entry in Blends.
	Influences []int32
	Blends     []IQMInfluence

	JointNames   []string
	JointParents []int32
	BindMats     []qm.Mat34
	InvBindMats  []qm.Mat34

	// Poses holds NumFrames runs of NumPoses transforms. Empty for
	// unanimated models.
	Poses []IQMTransform

	// Bounds holds one box per frame, or a single box computed from the
	// vertex data for unanimated models. Nil when the file carries no
	// bounds and has frames, in which case culling must be conservative.
	Bounds []qm.Bounds
}

// FramePoses returns the pose transforms for one frame.
func (m *IQM) FramePoses(frame int) []IQMTransform {
	start := frame * m.NumPoses
	return m.Poses[start : start+m.NumPoses]
}

// iqmSection validates and returns a cursor over an IQM file section.
// A zero offset with a nonzero count is rejected: every populated section
// must point past the header.
func iqmSection(c *cursor, off, count uint32, size int) (*cursor, error) {
	if count > 0 && off == 0 {
		return nil, fmt.Errorf("%w: zero section offset", ErrCorrupt)
	}
	return c.section(int64(off), int64(count), size)
}

// ParseIQM parses an IQM file from raw bytes, decompressing pose channels
// and precomputing bind matrices and their inverses.
func ParseIQM(data []byte, name string, shaders ShaderResolver) (*IQM, error) {
	if len(data) < iqmHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is too small for an IQM header", ErrCorrupt, len(data))
	}
	if !bytes.Equal(data[:16], []byte(IQMMagic)) {
		return nil, ErrInvalidIQMMagic
	}

	c := newCursor(data)
	c.Skip(16)
	if version := c.Int32(); version != IQMVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedIQMVersion, version, IQMVersion)
	}

	fileSize := c.Uint32()
	if fileSize > IQMMaxFileSize {
		return nil, fmt.Errorf("%w: declared size %d exceeds %d bytes", ErrTooLarge, fileSize, IQMMaxFileSize)
	}
	if int64(fileSize) > int64(len(data)) || fileSize < iqmHeaderSize {
		return nil, fmt.Errorf("%w: declared size %d, file has %d bytes", ErrCorrupt, fileSize, len(data))
	}
	// All section offsets are validated against the declared size, not
	// whatever trails it.
	c = newCursor(data[:fileSize])
	c.Skip(24) // magic, version, filesize

	c.Skip(4) // flags
	numText := c.Uint32()
	ofsText := c.Uint32()
	numMeshes := c.Uint32()
	ofsMeshes := c.Uint32()
	numVertexArrays := c.Uint32()
	numVertexes := c.Uint32()
	ofsVertexArrays := c.Uint32()
	numTriangles := c.Uint32()
	ofsTriangles := c.Uint32()
	c.Skip(4) // ofs_adjacency
	numJoints := c.Uint32()
	ofsJoints := c.Uint32()
	numPoses := c.Uint32()
	ofsPoses := c.Uint32()
	c.Skip(8) // anims
	numFrames := c.Uint32()
	numFrameChannels := c.Uint32()
	ofsFrames := c.Uint32()
	ofsBounds := c.Uint32()

	if numJoints > MaxBones {
		return nil, fmt.Errorf("%w: %d joints (max %d)", ErrTooLarge, numJoints, MaxBones)
	}
	if numPoses != numJoints && numPoses != 0 {
		return nil, fmt.Errorf("%w: %d poses for %d joints, want equal or zero",
			ErrCorrupt, numPoses, numJoints)
	}

	if _, err := iqmSection(c, ofsText, numText, 1); err != nil {
		return nil, fmt.Errorf("text: %w", err)
	}
	text := data[ofsText : int64(ofsText)+int64(numText)]
	textAt := func(off uint32) string {
		s := text[off:]
		if idx := bytes.IndexByte(s, 0); idx >= 0 {
			s = s[:idx]
		}
		return string(s)
	}

	iqm := &IQM{
		Name:      name,
		NumFrames: int(numFrames),
		NumJoints: int(numJoints),
		NumPoses:  int(numPoses),
	}

	if numMeshes > 0 {
		if err := parseIQMGeometry(iqm, c, textAt, numText, iqmGeomHeader{
			numMeshes:       numMeshes,
			ofsMeshes:       ofsMeshes,
			numVertexArrays: numVertexArrays,
			ofsVertexArrays: ofsVertexArrays,
			numVertexes:     numVertexes,
			numTriangles:    numTriangles,
			ofsTriangles:    ofsTriangles,
			numJoints:       numJoints,
		}, shaders); err != nil {
			return nil, err
		}
	}

	if numJoints > 0 {
		if err := parseIQMJoints(iqm, c, textAt, numText, numJoints, ofsJoints); err != nil {
			return nil, err
		}
	}

	if numPoses > 0 {
		// The pose table is allocated numFrames*numPoses strong. The frame
		// count only gets cross-checked against stored data when channels or
		// bounds exist, so bound the product against the declared file size
		// before trusting it.
		if int64(numFrames)*int64(numPoses) > int64(fileSize) {
			return nil, fmt.Errorf("%w: %d frames of %d poses in a %d byte file",
				ErrTooLarge, numFrames, numPoses, fileSize)
		}
		if err := parseIQMPoses(iqm, c, numPoses, ofsPoses, numFrames, numFrameChannels, ofsFrames); err != nil {
			return nil, err
		}
	}

	switch {
	case ofsBounds != 0:
		bc, err := iqmSection(c, ofsBounds, numFrames, iqmBoundsSize)
		if err != nil {
			return nil, fmt.Errorf("bounds: %w", err)
		}
		iqm.Bounds = make([]qm.Bounds, numFrames)
		for i := range iqm.Bounds {
			iqm.Bounds[i].Min = qm.Vec3{X: bc.Float32(), Y: bc.Float32(), Z: bc.Float32()}
			iqm.Bounds[i].Max = qm.Vec3{X: bc.Float32(), Y: bc.Float32(), Z: bc.Float32()}
			bc.Skip(8) // xyradius, radius
		}
		if err := bc.Err(); err != nil {
			return nil, err
		}
	case numMeshes > 0 && numFrames == 0:
		// Unanimated model without stored bounds: scan the vertex data.
		b := qm.ClearBounds()
		for i := 0; i < iqm.NumVertexes; i++ {
			b.AddPoint(qm.Vec3{
				X: iqm.Positions[3*i],
				Y: iqm.Positions[3*i+1],
				Z: iqm.Positions[3*i+2],
			})
		}
		iqm.Bounds = []qm.Bounds{b}
	}

	return iqm, nil
}

type iqmGeomHeader struct {
	numMeshes       uint32
	ofsMeshes       uint32
	numVertexArrays uint32
	ofsVertexArrays uint32
	numVertexes     uint32
	numTriangles    uint32
	ofsTriangles    uint32
	numJoints       uint32
}

// iqmVertexArrays records where each recognized attribute lives in the
// file after the first validation pass.
type iqmVertexArrays struct {
	format [iqmColor + 1]int32
	offset [iqmColor + 1]uint32
}

func parseIQMGeometry(iqm *IQM, c *cursor, textAt func(uint32) string, numText uint32, h iqmGeomHeader, shaders ShaderResolver) error {
	arrays := iqmVertexArrays{}
	for i := range arrays.format {
		arrays.format[i] = -1
	}

	vac, err := iqmSection(c, h.ofsVertexArrays, h.numVertexArrays, iqmVertexArraySize)
	if err != nil {
		return fmt.Errorf("vertex arrays: %w", err)
	}
	for i := uint32(0); i < h.numVertexArrays; i++ {
		vaType := vac.Uint32()
		vac.Skip(4) // flags
		vaFormat := vac.Uint32()
		vaSize := vac.Uint32()
		vaOffset := vac.Uint32()

		if vaSize < 1 || vaSize > 4 {
			return fmt.Errorf("%w: vertex array %d has %d components", ErrCorrupt, i, vaSize)
		}

		n := h.numVertexes * vaSize
		switch vaFormat {
		case iqmByte, iqmUByte:
			if _, err := iqmSection(c, vaOffset, n, 1); err != nil {
				return fmt.Errorf("vertex array %d: %w", i, err)
			}
		case iqmInt, iqmUInt, iqmFloat:
			if _, err := iqmSection(c, vaOffset, n, 4); err != nil {
				return fmt.Errorf("vertex array %d: %w", i, err)
			}
		default:
			return fmt.Errorf("%w: vertex array %d has unsupported format %d", ErrCorrupt, i, vaFormat)
		}

		if int(vaType) >= len(arrays.format) {
			continue
		}
		arrays.format[vaType] = int32(vaFormat)
		arrays.offset[vaType] = vaOffset

		switch vaType {
		case iqmPosition, iqmNormal:
			if vaFormat != iqmFloat || vaSize != 3 {
				return fmt.Errorf("%w: position/normal array must be 3 floats", ErrCorrupt)
			}
		case iqmTangent:
			if vaFormat != iqmFloat || vaSize != 4 {
				return fmt.Errorf("%w: tangent array must be 4 floats", ErrCorrupt)
			}
		case iqmTexCoord:
			if vaFormat != iqmFloat || vaSize != 2 {
				return fmt.Errorf("%w: texcoord array must be 2 floats", ErrCorrupt)
			}
		case iqmBlendIndexes:
			if (vaFormat != iqmInt && vaFormat != iqmUByte) || vaSize != 4 {
				return fmt.Errorf("%w: blend index array must be 4 ints or bytes", ErrCorrupt)
			}
		case iqmBlendWeights:
			if (vaFormat != iqmFloat && vaFormat != iqmUByte) || vaSize != 4 {
				return fmt.Errorf("%w: blend weight array must be 4 floats or bytes", ErrCorrupt)
			}
		case iqmColor:
			if vaFormat != iqmUByte || vaSize != 4 {
				return fmt.Errorf("%w: color array must be 4 bytes", ErrCorrupt)
			}
		}
	}
	if err := vac.Err(); err != nil {
		return err
	}

	if arrays.format[iqmPosition] == -1 || arrays.format[iqmNormal] == -1 || arrays.format[iqmTexCoord] == -1 {
		return fmt.Errorf("%w: missing position, normal or texcoord array", ErrCorrupt)
	}
	if h.numJoints > 0 {
		if arrays.format[iqmBlendIndexes] == -1 || arrays.format[iqmBlendWeights] == -1 {
			return fmt.Errorf("%w: skeletal model missing blend index or weight array", ErrCorrupt)
		}
	} else {
		// Without a skeleton the blend arrays are dead weight.
		arrays.format[iqmBlendIndexes] = -1
		arrays.format[iqmBlendWeights] = -1
	}

	iqm.NumVertexes = int(h.numVertexes)
	iqm.Positions = readFloats(c, arrays.offset[iqmPosition], 3*h.numVertexes)
	iqm.Normals = readFloats(c, arrays.offset[iqmNormal], 3*h.numVertexes)
	iqm.TexCoords = readFloats(c, arrays.offset[iqmTexCoord], 2*h.numVertexes)
	if arrays.format[iqmColor] != -1 {
		off := arrays.offset[iqmColor]
		iqm.Colors = append([]uint8(nil), c.data[off:off+4*h.numVertexes]...)
	}

	tc, err := iqmSection(c, h.ofsTriangles, h.numTriangles, iqmTriangleSize)
	if err != nil {
		return fmt.Errorf("triangles: %w", err)
	}
	iqm.Triangles = make([]int32, 3*h.numTriangles)
	for i := range iqm.Triangles {
		v := tc.Uint32()
		if v >= h.numVertexes {
			return fmt.Errorf("%w: triangle vertex %d outside %d vertexes", ErrCorrupt, v, h.numVertexes)
		}
		iqm.Triangles[i] = int32(v)
	}
	if err := tc.Err(); err != nil {
		return err
	}

	var blends []IQMInfluence
	if h.numJoints > 0 {
		blends, err = decodeIQMBlends(c, arrays, h.numVertexes, h.numJoints)
		if err != nil {
			return err
		}
		iqm.Influences = make([]int32, h.numVertexes)
	}

	mc, err := iqmSection(c, h.ofsMeshes, h.numMeshes, iqmMeshSize)
	if err != nil {
		return fmt.Errorf("meshes: %w", err)
	}
	iqm.Surfaces = make([]IQMSurface, h.numMeshes)
	for i := range iqm.Surfaces {
		surf := &iqm.Surfaces[i]
		nameOfs := mc.Uint32()
		materialOfs := mc.Uint32()
		firstVertex := mc.Uint32()
		numVertexes := mc.Uint32()
		firstTriangle := mc.Uint32()
		numTriangles := mc.Uint32()

		if nameOfs >= numText || materialOfs >= numText {
			return fmt.Errorf("%w: mesh %d name outside text block", ErrCorrupt, i)
		}
		surf.Name = strings.ToLower(textAt(nameOfs))
		surf.Material = textAt(materialOfs)
		surf.ShaderIndex = resolveShader(shaders, surf.Material)

		if numVertexes >= MaxSurfaceVerts {
			return fmt.Errorf("%w: %d verts on surface %q (max %d)",
				ErrTooLarge, numVertexes, surf.Name, MaxSurfaceVerts)
		}
		if numTriangles*3 >= MaxSurfaceIndexes {
			return fmt.Errorf("%w: %d triangles on surface %q (max %d)",
				ErrTooLarge, numTriangles, surf.Name, MaxSurfaceIndexes/3)
		}
		if uint64(firstVertex)+uint64(numVertexes) > uint64(h.numVertexes) ||
			uint64(firstTriangle)+uint64(numTriangles) > uint64(h.numTriangles) {
			return fmt.Errorf("%w: mesh %d ranges outside model arrays", ErrCorrupt, i)
		}
		surf.FirstVertex = int(firstVertex)
		surf.NumVertexes = int(numVertexes)
		surf.FirstTriangle = int(firstTriangle)
		surf.NumTriangles = int(numTriangles)

		// Collapse this mesh's vertices onto unique influences so
		// evaluators blend each joint set once.
		if h.numJoints > 0 {
			surf.FirstInfluence = len(iqm.Blends)
			for j := 0; j < surf.NumVertexes; j++ {
				vtx := surf.FirstVertex + j
				found := -1
				for k := surf.FirstInfluence; k < len(iqm.Blends); k++ {
					if iqm.Blends[k] == blends[vtx] {
						found = k
						break
					}
				}
				if found < 0 {
					found = len(iqm.Blends)
					iqm.Blends = append(iqm.Blends, blends[vtx])
				}
				iqm.Influences[vtx] = int32(found)
			}
			surf.NumInfluences = len(iqm.Blends) - surf.FirstInfluence
		}
	}
	return mc.Err()
}

// readFloats copies a float array whose range was validated during the
// vertex array scan.
func readFloats(c *cursor, off, count uint32) []float32 {
	sc, _ := c.section(int64(off), int64(count), 4)
	out := make([]float32, count)
	for i := range out {
		out[i] = sc.Float32()
	}
	return out
}

// decodeIQMBlends reads the raw blend index and weight arrays into one
// influence record per vertex. Byte weights stay in 1/255 steps so a
// file with non-normalized weights keeps its exact sums.
func decodeIQMBlends(c *cursor, arrays iqmVertexArrays, numVertexes, numJoints uint32) ([]IQMInfluence, error) {
	blends := make([]IQMInfluence, numVertexes)

	ic := blendSection(c, arrays.offset[iqmBlendIndexes], numVertexes, arrays.format[iqmBlendIndexes])
	for i := range blends {
		for k := 0; k < 4; k++ {
			var idx uint32
			if arrays.format[iqmBlendIndexes] == iqmInt {
				idx = ic.Uint32()
			} else {
				idx = uint32(ic.Uint8())
			}
			if idx >= numJoints {
				return nil, fmt.Errorf("%w: blend index %d outside %d joints", ErrCorrupt, idx, numJoints)
			}
			blends[i].Indexes[k] = uint8(idx)
		}
	}
	if err := ic.Err(); err != nil {
		return nil, err
	}

	wc := blendSection(c, arrays.offset[iqmBlendWeights], numVertexes, arrays.format[iqmBlendWeights])
	for i := range blends {
		for k := 0; k < 4; k++ {
			if arrays.format[iqmBlendWeights] == iqmFloat {
				blends[i].Weights[k] = wc.Float32()
			} else {
				blends[i].Weights[k] = float32(wc.Uint8()) / 255
			}
		}
	}
	return blends, wc.Err()
}

// blendSection re-sections an already validated blend vertex array.
func blendSection(c *cursor, off, numVertexes uint32, format int32) *cursor {
	size := 1
	if format == iqmInt || format == iqmFloat {
		size = 4
	}
	sc, _ := c.section(int64(off), int64(numVertexes)*4, size)
	return sc
}

func parseIQMJoints(iqm *IQM, c *cursor, textAt func(uint32) string, numText, numJoints, ofsJoints uint32) error {
	jc, err := iqmSection(c, ofsJoints, numJoints, iqmJointSize)
	if err != nil {
		return fmt.Errorf("joints: %w", err)
	}

	iqm.JointNames = make([]string, numJoints)
	iqm.JointParents = make([]int32, numJoints)
	iqm.BindMats = make([]qm.Mat34, numJoints)
	iqm.InvBindMats = make([]qm.Mat34, numJoints)

	for i := 0; i < int(numJoints); i++ {
		nameOfs := jc.Uint32()
		parent := jc.Int32()
		translate := qm.Vec3{X: jc.Float32(), Y: jc.Float32(), Z: jc.Float32()}
		rotate := qm.Quat{X: jc.Float32(), Y: jc.Float32(), Z: jc.Float32(), W: jc.Float32()}
		scale := qm.Vec3{X: jc.Float32(), Y: jc.Float32(), Z: jc.Float32()}

		// Parents must precede children so one pass can accumulate the
		// bind matrices.
		if parent < -1 || int(parent) >= i {
			return fmt.Errorf("%w: joint %d has parent %d, joints must be topologically ordered",
				ErrCorrupt, i, parent)
		}
		if nameOfs >= numText {
			return fmt.Errorf("%w: joint %d name outside text block", ErrCorrupt, i)
		}
		iqm.JointNames[i] = textAt(nameOfs)
		iqm.JointParents[i] = parent

		base := qm.Mat34FromQuat(rotate.Normalize(), scale, translate)
		invBase := base.Invert()
		if parent >= 0 {
			iqm.BindMats[i] = iqm.BindMats[parent].Mul(base)
			iqm.InvBindMats[i] = invBase.Mul(iqm.InvBindMats[parent])
		} else {
			iqm.BindMats[i] = base
			iqm.InvBindMats[i] = invBase
		}
	}
	return jc.Err()
}

// iqmChannelMasks, one per pose channel: translate xyz, rotate xyzw,
// scale xyz.
const iqmNumChannels = 10

func parseIQMPoses(iqm *IQM, c *cursor, numPoses, ofsPoses, numFrames, numFrameChannels, ofsFrames uint32) error {
	type iqmPose struct {
		mask          uint32
		channelOffset [iqmNumChannels]float32
		channelScale  [iqmNumChannels]float32
	}

	pc, err := iqmSection(c, ofsPoses, numPoses, iqmPoseSize)
	if err != nil {
		return fmt.Errorf("poses: %w", err)
	}
	poses := make([]iqmPose, numPoses)
	for i := range poses {
		pc.Skip(4) // parent, redundant with the joint hierarchy
		poses[i].mask = pc.Uint32()
		for k := 0; k < iqmNumChannels; k++ {
			poses[i].channelOffset[k] = pc.Float32()
		}
		for k := 0; k < iqmNumChannels; k++ {
			poses[i].channelScale[k] = pc.Float32()
		}
	}
	if err := pc.Err(); err != nil {
		return err
	}

	fc, err := iqmSection(c, ofsFrames, numFrames*numFrameChannels, 2)
	if err != nil {
		return fmt.Errorf("frame data: %w", err)
	}

	iqm.Poses = make([]IQMTransform, int(numFrames)*int(numPoses))
	out := 0
	for f := uint32(0); f < numFrames; f++ {
		for _, pose := range poses {
			var ch [iqmNumChannels]float32
			for k := 0; k < iqmNumChannels; k++ {
				ch[k] = pose.channelOffset[k]
				if pose.mask&(1<<k) != 0 {
					ch[k] += float32(fc.Uint16()) * pose.channelScale[k]
				}
			}
			iqm.Poses[out] = IQMTransform{
				Translate: qm.Vec3{X: ch[0], Y: ch[1], Z: ch[2]},
				Rotate:    qm.Quat{X: ch[3], Y: ch[4], Z: ch[5], W: ch[6]}.Normalize(),
				Scale:     qm.Vec3{X: ch[7], Y: ch[8], Z: ch[9]},
			}
			out++
		}
	}
	if err := fc.Err(); err != nil {
		return fmt.Errorf("%w: frame data shorter than pose channels require", ErrCorrupt)
	}
	return nil
}

// ParseIQMFile parses an IQM file from disk.
func ParseIQMFile(path string, shaders ShaderResolver) (*IQM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading IQM file: %w", err)
	}
	return ParseIQM(data, path, shaders)
}
