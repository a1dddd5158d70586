package render

import (
	"fmt"

	"github.com/Faultbox/tremor/pkg/formats"
	qm "github.com/Faultbox/tremor/pkg/math"
)

// ErrMeshOverflow is returned when a surface does not fit in the
// remaining buffer space. The caller drains the buffer and retries.
var ErrMeshOverflow = fmt.Errorf("mesh buffer overflow")

// Buffer capacity, sized to the largest single surface the formats
// allow so any surface fits an empty buffer.
const (
	MaxBufferVerts   = formats.MaxSurfaceVerts
	MaxBufferIndexes = formats.MaxSurfaceIndexes
)

// MeshBuffer accumulates evaluated vertices from one or more surfaces
// into flat arrays ready for upload.
type MeshBuffer struct {
	XYZ       []qm.Vec3
	Normals   []qm.Vec3
	TexCoords [][2]float32
	Colors    [][4]uint8
	Indexes   []uint32
}

// NewMeshBuffer returns a buffer with full capacity reserved.
func NewMeshBuffer() *MeshBuffer {
	return &MeshBuffer{
		XYZ:       make([]qm.Vec3, 0, MaxBufferVerts),
		Normals:   make([]qm.Vec3, 0, MaxBufferVerts),
		TexCoords: make([][2]float32, 0, MaxBufferVerts),
		Colors:    make([][4]uint8, 0, MaxBufferVerts),
		Indexes:   make([]uint32, 0, MaxBufferIndexes),
	}
}

// NumVertexes returns the number of vertices written so far.
func (b *MeshBuffer) NumVertexes() int { return len(b.XYZ) }

// NumIndexes returns the number of indexes written so far.
func (b *MeshBuffer) NumIndexes() int { return len(b.Indexes) }

// Reset empties the buffer, keeping its capacity.
func (b *MeshBuffer) Reset() {
	b.XYZ = b.XYZ[:0]
	b.Normals = b.Normals[:0]
	b.TexCoords = b.TexCoords[:0]
	b.Colors = b.Colors[:0]
	b.Indexes = b.Indexes[:0]
}

// checkOverflow verifies the buffer has room for another surface.
func (b *MeshBuffer) checkOverflow(verts, indexes int) error {
	if len(b.XYZ)+verts > MaxBufferVerts || len(b.Indexes)+indexes > MaxBufferIndexes {
		return fmt.Errorf("%w: %d verts %d indexes on top of %d/%d",
			ErrMeshOverflow, verts, indexes, len(b.XYZ), len(b.Indexes))
	}
	return nil
}
