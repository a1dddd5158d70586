// Package formats provides parsers for binary animated-model file formats.
//
// Three formats are supported: MD3 (per-vertex keyframe morphing with
// attachment tags), MDR (skeletal animation with optionally compressed
// bone frames), and IQM (skeletal animation with per-channel pose
// compression). Each parser validates untrusted input up front and
// transcodes the file into resident, render-ready structures; nothing in
// the returned model aliases the input buffer.
package formats

import (
	"errors"
	"fmt"
)

// Load failure classes. Per-format errors wrap one of these so callers can
// tell a file in the wrong format apart from one that is damaged or
// oversized.
var (
	// ErrWrongFormat means the file is not in the expected format: the
	// ident or version did not match. Trying another loader may succeed.
	ErrWrongFormat = errors.New("wrong model format")

	// ErrCorrupt means the file matched the format but its internal
	// structure is inconsistent: offsets out of range, impossible counts,
	// malformed records. The file is unusable.
	ErrCorrupt = errors.New("corrupt model file")

	// ErrTooLarge means a count or size exceeds a hard resource limit.
	ErrTooLarge = errors.New("model exceeds limits")
)

// Hard limits on model contents. Files exceeding these are rejected
// rather than clamped.
const (
	// MaxQPath is the longest stored object name, including the NUL.
	MaxQPath = 64

	// MaxSurfaceVerts and MaxSurfaceIndexes bound a single drawable
	// surface so evaluators can size their scratch buffers statically.
	MaxSurfaceVerts   = 1000
	MaxSurfaceIndexes = 6 * MaxSurfaceVerts

	// MaxBones bounds skeleton size for both skeletal formats.
	MaxBones = 128
)

// XyzScale converts MD3 quantized vertex coordinates to model units.
const XyzScale = 1.0 / 64

// ShaderResolver maps material names found in model files to shader
// handles. FindShader returns the handle and whether the lookup fell back
// to the default shader; defaulted materials are stored as handle 0 so a
// later registration of the real shader can take over.
type ShaderResolver interface {
	FindShader(name string) (index int, isDefault bool)
}

// nopResolver is used when no resolver is supplied, e.g. by offline tools
// that only inspect geometry.
type nopResolver struct{}

func (nopResolver) FindShader(string) (int, bool) { return 0, false }

func resolveShader(r ShaderResolver, name string) int {
	if r == nil {
		r = nopResolver{}
	}
	index, isDefault := r.FindShader(name)
	if isDefault {
		return 0
	}
	return index
}

// checkRange verifies that count records of size bytes starting at off lie
// inside a buffer of dataLen bytes. All arithmetic is 64-bit so crafted
// headers cannot wrap the product past the end of the file.
func checkRange(dataLen int, off, count int64, size int) error {
	if off < 0 || count < 0 {
		return fmt.Errorf("%w: negative offset or count", ErrCorrupt)
	}
	end := off + count*int64(size)
	if end < off || end > int64(dataLen) {
		return fmt.Errorf("%w: record range [%d, %d) outside file of %d bytes",
			ErrCorrupt, off, end, dataLen)
	}
	return nil
}
