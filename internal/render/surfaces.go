package render

import (
	"go.uber.org/zap"

	"github.com/Faultbox/tremor/internal/logger"
	"github.com/Faultbox/tremor/pkg/formats"
)

// DrawSurface is one surface queued for drawing this frame: the shader
// and fog volume it sorts under and a bound evaluator that writes its
// vertices into a mesh buffer.
type DrawSurface struct {
	Name   string
	Shader int
	FogNum int
	eval   func(*MeshBuffer) error
}

// Eval writes the surface's vertices for the entity's frame blend.
func (d *DrawSurface) Eval(buf *MeshBuffer) error { return d.eval(buf) }

// sanitizeFrames folds or clamps the entity's frame pair into range.
// Wrapping entities use a modulo; anything else out of range resets both
// frames to zero, which happens routinely while game code switches
// models.
func sanitizeFrames(ent *Entity, numFrames int, modelName string) {
	if numFrames <= 0 {
		ent.Frame = 0
		ent.OldFrame = 0
		return
	}
	if ent.Flags&FlagWrapFrames != 0 {
		ent.Frame = wrapFrame(ent.Frame, numFrames)
		ent.OldFrame = wrapFrame(ent.OldFrame, numFrames)
	}
	if ent.Frame >= numFrames || ent.Frame < 0 ||
		ent.OldFrame >= numFrames || ent.OldFrame < 0 {
		logger.Debug("no such frame in model",
			zap.String("model", modelName),
			zap.Int("frame", ent.Frame),
			zap.Int("oldframe", ent.OldFrame))
		ent.Frame = 0
		ent.OldFrame = 0
	}
}

func wrapFrame(frame, numFrames int) int {
	frame %= numFrames
	if frame < 0 {
		frame += numFrames
	}
	return frame
}

// surfaceShader picks the shader for one surface: a custom shader on the
// entity wins, then a skin override by surface name, then the surface's
// own shader.
func surfaceShader(ent *Entity, name string, own int) int {
	if ent.CustomShader != 0 {
		return ent.CustomShader
	}
	if ent.Skin != nil {
		return ent.Skin.FindShader(name, own)
	}
	return own
}

// MD3AddSurfaces runs the per-entity add pass for a keyframe model:
// frame sanitation, culling, fog classification and shader resolution.
// Returns nil when nothing is visible.
func MD3AddSurfaces(m *formats.MD3, ent *Entity, fr Frustum, fogs FogSet) []DrawSurface {
	if personalModel(ent) {
		return nil
	}

	sanitizeFrames(ent, m.NumFrames, m.Name)

	if MD3Cull(m, ent, fr) == CullOut {
		return nil
	}
	fogNum := MD3FogNum(m, ent, fogs)

	out := make([]DrawSurface, 0, len(m.Surfaces))
	for i := range m.Surfaces {
		surf := &m.Surfaces[i]
		own := 0
		if len(surf.Shaders) > 0 {
			own = surf.Shaders[0].Index
		}
		out = append(out, DrawSurface{
			Name:   surf.Name,
			Shader: surfaceShader(ent, surf.Name, own),
			FogNum: fogNum,
			eval: func(buf *MeshBuffer) error {
				return MD3EvalSurface(surf, ent, buf)
			},
		})
	}
	return out
}

// MDRAddSurfaces runs the add pass for a bone-animated model at the
// given detail level. Out-of-range levels clamp to the nearest one.
func MDRAddSurfaces(m *formats.MDR, ent *Entity, fr Frustum, fogs FogSet, lod int) []DrawSurface {
	if len(m.LODs) == 0 {
		return nil
	}
	if lod >= len(m.LODs) {
		lod = len(m.LODs) - 1
	} else if lod < 0 {
		lod = 0
	}

	if personalModel(ent) {
		return nil
	}

	sanitizeFrames(ent, m.NumFrames(), m.Name)

	if MDRCull(m, ent, fr) == CullOut {
		return nil
	}
	fogNum := MDRFogNum(m, ent, fogs)

	surfaces := m.LODs[lod].Surfaces
	out := make([]DrawSurface, 0, len(surfaces))
	for i := range surfaces {
		surf := &surfaces[i]
		out = append(out, DrawSurface{
			Name:   surf.Name,
			Shader: surfaceShader(ent, surf.Name, surf.ShaderIndex),
			FogNum: fogNum,
			eval: func(buf *MeshBuffer) error {
				return MDREvalSurface(m, surf, ent, buf)
			},
		})
	}
	return out
}

// IQMAddSurfaces runs the add pass for an interchange model.
func IQMAddSurfaces(m *formats.IQM, ent *Entity, fr Frustum, fogs FogSet) []DrawSurface {
	if personalModel(ent) {
		return nil
	}

	sanitizeFrames(ent, m.NumFrames, m.Name)

	if IQMCull(m, ent, fr) == CullOut {
		return nil
	}
	fogNum := IQMFogNum(m, ent, fogs)

	out := make([]DrawSurface, 0, len(m.Surfaces))
	for i := range m.Surfaces {
		surf := &m.Surfaces[i]
		out = append(out, DrawSurface{
			Name:   surf.Name,
			Shader: surfaceShader(ent, surf.Name, surf.ShaderIndex),
			FogNum: fogNum,
			eval: func(buf *MeshBuffer) error {
				return IQMEvalSurface(m, surf, ent, buf)
			},
		})
	}
	return out
}
