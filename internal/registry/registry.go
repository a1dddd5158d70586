// Package registry manages loaded models behind opaque handles. Game
// code refers to models by name; registration resolves the name across
// the asset search path once and caches the result, including failures.
package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/tremor/internal/logger"
	"github.com/Faultbox/tremor/internal/render"
	"github.com/Faultbox/tremor/pkg/formats"
	qm "github.com/Faultbox/tremor/pkg/math"
)

// Handle identifies a registered model. Zero is never a valid model, so
// a failed registration can travel through game code harmlessly.
type Handle int

// Kind is the model's on-disk format.
type Kind int

const (
	KindMD3 Kind = iota
	KindMDR
	KindIQM
)

func (k Kind) String() string {
	switch k {
	case KindMD3:
		return "md3"
	case KindMDR:
		return "mdr"
	case KindIQM:
		return "iqm"
	}
	return "unknown"
}

// Model is one registered model. Exactly one of the format fields is
// populated, matching Kind. MD3 models may carry extra detail levels
// loaded from "_1", "_2" suffixed files.
type Model struct {
	Handle Handle
	Name   string
	Kind   Kind

	MD3 []*formats.MD3
	MDR *formats.MDR
	IQM *formats.IQM
}

// NumFrames returns the model's animation frame count.
func (m *Model) NumFrames() int {
	switch m.Kind {
	case KindMD3:
		return m.MD3[0].NumFrames
	case KindMDR:
		return m.MDR.NumFrames()
	case KindIQM:
		return m.IQM.NumFrames
	}
	return 0
}

// Bounds returns the model's frame-zero bounding box.
func (m *Model) Bounds() (qm.Bounds, bool) {
	switch m.Kind {
	case KindMD3:
		return m.MD3[0].Frames[0].Bounds, true
	case KindMDR:
		return m.MDR.Frames[0].Bounds, true
	case KindIQM:
		if m.IQM.Bounds == nil {
			return qm.Bounds{}, false
		}
		return m.IQM.Bounds[0], true
	}
	return qm.Bounds{}, false
}

// LerpTag resolves an attachment tag blended between two frames.
func (m *Model) LerpTag(startFrame, endFrame int, frac float32, name string) (render.Orientation, bool) {
	switch m.Kind {
	case KindMD3:
		return render.MD3LerpTag(m.MD3[0], startFrame, endFrame, frac, name)
	case KindMDR:
		return render.MDRLerpTag(m.MDR, startFrame, endFrame, frac, name)
	case KindIQM:
		return render.IQMLerpTag(m.IQM, startFrame, endFrame, frac, name)
	}
	return render.IdentityOrientation(), false
}

// AddSurfaces runs the per-entity add pass for the model at the given
// detail level.
func (m *Model) AddSurfaces(ent *render.Entity, fr render.Frustum, fogs render.FogSet, lod int) []render.DrawSurface {
	switch m.Kind {
	case KindMD3:
		if lod >= len(m.MD3) {
			lod = len(m.MD3) - 1
		} else if lod < 0 {
			lod = 0
		}
		return render.MD3AddSurfaces(m.MD3[lod], ent, fr, fogs)
	case KindMDR:
		return render.MDRAddSurfaces(m.MDR, ent, fr, fogs, lod)
	case KindIQM:
		return render.IQMAddSurfaces(m.IQM, ent, fr, fogs)
	}
	return nil
}

// loader binds a file extension to its parser.
type loader struct {
	ext   string
	parse func(data []byte, name string, shaders formats.ShaderResolver) (*Model, error)
}

// FileLoader resolves a file name to its contents. assets.Manager
// satisfies this; tests inject map-backed loaders.
type FileLoader interface {
	Load(name string) ([]byte, error)
}

// Registry resolves model names to loaded models.
type Registry struct {
	files   FileLoader
	shaders formats.ShaderResolver

	mu     sync.RWMutex
	models []*Model
	// byName caches every registration attempt; zero marks a name that
	// failed so it is not retried every frame.
	byName map[string]Handle
	// fileLoads counts parse attempts, for asserting that registration
	// is idempotent.
	fileLoads int
}

// New creates a registry over the given file source. The shader
// resolver may be nil for tools that only inspect geometry.
func New(files FileLoader, shaders formats.ShaderResolver) *Registry {
	return &Registry{
		files:   files,
		shaders: shaders,
		models:  []*Model{nil}, // slot 0 reserved
		byName:  make(map[string]Handle),
	}
}

// FileLoads returns the number of model files parsed so far.
func (r *Registry) FileLoads() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fileLoads
}

var loaders = []loader{
	{".iqm", parseIQMModel},
	{".mdr", parseMDRModel},
	{".md3", parseMD3Model},
}

func parseMD3Model(data []byte, name string, shaders formats.ShaderResolver) (*Model, error) {
	md3, err := formats.ParseMD3(data, name, shaders)
	if err != nil {
		return nil, err
	}
	return &Model{Kind: KindMD3, MD3: []*formats.MD3{md3}}, nil
}

func parseMDRModel(data []byte, name string, shaders formats.ShaderResolver) (*Model, error) {
	mdr, err := formats.ParseMDR(data, name, shaders)
	if err != nil {
		return nil, err
	}
	return &Model{Kind: KindMDR, MDR: mdr}, nil
}

func parseIQMModel(data []byte, name string, shaders formats.ShaderResolver) (*Model, error) {
	iqm, err := formats.ParseIQM(data, name, shaders)
	if err != nil {
		return nil, err
	}
	return &Model{Kind: KindIQM, IQM: iqm}, nil
}

// Register loads a model by name, or returns the handle of an earlier
// registration. The name's own extension is tried first; when that file
// is missing or broken the other known extensions are substituted in
// preference order. A name that cannot be loaded registers as handle
// zero and stays that way.
func (r *Registry) Register(name string) (Handle, error) {
	if name == "" {
		return 0, fmt.Errorf("empty model name")
	}
	if len(name) >= formats.MaxQPath {
		return 0, fmt.Errorf("model name %q exceeds %d characters", name, formats.MaxQPath)
	}

	key := strings.ToLower(name)

	r.mu.RLock()
	h, seen := r.byName[key]
	r.mu.RUnlock()
	if seen {
		if h == 0 {
			return 0, fmt.Errorf("model %s previously failed to load", name)
		}
		return h, nil
	}

	model, err := r.load(key)

	r.mu.Lock()
	defer r.mu.Unlock()
	if h, seen := r.byName[key]; seen {
		// lost a race with another registration of the same name
		if h == 0 {
			return 0, fmt.Errorf("model %s previously failed to load", name)
		}
		return h, nil
	}
	if err != nil {
		r.byName[key] = 0
		return 0, err
	}

	model.Handle = Handle(len(r.models))
	model.Name = key
	r.models = append(r.models, model)
	r.byName[key] = model.Handle
	return model.Handle, nil
}

// load tries every loader for the name, own extension first.
func (r *Registry) load(name string) (*Model, error) {
	ext := strings.ToLower(extOf(name))
	base := strings.TrimSuffix(name, ext)

	tried := false
	for pass := 0; pass < 2; pass++ {
		for _, l := range loaders {
			// first pass: only the loader matching the name's extension
			if (pass == 0) != (l.ext == ext) {
				continue
			}
			candidate := base + l.ext
			data, err := r.files.Load(candidate)
			if err != nil {
				continue
			}
			tried = true
			r.countLoad()
			model, err := l.parse(data, name, r.shaders)
			if err != nil {
				logger.Warn("failed to load model",
					zap.String("file", candidate),
					zap.Error(err))
				continue
			}
			if l.ext == ".md3" {
				r.loadMD3LODs(model, base)
			}
			return model, nil
		}
	}

	if tried {
		return nil, errors.Errorf("model %s: every candidate file was corrupt", name)
	}
	return nil, errors.Errorf("model %s not found", name)
}

func (r *Registry) countLoad() {
	r.mu.Lock()
	r.fileLoads++
	r.mu.Unlock()
}

// loadMD3LODs pulls in "_1", "_2" suffixed detail files when present.
// A gap ends the chain.
func (r *Registry) loadMD3LODs(model *Model, base string) {
	for lod := 1; lod < formats.MD3MaxLODs; lod++ {
		candidate := fmt.Sprintf("%s_%d.md3", base, lod)
		data, err := r.files.Load(candidate)
		if err != nil {
			return
		}
		r.countLoad()
		md3, err := formats.ParseMD3(data, candidate, r.shaders)
		if err != nil {
			logger.Warn("failed to load model detail level",
				zap.String("file", candidate),
				zap.Error(err))
			return
		}
		model.MD3 = append(model.MD3, md3)
	}
}

func extOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 && !strings.ContainsRune(name[i:], '/') {
		return name[i:]
	}
	return ""
}

// Model returns the model for a handle, or nil for handle zero and
// out-of-range handles.
func (r *Registry) Model(h Handle) *Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h <= 0 || int(h) >= len(r.models) {
		return nil
	}
	return r.models[h]
}

// List returns all registered models in handle order.
func (r *Registry) List() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Model, 0, len(r.models)-1)
	for _, m := range r.models[1:] {
		out = append(out, m)
	}
	return out
}

// Reset drops every registered model and failure record. Existing
// handles become invalid.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models = r.models[:1]
	r.byName = make(map[string]Handle)
}
