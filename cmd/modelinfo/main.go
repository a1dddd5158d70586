// modelinfo is a CLI utility for inspecting md3, mdr and iqm model files.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Faultbox/tremor/internal/render"
	"github.com/Faultbox/tremor/pkg/formats"
	"github.com/Faultbox/tremor/pkg/pak"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "info":
		cmdInfo(args)
	case "tags":
		cmdTags(args)
	case "surfaces":
		cmdSurfaces(args)
	case "list", "ls":
		cmdList(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`modelinfo - model file inspection utility

Usage:
  modelinfo <command> [options]

Commands:
  info <model>              Show model summary
  tags <model> [frame]      List attachment tags at a frame
  surfaces <model>          List surfaces with geometry counts
  list <pack.pk3> [pattern] List model files in a pk3 pack

Examples:
  modelinfo info models/players/visor/upper.md3
  modelinfo tags models/players/sarge/upper.mdr 0
  modelinfo list pak0.pk3 "*.iqm"`)
}

// model is the parsed file in whichever format matched.
type model struct {
	md3 *formats.MD3
	mdr *formats.MDR
	iqm *formats.IQM
}

// loadModel reads a file and tries each parser until one claims the
// format.
func loadModel(path string) (*model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if iqm, err := formats.ParseIQM(data, path, nil); err == nil {
		return &model{iqm: iqm}, nil
	} else if !errors.Is(err, formats.ErrWrongFormat) {
		return nil, err
	}

	if mdr, err := formats.ParseMDR(data, path, nil); err == nil {
		return &model{mdr: mdr}, nil
	} else if !errors.Is(err, formats.ErrWrongFormat) {
		return nil, err
	}

	if md3, err := formats.ParseMD3(data, path, nil); err == nil {
		return &model{md3: md3}, nil
	} else if !errors.Is(err, formats.ErrWrongFormat) {
		return nil, err
	}

	return nil, fmt.Errorf("unrecognized model format")
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: modelinfo info <model>")
		os.Exit(1)
	}

	m, err := loadModel(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("File: %s\n", args[0])
	switch {
	case m.md3 != nil:
		fmt.Println("Format:   md3 (keyframe)")
		fmt.Printf("Frames:   %d\n", m.md3.NumFrames)
		fmt.Printf("Tags:     %d\n", m.md3.NumTags)
		fmt.Printf("Surfaces: %d\n", len(m.md3.Surfaces))
		if len(m.md3.Frames) > 0 {
			f := m.md3.Frames[0]
			fmt.Printf("Bounds:   %v .. %v (radius %.1f)\n", f.Bounds.Min, f.Bounds.Max, f.Radius)
		}
	case m.mdr != nil:
		fmt.Println("Format:   mdr (bone skeleton)")
		fmt.Printf("Frames:   %d\n", m.mdr.NumFrames())
		fmt.Printf("Bones:    %d\n", m.mdr.NumBones)
		fmt.Printf("Tags:     %d\n", len(m.mdr.Tags))
		fmt.Printf("LODs:     %d\n", len(m.mdr.LODs))
		if len(m.mdr.Frames) > 0 {
			f := m.mdr.Frames[0]
			fmt.Printf("Bounds:   %v .. %v (radius %.1f)\n", f.Bounds.Min, f.Bounds.Max, f.Radius)
		}
	case m.iqm != nil:
		fmt.Println("Format:   iqm (interchange skeleton)")
		fmt.Printf("Frames:   %d\n", m.iqm.NumFrames)
		fmt.Printf("Joints:   %d\n", m.iqm.NumJoints)
		fmt.Printf("Vertexes: %d\n", m.iqm.NumVertexes)
		fmt.Printf("Surfaces: %d\n", len(m.iqm.Surfaces))
		if len(m.iqm.Bounds) > 0 {
			b := m.iqm.Bounds[0]
			fmt.Printf("Bounds:   %v .. %v\n", b.Min, b.Max)
		}
	}
}

func cmdTags(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: modelinfo tags <model> [frame]")
		os.Exit(1)
	}

	frame := 0
	if len(args) > 1 {
		f, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Bad frame number: %s\n", args[1])
			os.Exit(1)
		}
		frame = f
	}

	m, err := loadModel(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	type tag struct {
		name   string
		orient render.Orientation
	}
	var tags []tag

	switch {
	case m.md3 != nil:
		for i := 0; i < m.md3.NumTags; i++ {
			name := m.md3.Tag(0, i).Name
			if o, ok := render.MD3LerpTag(m.md3, frame, frame, 0, name); ok {
				tags = append(tags, tag{name, o})
			}
		}
	case m.mdr != nil:
		for i := range m.mdr.Tags {
			name := m.mdr.Tags[i].Name
			if o, ok := render.MDRLerpTag(m.mdr, frame, frame, 0, name); ok {
				tags = append(tags, tag{name, o})
			}
		}
	case m.iqm != nil:
		for _, name := range m.iqm.JointNames {
			if o, ok := render.IQMLerpTag(m.iqm, frame, frame, 0, name); ok {
				tags = append(tags, tag{name, o})
			}
		}
	}

	if len(tags) == 0 {
		fmt.Println("No tags")
		return
	}
	for _, t := range tags {
		fmt.Printf("%-24s origin (%.2f %.2f %.2f)\n",
			t.name, t.orient.Origin.X, t.orient.Origin.Y, t.orient.Origin.Z)
	}
}

func cmdSurfaces(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: modelinfo surfaces <model>")
		os.Exit(1)
	}

	m, err := loadModel(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch {
	case m.md3 != nil:
		for i := range m.md3.Surfaces {
			s := &m.md3.Surfaces[i]
			shader := ""
			if len(s.Shaders) > 0 {
				shader = s.Shaders[0].Name
			}
			fmt.Printf("%-24s %5d verts %5d tris  %s\n",
				s.Name, s.NumVerts, len(s.Indexes)/3, shader)
		}
	case m.mdr != nil:
		for l := range m.mdr.LODs {
			fmt.Printf("LOD %d:\n", l)
			for i := range m.mdr.LODs[l].Surfaces {
				s := &m.mdr.LODs[l].Surfaces[i]
				fmt.Printf("  %-22s %5d verts %5d tris  %s\n",
					s.Name, len(s.Vertices), len(s.Indexes)/3, s.Shader)
			}
		}
	case m.iqm != nil:
		for i := range m.iqm.Surfaces {
			s := &m.iqm.Surfaces[i]
			fmt.Printf("%-24s %5d verts %5d tris  %s\n",
				s.Name, s.NumVertexes, s.NumTriangles, s.Material)
		}
	}
}

func cmdList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	limit := fs.Int("n", 0, "Limit output to N files (0 = all)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: modelinfo list <pack.pk3> [pattern]")
		os.Exit(1)
	}

	archive, err := pak.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer archive.Close()

	files := archive.List()
	sort.Strings(files)

	pattern := ""
	if fs.NArg() > 1 {
		pattern = strings.ToLower(fs.Arg(1))
	}

	count := 0
	for _, f := range files {
		switch strings.ToLower(filepath.Ext(f)) {
		case ".md3", ".mdr", ".iqm":
		default:
			continue
		}
		if pattern != "" {
			matched, _ := filepath.Match(pattern, strings.ToLower(filepath.Base(f)))
			if !matched && !strings.Contains(strings.ToLower(f), pattern) {
				continue
			}
		}
		fmt.Println(f)
		count++
		if *limit > 0 && count >= *limit {
			break
		}
	}

	fmt.Fprintf(os.Stderr, "\n(%d model files)\n", count)
}
