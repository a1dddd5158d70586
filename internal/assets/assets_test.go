package assets

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func writePack(t *testing.T, dir string, files map[string]string) string {
	t.Helper()

	path := filepath.Join(dir, "pak0.pk3")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFromPack(t *testing.T) {
	pack := writePack(t, t.TempDir(), map[string]string{
		"models/test.md3": "packed",
	})

	m := NewManager()
	defer m.Close()
	if err := m.AddPack(pack); err != nil {
		t.Fatalf("AddPack: %v", err)
	}

	data, err := m.Load("models/test.md3")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(data) != "packed" {
		t.Errorf("Load returned %q", data)
	}

	if _, err := m.Load("models/missing.md3"); err == nil {
		t.Error("Load of missing file succeeded")
	}
}

func TestLooseFilesShadowPacks(t *testing.T) {
	dir := t.TempDir()
	pack := writePack(t, dir, map[string]string{
		"models/test.md3": "packed",
	})

	loose := filepath.Join(dir, "models")
	if err := os.MkdirAll(loose, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(loose, "test.md3"), []byte("loose"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewManager()
	defer m.Close()
	if err := m.AddPack(pack); err != nil {
		t.Fatalf("AddPack: %v", err)
	}
	m.AddDir(dir)

	data, err := m.Load("models/test.md3")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(data) != "loose" {
		t.Errorf("Load returned %q, want the loose file", data)
	}
}

func TestLoadCaches(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "models")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "test.md3"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewManager()
	defer m.Close()
	m.AddDir(dir)

	if _, err := m.Load("models/test.md3"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	// delete the backing file: the cache must still serve it
	if err := os.Remove(filepath.Join(sub, "test.md3")); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Load("Models/Test.MD3"); err != nil {
		t.Errorf("cached load failed: %v", err)
	}

	hits, _ := m.cache.Stats()
	if hits == 0 {
		t.Error("expected at least one cache hit")
	}
}

func TestExists(t *testing.T) {
	pack := writePack(t, t.TempDir(), map[string]string{
		"models/test.md3": "x",
	})

	m := NewManager()
	defer m.Close()
	if err := m.AddPack(pack); err != nil {
		t.Fatalf("AddPack: %v", err)
	}

	if !m.Exists("models/test.md3") {
		t.Error("Exists = false for a packed file")
	}
	if m.Exists("models/missing.md3") {
		t.Error("Exists = true for a missing file")
	}
}
