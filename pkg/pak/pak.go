// Package pak provides reading functionality for pk3 asset packs,
// which are plain zip archives.
package pak

import (
	"archive/zip"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Archive represents an opened pk3 pack.
type Archive struct {
	reader   *zip.ReadCloser
	fileList map[string]*zip.File
}

// Open opens a pk3 pack for reading.
func Open(path string) (*Archive, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening pack")
	}

	archive := &Archive{
		reader:   reader,
		fileList: make(map[string]*zip.File, len(reader.File)),
	}
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		archive.fileList[normalizePath(f.Name)] = f
	}
	return archive, nil
}

// Close closes the pack.
func (a *Archive) Close() error {
	if a.reader != nil {
		return a.reader.Close()
	}
	return nil
}

// List returns all file paths in the pack.
func (a *Archive) List() []string {
	result := make([]string, 0, len(a.fileList))
	for path := range a.fileList {
		result = append(result, path)
	}
	return result
}

// Contains checks if a file exists.
func (a *Archive) Contains(path string) bool {
	_, ok := a.fileList[normalizePath(path)]
	return ok
}

// Read reads a file from the pack.
func (a *Archive) Read(path string) ([]byte, error) {
	f, ok := a.fileList[normalizePath(path)]
	if !ok {
		return nil, errors.Errorf("file not found: %s", path)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return data, nil
}

func normalizePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	return strings.ToLower(path)
}
