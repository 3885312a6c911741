package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"imagedex/logging"
)

// FileEntry is one node of an injected file source. Concrete traversal is
// the collaborator's business; the pipeline only ever sees the two
// variants below.
type FileEntry interface {
	Name() string
}

// File is a leaf entry whose bytes can be read on demand.
type File interface {
	FileEntry
	RelPath() string
	Size() int64
	ModTime() time.Time
	Data() ([]byte, error)
}

// Directory is a branch entry listing child entries.
type Directory interface {
	FileEntry
	Entries() ([]FileEntry, error)
}

// CollectFiles walks the entry tree iteratively and returns all files in a
// stable depth-first order. Unreadable directories are logged and skipped
// rather than failing the walk.
func CollectFiles(root FileEntry) []File {
	var files []File
	stack := []FileEntry{root}

	for len(stack) > 0 {
		entry := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch e := entry.(type) {
		case File:
			files = append(files, e)
		case Directory:
			children, err := e.Entries()
			if err != nil {
				logging.LogWarning("Cannot list directory %s: %v", e.Name(), err)
				continue
			}
			// Push in reverse so the walk visits children in listed order.
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, children[i])
			}
		}
	}
	return files
}

// imageExtensions lists the formats the normalizer can decode.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// IsImageFile reports whether the extension belongs to a decodable format.
func IsImageFile(ext string) bool {
	return imageExtensions[strings.ToLower(ext)]
}

// DirEntry adapts a directory on the OS file system into a Directory that
// yields image files only, with paths relative to root.
func DirEntry(root string) Directory {
	return &osDirectory{abs: root, rel: ""}
}

type osDirectory struct {
	abs string
	rel string
}

func (d *osDirectory) Name() string { return filepath.Base(d.abs) }

func (d *osDirectory) Entries() ([]FileEntry, error) {
	dirents, err := os.ReadDir(d.abs)
	if err != nil {
		return nil, fmt.Errorf("cannot read directory %s: %v", d.abs, err)
	}

	var entries []FileEntry
	for _, de := range dirents {
		abs := filepath.Join(d.abs, de.Name())
		rel := filepath.Join(d.rel, de.Name())

		if de.IsDir() {
			entries = append(entries, &osDirectory{abs: abs, rel: rel})
			continue
		}
		if !IsImageFile(filepath.Ext(de.Name())) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			logging.LogWarning("Cannot stat %s: %v", abs, err)
			continue
		}
		entries = append(entries, &osFile{abs: abs, rel: rel, size: info.Size(), modTime: info.ModTime()})
	}
	return entries, nil
}

type osFile struct {
	abs     string
	rel     string
	size    int64
	modTime time.Time
}

func (f *osFile) Name() string       { return filepath.Base(f.abs) }
func (f *osFile) RelPath() string    { return f.rel }
func (f *osFile) Size() int64        { return f.size }
func (f *osFile) ModTime() time.Time { return f.modTime }
func (f *osFile) Data() ([]byte, error) {
	data, err := os.ReadFile(f.abs)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %v", f.abs, err)
	}
	return data, nil
}
