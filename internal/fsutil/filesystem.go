// Package fsutil provides filesystem abstractions for testability.
// Use OSFileSystem for production; MemoryFileSystem for testing.
package fsutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileSystem abstracts the filesystem operations the checkpoint and
// reporting code needs, so directory-scanning logic can run against an
// in-memory tree in tests.
type FileSystem interface {
	// ReadDir reads the named directory, returning its entries sorted
	// by filename.
	ReadDir(name string) ([]fs.DirEntry, error)

	// ReadFile reads the named file and returns its contents.
	ReadFile(name string) ([]byte, error)

	// WriteFile writes data to the named file, creating it if necessary.
	WriteFile(name string, data []byte, perm os.FileMode) error

	// Stat returns a FileInfo describing the named file.
	Stat(name string) (fs.FileInfo, error)

	// MkdirAll creates a directory and all necessary parents.
	MkdirAll(path string, perm os.FileMode) error

	// Exists checks if a file or directory exists.
	Exists(name string) bool
}

// OSFileSystem implements FileSystem using the os package.
type OSFileSystem struct{}

// ReadDir reads the named directory.
func (OSFileSystem) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(name)
}

// ReadFile reads the named file.
func (OSFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// WriteFile writes data to the named file.
func (OSFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

// Stat returns file info for the named file.
func (OSFileSystem) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

// MkdirAll creates a directory path.
func (OSFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// Exists checks if a file exists.
func (OSFileSystem) Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// MemoryFileSystem provides an in-memory filesystem for testing.
// WriteFile implicitly creates parent directories, which keeps test
// fixtures short.
type MemoryFileSystem struct {
	mu    sync.RWMutex
	files map[string][]byte
	dirs  map[string]bool
}

// NewMemoryFileSystem creates a new in-memory filesystem.
func NewMemoryFileSystem() *MemoryFileSystem {
	return &MemoryFileSystem{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
}

// ReadDir lists the direct children of a directory, sorted by name.
func (m *MemoryFileSystem) ReadDir(name string) ([]fs.DirEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = filepath.Clean(name)
	if !m.dirs[name] {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}

	seen := make(map[string]bool)
	var entries []fs.DirEntry
	add := func(child string, isDir bool, size int64) {
		if seen[child] {
			return
		}
		seen[child] = true
		entries = append(entries, &memDirEntry{name: child, isDir: isDir, size: size})
	}
	for path, data := range m.files {
		if child, ok := directChild(name, path); ok {
			add(child, false, int64(len(data)))
		}
	}
	for path := range m.dirs {
		if child, ok := directChild(name, path); ok {
			add(child, true, 0)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

// ReadFile reads a file's contents.
func (m *MemoryFileSystem) ReadFile(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = filepath.Clean(name)
	data, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// WriteFile writes data to a file, creating parent directories.
func (m *MemoryFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = filepath.Clean(name)
	cp := make([]byte, len(data))
	copy(cp, data)
	m.files[name] = cp
	m.markParents(name)
	return nil
}

// Stat returns file info.
func (m *MemoryFileSystem) Stat(name string) (fs.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = filepath.Clean(name)
	if m.dirs[name] {
		return (&memDirEntry{name: filepath.Base(name), isDir: true}).info(), nil
	}
	if data, ok := m.files[name]; ok {
		return (&memDirEntry{name: filepath.Base(name), size: int64(len(data))}).info(), nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

// MkdirAll creates a directory and its parents.
func (m *MemoryFileSystem) MkdirAll(path string, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	m.dirs[path] = true
	m.markParents(path)
	return nil
}

// Exists checks if a file or directory exists.
func (m *MemoryFileSystem) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = filepath.Clean(name)
	if _, ok := m.files[name]; ok {
		return true
	}
	return m.dirs[name]
}

// markParents records every ancestor of path as a directory.
// Caller must hold the write lock.
func (m *MemoryFileSystem) markParents(path string) {
	for p := filepath.Dir(path); p != "." && p != string(filepath.Separator); p = filepath.Dir(p) {
		if m.dirs[p] {
			break
		}
		m.dirs[p] = true
	}
}

// directChild returns the child name if path is a direct child of dir.
func directChild(dir, path string) (string, bool) {
	if path == dir {
		return "", false
	}
	prefix := dir + string(filepath.Separator)
	if dir == "." {
		prefix = ""
	}
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(path, prefix)
	if rest == "" || strings.Contains(rest, string(filepath.Separator)) {
		return "", false
	}
	return rest, true
}

// memDirEntry implements fs.DirEntry and backs fs.FileInfo for the
// memory filesystem.
type memDirEntry struct {
	name  string
	isDir bool
	size  int64
}

func (e *memDirEntry) Name() string      { return e.name }
func (e *memDirEntry) IsDir() bool       { return e.isDir }
func (e *memDirEntry) Type() fs.FileMode { return e.info().Mode().Type() }

func (e *memDirEntry) Info() (fs.FileInfo, error) { return e.info(), nil }

func (e *memDirEntry) info() fs.FileInfo { return memFileInfo{e} }

type memFileInfo struct{ e *memDirEntry }

func (i memFileInfo) Name() string { return i.e.name }
func (i memFileInfo) Size() int64  { return i.e.size }
func (i memFileInfo) Mode() os.FileMode {
	if i.e.isDir {
		return os.ModeDir | 0755
	}
	return 0644
}
func (i memFileInfo) ModTime() time.Time { return time.Time{} }
func (i memFileInfo) IsDir() bool        { return i.e.isDir }
func (i memFileInfo) Sys() any           { return nil }
