package fsutil

import (
	"errors"
	"io/fs"
	"testing"
)

func TestMemoryFileSystemReadWrite(t *testing.T) {
	m := NewMemoryFileSystem()
	if err := m.WriteFile("/a/b/c.txt", []byte("hello"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := m.ReadFile("/a/b/c.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("read %q, want %q", data, "hello")
	}

	// Returned bytes are a copy; mutating them must not corrupt the store.
	data[0] = 'X'
	again, _ := m.ReadFile("/a/b/c.txt")
	if string(again) != "hello" {
		t.Errorf("stored contents changed to %q", again)
	}

	_, err = m.ReadFile("/a/b/missing.txt")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing file error = %v, want fs.ErrNotExist", err)
	}
}

func TestMemoryFileSystemWriteCreatesParents(t *testing.T) {
	m := NewMemoryFileSystem()
	if err := m.WriteFile("/x/y/z.txt", nil, 0644); err != nil {
		t.Fatal(err)
	}
	for _, dir := range []string{"/x", "/x/y"} {
		if !m.Exists(dir) {
			t.Errorf("parent %s should exist after WriteFile", dir)
		}
		info, err := m.Stat(dir)
		if err != nil {
			t.Fatalf("Stat(%s) failed: %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("%s should stat as a directory", dir)
		}
	}
}

func TestMemoryFileSystemReadDir(t *testing.T) {
	m := NewMemoryFileSystem()
	m.WriteFile("/root/b.txt", []byte("bb"), 0644)
	m.WriteFile("/root/a.txt", []byte("a"), 0644)
	m.WriteFile("/root/sub/nested.txt", []byte("n"), 0644)
	m.MkdirAll("/root/empty", 0755)

	entries, err := m.ReadDir("/root")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	want := []string{"a.txt", "b.txt", "empty", "sub"}
	if len(names) != len(want) {
		t.Fatalf("ReadDir names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("ReadDir names = %v, want %v (sorted)", names, want)
		}
	}

	// Direct children only; nested files must not leak up.
	for _, e := range entries {
		if e.Name() == "nested.txt" {
			t.Error("ReadDir listed a grandchild")
		}
		switch e.Name() {
		case "sub", "empty":
			if !e.IsDir() {
				t.Errorf("%s should be a directory", e.Name())
			}
		default:
			if e.IsDir() {
				t.Errorf("%s should be a file", e.Name())
			}
		}
	}

	if _, err := m.ReadDir("/nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadDir on missing dir = %v, want fs.ErrNotExist", err)
	}
}

func TestMemoryFileSystemStat(t *testing.T) {
	m := NewMemoryFileSystem()
	m.WriteFile("/f.bin", []byte("12345"), 0644)

	info, err := m.Stat("/f.bin")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 5 {
		t.Errorf("Size = %d, want 5", info.Size())
	}
	if info.IsDir() {
		t.Error("file should not stat as a directory")
	}

	if _, err := m.Stat("/missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Stat on missing path = %v, want fs.ErrNotExist", err)
	}
}

func TestMemoryFileSystemExists(t *testing.T) {
	m := NewMemoryFileSystem()
	if m.Exists("/anything") {
		t.Error("fresh filesystem should be empty")
	}
	m.MkdirAll("/d", 0755)
	m.WriteFile("/d/f", nil, 0644)
	if !m.Exists("/d") || !m.Exists("/d/f") {
		t.Error("created paths should exist")
	}
}

func TestOSFileSystem(t *testing.T) {
	dir := t.TempDir()
	osfs := OSFileSystem{}

	path := dir + "/probe.txt"
	if err := osfs.WriteFile(path, []byte("data"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	got, err := osfs.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "data" {
		t.Errorf("read %q, want %q", got, "data")
	}
	if !osfs.Exists(path) {
		t.Error("written file should exist")
	}

	if err := osfs.MkdirAll(dir+"/a/b", 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	entries, err := osfs.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("ReadDir found %d entries, want 2", len(entries))
	}
}
