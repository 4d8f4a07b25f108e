package dirtscan

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"golang.org/x/sys/unix"
)

func openDirFd(t *testing.T, path string) int {
	t.Helper()
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("Failed to open directory %s: %v", path, err)
	}
	t.Cleanup(func() { unix.Close(fd) })
	return fd
}

func TestListDir(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"zeta.txt":       "z",
		"alpha.txt":      "a",
		"name with spc":  "s",
		"nested/ignored": "n",
	})
	if err := os.Mkdir(filepath.Join(root, "emptydir"), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.Symlink("alpha.txt", filepath.Join(root, "link")); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	s := &shardScanner{}
	entries, ok := s.listDir(openDirFd(t, root))
	if !ok {
		t.Fatal("listDir failed on a readable directory")
	}

	expected := []struct {
		name string
		dir  bool
	}{
		{"alpha.txt", false},
		{"emptydir", true},
		{"link", false},
		{"name with spc", false},
		{"nested", true},
		{"zeta.txt", false},
	}
	if len(entries) != len(expected) {
		t.Fatalf("Got %d entries, expected %d: %v", len(entries), len(expected), entries)
	}
	for i, want := range expected {
		if entries[i].name != want.name || entries[i].dir != want.dir {
			t.Errorf("Entry %d = {%q, %v}, expected {%q, %v}",
				i, entries[i].name, entries[i].dir, want.name, want.dir)
		}
	}
}

func TestListDirEmpty(t *testing.T) {
	s := &shardScanner{}
	entries, ok := s.listDir(openDirFd(t, t.TempDir()))
	if !ok {
		t.Fatal("listDir failed on an empty directory")
	}
	if len(entries) != 0 {
		t.Errorf("Expected no entries, got %v", entries)
	}
}

func TestListDirManyEntries(t *testing.T) {
	// Enough names to force multiple getdents batches through the reused
	// read buffer.
	root := t.TempDir()
	var names []string
	for i := 0; i < 600; i++ {
		name := fmt.Sprintf("file-%04d-padding-padding-padding.txt", i)
		names = append(names, name)
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to create file %s: %v", name, err)
		}
	}
	sort.Strings(names)

	s := &shardScanner{}
	entries, ok := s.listDir(openDirFd(t, root))
	if !ok {
		t.Fatal("listDir failed")
	}
	if len(entries) != len(names) {
		t.Fatalf("Got %d entries, expected %d", len(entries), len(names))
	}
	for i, name := range names {
		if entries[i].name != name || entries[i].dir {
			t.Errorf("Entry %d = {%q, %v}, expected {%q, false}",
				i, entries[i].name, entries[i].dir, name)
		}
	}
}
