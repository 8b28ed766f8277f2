package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/thoreinstein/savekeep/internal/errors"
)

func TestReadFileWithLimit(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name    string
		size    int64
		wantErr bool
	}{
		{"small file", 100, false},
		{"exact limit", MaxFileSize, false},
		{"too large", MaxFileSize + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tempDir, tt.name)
			f, err := os.Create(path)
			if err != nil {
				t.Fatal(err)
			}

			// Write dummy data
			if err := f.Truncate(tt.size); err != nil {
				t.Fatal(err)
			}
			f.Close()

			_, err = ReadFileWithLimit(path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ReadFileWithLimit() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrFileTooLarge) {
				t.Errorf("expected ErrFileTooLarge, got %v", err)
			}
		})
	}
}

func TestReadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.json")
	if err := AtomicWriteJSON(path, map[string]int{"sequence": 3}); err != nil {
		t.Fatal(err)
	}

	var got map[string]int
	if err := ReadJSON(path, &got); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if got["sequence"] != 3 {
		t.Errorf("sequence = %d, want 3", got["sequence"])
	}

	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := ReadJSON(path, &got); err == nil {
		t.Error("ReadJSON() expected parse error")
	}

	err := ReadJSON(filepath.Join(dir, "missing.json"), &got)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ReadJSON() missing file error = %v, want os.ErrNotExist in chain", err)
	}
}

func TestReadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.yaml")
	if err := AtomicWriteYAML(path, map[string][]string{"entries": {"a", "b"}}); err != nil {
		t.Fatal(err)
	}

	var got map[string][]string
	if err := ReadYAML(path, &got); err != nil {
		t.Fatalf("ReadYAML() error = %v", err)
	}
	if len(got["entries"]) != 2 {
		t.Errorf("entries = %v, want 2 items", got["entries"])
	}
}
