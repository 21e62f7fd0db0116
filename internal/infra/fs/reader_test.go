package fs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolve(t *testing.T) {
	base := t.TempDir()
	if err := os.MkdirAll(filepath.Join(base, "runs"), 0o755); err != nil {
		t.Fatal(err)
	}
	wave := filepath.Join(base, "runs", "a.vcd")
	if err := os.WriteFile(wave, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	f := NewFileReader(base)

	for _, in := range []string{"runs/a.vcd", wave, "runs/../runs/a.vcd"} {
		got, err := f.Resolve(in)
		if err != nil || got != wave {
			t.Fatalf("Resolve(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := f.Resolve("runs"); err == nil || !strings.Contains(err.Error(), "not a regular file") {
		t.Fatalf("directory accepted: %v", err)
	}
	if _, err := f.Resolve("runs/b.vcd"); err == nil {
		t.Fatal("missing file resolved")
	}
}
