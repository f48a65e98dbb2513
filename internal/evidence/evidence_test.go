package evidence

import (
	"context"
	"os"
	"strings"
	"testing"
)

func TestDirStore_Upload(t *testing.T) {
	s, err := NewDirStore(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewDirStore: %v", err)
	}

	ref, err := s.Upload(context.Background(), "Panel Photo.JPG", strings.NewReader("jpeg-bytes"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !strings.HasPrefix(ref, RefPrefix) || !strings.HasSuffix(ref, ".jpg") {
		t.Errorf("ref = %q", ref)
	}

	path, err := s.Path(ref)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Errorf("stored %q", data)
	}

	other, _ := s.Upload(context.Background(), "Panel Photo.JPG", strings.NewReader("again"))
	if other == ref {
		t.Error("two uploads share a reference")
	}
}

func TestDirStore_Rejects(t *testing.T) {
	s, _ := NewDirStore(t.TempDir(), 4)

	if _, err := s.Upload(context.Background(), "a.png", strings.NewReader("")); err == nil {
		t.Error("expected error for empty upload")
	}
	if _, err := s.Upload(context.Background(), "a.png", strings.NewReader("12345")); err == nil {
		t.Error("expected error for oversized upload")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Upload(ctx, "a.png", strings.NewReader("1")); err == nil {
		t.Error("expected error for cancelled context")
	}

	entries, _ := os.ReadDir(s.dir)
	if len(entries) != 0 {
		t.Errorf("rejected uploads left %d files", len(entries))
	}
}

func TestDirStore_Path(t *testing.T) {
	s, _ := NewDirStore(t.TempDir(), 0)
	for _, ref := range []string{"", "photos/a.jpg", "evidence/", "evidence/../x"} {
		if _, err := s.Path(ref); err == nil {
			t.Errorf("Path(%q) accepted", ref)
		}
	}
}

func TestNewDirStore_RequiresDir(t *testing.T) {
	if _, err := NewDirStore("", 0); err == nil {
		t.Fatal("expected error for empty dir")
	}
}
