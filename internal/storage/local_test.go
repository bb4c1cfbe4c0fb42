package storage

import (
	"context"
	"os"
	"strings"
	"testing"
)

func TestLocalUploadDownloadDelete(t *testing.T) {
	local, err := NewLocal(t.TempDir(), "https://files.example.com")
	if err != nil {
		t.Fatalf("new local: %v", err)
	}
	ctx := context.Background()

	url, err := local.Upload(ctx, []byte("transcript body"), "exports/task-1/out.txt")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if url != "https://files.example.com/exports/task-1/out.txt" {
		t.Fatalf("unexpected url: %s", url)
	}

	data, err := local.Download(ctx, "exports/task-1/out.txt")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if string(data) != "transcript body" {
		t.Fatalf("unexpected content: %q", data)
	}

	if err := local.Delete(ctx, "exports/task-1/out.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := local.Download(ctx, "exports/task-1/out.txt"); err == nil {
		t.Fatal("expected download of deleted blob to fail")
	}

	// Deleting again is not an error.
	if err := local.Delete(ctx, "exports/task-1/out.txt"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestLocalRejectsEscapingNames(t *testing.T) {
	local, err := NewLocal(t.TempDir(), "")
	if err != nil {
		t.Fatalf("new local: %v", err)
	}

	for _, name := range []string{"../outside", "/etc/passwd", "a/../../b", ""} {
		if _, err := local.Upload(context.Background(), []byte("x"), name); err == nil {
			t.Fatalf("expected rejection for name %q", name)
		}
	}
}

func TestLocalFileURLWithoutBase(t *testing.T) {
	dir := t.TempDir()
	local, err := NewLocal(dir, "")
	if err != nil {
		t.Fatalf("new local: %v", err)
	}

	url := local.URL("a/b.json")
	if !strings.HasPrefix(url, "file://") || !strings.HasSuffix(url, "/a/b.json") {
		t.Fatalf("unexpected file url: %s", url)
	}

	path := local.Path("a/b.json")
	if !strings.HasPrefix(path, dir) {
		t.Fatalf("path escaped root: %s", path)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("root missing: %v", err)
	}
}
