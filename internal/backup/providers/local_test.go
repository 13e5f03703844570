package providers

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLocalProviderUploadListDelete(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	src := filepath.Join(t.TempDir(), "archive.tar.gz")
	writeFile(t, src, "payload")

	p := NewLocalProvider(base)
	for _, remote := range []string{"surv/surv-1.tar.gz", "surv/surv-2.tar.gz", "creative/creative-1.tar.gz"} {
		if err := p.Upload(ctx, src, remote); err != nil {
			t.Fatalf("Upload(%s): %v", remote, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(base, "surv", "surv-1.tar.gz"))
	if err != nil || string(data) != "payload" {
		t.Fatalf("uploaded content = %q, %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(base, "surv", "surv-1.tar.gz.partial")); !os.IsNotExist(err) {
		t.Error("partial file left behind")
	}

	got, err := p.List(ctx, "surv/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	sort.Strings(got)
	want := []string{"surv/surv-1.tar.gz", "surv/surv-2.tar.gz"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("List = %v, want %v", got, want)
	}

	if err := p.Delete(ctx, "surv/surv-1.tar.gz"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := p.Delete(ctx, "surv/surv-1.tar.gz"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	got, _ = p.List(ctx, "surv/")
	if len(got) != 1 || got[0] != "surv/surv-2.tar.gz" {
		t.Fatalf("List after delete = %v", got)
	}
}

func TestLocalProviderListMissingPrefix(t *testing.T) {
	p := NewLocalProvider(t.TempDir())
	got, err := p.List(context.Background(), "nothing/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("List = %v, want empty", got)
	}
}

func TestLocalProviderUploadMissingSource(t *testing.T) {
	p := NewLocalProvider(t.TempDir())
	if err := p.Upload(context.Background(), "/does/not/exist", "a/b.tar.gz"); err == nil {
		t.Fatal("expected error for missing source")
	}
}
