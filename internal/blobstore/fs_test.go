package blobstore

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestFSRoundTrip(t *testing.T) {
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("new fs: %v", err)
	}
	ctx := context.Background()
	key := NewKey()

	if err := fs.Put(ctx, key, strings.NewReader("payload"), 7, "application/zip"); err != nil {
		t.Fatalf("put: %v", err)
	}

	rc, err := fs.Open(ctx, key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		t.Fatalf("read: %v", err)
	}
	if buf.String() != "payload" {
		t.Fatalf("wrong content: %q", buf.String())
	}

	if err := fs.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := fs.Open(ctx, key); err == nil {
		t.Fatalf("open after delete should fail")
	}
	// Deleting a missing key is not an error.
	if err := fs.Delete(ctx, key); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestFSRejectsTraversalKeys(t *testing.T) {
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("new fs: %v", err)
	}
	ctx := context.Background()

	for _, key := range []string{"../escape", "a/../../escape", "/etc/passwd"} {
		if err := fs.Put(ctx, key, strings.NewReader("x"), 1, ""); err == nil {
			t.Fatalf("put %q should have been rejected", key)
		}
		if _, err := fs.Open(ctx, key); err == nil {
			t.Fatalf("open %q should have been rejected", key)
		}
	}
}

func TestNewKeyIsDateSharded(t *testing.T) {
	key := NewKey()
	if !strings.HasPrefix(key, "assets/") {
		t.Fatalf("unexpected key: %q", key)
	}
	if len(strings.Split(key, "/")) != 5 {
		t.Fatalf("expected assets/yyyy/mm/dd/id, got %q", key)
	}
	if key == NewKey() {
		t.Fatalf("keys must be unique")
	}
}
