package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoader_Load(t *testing.T) {
	path := writeTemp(t, "export.json", `{"locations":[{"latitudeE7":1,"longitudeE7":2}]}`)

	res, err := NewLoader(1<<20).Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	root, ok := res.Root.(map[string]any)
	if !ok {
		t.Fatalf("expected object root, got %T", res.Root)
	}
	if _, ok := root["locations"]; !ok {
		t.Error("missing locations key")
	}
	if res.Meta.Size != 48 {
		t.Errorf("Size = %d, want 48", res.Meta.Size)
	}
	if len(res.Meta.SHA256) != 64 {
		t.Errorf("unexpected hash %q", res.Meta.SHA256)
	}
	if res.Meta.ModTime.IsZero() {
		t.Error("ModTime not set")
	}
}

func TestLoader_StripsBOM(t *testing.T) {
	path := writeTemp(t, "bom.json", "\xef\xbb\xbf[1,2]")
	res, err := NewLoader(0).Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if arr, ok := res.Root.([]any); !ok || len(arr) != 2 {
		t.Errorf("unexpected root %v", res.Root)
	}
}

func TestLoader_Errors(t *testing.T) {
	dir := t.TempDir()
	big := writeTemp(t, "big.json", `{"padding":"`+strings.Repeat("x", 100)+`"}`)
	bad := writeTemp(t, "bad.json", `{"unterminated": [`)

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"missing", filepath.Join(dir, "nope.json"), "open export"},
		{"directory", dir, "is a directory"},
		{"too large", big, "exceeds size limit"},
		{"invalid JSON", bad, "decode export JSON"},
	}

	loader := NewLoader(64)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.Load(context.Background(), tt.path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoader_StdinLimit(t *testing.T) {
	loader := NewLoader(8)
	loader.stdin = strings.NewReader(`[1,2,3,4,5,6,7]`)

	_, _, err := loader.Read(context.Background(), "-")
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}

	loader.stdin = strings.NewReader(`[1]`)
	data, meta, err := loader.Read(context.Background(), "-")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != "[1]" || meta.Size != 3 {
		t.Errorf("unexpected read %q, %+v", data, meta)
	}
}

func TestLoader_CanceledContext(t *testing.T) {
	path := writeTemp(t, "ok.json", `{}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewLoader(0).Load(ctx, path); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
