package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// ErrTooLarge is returned when an export exceeds the configured size limit
var ErrTooLarge = errors.New("export file exceeds size limit")

// Loader reads and decodes location-history export files
type Loader struct {
	maxBytes int64
	stdin    io.Reader
}

// NewLoader creates a loader that refuses files larger than maxBytes
func NewLoader(maxBytes int64) *Loader {
	return &Loader{
		maxBytes: maxBytes,
		stdin:    os.Stdin,
	}
}

// SourceMeta describes a loaded export
type SourceMeta struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	SHA256  string    `json:"sha256"`
	ModTime time.Time `json:"mod_time,omitempty"`
}

// LoadResult contains the decoded tree and its metadata
type LoadResult struct {
	Root any
	Meta SourceMeta
}

// Read returns the raw bytes of path ("-" reads stdin) with its metadata.
// Decoding is separate so a cache hit can skip it.
func (l *Loader) Read(ctx context.Context, path string) ([]byte, SourceMeta, error) {
	meta := SourceMeta{Path: path}

	var r io.Reader
	if path == "-" {
		r = l.stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, meta, fmt.Errorf("open export: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, meta, fmt.Errorf("stat export: %w", err)
		}
		if info.IsDir() {
			return nil, meta, fmt.Errorf("open export: %s is a directory", path)
		}
		if l.maxBytes > 0 && info.Size() > l.maxBytes {
			return nil, meta, fmt.Errorf("%s (%d bytes): %w", path, info.Size(), ErrTooLarge)
		}
		meta.ModTime = info.ModTime().UTC()
		r = f
	}

	if err := ctx.Err(); err != nil {
		return nil, meta, err
	}

	// Read one byte past the limit so stdin overflow is detectable
	if l.maxBytes > 0 {
		r = io.LimitReader(r, l.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, meta, fmt.Errorf("read export: %w", err)
	}
	if l.maxBytes > 0 && int64(len(data)) > l.maxBytes {
		return nil, meta, fmt.Errorf("%s: %w", path, ErrTooLarge)
	}

	sum := sha256.Sum256(data)
	meta.Size = int64(len(data))
	meta.SHA256 = hex.EncodeToString(sum[:])
	return data, meta, nil
}

// Decode parses export bytes into a generic JSON tree
func Decode(data []byte) (any, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode export JSON: %w", err)
	}
	return root, nil
}

// Load reads and decodes path
func (l *Loader) Load(ctx context.Context, path string) (*LoadResult, error) {
	data, meta, err := l.Read(ctx, path)
	if err != nil {
		return nil, err
	}

	root, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &LoadResult{Root: root, Meta: meta}, nil
}
