package persist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ssured/drawbot/internal/value"
)

// dataFile is the file holding a node inside its subject directory.
const dataFile = "data.json"

// nonSubjectDir holds keys that do not encode a subject, such as UUIDKey.
const nonSubjectDir = "_"

// Files stores every subject as <dir>/<segment>/.../data.json.
//
// Segments are path-escaped. Dots and a leading underscore are escaped as
// well, so no segment can be ".", "..", the data file or the directory for
// non-subject keys. An empty segment is written as "%".
type Files struct {
	dir string
}

// OpenFiles creates dir if needed and returns a backend rooted there.
func OpenFiles(dir string) (*Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("open files backend: %w", err)
	}
	return &Files{dir: dir}, nil
}

// Dir returns the root directory.
func (f *Files) Dir() string {
	return f.dir
}

func escapeSegment(seg string) string {
	if seg == "" {
		return "%"
	}
	escaped := strings.ReplaceAll(url.PathEscape(seg), ".", "%2E")
	if strings.HasPrefix(escaped, "_") {
		escaped = "%5F" + escaped[1:]
	}
	return escaped
}

// path returns the directory holding key.
func (f *Files) path(key string) string {
	subject, err := value.ParseKey(key)
	if err != nil {
		return filepath.Join(f.dir, nonSubjectDir, escapeSegment(key))
	}
	parts := make([]string, 0, len(subject)+1)
	parts = append(parts, f.dir)
	for _, seg := range subject {
		parts = append(parts, escapeSegment(seg))
	}
	return filepath.Join(parts...)
}

// Get implements Backend.
func (f *Files) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(filepath.Join(f.path(key), dataFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %q: %w", key, err)
	}
	return data, true, nil
}

// Set implements Backend. The file is replaced atomically.
func (f *Files) Set(_ context.Context, key string, data []byte) error {
	dir := f.path(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}
	tmp, err := os.CreateTemp(dir, ".data-*.tmp")
	if err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %q: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, dataFile)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %q: %w", key, err)
	}
	return nil
}

// Close implements Backend.
func (f *Files) Close() error {
	return nil
}
