package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"modelswap/internal/common/fsutil"
	"modelswap/pkg/types"
)

// Scanner discovers artifacts in a directory.
type Scanner interface {
	Scan(dir string) ([]types.Artifact, error)
}

// extScanner matches regular files by extension (case-insensitive).
type extScanner struct {
	exts []string
}

// NewGGUFScanner returns a scanner for *.gguf model files.
func NewGGUFScanner() Scanner { return extScanner{exts: []string{".gguf"}} }

// NewScanner returns a scanner for the given extensions. An empty list
// matches every regular file.
func NewScanner(exts ...string) Scanner {
	norm := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		norm = append(norm, e)
	}
	return extScanner{exts: norm}
}

// Scan builds artifacts from file names. ID is the full file name; Path is
// the absolute file path. Results are sorted by ID.
func (s extScanner) Scan(dir string) ([]types.Artifact, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var out []types.Artifact
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !s.match(name) {
			continue
		}
		var size int64
		if fi, err := e.Info(); err == nil {
			size = fi.Size()
		}
		out = append(out, types.Artifact{ID: name, Path: filepath.Join(abs, name), SizeBytes: size})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s extScanner) match(name string) bool {
	if len(s.exts) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, e := range s.exts {
		if strings.HasSuffix(lower, e) {
			return true
		}
	}
	return false
}

// ErrDirNotFound is returned by LoadDir when the artifacts directory is missing.
var ErrDirNotFound = errors.New("artifacts directory not found")

// LoadDir scans a directory for *.gguf files.
func LoadDir(dir string) ([]types.Artifact, error) {
	if p, err := fsutil.ExpandHome(dir); err == nil && !fsutil.PathExists(p) {
		return nil, fmt.Errorf("%w: %s", ErrDirNotFound, dir)
	}
	return NewGGUFScanner().Scan(dir)
}

// Index is an id-keyed view over scanned artifacts.
type Index map[string]types.Artifact

// NewIndex builds an Index from a scan result.
func NewIndex(arts []types.Artifact) Index {
	idx := make(Index, len(arts))
	for _, a := range arts {
		idx[a.ID] = a
	}
	return idx
}

// Lookup returns the artifact registered under id.
func (idx Index) Lookup(id string) (types.Artifact, bool) {
	a, ok := idx[id]
	return a, ok
}

// IDs returns the registered ids in sorted order.
func (idx Index) IDs() []string {
	out := make([]string, 0, len(idx))
	for id := range idx {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
