package desired

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"modelswap/internal/common/fsutil"
	"modelswap/pkg/types"
)

// FileStore keeps the record as a JSON file, typically on a volume shared by
// every replica. Writes go to a temp file that is renamed over the record.
type FileStore struct {
	path string
	log  zerolog.Logger
}

func NewFileStore(path string, lg zerolog.Logger) *FileStore {
	if p, err := fsutil.ExpandHome(path); err == nil {
		path = p
	}
	return &FileStore{path: path, log: lg}
}

// Path returns the record location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Publish(ctx context.Context, artifactID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ds, err := record(artifactID)
	if err != nil {
		return err
	}
	b, err := JSON.Marshal(ds)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.path, b, 0o644); err != nil {
		return fmt.Errorf("write desired state: %w", err)
	}
	return nil
}

func (s *FileStore) Read(ctx context.Context) (types.DesiredState, bool) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Debug().Err(err).Str("path", s.path).Msg("read desired state failed")
		}
		return types.DesiredState{}, false
	}
	return decode(JSON, b, s.log)
}

func (s *FileStore) Close() error { return nil }
