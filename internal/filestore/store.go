package filestore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Joseda-hg/lazytracker/internal/tracker"
)

// Store keeps the snapshot in a single file. Writes go to a temporary file
// in the same directory that then replaces the target.
type Store struct {
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the file. A missing file yields an empty snapshot.
func (s *Store) Load(ctx context.Context) (tracker.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return tracker.Snapshot{}, err
	}

	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return tracker.Snapshot{}, nil
	}
	if err != nil {
		return tracker.Snapshot{}, err
	}
	defer file.Close()

	snap, err := Decode(bufio.NewReader(file))
	if err != nil {
		return tracker.Snapshot{}, fmt.Errorf("read %s: %w", s.path, err)
	}
	return snap, nil
}

func (s *Store) Save(ctx context.Context, snap tracker.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	writer := bufio.NewWriter(tmp)
	if err := Encode(writer, snap); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := writer.Flush(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}
