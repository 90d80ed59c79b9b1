package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/actionhub/pkg/persistence"
)

// jsonStore keeps one JSON document per record in a directory.
type jsonStore[T any] struct {
	dir string
}

func newJSONStore[T any](root, name string) *jsonStore[T] {
	return &jsonStore[T]{dir: filepath.Join(root, name)}
}

func validateID(id string) error {
	if id == "" || strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q", persistence.ErrInvalidID, id)
	}

	return nil
}

func (s *jsonStore[T]) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// read returns fs.ErrNotExist when no document exists for id.
func (s *jsonStore[T]) read(id string) (*T, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	body, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, err
	}

	var value T
	if err := json.Unmarshal(body, &value); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", id, err)
	}

	return &value, nil
}

func (s *jsonStore[T]) encode(id string, value *T) ([]byte, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", s.dir, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", id, err)
	}

	return data, nil
}

func (s *jsonStore[T]) write(id string, value *T) error {
	tmp, err := s.stage(id, value)
	if err != nil {
		return err
	}

	if err := os.Rename(tmp, s.path(id)); err != nil {
		_ = os.Remove(tmp)

		return err
	}

	return nil
}

// create writes the document only if none exists yet. Linking the staged
// file fails when the target exists, so only one concurrent caller wins and
// readers never see a partial document.
func (s *jsonStore[T]) create(id string, value *T) error {
	tmp, err := s.stage(id, value)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp) }()

	return os.Link(tmp, s.path(id))
}

// stage writes the encoded document to a temporary file next to its target.
func (s *jsonStore[T]) stage(id string, value *T) (string, error) {
	data, err := s.encode(id, value)
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp(s.dir, "."+id+"-*.tmp")
	if err != nil {
		return "", err
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())

		return "", err
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())

		return "", err
	}

	return f.Name(), nil
}

func (s *jsonStore[T]) remove(id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	return os.Remove(s.path(id))
}

func (s *jsonStore[T]) list() ([]*T, error) {
	names, err := fs.Glob(os.DirFS(s.dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.dir, err)
	}

	values := make([]*T, 0, len(names))

	for _, name := range names {
		value, err := s.read(strings.TrimSuffix(name, ".json"))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}

		if err != nil {
			return nil, err
		}

		values = append(values, value)
	}

	return values, nil
}
