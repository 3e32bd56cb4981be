package media

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a stored blob does not exist.
	ErrNotFound = errors.New("media not found")
	// ErrInvalidName is returned for names that do not look like names the
	// store issued.
	ErrInvalidName = errors.New("invalid media name")
)

const blobExtension = ".enc"

// Store persists packed media blobs on disk. Names are random; whatever the
// client called the file is never used.
type Store struct {
	root string
}

// NewStore creates the root directory if needed and returns a Store.
func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("media store root required")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, err
	}

	return &Store{root: root}, nil
}

// Save writes a packed blob under a fresh random name and returns the name.
func (s *Store) Save(packed []byte) (string, error) {
	name := uuid.NewString() + blobExtension

	if err := os.WriteFile(filepath.Join(s.root, name), packed, 0o600); err != nil {
		return "", err
	}
	return name, nil
}

// Read returns the packed blob stored under name.
func (s *Store) Read(name string) ([]byte, error) {
	if !validName(name) {
		return nil, ErrInvalidName
	}

	data, err := os.ReadFile(filepath.Join(s.root, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Delete removes the blob stored under name. Deleting a name that does not
// exist is not an error.
func (s *Store) Delete(name string) error {
	if !validName(name) {
		return ErrInvalidName
	}

	err := os.Remove(filepath.Join(s.root, name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func validName(name string) bool {
	if name == "" || !strings.HasSuffix(name, blobExtension) {
		return false
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return false
	}

	id := strings.TrimSuffix(name, blobExtension)
	_, err := uuid.Parse(id)
	return err == nil
}
