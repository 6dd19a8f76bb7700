package files

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/oklog/ulid/v2"
)

// ErrNotFound is returned when no stored file matches a file id.
var ErrNotFound = errors.New("file not found")

// Store keeps uploaded files on disk under a flat per-order layout:
// <root>/<order_id>/<file_id>_<name> for order attachments and
// <root>/support/<user_id>/<file_id>_<name> for support channel files.
type Store struct {
	root string
}

// NewStore creates the upload root if needed.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{root: root}, nil
}

// newFileID mints a sortable unique file id. ulid.Make is safe for
// concurrent uploads.
func (s *Store) newFileID() string {
	return ulid.Make().String()
}

func (s *Store) write(dir, name string, src io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}

	fileID := s.newFileID()
	path := filepath.Join(dir, fileID+"_"+filepath.Base(name))

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write file: %w", err)
	}
	return fileID, nil
}

// SaveOrderFile stores an attachment for an order and returns its file id.
func (s *Store) SaveOrderFile(orderID int64, name string, src io.Reader) (string, error) {
	return s.write(filepath.Join(s.root, fmt.Sprintf("%d", orderID)), name, src)
}

// SaveSupportFile stores a file sent through a user's support channel.
func (s *Store) SaveSupportFile(userID int64, name string, src io.Reader) (string, error) {
	return s.write(filepath.Join(s.root, "support", fmt.Sprintf("%d", userID)), name, src)
}

// Find locates a stored file by id anywhere under the upload root and
// returns its path and original name.
func (s *Store) Find(fileID string) (path string, name string, err error) {
	prefix := fileID + "_"
	err = filepath.WalkDir(s.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		base := d.Name()
		if len(base) > len(prefix) && base[:len(prefix)] == prefix {
			path = p
			name = base[len(prefix):]
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", "", fmt.Errorf("scan uploads: %w", err)
	}
	if path == "" {
		return "", "", ErrNotFound
	}
	return path, name, nil
}

// Open opens a stored file by id for streaming to a client.
func (s *Store) Open(fileID string) (io.ReadCloser, string, error) {
	path, name, err := s.Find(fileID)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open file: %w", err)
	}
	return f, name, nil
}
