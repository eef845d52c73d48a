package s3

import (
	"context"
	"os"
	"path/filepath"

	ierr "github.com/lm-legal/payments/internal/errors"
)

// localService keeps documents in a directory. It backs local mode and tests.
type localService struct {
	dir string
}

func NewLocalService(dir string) Service {
	return &localService{dir: dir}
}

func (s *localService) path(key string) string {
	return filepath.Join(s.dir, filepath.FromSlash(key))
}

func (s *localService) Upload(ctx context.Context, doc *Document) error {
	p := s.path(doc.Key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to store invoice document").
			Mark(ierr.ErrSystem)
	}

	// write then rename so readers never see a partial document
	tmp, err := os.CreateTemp(filepath.Dir(p), filepath.Base(p)+".*.tmp")
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to store invoice document").
			Mark(ierr.ErrSystem)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(doc.Data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to store invoice document").
			Mark(ierr.ErrSystem)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to store invoice document").
			Mark(ierr.ErrSystem)
	}
	return nil
}

func (s *localService) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ierr.WithError(err).
				WithHint("Invoice document not found").
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to read invoice document").
			Mark(ierr.ErrSystem)
	}
	return data, nil
}

func (s *localService) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, ierr.WithError(err).
		WithHint("Failed to check invoice document").
		Mark(ierr.ErrSystem)
}

func (s *localService) PresignedURL(ctx context.Context, key string) (string, error) {
	return "", nil
}
