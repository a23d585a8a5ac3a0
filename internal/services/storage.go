package services

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrFileNotFound is returned by Open when the blob for a stored filename
// is absent, e.g. deleted out-of-band.
var ErrFileNotFound = errors.New("file not found")

type StorageService interface {
	SaveBytes(data []byte, suggestedName string) (string, error)
	Open(storedName string) (io.ReadCloser, error)
	GetFilePath(filename string) string
	DeleteFile(filename string) error
	EnsureUploadDir() error
}

type storageService struct {
	uploadPath string
}

func NewStorageService(uploadPath string) StorageService {
	return &storageService{
		uploadPath: uploadPath,
	}
}

func (s *storageService) EnsureUploadDir() error {
	if err := os.MkdirAll(s.uploadPath, 0755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}

	return nil
}

// SaveBytes writes data under "<unix>_<sanitized name>" and returns the
// stored name. The file is created with O_EXCL so a colliding name is
// rejected instead of overwritten.
func (s *storageService) SaveBytes(data []byte, suggestedName string) (string, error) {
	safe := SanitizeFilename(suggestedName)
	if safe == "" {
		safe = uuid.New().String()
	}

	storedName := fmt.Sprintf("%d_%s", time.Now().Unix(), safe)
	filePath := filepath.Join(s.uploadPath, storedName)

	dst, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return "", fmt.Errorf("file %s already exists: %w", storedName, err)
		}
		return "", fmt.Errorf("failed to create destination file: %w", err)
	}
	defer dst.Close()

	if _, err := dst.Write(data); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return storedName, nil
}

// Open returns a reader over a stored blob, or ErrFileNotFound when it is
// missing. The caller turns that into a user-visible message.
func (s *storageService) Open(storedName string) (io.ReadCloser, error) {
	f, err := os.Open(s.GetFilePath(storedName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, storedName)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return f, nil
}

func (s *storageService) GetFilePath(filename string) string {
	// Base strips any directory components a caller might smuggle in.
	return filepath.Join(s.uploadPath, filepath.Base(filename))
}

func (s *storageService) DeleteFile(filename string) error {
	filePath := s.GetFilePath(filename)
	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// SanitizeFilename strips path components and characters that are unsafe
// in an on-disk name from a user-supplied filename.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return ""
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\' || r == 0:
			b.WriteRune('_')
		case r < 0x20:
			// drop control characters
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), ". ")
}
