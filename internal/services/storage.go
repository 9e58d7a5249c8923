package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"activity-logs/internal/models"
)

const (
	artifactFilePrefix = "activity-"
	artifactFileSuffix = ".log"
)

// FileArtifactStore stores one file per date under a local directory
type FileArtifactStore struct {
	basePath string
}

// NewFileArtifactStore creates a new local artifact store rooted at basePath
func NewFileArtifactStore(basePath string) (*FileArtifactStore, error) {
	// Ensure base directory exists
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	return &FileArtifactStore{basePath: basePath}, nil
}

// GetArtifactPath returns the file path holding the artifact for date
func (s *FileArtifactStore) GetArtifactPath(date string) string {
	return filepath.Join(s.basePath, artifactFilePrefix+date+artifactFileSuffix)
}

// Write writes to a temp file in the same directory and renames it over the
// target, so readers only ever open a complete file.
func (s *FileArtifactStore) Write(ctx context.Context, date string, payload []byte) error {
	tmp, err := os.CreateTemp(s.basePath, ".tmp-"+date+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close artifact: %w", err)
	}

	if err := os.Rename(tmpPath, s.GetArtifactPath(date)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return nil
}

func (s *FileArtifactStore) Read(ctx context.Context, date string) (*models.Artifact, error) {
	path := s.GetArtifactPath(date)

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrArtifactNotFound
		}
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer file.Close()

	// Stat and read the same open file; a concurrent rename does not affect it
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat artifact: %w", err)
	}
	payload, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	return &models.Artifact{Date: date, Payload: payload, WrittenAt: info.ModTime()}, nil
}

func (s *FileArtifactStore) Delete(ctx context.Context, date string) error {
	if err := os.Remove(s.GetArtifactPath(date)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}

func (s *FileArtifactStore) List(ctx context.Context) ([]models.Artifact, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}

	var list []models.Artifact
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, artifactFilePrefix) || !strings.HasSuffix(name, artifactFileSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // removed concurrently
		}
		date := strings.TrimSuffix(strings.TrimPrefix(name, artifactFilePrefix), artifactFileSuffix)
		list = append(list, models.Artifact{Date: date, WrittenAt: info.ModTime()})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Date < list[j].Date })
	return list, nil
}
