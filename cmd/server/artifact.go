// internal/repository/artifact.go - Firmware binary storage.
//
// This file defines the ArtifactStore interface and a filesystem implementation
// that maps artifact ids to files in the binaries directory.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"
)

// ArtifactInfo describes a stored binary.
type ArtifactInfo struct {
	ID      string
	Size    int64
	ModTime time.Time
}

// Artifact is an open binary ready to be streamed. Callers must Close it.
type Artifact interface {
	io.ReadSeekCloser
	Info() ArtifactInfo
}

// ArtifactStore resolves artifact ids to binaries.
type ArtifactStore interface {
	Open(id string) (Artifact, error)
	Stat(id string) (ArtifactInfo, error)
}

// FileArtifactStore serves artifacts from files directly under a root directory.
type FileArtifactStore struct {
	root string
}

// NewFileArtifactStore creates a store rooted at dir. The directory must exist.
func NewFileArtifactStore(dir string) (*FileArtifactStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to access binaries directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("binaries path is not a directory: %s", dir)
	}
	return &FileArtifactStore{root: dir}, nil
}

// Open opens the artifact for reading.
func (s *FileArtifactStore) Open(id string) (Artifact, error) {
	path, err := s.artifactPath(id)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, translateFSError(id, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat artifact %s: %w", id, err)
	}
	if !info.Mode().IsRegular() {
		file.Close()
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrArtifactNotFound, id)
	}

	return &fileArtifact{
		File: file,
		info: ArtifactInfo{ID: id, Size: info.Size(), ModTime: info.ModTime()},
	}, nil
}

// Stat returns metadata for the artifact without opening it.
func (s *FileArtifactStore) Stat(id string) (ArtifactInfo, error) {
	path, err := s.artifactPath(id)
	if err != nil {
		return ArtifactInfo{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return ArtifactInfo{}, translateFSError(id, err)
	}
	if !info.Mode().IsRegular() {
		return ArtifactInfo{}, fmt.Errorf("%w: %s is not a regular file", ErrArtifactNotFound, id)
	}
	return ArtifactInfo{ID: id, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// artifactPath maps an id to a file path, re-checking the id so the store is safe on its own.
func (s *FileArtifactStore) artifactPath(id string) (string, error) {
	if err := ValidateArtifactID(id); err != nil {
		return "", fmt.Errorf("%w: %v", ErrArtifactNotFound, err)
	}
	return filepath.Join(s.root, id), nil
}

func translateFSError(id string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrArtifactNotFound, id)
	}
	return fmt.Errorf("failed to open artifact %s: %w", id, err)
}

type fileArtifact struct {
	*os.File
	info ArtifactInfo
}

func (a *fileArtifact) Info() ArtifactInfo { return a.info }

// ReconcileArtifacts checks that every artifact referenced by the catalog is present in the store.
// Missing artifacts are logged; in strict mode they fail the reconciliation.
func ReconcileArtifacts(catalog *Catalog, store ArtifactStore, strict bool, logger *log.Logger) error {
	var missing []string
	for _, id := range catalog.ArtifactIDs() {
		info, err := store.Stat(id)
		if errors.Is(err, ErrArtifactNotFound) {
			logger.Printf("Artifact %s referenced by manifest is missing", id)
			missing = append(missing, id)
			continue
		} else if err != nil {
			return fmt.Errorf("error checking artifact %s during reconciliation: %w", id, err)
		}
		if info.Size == 0 {
			logger.Printf("Warning: artifact %s is empty", id)
		}
	}

	if len(missing) > 0 && strict {
		return fmt.Errorf("%d artifact(s) missing from binaries directory: %v", len(missing), missing)
	}
	return nil
}
