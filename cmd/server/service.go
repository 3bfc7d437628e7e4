// internal/service/service.go - Business logic and service layer.
//
// This file ties the release catalog to the artifact store and exposes the
// operations used by the HTTP handlers.
package main

import (
	"fmt"
	"log"
	"time"
)

// UpdateService holds the dependencies for answering update queries and serving binaries.
type UpdateService struct {
	catalog   *Catalog
	artifacts ArtifactStore
	logger    *log.Logger
	startedAt time.Time
}

// NewUpdateService creates a new UpdateService instance.
func NewUpdateService(catalog *Catalog, artifacts ArtifactStore, logger *log.Logger) *UpdateService {
	return &UpdateService{
		catalog:   catalog,
		artifacts: artifacts,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// CheckForUpdate returns the release a device should install, or nil when it has no compatible upgrade.
func (s *UpdateService) CheckForUpdate(hardwareVersion, firmwareVersion string) (*Release, error) {
	return Best(s.catalog, hardwareVersion, firmwareVersion)
}

// ListEligibleReleases returns every release the device may install, in manifest order.
func (s *UpdateService) ListEligibleReleases(hardwareVersion, firmwareVersion string) ([]*Release, error) {
	return Eligible(s.catalog, hardwareVersion, firmwareVersion)
}

// OpenArtifact opens a binary referenced by the catalog. Ids outside the catalog are reported as not found.
func (s *UpdateService) OpenArtifact(id string) (Artifact, error) {
	if _, ok := s.catalog.ReleaseByArtifact(id); !ok {
		return nil, fmt.Errorf("%w: %s is not referenced by the manifest", ErrArtifactNotFound, id)
	}
	return s.artifacts.Open(id)
}

// Status returns a summary of the running server.
func (s *UpdateService) Status() StatusResponse {
	return StatusResponse{
		Version:       ServerVersion,
		Uptime:        time.Since(s.startedAt).Truncate(time.Second).String(),
		TotalReleases: s.catalog.Len(),
		Manifest:      s.catalog.Source(),
	}
}
