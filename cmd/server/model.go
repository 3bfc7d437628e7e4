// internal/model/model.go - Data models and request/response structs.
//
// This file defines the release record held by the catalog, the manifest
// descriptor it is decoded from, and the API response formats.
package main

import (
	"github.com/Masterminds/semver/v3"
)

// Release is one installable firmware image and the device conditions under which it applies.
// Releases are built by the catalog loader and never modified afterwards.
type Release struct {
	targetVersion      *semver.Version
	hardwareConstraint *semver.Constraints
	firmwareConstraint *semver.Constraints
	artifactID         string
}

// TargetVersion is the firmware version the device ends up on after installing this release.
func (r *Release) TargetVersion() *semver.Version { return r.targetVersion }

// HardwareConstraint is the range a device's hardware revision must satisfy.
func (r *Release) HardwareConstraint() *semver.Constraints { return r.hardwareConstraint }

// FirmwareConstraint is the range a device's current firmware must satisfy.
func (r *Release) FirmwareConstraint() *semver.Constraints { return r.firmwareConstraint }

// ArtifactID identifies the binary payload of the release.
func (r *Release) ArtifactID() string { return r.artifactID }

// Matches reports whether both constraints accept the device.
func (r *Release) Matches(device DeviceState) bool {
	return r.hardwareConstraint.Check(device.HardwareVersion) &&
		r.firmwareConstraint.Check(device.FirmwareVersion)
}

// ReleaseDescriptor is a single manifest entry as found on disk.
type ReleaseDescriptor struct {
	Version  *string `json:"version" yaml:"version"`   // Destination firmware version
	Hardware *string `json:"hardware" yaml:"hardware"` // Hardware revision range, e.g. ">=1.0.0, <2.0.0"
	Requires *string `json:"requires" yaml:"requires"` // Current firmware range the update can be applied from
	File     *string `json:"file" yaml:"file"`         // Artifact identifier under the binaries directory
}

// DeviceState is the version information reported by a device for a single request.
type DeviceState struct {
	HardwareVersion *semver.Version
	FirmwareVersion *semver.Version
}

// --- Response structs for API endpoints ---

// ReleaseResponse is the public view of a release. Constraints are not exposed.
type ReleaseResponse struct {
	TargetVersion string `json:"target_version"`
	ArtifactID    string `json:"artifact_id"`
}

// NewReleaseResponse converts a release into its response form.
func NewReleaseResponse(r *Release) ReleaseResponse {
	return ReleaseResponse{
		TargetVersion: r.targetVersion.String(),
		ArtifactID:    r.artifactID,
	}
}

// StatusResponse is returned by the status endpoint.
type StatusResponse struct {
	Version       string `json:"version"`
	Uptime        string `json:"uptime"`
	TotalReleases int    `json:"total_releases"`
	Manifest      string `json:"manifest"`
}
