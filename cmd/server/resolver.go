// internal/resolver/resolver.go - Update eligibility resolution.
//
// This file selects, for a device's hardware and firmware versions, the releases
// it may install and the single release it should be offered.
package main

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ParseDeviceState parses the versions reported by a device.
// Both must be strict semantic versions; anything else yields an *InvalidVersionError.
func ParseDeviceState(hardwareVersion, firmwareVersion string) (DeviceState, error) {
	hw, err := parseDeviceVersion("hardware", hardwareVersion)
	if err != nil {
		return DeviceState{}, err
	}
	fw, err := parseDeviceVersion("firmware", firmwareVersion)
	if err != nil {
		return DeviceState{}, err
	}
	return DeviceState{HardwareVersion: hw, FirmwareVersion: fw}, nil
}

func parseDeviceVersion(field, value string) (*semver.Version, error) {
	v, err := semver.StrictNewVersion(strings.TrimSpace(value))
	if err != nil {
		return nil, &InvalidVersionError{Field: field, Value: value, Err: err}
	}
	return v, nil
}

// Eligible returns every release whose hardware and firmware constraints both match the device, in manifest order.
func (c *Catalog) Eligible(device DeviceState) []*Release {
	var eligible []*Release
	for _, release := range c.releases {
		if release.Matches(device) {
			eligible = append(eligible, release)
		}
	}
	return eligible
}

// Best returns the eligible release with the highest target version, or nil when none applies.
func (c *Catalog) Best(device DeviceState) *Release {
	return highestTarget(c.Eligible(device))
}

// highestTarget picks the release with the greatest target version.
// Target versions are unique within a catalog, so the result does not depend on order.
func highestTarget(releases []*Release) *Release {
	var best *Release
	for _, release := range releases {
		if best == nil || release.targetVersion.GreaterThan(best.targetVersion) {
			best = release
		}
	}
	return best
}

// Eligible parses the device versions and resolves the eligible set against catalog.
func Eligible(catalog *Catalog, hardwareVersion, firmwareVersion string) ([]*Release, error) {
	device, err := ParseDeviceState(hardwareVersion, firmwareVersion)
	if err != nil {
		return nil, err
	}
	return catalog.Eligible(device), nil
}

// Best parses the device versions and resolves the release to offer. A nil release with a nil error means no update applies.
func Best(catalog *Catalog, hardwareVersion, firmwareVersion string) (*Release, error) {
	device, err := ParseDeviceState(hardwareVersion, firmwareVersion)
	if err != nil {
		return nil, err
	}
	return catalog.Best(device), nil
}
