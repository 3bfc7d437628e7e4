package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func targets(releases []*Release) []string {
	out := make([]string, 0, len(releases))
	for _, r := range releases {
		out = append(out, r.TargetVersion().String())
	}
	return out
}

func TestResolver_ExampleCatalog(t *testing.T) {
	catalog := mustParseCatalog(t, exampleManifest)

	t.Run("device behind both releases", func(t *testing.T) {
		eligible, err := Eligible(catalog, "1.0.0", "1.0.5")
		require.NoError(t, err)
		assert.Equal(t, []string{"1.1.0", "1.2.0"}, targets(eligible))

		best, err := Best(catalog, "1.0.0", "1.0.5")
		require.NoError(t, err)
		require.NotNil(t, best)
		assert.Equal(t, "1.2.0", best.TargetVersion().String())
		assert.Equal(t, "b", best.ArtifactID())
	})

	t.Run("device already current", func(t *testing.T) {
		eligible, err := Eligible(catalog, "1.0.0", "1.2.0")
		require.NoError(t, err)
		assert.Empty(t, eligible)

		best, err := Best(catalog, "1.0.0", "1.2.0")
		require.NoError(t, err)
		assert.Nil(t, best)
	})

	t.Run("hardware too old", func(t *testing.T) {
		best, err := Best(catalog, "0.9.0", "1.0.0")
		require.NoError(t, err)
		assert.Nil(t, best)
	})
}

func TestResolver_BestIgnoresManifestOrder(t *testing.T) {
	// Highest target first, so taking the last eligible entry would pick the wrong release.
	catalog := mustParseCatalog(t, `[
  {"version": "2.0.0", "hardware": "*", "requires": ">=1.0.0", "file": "two"},
  {"version": "1.5.0", "hardware": "*", "requires": ">=1.0.0", "file": "one-five"},
  {"version": "1.1.0", "hardware": "*", "requires": ">=1.0.0", "file": "one-one"}
]`)

	for i := 0; i < 10; i++ {
		best, err := Best(catalog, "1.0.0", "1.0.0")
		require.NoError(t, err)
		require.NotNil(t, best)
		assert.Equal(t, "two", best.ArtifactID())
	}
}

func TestResolver_RangeAlgebra(t *testing.T) {
	catalog := mustParseCatalog(t, `[
  {"version": "1.1.0", "hardware": "1.0.0", "requires": "*", "file": "exact"},
  {"version": "1.2.0", "hardware": ">=1.0.0, <2.0.0", "requires": "*", "file": "compound"},
  {"version": "1.3.0", "hardware": "<1.0.0 || >=3.0.0", "requires": "*", "file": "either"},
  {"version": "1.4.0", "hardware": "~2.1.0", "requires": "*", "file": "tilde"},
  {"version": "1.5.0", "hardware": "^2.0.0", "requires": "*", "file": "caret"}
]`)

	tests := []struct {
		hardware string
		want     []string
	}{
		{"1.0.0", []string{"1.1.0", "1.2.0"}},
		{"1.9.9", []string{"1.2.0"}},
		{"2.0.0", []string{"1.5.0"}},
		{"2.1.7", []string{"1.4.0", "1.5.0"}},
		{"0.5.0", []string{"1.3.0"}},
		{"3.0.0", []string{"1.3.0"}},
	}
	for _, tt := range tests {
		t.Run(tt.hardware, func(t *testing.T) {
			eligible, err := Eligible(catalog, tt.hardware, "1.0.0")
			require.NoError(t, err)
			assert.Equal(t, tt.want, targets(eligible))
		})
	}
}

func TestResolver_EligibleSatisfiesBothConstraints(t *testing.T) {
	catalog := mustParseCatalog(t, `[
  {"version": "1.1.0", "hardware": ">=1.0.0", "requires": "<1.1.0", "file": "a"},
  {"version": "1.2.0", "hardware": ">=2.0.0", "requires": "<1.2.0", "file": "b"},
  {"version": "1.3.0", "hardware": ">=1.0.0", "requires": ">=1.1.0, <1.3.0", "file": "c"},
  {"version": "2.0.0", "hardware": "1.x", "requires": "^1.0.0", "file": "d"}
]`)

	versions := []string{"0.1.0", "1.0.0", "1.0.5", "1.1.0", "1.2.3", "1.9.0", "2.0.0", "2.5.1"}
	all := catalog.Releases()

	for _, hw := range versions {
		for _, fw := range versions {
			device, err := ParseDeviceState(hw, fw)
			require.NoError(t, err)

			eligible := catalog.Eligible(device)
			for _, r := range eligible {
				assert.Contains(t, all, r)
				assert.True(t, r.HardwareConstraint().Check(device.HardwareVersion))
				assert.True(t, r.FirmwareConstraint().Check(device.FirmwareVersion))
			}

			best := catalog.Best(device)
			if len(eligible) == 0 {
				assert.Nil(t, best, "hw=%s fw=%s", hw, fw)
				continue
			}
			require.NotNil(t, best)
			assert.Contains(t, eligible, best)
			for _, r := range eligible {
				assert.False(t, r.TargetVersion().GreaterThan(best.TargetVersion()), "hw=%s fw=%s", hw, fw)
			}
		}
	}
}

func TestResolver_InvalidVersion(t *testing.T) {
	catalog := mustParseCatalog(t, exampleManifest)

	tests := []struct {
		name  string
		hw    string
		fw    string
		field string
	}{
		{"hardware garbage", "not.a.version", "1.0.0", "hardware"},
		{"firmware garbage", "1.0.0", "not.a.version", "firmware"},
		{"firmware partial", "1.0.0", "1.0", "firmware"},
		{"hardware prefixed", "v1.0.0", "1.0.0", "hardware"},
		{"hardware empty", "", "1.0.0", "hardware"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Best(catalog, tt.hw, tt.fw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidVersion)

			var versionErr *InvalidVersionError
			require.True(t, errors.As(err, &versionErr))
			assert.Equal(t, tt.field, versionErr.Field)

			eligible, err := Eligible(catalog, tt.hw, tt.fw)
			assert.ErrorIs(t, err, ErrInvalidVersion)
			assert.Nil(t, eligible)
		})
	}
}

func TestResolver_EmptyCatalog(t *testing.T) {
	catalog := mustParseCatalog(t, `[]`)

	best, err := Best(catalog, "1.0.0", "1.0.0")
	require.NoError(t, err)
	assert.Nil(t, best)
}
