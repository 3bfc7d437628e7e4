// internal/errors/errors.go - Error taxonomy for catalog loading, resolution and artifact access.
package main

import (
	"errors"
	"fmt"
)

var (
	// ErrCatalogUnreadable means the manifest could not be read at all.
	ErrCatalogUnreadable = errors.New("catalog unreadable")
	// ErrCatalogMalformed means the manifest was read but an entry is invalid.
	ErrCatalogMalformed = errors.New("catalog malformed")
	// ErrInvalidVersion means a caller supplied version string is not a semantic version.
	ErrInvalidVersion = errors.New("invalid version")
	// ErrArtifactNotFound means an artifact id does not map to a stored binary.
	ErrArtifactNotFound = errors.New("artifact not found")
)

// CatalogError describes why a catalog could not be loaded.
// Kind is either ErrCatalogUnreadable or ErrCatalogMalformed.
type CatalogError struct {
	Kind   error
	Source string // Manifest path or name
	Entry  int    // Index of the offending descriptor, -1 when the whole source is at fault
	Field  string // Descriptor field at fault, empty when not applicable
	Err    error
}

func (e *CatalogError) Error() string {
	msg := e.Kind.Error()
	if e.Source != "" {
		msg += ": " + e.Source
	}
	if e.Entry >= 0 {
		msg += fmt.Sprintf(" entry %d", e.Entry)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" (%s)", e.Field)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause to errors.Is / errors.As.
func (e *CatalogError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func unreadable(source string, err error) *CatalogError {
	return &CatalogError{Kind: ErrCatalogUnreadable, Source: source, Entry: -1, Err: err}
}

func malformed(source string, entry int, field string, err error) *CatalogError {
	return &CatalogError{Kind: ErrCatalogMalformed, Source: source, Entry: entry, Field: field, Err: err}
}

// InvalidVersionError reports a device version that failed to parse.
type InvalidVersionError struct {
	Field string // "hardware" or "firmware"
	Value string
	Err   error
}

func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid %s version %q: %v", e.Field, e.Value, e.Err)
}

func (e *InvalidVersionError) Unwrap() []error {
	return []error{ErrInvalidVersion, e.Err}
}
