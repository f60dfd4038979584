// Package idgen provides the injectable identifier generator used across
// the scheduler. Threading it as an explicit dependency (rather than
// calling uuid.New() inline everywhere) keeps job-id and entity-id
// generation deterministic in tests.
package idgen

import "github.com/google/uuid"

// Generator produces opaque stable identifiers.
type Generator interface {
	NewID() string
}

// UUID is the production Generator, backed by google/uuid v4.
type UUID struct{}

func (UUID) NewID() string { return uuid.New().String() }
