// Package idhash generates run and state identifiers.
package idhash

import "github.com/google/uuid"

// NewRunID returns a random identifier for an emulation run.
func NewRunID() string {
	return uuid.NewString()
}
