// Package uuid provides the UUID-backed IDGenerator implementation.
package uuid

import (
	"fmt"

	guuid "github.com/google/uuid"
)

// Generator produces random (v4) run IDs.
type Generator struct{}

// New constructs a Generator.
func New() *Generator { return &Generator{} }

// NewID returns a fresh random UUID.
func (g *Generator) NewID() (guuid.UUID, error) {
	id, err := guuid.NewRandom()
	if err != nil {
		return guuid.UUID{}, fmt.Errorf("generate run id: %w", err)
	}
	return id, nil
}
