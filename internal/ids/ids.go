// Package ids provides the ID generator collaborator.
package ids

import (
	"strings"

	"github.com/google/uuid"
)

// Generator mints prefixed UUIDs
type Generator struct{}

// New creates an ID generator
func New() *Generator {
	return &Generator{}
}

// NewID returns "<prefix>-<uuid>". An empty prefix yields a bare UUID.
func (g *Generator) NewID(prefix string) string {
	id := uuid.NewString()
	if prefix == "" {
		return id
	}
	return strings.TrimSuffix(prefix, "-") + "-" + id
}
