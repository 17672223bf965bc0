package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const (
	DefaultPrefix = "/target_"
	MinBytes      = 16
)

type Generator interface {
	Generate() (string, error)
}

type randomGenerator struct {
	prefix string
	size   int
}

// NewGenerator returns a generator of prefix + hex(size random bytes).
// Sizes below MinBytes are raised to MinBytes.
func NewGenerator(prefix string, size int) Generator {
	if size < MinBytes {
		size = MinBytes
	}

	return &randomGenerator{
		prefix: prefix,
		size:   size,
	}
}

func (g *randomGenerator) Generate() (string, error) {
	buf := make([]byte, g.size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	return g.prefix + hex.EncodeToString(buf), nil
}
