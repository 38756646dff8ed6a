package logging

import (
	"strings"

	"github.com/google/uuid"
)

// RequestIDGenerator generates unique request IDs
type RequestIDGenerator struct {
	prefix string
}

func NewRequestIDGenerator(prefix string) *RequestIDGenerator {
	if prefix == "" {
		prefix = "req"
	}
	return &RequestIDGenerator{prefix: prefix}
}

// Generate Format: {prefix}_{uuid}
func (g *RequestIDGenerator) Generate() string {
	return g.prefix + "_" + uuid.NewString()
}

// GenerateShort usa solo el primer bloque del uuid
func (g *RequestIDGenerator) GenerateShort() string {
	id := uuid.NewString()
	if i := strings.IndexByte(id, '-'); i > 0 {
		id = id[:i]
	}
	return g.prefix + "_" + id
}

var defaultGenerator = NewRequestIDGenerator("req")

// GenerateRequestID generates a request ID using the default generator
func GenerateRequestID() string {
	return defaultGenerator.Generate()
}
