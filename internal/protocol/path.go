package protocol

import (
	"slices"
	"strings"
)

// Path addresses one operation in the route tree, outermost subsystem first.
type Path []string

func (p Path) String() string {
	return strings.Join(p, ".")
}

func (p Path) Equal(other Path) bool {
	return slices.Equal(p, other)
}

// Valid reports whether p has at least one segment and no empty segments.
func (p Path) Valid() bool {
	if len(p) == 0 {
		return false
	}
	for _, seg := range p {
		if strings.TrimSpace(seg) == "" {
			return false
		}
	}
	return true
}
