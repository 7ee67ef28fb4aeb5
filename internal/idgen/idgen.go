// Package idgen issues short sequential identifiers for form records.
package idgen

import "strconv"

// Generator is a simple counter. The zero value is ready to use and starts at
// zero, so the first call to Next returns "1". A Generator belongs to a single
// form session and is not safe for concurrent use.
type Generator struct {
	n uint64
}

// New returns a Generator starting at zero.
func New() *Generator {
	return &Generator{}
}

// Next increments the counter and returns it as a decimal string.
func (g *Generator) Next() string {
	g.n++
	return strconv.FormatUint(g.n, 10)
}

// Reset puts the counter back to zero.
func (g *Generator) Reset() {
	g.n = 0
}
