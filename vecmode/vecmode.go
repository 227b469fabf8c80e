// Package vecmode provides the seeding helpers for C8, vector-mode
// reverse sweeps: running one reverse traversal of a JacobianTape with a
// width-D adjoint vector (adjoint.Vector{Width: D}) yields D directional
// derivatives at once, amortizing the tape read over every direction.
// The tape's reverse-sweep code itself does not change between scalar
// and vector mode: only the width of each adjoint slot does, so this
// package only supplies the seeding convenience, not a parallel tape
// implementation.
package vecmode

import "github.com/SciCompKL/CoDiPack-sub001/adjoint"

// IdentitySeeds returns the D seed rows [e_0, ..., e_{D-1}] of the D x D
// identity matrix, one per output direction. SeedOutput(v, id, row) then
// primes identifier id's adjoint with direction `row`'s one-hot vector,
// so a single reverse sweep over D outputs, each seeded with its own row,
// reproduces the result of D independent scalar-mode sweeps (the
// broadcast-equivalence property of vector mode).
func IdentitySeeds(d int) [][]float64 {
	seeds := make([][]float64, d)
	for i := range seeds {
		row := make([]float64, d)
		row[i] = 1
		seeds[i] = row
	}
	return seeds
}

// SeedOutput sets identifier id's adjoint slot to seed, the usual way to
// begin a vector-mode reverse sweep: one output identifier per row of
// IdentitySeeds, or an arbitrary combination of directional seeds for
// directional-derivative products.
func SeedOutput(v *adjoint.Vector, id int, seed []float64) {
	v.Grow(id + 1)
	v.Set(id, seed)
}
