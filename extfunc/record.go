// Package extfunc implements C6, the external-function hook: the
// contract by which opaque, user-implemented derivative code is spliced
// into a tape and participates in the reverse (and forward) sweep. This
// is the glue that keeps the engine sound when part of a computation is
// differentiated by hand, or by another tool, instead of by recording
// elementary operators.
package extfunc

import "github.com/SciCompKL/CoDiPack-sub001/index"

// ReverseCB receives, for one external-function invocation, the snapshot
// of input and output primals, the output adjoints accumulated by the
// tape so far (already zeroed by the engine once loaded here; their
// contribution to everything downstream has been fully consumed), and
// must add the corresponding input adjoint contributions in place.
type ReverseCB func(inputsPrimal, inputsAdjoint []float64, outputsPrimal, outputsAdjoint []float64, userData any)

// ForwardCB is the tangent-mode analogue of ReverseCB, run by
// Tape.EvaluateForward: given input primals and tangents, it must add
// the resulting output tangents in place.
type ForwardCB func(inputsPrimal, inputsTangent []float64, outputsPrimal, outputsTangent []float64, userData any)

// PrimalCB recomputes output primals from input primals. It exists so
// that a primal-value tape, which may need to replay a segment of tape
// more than once, can recompute forward through an external function
// whose result is not itself recorded as an elementary expression.
type PrimalCB func(inputsPrimal, outputsPrimal []float64, userData any)

// Callbacks bundles the three hook functions. Reverse is mandatory;
// Forward and Primal may be nil if the corresponding capability is not
// needed.
type Callbacks struct {
	Reverse ReverseCB
	Forward ForwardCB
	Primal  PrimalCB
}

// Record is one external-function entry on the tape. The record itself
// holds no position: the tape's interleaved entry log pins its place in
// the surrounding tape, so the reverse sweep resumes linear traversal
// correctly once the callback returns.
type Record struct {
	Callbacks
	UserData any

	InputIDs     []index.ID
	InputPrimal  []float64
	OutputIDs    []index.ID
	OutputPrimal []float64

	// OldPrimal holds, per output, the oldPrimal value passed to
	// AddOutput: the primal the output identifier held before this
	// invocation claimed it. The tapes in package ad pass 0 here, since
	// neither keeps a per-identifier primal vector, and no sweep reads
	// this field.
	OldPrimal []float64

	// Release is invoked exactly once, when a Reset truncates the tape
	// past this record, so per-invocation state (snapshots, UserData)
	// owned by the tape can be torn down. May be nil.
	Release func()
}

// Builder accumulates a Record across a three-step protocol:
// AddInput*, call the primal function, AddOutput*, then
// Build to hand the finished record to the tape.
type Builder struct {
	rec Record
}

// NewBuilder starts recording a new external-function invocation.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddInput snapshots one input's identifier and current primal value.
func (b *Builder) AddInput(id index.ID, primal float64) {
	b.rec.InputIDs = append(b.rec.InputIDs, id)
	b.rec.InputPrimal = append(b.rec.InputPrimal, primal)
}

// AddOutput snapshots one output's freshly assigned identifier, its
// primal after the call, and the primal the identifier held
// immediately before (for primal-value-tape restoration).
func (b *Builder) AddOutput(id index.ID, primal, oldPrimal float64) {
	b.rec.OutputIDs = append(b.rec.OutputIDs, id)
	b.rec.OutputPrimal = append(b.rec.OutputPrimal, primal)
	b.rec.OldPrimal = append(b.rec.OldPrimal, oldPrimal)
}

// Build finishes the record with its callback bundle, user data, and
// release hook, ready to be pushed onto a tape.
func (b *Builder) Build(cb Callbacks, userData any, release func()) *Record {
	b.rec.Callbacks = cb
	b.rec.UserData = userData
	b.rec.Release = release
	rec := b.rec
	return &rec
}

// NInputs and NOutputs report the arity of the invocation being built.
func (b *Builder) NInputs() int  { return len(b.rec.InputIDs) }
func (b *Builder) NOutputs() int { return len(b.rec.OutputIDs) }
