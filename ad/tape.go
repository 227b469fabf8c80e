package ad

import (
	"github.com/golang/glog"

	"github.com/SciCompKL/CoDiPack-sub001/adjoint"
	"github.com/SciCompKL/CoDiPack-sub001/chunk"
	"github.com/SciCompKL/CoDiPack-sub001/extfunc"
	"github.com/SciCompKL/CoDiPack-sub001/index"
)

// Tape is the contract both tape flavors (JacobianTape, PrimalValueTape)
// satisfy: C5 of the component table. Var itself never references
// a Tape; every recording operation is a Tape method taking a *Var.
type Tape interface {
	// SetActive toggles recording. Store and RegisterOutput on an
	// inactive tape just propagate primal values with no tape effect;
	// RegisterInput assigns an identifier whether or not the tape is
	// active.
	SetActive(bool)
	Active() bool

	// ClearAdjoints zeroes every slot of the adjoint vector without
	// discarding recorded statements, so the same recording can be
	// evaluated again with a different seed.
	ClearAdjoints()

	// Reset discards every statement recorded after checkpoint (the
	// zero Checkpoint discards everything), undoing the index manager
	// and adjoint vector alongside the logs.
	Reset(checkpoint Checkpoint)

	// Checkpoint returns the current append position, usable with Reset
	// to rewind to exactly this point later.
	Checkpoint() Checkpoint

	// Values reports the bookkeeping original_source's tapeValues tool
	// exposes: per-log counts and byte totals.
	Values() TapeStatistics
}

// entryKind distinguishes the two things that can occupy a position in
// the interleaved statement/external-function sequence a reverse sweep
// walks.
type entryKind uint8

const (
	entryStatement entryKind = iota
	entryExternalFunc
)

type logEntry struct {
	kind    entryKind
	stmtPos chunk.Position
	extPos  chunk.Position
}

// operand is one (partial, identifier) contribution of a statement's
// right-hand side, C5's "operand/constant log".
type operand struct {
	coeff float64
	id    index.ID
}

// Checkpoint is an opaque snapshot of everything a tape needs to
// rewind: the shared entry log, the shared external-function log, up to
// two tape-specific logs (a JacobianTape uses aux1 for its statement log
// and aux2 for its operand log; a PrimalValueTape uses aux1 for its
// statement log and aux2 for its argument-id log), and the index
// manager's own Snapshot.
type Checkpoint struct {
	entries  chunk.Position
	extFuncs chunk.Position
	aux1     chunk.Position
	aux2     chunk.Position
	index    index.Snapshot
}

// core bundles the state every Tape flavor shares: the interleaved
// entry log, the index manager, the adjoint vector, activity, and the
// external-function log. JacobianTape and PrimalValueTape embed it and
// add their own statement-shaped log on top.
type core struct {
	opts     Options
	manager  index.Manager
	adjoints *adjoint.Vector
	active   bool

	entries  *chunk.Store[logEntry]
	extFuncs *chunk.Store[*extfunc.Record]
}

func newCore(opts Options, manager index.Manager) core {
	return core{
		opts:     opts,
		manager:  manager,
		adjoints: adjoint.New(1),
		entries:  chunk.New[logEntry](opts.ChunkSize),
		extFuncs: chunk.New[*extfunc.Record](opts.SmallChunkSize),
	}
}

func (c *core) SetActive(v bool) { c.active = v }
func (c *core) Active() bool     { return c.active }

func (c *core) ClearAdjoints() { c.adjoints.Clear() }

// SetWidth switches the adjoint vector's row width, the entry point
// into vector mode (C8): call with width > 1 before
// seeding any gradient to run a reverse sweep that produces that many
// simultaneous directional derivatives. Discards any adjoint data
// already accumulated.
func (c *core) SetWidth(width int) {
	c.adjoints = adjoint.New(width)
}

func (c *core) growAdjoints() {
	before := c.adjoints.Len()
	c.adjoints.Grow(int(c.manager.MaxLive()) + 1)
	if after := c.adjoints.Len(); after > before {
		glog.V(1).Infof("ad: adjoint vector grew from %d to %d identifiers (width %d)", before, after, c.adjoints.Width)
	}
}

// Gradient returns a copy of the adjoint slot for v's identifier. An
// inactive Var (identifier 0) always reads as zero.
func (c *core) Gradient(v Var) []float64 {
	c.growAdjoints()
	slot := c.adjoints.Slot(int(v.id))
	out := make([]float64, len(slot))
	copy(out, slot)
	return out
}

// SetGradient seeds the adjoint slot for v's identifier, the entry
// point for a reverse sweep: seed the output(s), then sweep.
func (c *core) SetGradient(v Var, seed []float64) {
	c.growAdjoints()
	c.adjoints.Set(int(v.id), seed)
}

// resetExternalFuncs releases every external-function record between the
// tape's current extFuncs position and cp (the Reset/Checkpoint
// ownership contract: Release runs exactly once, when truncation drops
// the record for good), then truncates the log to cp.
func (c *core) resetExternalFuncs(cp chunk.Position) {
	from := c.extFuncs.Position()
	c.extFuncs.ForEachReverse(from, cp, func(rec *extfunc.Record) {
		if rec.Release != nil {
			rec.Release()
		}
	})
	c.extFuncs.Reset(cp)
}

func (c *core) checkActive() error {
	if c.opts.CheckTapeActivity && !c.active {
		return &ContractViolation{Msg: "Store called while tape is inactive"}
	}
	return nil
}

// pushExternalFunc appends an external-function record to the shared
// entry log, used by both tape flavors identically.
func (c *core) pushExternalFunc(rec *extfunc.Record) {
	c.extFuncs.Reserve(1)
	extPos := c.extFuncs.Position()
	c.extFuncs.Push(rec)
	c.entries.Reserve(1)
	c.entries.Push(logEntry{kind: entryExternalFunc, extPos: extPos})
}

func (c *core) runExternalReverse(rec *extfunc.Record) {
	width := c.adjoints.Width
	inAdj := make([]float64, len(rec.InputIDs)*width)
	outAdj := make([]float64, len(rec.OutputIDs)*width)
	for i, id := range rec.OutputIDs {
		copy(outAdj[i*width:(i+1)*width], c.adjoints.Slot(int(id)))
		c.adjoints.Zero(int(id))
	}
	rec.Reverse(rec.InputPrimal, inAdj, rec.OutputPrimal, outAdj, rec.UserData)
	for i, id := range rec.InputIDs {
		c.adjoints.AddScaled(int(id), 1, inAdj[i*width:(i+1)*width])
	}
}

func (c *core) runExternalForward(rec *extfunc.Record) {
	width := c.adjoints.Width
	inTan := make([]float64, len(rec.InputIDs)*width)
	outTan := make([]float64, len(rec.OutputIDs)*width)
	for i, id := range rec.InputIDs {
		copy(inTan[i*width:(i+1)*width], c.adjoints.Slot(int(id)))
	}
	rec.Forward(rec.InputPrimal, inTan, rec.OutputPrimal, outTan, rec.UserData)
	for i, id := range rec.OutputIDs {
		c.adjoints.AddScaled(int(id), 1, outTan[i*width:(i+1)*width])
	}
}
