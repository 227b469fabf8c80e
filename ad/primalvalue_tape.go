package ad

import (
	"math"

	"github.com/golang/glog"

	"github.com/SciCompKL/CoDiPack-sub001/chunk"
	"github.com/SciCompKL/CoDiPack-sub001/extfunc"
	"github.com/SciCompKL/CoDiPack-sub001/index"
)

// pvStatement is one primal-value-tape entry: the identifier assigned
// to the left-hand side, the expression handle itself, and the run of
// leaf identifiers it depends on. Unlike a JacobianTape statement, no
// coefficient is stored; handle already closes over every local partial
// it needs, computed eagerly when it was built, so a sweep re-derives
// coefficients by replaying handle.pushPartials instead of reading them
// back out of a flat log. This trades a cheaper Store (one pointer
// instead of N (coeff, id) pairs) for a costlier sweep (one tree walk
// instead of a flat scan), the tradeoff this tape flavor is built
// around.
type pvStatement struct {
	lhsID  index.ID
	handle Expr

	// argStart and argCount are never read back by a sweep (handle
	// already carries every leaf it needs via pushPartials); they exist
	// so argIDs grows in lockstep with the statement that produced each
	// run, giving Values().Operands/OperandBytes a real count to report.
	argStart chunk.Position
	argCount int
}

// PrimalValueTape is the C5 flavor that records an expression handle per
// statement and replays it during every sweep, rather than flattening
// partials up front. It pairs naturally with index.ReuseManager: because
// replay only ever touches the handle and the current adjoint vector,
// recycling identifiers across reassignment keeps the adjoint vector
// small without corrupting any stored coefficient (there is none to
// corrupt).
type PrimalValueTape struct {
	core
	statements *chunk.Store[pvStatement]
	argIDs     *chunk.Store[index.ID]
}

// NewPrimalValueTape constructs a PrimalValueTape using manager for
// identifier assignment. A *index.ReuseManager (optionally tracking use
// counts) is the usual choice.
func NewPrimalValueTape(manager index.Manager, opts ...Option) *PrimalValueTape {
	o := buildOptions(opts)
	return &PrimalValueTape{
		core:       newCore(o, manager),
		statements: chunk.New[pvStatement](o.ChunkSize),
		argIDs:     chunk.New[index.ID](o.ChunkSize),
	}
}

// RegisterInput assigns v a fresh identifier.
func (t *PrimalValueTape) RegisterInput(v *Var) {
	v.id = t.manager.Create()
	t.growAdjoints()
}

// RegisterOutput ensures v carries an active identifier.
func (t *PrimalValueTape) RegisterOutput(v *Var) {
	if !t.active || v.id != index.Inactive {
		return
	}
	v.id = t.manager.Create()
	t.growAdjoints()
}

// Store records one assignment lhs = expr, keeping expr itself as the
// statement's replay handle.
func (t *PrimalValueTape) Store(lhs *Var, expr Expr) error {
	if err := exprError(expr); err != nil {
		return err
	}
	val := expr.Value()
	if t.opts.CheckTapeActivity && !t.active {
		lhs.primal = val
		return nil
	}

	var ids []index.ID
	expr.pushPartials(1, func(coeff float64, id index.ID) {
		if t.opts.CheckZeroIndex && id == index.Inactive {
			return
		}
		if t.opts.CheckJacobiIsZero && coeff == 0 {
			return
		}
		if t.opts.IgnoreInvalidJacobies && (math.IsNaN(coeff) || math.IsInf(coeff, 0)) {
			glog.Warningf("ad: ignoring invalid partial %v for identifier %d", coeff, id)
			return
		}
		ids = append(ids, id)
	})

	if len(ids) == 0 {
		t.manager.Free(lhs.id)
		lhs.id = index.Inactive
		lhs.primal = val
		return nil
	}

	if v, isVar := expr.(Var); isVar {
		if co, ok := t.manager.(index.CopyOptimizer); ok && !t.manager.NeedsCopyStatement() {
			lhs.id = co.Copy(lhs.id, v.id)
			lhs.primal = val
			return nil
		}
	}

	newID := t.manager.Assign(lhs.id)
	t.argIDs.Reserve(len(ids))
	argStart := t.argIDs.Position()
	for _, id := range ids {
		t.argIDs.Push(id)
	}
	t.statements.Reserve(1)
	stmtPos := t.statements.Position()
	t.statements.Push(pvStatement{lhsID: newID, handle: expr, argStart: argStart, argCount: len(ids)})
	t.entries.Reserve(1)
	t.entries.Push(logEntry{kind: entryStatement, stmtPos: stmtPos})

	lhs.id = newID
	lhs.primal = val
	t.growAdjoints()
	return nil
}

// PushExternalFunction is identical in contract to
// JacobianTape.PushExternalFunction; see its documentation.
func (t *PrimalValueTape) PushExternalFunction(inputs []Var, outputPrimal []float64, cb extfunc.Callbacks, userData any, release func()) ([]Var, error) {
	if cb.Reverse == nil {
		return nil, &ContractViolation{Msg: "external function requires a Reverse callback"}
	}
	outputs := make([]Var, len(outputPrimal))
	if t.opts.CheckTapeActivity && !t.active {
		for i, p := range outputPrimal {
			outputs[i] = Var{primal: p}
		}
		return outputs, nil
	}

	b := extfunc.NewBuilder()
	for _, in := range inputs {
		b.AddInput(in.id, in.primal)
	}
	for i, p := range outputPrimal {
		id := t.manager.Create()
		outputs[i] = Var{primal: p, id: id}
		b.AddOutput(id, p, 0)
	}
	t.growAdjoints()
	t.pushExternalFunc(b.Build(cb, userData, release))
	return outputs, nil
}

// Evaluate performs a reverse sweep over the entire currently recorded
// tape.
func (t *PrimalValueTape) Evaluate() error { return t.EvaluateTo(Checkpoint{}) }

// EvaluateTo performs a reverse sweep from the tape's current position
// back to cp (exclusive). The tape must not be Active.
func (t *PrimalValueTape) EvaluateTo(cp Checkpoint) error {
	if t.active {
		return &ContractViolation{Msg: "Evaluate called while tape is still active"}
	}
	t.growAdjoints()
	from := t.entries.Position()
	t.entries.ForEachReverse(from, cp.entries, func(e logEntry) {
		switch e.kind {
		case entryStatement:
			t.evaluateStatementReverse(e.stmtPos)
		case entryExternalFunc:
			t.runExternalReverse(t.extFuncs.At(e.extPos))
		}
	})
	return nil
}

func (t *PrimalValueTape) evaluateStatementReverse(pos chunk.Position) {
	st := t.statements.At(pos)
	width := t.adjoints.Width
	if t.opts.SkipZeroAdjoint && t.adjoints.IsZero(int(st.lhsID)) {
		return
	}
	lhsAdj := make([]float64, width)
	copy(lhsAdj, t.adjoints.Slot(int(st.lhsID)))
	t.adjoints.Zero(int(st.lhsID))
	st.handle.pushPartials(1, func(coeff float64, id index.ID) {
		t.adjoints.AddScaled(int(id), coeff, lhsAdj)
	})
}

// EvaluateForward performs a forward (tangent) sweep from cp to the
// tape's current position. The tape must not be Active.
func (t *PrimalValueTape) EvaluateForward(cp Checkpoint) error {
	if t.active {
		return &ContractViolation{Msg: "EvaluateForward called while tape is still active"}
	}
	t.growAdjoints()
	to := t.entries.Position()
	t.entries.ForEach(cp.entries, to, func(e logEntry) {
		switch e.kind {
		case entryStatement:
			t.evaluateStatementForward(e.stmtPos)
		case entryExternalFunc:
			t.runExternalForward(t.extFuncs.At(e.extPos))
		}
	})
	return nil
}

func (t *PrimalValueTape) evaluateStatementForward(pos chunk.Position) {
	st := t.statements.At(pos)
	width := t.adjoints.Width
	acc := make([]float64, width)
	st.handle.pushPartials(1, func(coeff float64, id index.ID) {
		slot := t.adjoints.Slot(int(id))
		for k := range acc {
			acc[k] += coeff * slot[k]
		}
	})
	t.adjoints.Set(int(st.lhsID), acc)
}

// Checkpoint returns the current append position across every log this
// tape maintains.
func (t *PrimalValueTape) Checkpoint() Checkpoint {
	return Checkpoint{
		entries:  t.entries.Position(),
		extFuncs: t.extFuncs.Position(),
		aux1:     t.statements.Position(),
		aux2:     t.argIDs.Position(),
		index:    t.manager.Snapshot(),
	}
}

// Reset discards everything recorded after cp, invoking the Release
// callback of every external-function record the truncation drops.
func (t *PrimalValueTape) Reset(cp Checkpoint) {
	t.entries.Reset(cp.entries)
	t.resetExternalFuncs(cp.extFuncs)
	t.statements.Reset(cp.aux1)
	t.argIDs.Reset(cp.aux2)
	t.manager.Restore(cp.index)
	t.adjoints.Clear()
}

// Values reports the tape's bookkeeping. StatementBytes
// is approximate: handle is a pointer into Go's heap, not a fixed-width
// record, so the figure only accounts for the fixed-size fields.
func (t *PrimalValueTape) Values() TapeStatistics {
	return TapeStatistics{
		Statements:        t.statements.Len(),
		StatementBytes:    t.statements.Len() * (4 + 8 + 8 + 8),
		Operands:          t.argIDs.Len(),
		OperandBytes:      t.argIDs.Len() * 4,
		ExternalFuncs:     t.extFuncs.Len(),
		AdjointEntries:    t.adjoints.Len(),
		AdjointBytes:      t.adjoints.Len() * t.adjoints.Width * 8,
		MaxLiveIdentifier: uint32(t.manager.MaxLive()),
	}
}
