package ad

import (
	"math"

	"github.com/golang/glog"

	"github.com/SciCompKL/CoDiPack-sub001/chunk"
	"github.com/SciCompKL/CoDiPack-sub001/extfunc"
	"github.com/SciCompKL/CoDiPack-sub001/index"
)

// statement is one Jacobian-tape entry: the identifier assigned to the
// left-hand side and the run of operand records (coeff, id) holding the
// already-differentiated right-hand side, flattened by Expr.pushPartials
// down to leaves. No primal is stored; Store's caller already has it
// from eager Expr evaluation.
type statement struct {
	lhsID    index.ID
	argStart chunk.Position
	argCount int
}

// JacobianTape is the C5 flavor that records precomputed partials per
// statement. It pairs naturally with index.LinearManager:
// a gradient computation typically records one segment of tape, runs
// Evaluate, and resets, so identifiers do not need to be recycled within
// a single pass.
type JacobianTape struct {
	core
	statements *chunk.Store[statement]
	operands   *chunk.Store[operand]
}

// NewJacobianTape constructs a JacobianTape using manager for identifier
// assignment. A *index.LinearManager is the usual choice; nothing
// prevents passing a *index.ReuseManager when the caller wants
// identifiers recycled across separate recordings sharing one tape.
func NewJacobianTape(manager index.Manager, opts ...Option) *JacobianTape {
	o := buildOptions(opts)
	return &JacobianTape{
		core:       newCore(o, manager),
		statements: chunk.New[statement](o.ChunkSize),
		operands:   chunk.New[operand](o.ChunkSize),
	}
}

// RegisterInput assigns v a fresh identifier, marking it as an
// independent variable a subsequent Evaluate can compute a gradient
// with respect to. v.primal is left untouched; the caller sets it
// before or after, as convenient.
func (t *JacobianTape) RegisterInput(v *Var) {
	v.id = t.manager.Create()
	t.growAdjoints()
}

// RegisterOutput ensures v carries an active identifier, so its
// gradient can be queried even if the expression that produced it
// happened to have no active dependency (e.g. it is the copy of an
// input with every intervening coefficient folded to zero). A no-op
// when the tape is inactive or v is already active.
func (t *JacobianTape) RegisterOutput(v *Var) {
	if !t.active || v.id != index.Inactive {
		return
	}
	v.id = t.manager.Create()
	t.growAdjoints()
}

// Store records one assignment lhs = expr. When CheckTapeActivity is
// enabled and the tape is inactive, this degrades to an ordinary primal
// assignment with no tape effect; with CheckTapeActivity disabled, Store
// records regardless of activity, and the caller is responsible for only
// calling it while active. Returns the DomainError carried by
// expr, if any, without writing a statement.
func (t *JacobianTape) Store(lhs *Var, expr Expr) error {
	if err := exprError(expr); err != nil {
		return err
	}
	val := expr.Value()
	if t.opts.CheckTapeActivity && !t.active {
		lhs.primal = val
		return nil
	}

	var ops []operand
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
		ops = append(ops, operand{coeff: coeff, id: id})
	})

	if len(ops) == 0 {
		t.manager.Free(lhs.id)
		lhs.id = index.Inactive
		lhs.primal = val
		return nil
	}

	if co, ok := t.manager.(index.CopyOptimizer); ok && !t.manager.NeedsCopyStatement() &&
		len(ops) == 1 && ops[0].coeff == 1 {
		lhs.id = co.Copy(lhs.id, ops[0].id)
		lhs.primal = val
		return nil
	}

	newID := t.manager.Assign(lhs.id)
	t.operands.Reserve(len(ops))
	argStart := t.operands.Position()
	for _, op := range ops {
		t.operands.Push(op)
	}
	t.statements.Reserve(1)
	stmtPos := t.statements.Position()
	t.statements.Push(statement{lhsID: newID, argStart: argStart, argCount: len(ops)})
	t.entries.Reserve(1)
	t.entries.Push(logEntry{kind: entryStatement, stmtPos: stmtPos})

	lhs.id = newID
	lhs.primal = val
	t.growAdjoints()
	return nil
}

// PushExternalFunction splices an opaque, hand-differentiated
// computation into the tape. outputPrimal holds the
// already-computed primal of each output; PushExternalFunction assigns
// each a fresh identifier and returns the resulting Vars. cb.Reverse is
// mandatory; cb.Forward is required only if the caller later calls
// EvaluateForward.
func (t *JacobianTape) PushExternalFunction(inputs []Var, outputPrimal []float64, cb extfunc.Callbacks, userData any, release func()) ([]Var, error) {
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
// tape, equivalent to EvaluateTo(Checkpoint{}).
func (t *JacobianTape) Evaluate() error { return t.EvaluateTo(Checkpoint{}) }

// EvaluateTo performs a reverse sweep from the tape's current position
// back to cp (exclusive), accumulating into the adjoint vector seeded
// by SetGradient beforehand. The tape must not be Active.
func (t *JacobianTape) EvaluateTo(cp Checkpoint) error {
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

func (t *JacobianTape) evaluateStatementReverse(pos chunk.Position) {
	st := t.statements.At(pos)
	width := t.adjoints.Width
	if t.opts.SkipZeroAdjoint && t.adjoints.IsZero(int(st.lhsID)) {
		return
	}
	lhsAdj := make([]float64, width)
	copy(lhsAdj, t.adjoints.Slot(int(st.lhsID)))
	t.adjoints.Zero(int(st.lhsID))
	p := st.argStart
	for i := 0; i < st.argCount; i++ {
		op := t.operands.At(p)
		t.adjoints.AddScaled(int(op.id), op.coeff, lhsAdj)
		if i+1 < st.argCount {
			p = t.operands.Next(p)
		}
	}
}

// EvaluateForward performs a forward (tangent) sweep from cp to the
// tape's current position, the dual of EvaluateTo: tangents are seeded
// on inputs via SetGradient, and outputs are read afterward with
// Gradient. The tape must not be Active.
func (t *JacobianTape) EvaluateForward(cp Checkpoint) error {
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

func (t *JacobianTape) evaluateStatementForward(pos chunk.Position) {
	st := t.statements.At(pos)
	width := t.adjoints.Width
	acc := make([]float64, width)
	p := st.argStart
	for i := 0; i < st.argCount; i++ {
		op := t.operands.At(p)
		slot := t.adjoints.Slot(int(op.id))
		for k := range acc {
			acc[k] += op.coeff * slot[k]
		}
		if i+1 < st.argCount {
			p = t.operands.Next(p)
		}
	}
	t.adjoints.Set(int(st.lhsID), acc)
}

// Checkpoint returns the current append position across every log this
// tape maintains.
func (t *JacobianTape) Checkpoint() Checkpoint {
	return Checkpoint{
		entries:  t.entries.Position(),
		extFuncs: t.extFuncs.Position(),
		aux1:     t.statements.Position(),
		aux2:     t.operands.Position(),
		index:    t.manager.Snapshot(),
	}
}

// Reset discards everything recorded after cp and restores the index
// manager to the state it had then. Every external-function record
// dropped by the truncation has its Release callback invoked first. The
// adjoint vector is cleared outright, since any live gradient data
// belongs to the discarded recording.
func (t *JacobianTape) Reset(cp Checkpoint) {
	t.entries.Reset(cp.entries)
	t.resetExternalFuncs(cp.extFuncs)
	t.statements.Reset(cp.aux1)
	t.operands.Reset(cp.aux2)
	t.manager.Restore(cp.index)
	t.adjoints.Clear()
}

// Values reports the tape's bookkeeping.
func (t *JacobianTape) Values() TapeStatistics {
	return TapeStatistics{
		Statements:       t.statements.Len(),
		StatementBytes:   t.statements.Len() * statementSize,
		Operands:         t.operands.Len(),
		OperandBytes:     t.operands.Len() * operandSize,
		ExternalFuncs:    t.extFuncs.Len(),
		AdjointEntries:   t.adjoints.Len(),
		AdjointBytes:     t.adjoints.Len() * t.adjoints.Width * 8,
		MaxLiveIdentifier: uint32(t.manager.MaxLive()),
	}
}
