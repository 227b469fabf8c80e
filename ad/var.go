package ad

import "github.com/SciCompKL/CoDiPack-sub001/index"

// Var is an active scalar: a primal value paired with the identifier a
// tape assigned it. Var carries no tape pointer; the same Var can be
// passed to Expr constructors freely, and it only becomes tied to a
// particular tape when that tape's Store, RegisterInput, or
// RegisterOutput is called with it. This keeps Expr construction (C4)
// fully decoupled from tape recording (C5), keeping the two concerns
// split cleanly.
type Var struct {
	primal float64
	id     index.ID
}

// Value implements Expr.
func (v Var) Value() float64 { return v.primal }

// pushPartials implements Expr: a Var is a leaf, so it emits itself
// directly (unless seed is zero or it carries the inactive identifier).
func (v Var) pushPartials(seed float64, emit func(coeff float64, id index.ID)) {
	if seed == 0 || v.id == index.Inactive {
		return
	}
	emit(seed, v.id)
}

// ID returns the identifier the tape assigned this Var, or
// index.Inactive if it was never registered with a tape.
func (v Var) ID() index.ID { return v.id }

// NewConstant returns a Var holding a fixed value with no tape identity.
// It behaves exactly like Const(v) when used in an expression, but has
// the Var type expected by APIs that take "an input-shaped value
// without being an input."
func NewConstant(v float64) Var { return Var{primal: v} }
