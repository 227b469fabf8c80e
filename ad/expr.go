package ad

import (
	"math"

	"github.com/SciCompKL/CoDiPack-sub001/index"
)

// Expr is C4, the expression tree: a statically composed, value-semantic
// node carrying both the already-computed primal value and the recipe
// for propagating a seed down to every active leaf it depends on. The
// sealed set of constructors below (Add, Mul, Sqrt, ...) is the
// declarative table of constructors in place of the original's
// macro-expanded operator variants; pushPartials is unexported, so Expr
// has exactly these implementations and no others.
//
// Expr values are built freely without touching any tape. value() is
// evaluated eagerly at construction, so a subexpression referenced
// several times in one assignment is computed exactly once regardless of
// how many times pushPartials walks over it. Only Tape.Store (or
// Tape.RegisterInput/RegisterOutput) ties an Expr to a tape, writing one
// statement per assignment with the flattened (partial, leaf id) pairs
// of the whole right-hand side.
type Expr interface {
	// Value returns the primal this node was constructed with.
	Value() float64

	// pushPartials multiplies seed by this node's local partial
	// derivative and recurses into its operands, calling emit(coeff,
	// id) once per active leaf reached. Composite nodes precompute
	// their local partials at construction time (binaryExpr.dl/dr,
	// unaryExpr.d); pushPartials only ever multiplies and recurses.
	pushPartials(seed float64, emit func(coeff float64, id index.ID))
}

// Const wraps a compile-time-passive float64 as an Expr. Arithmetic with
// a Const never increases an expression's active-variable count: its
// pushPartials is a no-op.
func Const(v float64) Expr { return constExpr(v) }

type constExpr float64

func (c constExpr) Value() float64 { return float64(c) }
func (c constExpr) pushPartials(float64, func(float64, index.ID)) {}

// errExpr carries a DomainError produced by a guard in this file. It
// lets a chain of Expr constructors be written without checking an error
// after every call: the first domain violation short-circuits the rest
// of the chain, surfacing at Store (which returns it without writing a
// statement), the same point a domain violation is treated as fatal to
// the session.
type errExpr struct{ err error }

func (e *errExpr) Value() float64 { return math.NaN() }
func (e *errExpr) pushPartials(float64, func(float64, index.ID)) {}

// exprError extracts a domain error from an Expr built by this package,
// if any.
func exprError(e Expr) error {
	if ee, ok := e.(*errExpr); ok {
		return ee.err
	}
	return nil
}

func firstErr(xs ...Expr) error {
	for _, x := range xs {
		if err := exprError(x); err != nil {
			return err
		}
	}
	return nil
}

// binaryExpr is a two-operand elementary node: value and both local
// partials (w.r.t. l and w.r.t. r) are fixed at construction.
type binaryExpr struct {
	val    float64
	dl, dr float64
	l, r   Expr
}

func (b *binaryExpr) Value() float64 { return b.val }

func (b *binaryExpr) pushPartials(seed float64, emit func(float64, index.ID)) {
	b.l.pushPartials(seed*b.dl, emit)
	b.r.pushPartials(seed*b.dr, emit)
}

// unaryExpr is a one-operand elementary node.
type unaryExpr struct {
	val float64
	d   float64
	x   Expr
}

func (u *unaryExpr) Value() float64 { return u.val }

func (u *unaryExpr) pushPartials(seed float64, emit func(float64, index.ID)) {
	u.x.pushPartials(seed*u.d, emit)
}

// Binary arithmetic

// Add returns x + y.
func Add(x, y Expr) Expr {
	if err := firstErr(x, y); err != nil {
		return &errExpr{err}
	}
	return &binaryExpr{val: x.Value() + y.Value(), dl: 1, dr: 1, l: x, r: y}
}

// Sub returns x - y.
func Sub(x, y Expr) Expr {
	if err := firstErr(x, y); err != nil {
		return &errExpr{err}
	}
	return &binaryExpr{val: x.Value() - y.Value(), dl: 1, dr: -1, l: x, r: y}
}

// Mul returns x * y.
func Mul(x, y Expr) Expr {
	if err := firstErr(x, y); err != nil {
		return &errExpr{err}
	}
	xv, yv := x.Value(), y.Value()
	return &binaryExpr{val: xv * yv, dl: yv, dr: xv, l: x, r: y}
}

// Quo returns x / y.
func Quo(x, y Expr) Expr {
	if err := firstErr(x, y); err != nil {
		return &errExpr{err}
	}
	xv, yv := x.Value(), y.Value()
	val := xv / yv
	return &binaryExpr{val: val, dl: 1 / yv, dr: -val / yv, l: x, r: y}
}

// Pow returns x^y. If x <= 0, the partial w.r.t. y is forced to 0,
// extending the function continuously from the positive branch;
// StrictDomain turns that case into a DomainError instead, whether or not
// y is active.
func Pow(x, y Expr) Expr {
	if err := firstErr(x, y); err != nil {
		return &errExpr{err}
	}
	xv, yv := x.Value(), y.Value()
	val := math.Pow(xv, yv)
	dx := yv * math.Pow(xv, yv-1)
	var dy float64
	if xv > 0 {
		dy = val * math.Log(xv)
	} else if StrictDomain {
		return &errExpr{&DomainError{Op: "pow (exponent partial at non-positive base)", Args: []float64{xv, yv}}}
	}
	return &binaryExpr{val: val, dl: dx, dr: dy, l: x, r: y}
}

// Atan2 returns atan2(y, x). atan2(0, 0) is a DomainError when
// CheckExpressionArguments is enabled.
func Atan2(y, x Expr) Expr {
	if err := firstErr(y, x); err != nil {
		return &errExpr{err}
	}
	yv, xv := y.Value(), x.Value()
	if CheckExpressionArguments && yv == 0 && xv == 0 {
		return &errExpr{&DomainError{Op: "atan2", Args: []float64{yv, xv}}}
	}
	val := math.Atan2(yv, xv)
	denom := xv*xv + yv*yv
	return &binaryExpr{val: val, dl: xv / denom, dr: -yv / denom, l: y, r: x}
}

// Min returns the smaller of x and y; ties (x == y) favor x, matching
// the "<" convention.
func Min(x, y Expr) Expr {
	if err := firstErr(x, y); err != nil {
		return &errExpr{err}
	}
	xv, yv := x.Value(), y.Value()
	if xv <= yv {
		return &binaryExpr{val: xv, dl: 1, dr: 0, l: x, r: y}
	}
	return &binaryExpr{val: yv, dl: 0, dr: 1, l: x, r: y}
}

// Max returns the larger of x and y; ties (x == y) favor x.
func Max(x, y Expr) Expr {
	if err := firstErr(x, y); err != nil {
		return &errExpr{err}
	}
	xv, yv := x.Value(), y.Value()
	if xv >= yv {
		return &binaryExpr{val: xv, dl: 1, dr: 0, l: x, r: y}
	}
	return &binaryExpr{val: yv, dl: 0, dr: 1, l: x, r: y}
}

// Unary arithmetic and transcendentals

// Neg returns -x.
func Neg(x Expr) Expr {
	if err := firstErr(x); err != nil {
		return &errExpr{err}
	}
	return &unaryExpr{val: -x.Value(), d: -1, x: x}
}

// Sqrt returns sqrt(x). Negative x is a DomainError when
// CheckExpressionArguments is enabled. The derivative at x == 0 is
// defined as 0, not +Inf, to keep reverse sweeps finite; StrictDomain
// turns that boundary case into a DomainError instead.
func Sqrt(x Expr) Expr {
	if err := firstErr(x); err != nil {
		return &errExpr{err}
	}
	xv := x.Value()
	if CheckExpressionArguments && xv < 0 {
		return &errExpr{&DomainError{Op: "sqrt", Args: []float64{xv}}}
	}
	val := math.Sqrt(xv)
	if val == 0 {
		if StrictDomain {
			return &errExpr{&DomainError{Op: "sqrt (derivative at 0)", Args: []float64{xv}}}
		}
		return &unaryExpr{val: val, d: 0, x: x}
	}
	return &unaryExpr{val: val, d: 0.5 / val, x: x}
}

// Log returns the natural logarithm of x. Non-positive x is a
// DomainError when CheckExpressionArguments is enabled.
func Log(x Expr) Expr {
	if err := firstErr(x); err != nil {
		return &errExpr{err}
	}
	xv := x.Value()
	if CheckExpressionArguments && xv <= 0 {
		return &errExpr{&DomainError{Op: "log", Args: []float64{xv}}}
	}
	return &unaryExpr{val: math.Log(xv), d: 1 / xv, x: x}
}

// Log10 returns the base-10 logarithm of x. Non-positive x is a
// DomainError when CheckExpressionArguments is enabled.
func Log10(x Expr) Expr {
	if err := firstErr(x); err != nil {
		return &errExpr{err}
	}
	xv := x.Value()
	if CheckExpressionArguments && xv <= 0 {
		return &errExpr{&DomainError{Op: "log10", Args: []float64{xv}}}
	}
	return &unaryExpr{val: math.Log10(xv), d: 1 / (xv * math.Ln10), x: x}
}

// Exp returns e^x.
func Exp(x Expr) Expr {
	if err := firstErr(x); err != nil {
		return &errExpr{err}
	}
	val := math.Exp(x.Value())
	return &unaryExpr{val: val, d: val, x: x}
}

// Sin returns sin(x).
func Sin(x Expr) Expr {
	if err := firstErr(x); err != nil {
		return &errExpr{err}
	}
	xv := x.Value()
	return &unaryExpr{val: math.Sin(xv), d: math.Cos(xv), x: x}
}

// Cos returns cos(x).
func Cos(x Expr) Expr {
	if err := firstErr(x); err != nil {
		return &errExpr{err}
	}
	xv := x.Value()
	return &unaryExpr{val: math.Cos(xv), d: -math.Sin(xv), x: x}
}

// Tan returns tan(x).
func Tan(x Expr) Expr {
	if err := firstErr(x); err != nil {
		return &errExpr{err}
	}
	val := math.Tan(x.Value())
	return &unaryExpr{val: val, d: 1 + val*val, x: x}
}

// Asin returns asin(x). x outside (-1, 1) is a DomainError when
// CheckExpressionArguments is enabled.
func Asin(x Expr) Expr {
	if err := firstErr(x); err != nil {
		return &errExpr{err}
	}
	xv := x.Value()
	if CheckExpressionArguments && (xv <= -1 || xv >= 1) {
		return &errExpr{&DomainError{Op: "asin", Args: []float64{xv}}}
	}
	return &unaryExpr{val: math.Asin(xv), d: 1 / math.Sqrt(1-xv*xv), x: x}
}

// Acos returns acos(x). x outside (-1, 1) is a DomainError when
// CheckExpressionArguments is enabled.
func Acos(x Expr) Expr {
	if err := firstErr(x); err != nil {
		return &errExpr{err}
	}
	xv := x.Value()
	if CheckExpressionArguments && (xv <= -1 || xv >= 1) {
		return &errExpr{&DomainError{Op: "acos", Args: []float64{xv}}}
	}
	return &unaryExpr{val: math.Acos(xv), d: -1 / math.Sqrt(1-xv*xv), x: x}
}

// Atan returns atan(x).
func Atan(x Expr) Expr {
	if err := firstErr(x); err != nil {
		return &errExpr{err}
	}
	xv := x.Value()
	return &unaryExpr{val: math.Atan(xv), d: 1 / (1 + xv*xv), x: x}
}

// Sinh returns sinh(x).
func Sinh(x Expr) Expr {
	if err := firstErr(x); err != nil {
		return &errExpr{err}
	}
	xv := x.Value()
	return &unaryExpr{val: math.Sinh(xv), d: math.Cosh(xv), x: x}
}

// Cosh returns cosh(x).
func Cosh(x Expr) Expr {
	if err := firstErr(x); err != nil {
		return &errExpr{err}
	}
	xv := x.Value()
	return &unaryExpr{val: math.Cosh(xv), d: math.Sinh(xv), x: x}
}

// Tanh returns tanh(x).
func Tanh(x Expr) Expr {
	if err := firstErr(x); err != nil {
		return &errExpr{err}
	}
	val := math.Tanh(x.Value())
	return &unaryExpr{val: val, d: 1 - val*val, x: x}
}

// Atanh returns atanh(x). x outside (-1, 1) is a DomainError when
// CheckExpressionArguments is enabled.
func Atanh(x Expr) Expr {
	if err := firstErr(x); err != nil {
		return &errExpr{err}
	}
	xv := x.Value()
	if CheckExpressionArguments && (xv <= -1 || xv >= 1) {
		return &errExpr{&DomainError{Op: "atanh", Args: []float64{xv}}}
	}
	return &unaryExpr{val: math.Atanh(xv), d: 1 / (1 - xv*xv), x: x}
}

// Abs returns |x|. The subgradient at x == 0 is defined as 0 unless
// StrictDomain is set, in which case it is a DomainError.
func Abs(x Expr) Expr {
	if err := firstErr(x); err != nil {
		return &errExpr{err}
	}
	xv := x.Value()
	var d float64
	switch {
	case xv > 0:
		d = 1
	case xv < 0:
		d = -1
	default:
		if StrictDomain {
			return &errExpr{&DomainError{Op: "abs (subgradient at 0)", Args: []float64{xv}}}
		}
	}
	return &unaryExpr{val: math.Abs(xv), d: d, x: x}
}

// Pass-throughs: domain of differentiation explicitly omits these, so
// they carry no tape dependency: IsInf, IsNaN and IsFinite return bool,
// and Floor and Ceil return a passive Const.

// IsInf reports whether x's primal is infinite.
func IsInf(x Expr) bool { return math.IsInf(x.Value(), 0) }

// IsNaN reports whether x's primal is NaN.
func IsNaN(x Expr) bool { return math.IsNaN(x.Value()) }

// IsFinite reports whether x's primal is neither infinite nor NaN.
func IsFinite(x Expr) bool {
	v := x.Value()
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Floor returns a passive scalar holding floor(x).
func Floor(x Expr) Expr { return Const(math.Floor(x.Value())) }

// Ceil returns a passive scalar holding ceil(x).
func Ceil(x Expr) Expr { return Const(math.Ceil(x.Value())) }

// Comparisons compare primal values only and carry no tape dependency.

func Less(x, y Expr) bool           { return x.Value() < y.Value() }
func LessOrEqual(x, y Expr) bool    { return x.Value() <= y.Value() }
func Greater(x, y Expr) bool        { return x.Value() > y.Value() }
func GreaterOrEqual(x, y Expr) bool { return x.Value() >= y.Value() }
func Equal(x, y Expr) bool          { return x.Value() == y.Value() }
