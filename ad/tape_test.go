package ad

import (
	"math"
	"reflect"
	"testing"

	"github.com/SciCompKL/CoDiPack-sub001/adjoint"
	"github.com/SciCompKL/CoDiPack-sub001/extfunc"
	"github.com/SciCompKL/CoDiPack-sub001/index"
)

// grad differentiates f, built out of the active inputs xs, with
// respect to every input, using a fresh JacobianTape per call.
func grad(x []float64, f func(xs []Var) Expr) []float64 {
	tape := NewJacobianTape(index.NewLinearManager())
	tape.SetActive(true)
	xs := make([]Var, len(x))
	for i, v := range x {
		xs[i] = Var{primal: v}
		tape.RegisterInput(&xs[i])
	}
	var out Var
	if err := tape.Store(&out, f(xs)); err != nil {
		panic(err)
	}
	tape.RegisterOutput(&out)
	tape.SetActive(false)
	tape.SetGradient(out, []float64{1})
	if err := tape.Evaluate(); err != nil {
		panic(err)
	}
	g := make([]float64, len(x))
	for i := range xs {
		g[i] = tape.Gradient(xs[i])[0]
	}
	return g
}

// testcase defines a test of a single expression at several inputs.
type testcase struct {
	s string
	f func(xs []Var) Expr
	v [][][]float64 // each entry is {input, expected gradient}
}

// runsuite evaluates a sequence of test cases.
func runsuite(t *testing.T, suite []testcase) {
	for _, c := range suite {
		for _, v := range c.v {
			g := grad(v[0], c.f)
			if !reflect.DeepEqual(g, v[1]) {
				t.Errorf("%s, x=%v: g=%v, wanted g=%v", c.s, v[0], g, v[1])
			}
		}
	}
}

func TestPrimitive(t *testing.T) {
	runsuite(t, []testcase{
		{"x + y",
			func(xs []Var) Expr { return Add(xs[0], xs[1]) },
			[][][]float64{
				{{0., 0.}, {1., 1.}},
				{{3., 5.}, {1., 1.}}}},
		{"x + x",
			func(xs []Var) Expr { return Add(xs[0], xs[0]) },
			[][][]float64{
				{{0.}, {2.}},
				{{1.}, {2.}}}},
		{"x - y",
			func(xs []Var) Expr { return Sub(xs[0], xs[1]) },
			[][][]float64{
				{{0., 0.}, {1., -1.}},
				{{1., 1.}, {1., -1.}}}},
		{"x - x",
			func(xs []Var) Expr { return Sub(xs[0], xs[0]) },
			[][][]float64{
				{{0.}, {0.}},
				{{1.}, {0.}}}},
		{"x * y",
			func(xs []Var) Expr { return Mul(xs[0], xs[1]) },
			[][][]float64{
				{{0., 0.}, {0., 0.}},
				{{2., 3.}, {3., 2.}}}},
		{"x * x",
			func(xs []Var) Expr { return Mul(xs[0], xs[0]) },
			[][][]float64{
				{{0.}, {0.}},
				{{1.}, {2.}}}},
		{"x / y",
			func(xs []Var) Expr { return Quo(xs[0], xs[1]) },
			[][][]float64{
				{{0., 1.}, {1., 0.}},
				{{2., 4.}, {0.25, -0.125}}}},
		{"sqrt(x)",
			func(xs []Var) Expr { return Sqrt(xs[0]) },
			[][][]float64{
				{{0.25}, {1.}},
				{{1.}, {0.5}},
				{{4.}, {0.25}}}},
		{"log(x)",
			func(xs []Var) Expr { return Log(xs[0]) },
			[][][]float64{
				{{1.}, {1.}},
				{{2.}, {0.5}}}},
		{"exp(x)",
			func(xs []Var) Expr { return Exp(xs[0]) },
			[][][]float64{
				{{0.}, {1.}},
				{{1.}, {math.E}}}},
		{"cos(x)",
			func(xs []Var) Expr { return Cos(xs[0]) },
			[][][]float64{
				{{0.}, {0.}},
				{{1.}, {-math.Sin(1.)}}}},
		{"sin(x)",
			func(xs []Var) Expr { return Sin(xs[0]) },
			[][][]float64{
				{{0.}, {1.}},
				{{1.}, {math.Cos(1.)}}}},
	})
}

func TestComposite(t *testing.T) {
	runsuite(t, []testcase{
		{"x * x + y * y",
			func(xs []Var) Expr { return Add(Mul(xs[0], xs[0]), Mul(xs[1], xs[1])) },
			[][][]float64{
				{{0., 0.}, {0., 0.}},
				{{1., 1.}, {2., 2.}},
				{{2., 3.}, {4., 6.}}}},
		{"42 * x * x",
			func(xs []Var) Expr { return Mul(Const(42), Mul(xs[0], xs[0])) },
			[][][]float64{
				{{10.}, {840.}}}},
		{"sin(x) * exp(x)",
			func(xs []Var) Expr { return Mul(Sin(xs[0]), Exp(xs[0])) },
			[][][]float64{
				{{1.}, {math.Exp(1) * (math.Sin(1) + math.Cos(1))}}}},
	})
}

func TestPowActiveExponent(t *testing.T) {
	// d/dx x^y = y*x^(y-1), d/dy x^y = x^y*ln(x).
	g := grad([]float64{2., 3.}, func(xs []Var) Expr { return Pow(xs[0], xs[1]) })
	want := []float64{3 * math.Pow(2, 2), math.Pow(2, 3) * math.Log(2)}
	if !reflect.DeepEqual(g, want) {
		t.Errorf("pow gradient = %v, want %v", g, want)
	}
}

func TestPowNonPositiveBaseForcesExponentPartialZero(t *testing.T) {
	g := grad([]float64{-2., 3.}, func(xs []Var) Expr { return Pow(xs[0], xs[1]) })
	if g[1] != 0 {
		t.Errorf("pow d/dy at non-positive base = %v, want 0", g[1])
	}
}

func TestReassignment(t *testing.T) {
	// t = x; t = t*t; t = t*t  =>  y = x^4, dy/dx = 4*x^3.
	g := grad([]float64{2.}, func(xs []Var) Expr {
		tExpr := Expr(xs[0])
		tExpr = Mul(tExpr, tExpr)
		tExpr = Mul(tExpr, tExpr)
		return tExpr
	})
	want := 4 * math.Pow(2, 3)
	if g[0] != want {
		t.Errorf("d(x^4)/dx = %v, want %v", g[0], want)
	}
}

func TestDomainErrorPropagatesThroughChain(t *testing.T) {
	tape := NewJacobianTape(index.NewLinearManager())
	tape.SetActive(true)
	x := Var{primal: -1}
	tape.RegisterInput(&x)
	y := Mul(Const(2), Log(x))
	var out Var
	err := tape.Store(&out, y)
	if err == nil {
		t.Fatal("expected a DomainError from log(-1), got nil")
	}
	if _, ok := err.(*DomainError); !ok {
		t.Errorf("expected *DomainError, got %T: %v", err, err)
	}
}

func TestForwardReverseDuality(t *testing.T) {
	tape := NewJacobianTape(index.NewLinearManager())
	tape.SetActive(true)
	x := Var{primal: 3}
	y := Var{primal: 4}
	tape.RegisterInput(&x)
	tape.RegisterInput(&y)
	start := tape.Checkpoint()
	var z Var
	if err := tape.Store(&z, Add(Mul(x, x), Mul(y, y))); err != nil {
		t.Fatal(err)
	}
	tape.RegisterOutput(&z)
	tape.SetActive(false)

	tape.SetGradient(z, []float64{1})
	if err := tape.Evaluate(); err != nil {
		t.Fatal(err)
	}
	dzdx, dzdy := tape.Gradient(x)[0], tape.Gradient(y)[0]

	tape.ClearAdjoints()
	tape.SetGradient(x, []float64{1})
	if err := tape.EvaluateForward(start); err != nil {
		t.Fatal(err)
	}
	dzdxForward := tape.Gradient(z)[0]

	if dzdx != 2*3 || dzdy != 2*4 {
		t.Errorf("reverse gradient = (%v, %v), want (6, 8)", dzdx, dzdy)
	}
	if dzdxForward != dzdx {
		t.Errorf("forward dz/dx = %v, want %v (duality with reverse sweep)", dzdxForward, dzdx)
	}
}

func TestResetDiscardsRecording(t *testing.T) {
	tape := NewJacobianTape(index.NewLinearManager())
	tape.SetActive(true)
	x := Var{primal: 1}
	tape.RegisterInput(&x)
	cp := tape.Checkpoint()

	var y Var
	if err := tape.Store(&y, Mul(x, x)); err != nil {
		t.Fatal(err)
	}
	before := tape.Values().Statements

	tape.Reset(cp)
	after := tape.Values().Statements
	if after != 0 {
		t.Errorf("statements after Reset = %d, want 0", after)
	}
	if before == 0 {
		t.Errorf("statements before Reset = %d, want > 0", before)
	}
}

func TestLinearAndReuseManagersAgree(t *testing.T) {
	build := func(m index.Manager) float64 {
		tape := NewJacobianTape(m)
		tape.SetActive(true)
		x := Var{primal: 5}
		tape.RegisterInput(&x)
		var t1, t2 Var
		if err := tape.Store(&t1, Mul(x, x)); err != nil {
			t.Fatal(err)
		}
		if err := tape.Store(&t2, Mul(t1, t1)); err != nil {
			t.Fatal(err)
		}
		tape.RegisterOutput(&t2)
		tape.SetActive(false)
		tape.SetGradient(t2, []float64{1})
		if err := tape.Evaluate(); err != nil {
			t.Fatal(err)
		}
		return tape.Gradient(x)[0]
	}
	linear := build(index.NewLinearManager())
	reuse := build(index.NewReuseManager(false))
	if linear != reuse {
		t.Errorf("linear manager gave %v, reuse manager gave %v, want equal", linear, reuse)
	}
}

func TestExternalFunctionNeutrality(t *testing.T) {
	tape := NewJacobianTape(index.NewLinearManager())
	tape.SetActive(true)
	x := Var{primal: 4}
	tape.RegisterInput(&x)

	outs, err := tape.PushExternalFunction([]Var{x}, []float64{math.Sqrt(4)}, extfunc.Callbacks{
		Reverse: func(inPrimal, inAdj, outPrimal, outAdj []float64, _ any) {
			inAdj[0] += outAdj[0] * 0.5 / outPrimal[0]
		},
	}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	y := outs[0]
	tape.RegisterOutput(&y)
	tape.SetActive(false)
	tape.SetGradient(y, []float64{1})
	if err := tape.Evaluate(); err != nil {
		t.Fatal(err)
	}

	want := 0.5 / math.Sqrt(4)
	if got := tape.Gradient(x)[0]; got != want {
		t.Errorf("external sqrt gradient = %v, want %v", got, want)
	}
}

func TestVectorModeWidthTwo(t *testing.T) {
	tape := NewJacobianTape(index.NewLinearManager())
	tape.adjoints = adjoint.New(2)
	tape.SetActive(true)
	x := Var{primal: 2}
	y := Var{primal: 3}
	tape.RegisterInput(&x)
	tape.RegisterInput(&y)
	var z Var
	if err := tape.Store(&z, Add(Mul(x, x), y)); err != nil {
		t.Fatal(err)
	}
	tape.RegisterOutput(&z)
	tape.SetActive(false)

	tape.SetGradient(z, []float64{1, 2})
	if err := tape.Evaluate(); err != nil {
		t.Fatal(err)
	}
	gx := tape.Gradient(x)
	gy := tape.Gradient(y)
	if !reflect.DeepEqual(gx, []float64{4, 8}) {
		t.Errorf("dz/dx (two directions) = %v, want [4 8]", gx)
	}
	if !reflect.DeepEqual(gy, []float64{1, 2}) {
		t.Errorf("dz/dy (two directions) = %v, want [1 2]", gy)
	}
}
