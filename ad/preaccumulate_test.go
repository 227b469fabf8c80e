package ad

import (
	"math"
	"testing"

	"github.com/SciCompKL/CoDiPack-sub001/index"
)

func TestPreaccumulateMatchesDirectGradient(t *testing.T) {
	build := func() (*JacobianTape, Var, Var, Var, Checkpoint) {
		tape := NewJacobianTape(index.NewLinearManager())
		tape.SetActive(true)
		x := Var{primal: 2}
		y := Var{primal: 3}
		tape.RegisterInput(&x)
		tape.RegisterInput(&y)
		cp := tape.Checkpoint()
		var out Var
		if err := tape.Store(&out, Add(Mul(x, x), Mul(Sin(y), y))); err != nil {
			t.Fatal(err)
		}
		tape.RegisterOutput(&out)
		return tape, x, y, out, cp
	}

	direct, x1, y1, out1, _ := build()
	direct.SetActive(false)
	direct.SetGradient(out1, []float64{1})
	if err := direct.Evaluate(); err != nil {
		t.Fatal(err)
	}
	wantDx, wantDy := direct.Gradient(x1)[0], direct.Gradient(y1)[0]

	pre, x2, y2, out2, cp := build()
	if err := Preaccumulate(pre, cp, []Var{x2, y2}, []Var{out2}); err != nil {
		t.Fatal(err)
	}
	pre.SetActive(false)
	pre.SetGradient(out2, []float64{1})
	if err := pre.Evaluate(); err != nil {
		t.Fatal(err)
	}
	gotDx, gotDy := pre.Gradient(x2)[0], pre.Gradient(y2)[0]

	if math.Abs(gotDx-wantDx) > 1e-12 || math.Abs(gotDy-wantDy) > 1e-12 {
		t.Errorf("preaccumulated gradient = (%v, %v), want (%v, %v)", gotDx, gotDy, wantDx, wantDy)
	}
}
