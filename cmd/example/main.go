// Command example runs a handful of self-contained differentiation
// scenarios against the ad package, printing primal and gradient
// values for a quick sanity check of the engine end to end.
package main

import (
	"flag"
	"log"
	"math"

	"github.com/SciCompKL/CoDiPack-sub001/ad"
	"github.com/SciCompKL/CoDiPack-sub001/index"
)

var SCENARIO = "all"

func init() {
	flag.Usage = func() {
		log.Printf(`Running differentiation scenarios:
	example [OPTIONS]` + "\n")
		flag.PrintDefaults()
	}
	flag.StringVar(&SCENARIO, "scenario", SCENARIO,
		"which scenario to run: all, quadratic, power, trig, reassign, vector")
	log.SetFlags(0)
}

func main() {
	flag.Parse()

	scenarios := map[string]func(){
		"quadratic": quadraticScenario,
		"power":     powerScenario,
		"trig":      trigScenario,
		"reassign":  reassignScenario,
		"vector":    vectorScenario,
	}

	if SCENARIO != "all" {
		f, ok := scenarios[SCENARIO]
		if !ok {
			log.Fatalf("unknown scenario %q", SCENARIO)
		}
		f()
		return
	}
	for _, name := range []string{"quadratic", "power", "trig", "reassign", "vector"} {
		scenarios[name]()
	}
}

// quadraticScenario differentiates y = 42*x*x at x = 10: dy/dx = 840.
func quadraticScenario() {
	tape := ad.NewJacobianTape(index.NewLinearManager())
	tape.SetActive(true)
	x := ad.Var{}
	setPrimal(&x, 10)
	tape.RegisterInput(&x)

	var y ad.Var
	must(tape.Store(&y, ad.Mul(ad.Const(42), ad.Mul(x, x))))
	tape.RegisterOutput(&y)
	tape.SetActive(false)

	tape.SetGradient(y, []float64{1})
	must(tape.Evaluate())
	log.Printf("quadratic: y = 42*x*x, x = 10, y = %v, dy/dx = %v", y.Value(), tape.Gradient(x)[0])
}

// powerScenario differentiates z = x^y at (x, y) = (2, 3).
func powerScenario() {
	tape := ad.NewJacobianTape(index.NewLinearManager())
	tape.SetActive(true)
	x, y := ad.Var{}, ad.Var{}
	setPrimal(&x, 2)
	setPrimal(&y, 3)
	tape.RegisterInput(&x)
	tape.RegisterInput(&y)

	var z ad.Var
	must(tape.Store(&z, ad.Pow(x, y)))
	tape.RegisterOutput(&z)
	tape.SetActive(false)

	tape.SetGradient(z, []float64{1})
	must(tape.Evaluate())
	log.Printf("power: z = x^y, x = 2, y = 3, z = %v, dz/dx = %v, dz/dy = %v",
		z.Value(), tape.Gradient(x)[0], tape.Gradient(y)[0])
}

// trigScenario differentiates w = sin(x)*exp(x) at x = 1.
func trigScenario() {
	tape := ad.NewJacobianTape(index.NewLinearManager())
	tape.SetActive(true)
	x := ad.Var{}
	setPrimal(&x, 1)
	tape.RegisterInput(&x)

	var w ad.Var
	must(tape.Store(&w, ad.Mul(ad.Sin(x), ad.Exp(x))))
	tape.RegisterOutput(&w)
	tape.SetActive(false)

	tape.SetGradient(w, []float64{1})
	must(tape.Evaluate())
	want := math.Exp(1) * (math.Sin(1) + math.Cos(1))
	log.Printf("trig: w = sin(x)*exp(x), x = 1, w = %v, dw/dx = %v (expected %v)",
		w.Value(), tape.Gradient(x)[0], want)
}

// reassignScenario walks t = x; t = t*t; t = t*t on a PrimalValueTape,
// exercising identifier reuse across reassignment.
func reassignScenario() {
	tape := ad.NewPrimalValueTape(index.NewReuseManager(true))
	tape.SetActive(true)
	x := ad.Var{}
	setPrimal(&x, 2)
	tape.RegisterInput(&x)

	var t ad.Var
	must(tape.Store(&t, x))
	must(tape.Store(&t, ad.Mul(t, t)))
	must(tape.Store(&t, ad.Mul(t, t)))
	tape.RegisterOutput(&t)
	tape.SetActive(false)

	tape.SetGradient(t, []float64{1})
	must(tape.Evaluate())
	log.Printf("reassign: t = ((x*x)*(x*x)), x = 2, t = %v, dt/dx = %v (expected %v)",
		t.Value(), tape.Gradient(x)[0], 4*math.Pow(2, 3))
}

// vectorScenario runs one reverse sweep over two simultaneous seed
// directions, the broadcast-equivalence property of vector mode.
func vectorScenario() {
	tape := ad.NewJacobianTape(index.NewLinearManager())
	tape.SetActive(true)
	x, y := ad.Var{}, ad.Var{}
	setPrimal(&x, 2)
	setPrimal(&y, 3)
	tape.RegisterInput(&x)
	tape.RegisterInput(&y)

	tape.SetWidth(2)
	var z ad.Var
	must(tape.Store(&z, ad.Add(ad.Mul(x, x), y)))
	tape.RegisterOutput(&z)
	tape.SetActive(false)

	tape.SetGradient(z, []float64{1, 2})
	must(tape.Evaluate())
	log.Printf("vector: z = x*x+y, seeds [1 0] and [0 2] combined as [1 2]: dz/dx = %v, dz/dy = %v",
		tape.Gradient(x), tape.Gradient(y))
}

func setPrimal(v *ad.Var, value float64) {
	*v = ad.NewConstant(value)
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
