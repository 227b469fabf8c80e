package ad

import "github.com/SciCompKL/CoDiPack-sub001/extfunc"

// Preaccumulate replays the reverse sweep of everything recorded since
// checkpoint, condenses the result into the Jacobian of outputs with
// respect to inputs, resets the tape back to checkpoint, and re-records
// that Jacobian as a single external-function entry. A long, narrow
// subcomputation (many statements, few inputs and outputs) then costs
// one compact record during every future sweep instead of replaying the
// whole subcomputation, built directly on the external-function hook
// rather than a new tape primitive.
//
// checkpoint must have been taken after inputs were registered (so
// their identifiers survive the Reset) and before the first statement
// of the subcomputation being condensed. inputs and outputs must
// already carry the identifiers Store assigned them during recording;
// their current primal values are used as the external function's
// recorded primal snapshot. The tape is switched inactive for the
// internal sweeps and its activity restored before the external-function
// entry is recorded, so Preaccumulate is called while recording is still
// in progress; on an inactive tape no entry is recorded and outputs
// become passive. Preaccumulate only supports scalar-mode
// tapes (adjoint width 1); the condensed Jacobian it records is a plain
// matrix of floats, not a per-direction tuple.
func Preaccumulate(t *JacobianTape, checkpoint Checkpoint, inputs, outputs []Var) error {
	if t.adjoints.Width != 1 {
		return &ContractViolation{Msg: "Preaccumulate requires a scalar-mode tape (adjoint width 1)"}
	}
	wasActive := t.Active()
	t.SetActive(false)
	jac := make([][]float64, len(outputs))
	for i, out := range outputs {
		jac[i] = make([]float64, len(inputs))
		t.ClearAdjoints()
		t.SetGradient(out, []float64{1})
		if err := t.EvaluateTo(checkpoint); err != nil {
			t.SetActive(wasActive)
			return err
		}
		for k, in := range inputs {
			jac[i][k] = t.Gradient(in)[0]
		}
	}
	t.ClearAdjoints()
	t.SetActive(wasActive)

	t.Reset(checkpoint)

	outputPrimal := make([]float64, len(outputs))
	for i, out := range outputs {
		outputPrimal[i] = out.primal
	}
	newOutputs, err := t.PushExternalFunction(inputs, outputPrimal, extfunc.Callbacks{
		Reverse: func(_, inAdj []float64, _, outAdj []float64, userData any) {
			j := userData.([][]float64)
			for i := range j {
				for k := range j[i] {
					inAdj[k] += j[i][k] * outAdj[i]
				}
			}
		},
	}, jac, nil)
	if err != nil {
		return err
	}
	for i := range outputs {
		outputs[i] = newOutputs[i]
	}
	return nil
}
