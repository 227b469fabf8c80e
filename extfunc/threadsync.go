package extfunc

import "golang.org/x/sync/errgroup"

// RunThreadSynchronized implements the one multi-threading surface
// this package allows: the thread-synchronized external-function
// variant. Its contract is prepare/run/finalize, with exactly one thread
// preparing and tearing down shared buffers and user data, while every
// thread enters the user-provided primal/derivative function between
// those two barriers.
//
// prepare and finalize run on the calling goroutine; enter is called
// once per thread in [0, nThreads) from its own goroutine, all started
// after prepare returns and all joined (the "run" barrier) before
// finalize runs. The first non-nil error returned by any enter call is
// returned; the others are discarded, matching errgroup.Group's
// first-error-wins semantics, the idiomatic Go vehicle for exactly this
// barrier shape.
func RunThreadSynchronized(
	nThreads int,
	prepare func(),
	enter func(thread int) error,
	finalize func(),
) error {
	prepare()
	var g errgroup.Group
	for t := 0; t != nThreads; t++ {
		t := t
		g.Go(func() error {
			return enter(t)
		})
	}
	err := g.Wait()
	finalize()
	return err
}
