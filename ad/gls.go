package ad

// Goroutine-local default tape, so concurrent differentiation sessions
// on different goroutines never share mutable tape state.

import (
	"sync"

	"github.com/modern-go/gls"

	"github.com/SciCompKL/CoDiPack-sub001/index"
)

type defaultStore struct {
	sync.Mutex
	tapes map[int64]Tape
}

func newDefaultStore() *defaultStore {
	return &defaultStore{tapes: map[int64]Tape{}}
}

var defaults = newDefaultStore()

// Default returns the calling goroutine's default tape, creating one (a
// JacobianTape over a LinearManager, with DefaultOptions) on first use.
// Each goroutine gets its own tape identified by gls.GoID(), rather than
// every caller sharing one process-wide mutable static.
func Default() Tape {
	id := gls.GoID()
	defaults.Lock()
	t, ok := defaults.tapes[id]
	defaults.Unlock()
	if !ok {
		t = NewJacobianTape(index.NewLinearManager())
		defaults.Lock()
		defaults.tapes[id] = t
		defaults.Unlock()
	}
	return t
}

// SetDefault installs t as the calling goroutine's default tape,
// replacing whatever Default() would otherwise have created.
func SetDefault(t Tape) {
	id := gls.GoID()
	defaults.Lock()
	defaults.tapes[id] = t
	defaults.Unlock()
}

// DropDefault removes the calling goroutine's default tape. Call this
// before a goroutine that used Default() exits, so the registry does
// not keep accumulating entries for dead goroutines.
func DropDefault() {
	id := gls.GoID()
	defaults.Lock()
	delete(defaults.tapes, id)
	defaults.Unlock()
}
