// Package index implements the policy that assigns and reclaims the
// integer identifiers active scalars carry, in two flavors: a
// monotonically increasing linear manager (used by Jacobian tapes) and
// a free-list reuse manager with an optional per-identifier use count
// (used by primal-value tapes, where identifiers are recycled across
// reassignment so the adjoint vector stays small).
package index

import "fmt"

// ID is the identifier type. The zero value, Inactive, marks a scalar
// that is a compile-time constant or has been explicitly deactivated;
// writes targeting it are always discarded.
type ID uint32

// Inactive is the identifier of a passive (non-differentiated) scalar.
const Inactive ID = 0

// Snapshot captures everything an index manager needs in order to undo
// every Create/Free/Copy performed since the snapshot was taken.
type Snapshot struct {
	next        ID
	freeLen     int
	useCountLen int
}

// Manager is the interface the tape consults for every assignment to an
// active scalar. There are exactly two implementations; mixing them
// within one tape instance is forbidden by construction
// (ad.NewJacobianTape and ad.NewPrimalValueTape take a single Manager for
// the tape's lifetime; there is no setter).
type Manager interface {
	// Create returns a fresh identifier for a brand-new active scalar.
	Create() ID
	// Free releases an identifier a scalar no longer holds (destruction
	// or reassignment). A no-op for LinearManager.
	Free(id ID)
	// Assign returns the identifier to use for the left-hand side of an
	// assignment whose previous identifier was id (Inactive if the
	// left-hand side was previously passive).
	Assign(id ID) ID
	// MaxLive returns the highest identifier currently considered live;
	// the adjoint vector is sized to at least MaxLive()+1.
	MaxLive() ID
	// NeedsCopyStatement reports whether `lhs = rhs` between two active
	// scalars must still be written to the tape as a one-term copy
	// statement. False only for the use-count reuse manager, which can
	// fold the copy into refcount bookkeeping (see CopyOptimizer).
	NeedsCopyStatement() bool
	// Snapshot/Restore implement Position()/reset(pos) for the manager
	// itself, so tape truncation can undo index allocation alongside
	// the statement and data logs.
	Snapshot() Snapshot
	Restore(Snapshot)
}

// CopyOptimizer is implemented by index managers that can special-case
// `lhs = rhs` between two active scalars without writing a tape
// statement: free the old lhs id, bump rhs's use count, and point lhs at
// rhs directly. Only the use-count ReuseManager implements this.
type CopyOptimizer interface {
	// Copy returns the identifier the left-hand side should hold after
	// `lhs = rhs`, having freed lhs's old identifier and recorded an
	// additional use of rhs.
	Copy(lhs, rhs ID) ID
}

// LinearManager hands out strictly increasing identifiers and never
// reuses one; Free is a no-op, and identifiers become implicitly
// available for reuse only when Restore rewinds next below them. This
// is the manager a JacobianTape uses: simplicity and locality matter
// more than keeping the adjoint vector small, since each gradient
// computation reuses one segment of tape at a time.
type LinearManager struct {
	next ID
}

// NewLinearManager returns a LinearManager with no identifiers yet
// allocated.
func NewLinearManager() *LinearManager {
	return &LinearManager{}
}

func (m *LinearManager) Create() ID {
	m.next++
	return m.next
}

func (m *LinearManager) Free(ID) {}

// Assign always creates a fresh identifier, unconditionally, regardless
// of the identifier previously held.
func (m *LinearManager) Assign(ID) ID {
	return m.Create()
}

func (m *LinearManager) MaxLive() ID { return m.next }

func (m *LinearManager) NeedsCopyStatement() bool { return true }

func (m *LinearManager) Snapshot() Snapshot { return Snapshot{next: m.next} }

func (m *LinearManager) Restore(s Snapshot) { m.next = s.next }

// ReuseManager maintains a monotonically increasing counter, a free-list
// of released identifiers, and, when constructed with trackUseCount,
// a per-identifier use count so that copy assignments between active
// scalars can skip writing a statement entirely (see CopyOptimizer).
//
// Invariant: a live identifier is held by exactly one active scalar when
// trackUseCount is false, or referenced by one or more holders whose
// count equals the number of holders when trackUseCount is true.
type ReuseManager struct {
	trackUseCount bool
	next          ID
	free          []ID
	useCount      []int // useCount[id-1], lazily grown
}

// NewReuseManager returns a ReuseManager. When trackUseCount is true, it
// behaves like the original's ReuseIndexHandlerUseCount: Free decrements
// a reference count and only releases to the free-list at zero, and
// Copy lets assignments between active scalars skip a tape statement
// (NeedsCopyStatement reports false). When false, it behaves like
// ReuseIndexHandlerAssignOpt: every Free pushes to the free-list
// unconditionally, and ordinary assignment statements are still written.
func NewReuseManager(trackUseCount bool) *ReuseManager {
	return &ReuseManager{trackUseCount: trackUseCount}
}

func (m *ReuseManager) ensureUseCount(id ID) {
	for ID(len(m.useCount)) < id {
		m.useCount = append(m.useCount, 0)
	}
}

func (m *ReuseManager) Create() ID {
	var id ID
	if n := len(m.free); n > 0 {
		id = m.free[n-1]
		m.free = m.free[:n-1]
	} else {
		m.next++
		id = m.next
	}
	if m.trackUseCount {
		m.ensureUseCount(id)
		m.useCount[id-1] = 1
	}
	return id
}

func (m *ReuseManager) Free(id ID) {
	if id == Inactive {
		return
	}
	if m.trackUseCount {
		m.ensureUseCount(id)
		m.useCount[id-1]--
		if m.useCount[id-1] > 0 {
			return
		}
	}
	m.free = append(m.free, id)
}

// Assign keeps id if it has no other users (trackUseCount and the count
// is at most 1), otherwise allocates a fresh identifier and frees the
// old one.
func (m *ReuseManager) Assign(id ID) ID {
	if id != Inactive && m.trackUseCount && m.useCount[id-1] <= 1 {
		return id
	}
	if id != Inactive {
		m.Free(id)
	}
	return m.Create()
}

// Copy implements CopyOptimizer: `lhs = rhs` frees lhs's old identifier,
// increments rhs's use count, and returns rhs as the new identifier for
// lhs, all without the tape writing a statement. Valid only when the
// manager tracks use counts.
func (m *ReuseManager) Copy(lhs, rhs ID) ID {
	if !m.trackUseCount {
		panic("index: Copy requires a use-count-tracking ReuseManager")
	}
	if lhs != Inactive {
		m.Free(lhs)
	}
	if rhs != Inactive {
		m.ensureUseCount(rhs)
		m.useCount[rhs-1]++
	}
	return rhs
}

func (m *ReuseManager) MaxLive() ID { return m.next }

func (m *ReuseManager) NeedsCopyStatement() bool { return !m.trackUseCount }

func (m *ReuseManager) Snapshot() Snapshot {
	return Snapshot{
		next:        m.next,
		freeLen:     len(m.free),
		useCountLen: len(m.useCount),
	}
}

func (m *ReuseManager) Restore(s Snapshot) {
	if s.freeLen > len(m.free) || s.useCountLen > len(m.useCount) {
		panic(fmt.Sprintf("index: Restore to a position ahead of the current one: %+v", s))
	}
	m.next = s.next
	m.free = m.free[:s.freeLen]
	m.useCount = m.useCount[:s.useCountLen]
}
