package index

import "testing"

func TestLinearManagerNeverReuses(t *testing.T) {
	m := NewLinearManager()
	a := m.Create()
	m.Free(a)
	b := m.Create()
	if b != a+1 {
		t.Errorf("Create() after Free = %v, want %v (no reuse)", b, a+1)
	}
	if got := m.Assign(a); got != a+2 {
		t.Errorf("Assign() = %v, want a fresh id %v", got, a+2)
	}
}

func TestLinearManagerSnapshotRestore(t *testing.T) {
	m := NewLinearManager()
	m.Create()
	m.Create()
	snap := m.Snapshot()
	m.Create()
	m.Restore(snap)
	if m.MaxLive() != 2 {
		t.Errorf("MaxLive() after restore = %v, want 2", m.MaxLive())
	}
	if got := m.Create(); got != 3 {
		t.Errorf("Create() after restore = %v, want 3", got)
	}
}

func TestReuseManagerFreeListWithoutUseCount(t *testing.T) {
	m := NewReuseManager(false)
	a := m.Create()
	b := m.Create()
	m.Free(a)
	c := m.Create() // should reuse a
	if c != a {
		t.Errorf("Create() after Free = %v, want reused id %v", c, a)
	}
	if m.NeedsCopyStatement() != true {
		t.Error("NeedsCopyStatement() = false, want true without use-count tracking")
	}
	_ = b
}

func TestReuseManagerUseCount(t *testing.T) {
	m := NewReuseManager(true)
	a := m.Create()
	if m.NeedsCopyStatement() {
		t.Error("NeedsCopyStatement() = true, want false with use-count tracking")
	}

	// Two holders now reference a.
	lhs := m.Copy(Inactive, a)
	if lhs != a {
		t.Fatalf("Copy() = %v, want %v", lhs, a)
	}

	// Freeing one holder should not release a, since the other still
	// holds it.
	m.Free(a)
	b := m.Create()
	if b == a {
		t.Errorf("Create() reused %v while still referenced", a)
	}

	// Freeing the last holder releases it.
	m.Free(a)
	c := m.Create()
	if c != a {
		t.Errorf("Create() = %v, want reused id %v after last reference freed", c, a)
	}
	_ = b
}

func TestReuseManagerAssignKeepsSoleHolder(t *testing.T) {
	m := NewReuseManager(true)
	a := m.Create()
	if got := m.Assign(a); got != a {
		t.Errorf("Assign() on sole holder = %v, want %v (kept)", got, a)
	}
}

func TestReuseManagerAssignReallocatesSharedID(t *testing.T) {
	m := NewReuseManager(true)
	a := m.Create()
	m.Copy(Inactive, a) // now two holders
	got := m.Assign(a)
	if got == a {
		t.Errorf("Assign() on shared id = %v, want a fresh id", got)
	}
}
