package chunk

import (
	"reflect"
	"testing"
)

func TestPushAndAt(t *testing.T) {
	s := New[int](4)
	s.Reserve(1)
	for i := 0; i != 10; i++ {
		s.Reserve(1)
		s.Push(i)
	}
	if s.Len() != 10 {
		t.Fatalf("Len() = %d, want 10", s.Len())
	}
	var got []int
	for c := 0; c != len(s.chunks); c++ {
		got = append(got, s.chunks[c]...)
	}
	want := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("chunk contents = %v, want %v", got, want)
	}
}

func TestResetTruncates(t *testing.T) {
	s := New[int](4)
	for i := 0; i != 10; i++ {
		s.Reserve(1)
		s.Push(i)
	}
	mid := Position{Chunk: 1, Offset: 2} // after pushing 0..5
	s.Reset(mid)
	if s.Len() != 6 {
		t.Fatalf("Len() after reset = %d, want 6", s.Len())
	}
	s.Reserve(1)
	s.Push(100)
	if s.At(Position{Chunk: 1, Offset: 2}) != 100 {
		t.Errorf("record after reset+push = %v, want 100", s.At(Position{1, 2}))
	}
}

func TestForEachReverse(t *testing.T) {
	s := New[int](3)
	for i := 0; i != 7; i++ {
		s.Reserve(1)
		s.Push(i)
	}
	from := s.Position()
	var got []int
	s.ForEachReverse(from, Position{0, 0}, func(v int) {
		got = append(got, v)
	})
	want := []int{6, 5, 4, 3, 2, 1, 0}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ForEachReverse = %v, want %v", got, want)
	}
}

func TestForEach(t *testing.T) {
	s := New[int](3)
	for i := 0; i != 7; i++ {
		s.Reserve(1)
		s.Push(i)
	}
	var got []int
	s.ForEach(Position{0, 0}, s.Position(), func(v int) {
		got = append(got, v)
	})
	want := []int{0, 1, 2, 3, 4, 5, 6}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ForEach = %v, want %v", got, want)
	}
}

func TestNextCrossesChunkBoundary(t *testing.T) {
	s := New[int](3)
	for i := 0; i != 7; i++ {
		s.Reserve(1)
		s.Push(i)
	}
	p := Position{Chunk: 0, Offset: 2}
	next := s.Next(p)
	if next != (Position{Chunk: 1, Offset: 0}) {
		t.Errorf("Next(%v) = %v, want {1 0}", p, next)
	}
	if s.At(next) != 3 {
		t.Errorf("At(Next(%v)) = %v, want 3", p, s.At(next))
	}

	mid := Position{Chunk: 0, Offset: 0}
	if s.Next(mid) != (Position{Chunk: 0, Offset: 1}) {
		t.Errorf("Next(%v) = %v, want {0 1}", mid, s.Next(mid))
	}
}

func TestPositionLess(t *testing.T) {
	if !(Position{0, 1}).Less(Position{0, 2}) {
		t.Error("(0,1) should be less than (0,2)")
	}
	if !(Position{0, 5}).Less(Position{1, 0}) {
		t.Error("(0,5) should be less than (1,0)")
	}
	if (Position{1, 0}).Less(Position{0, 5}) {
		t.Error("(1,0) should not be less than (0,5)")
	}
}
