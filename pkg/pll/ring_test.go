package pll

import "testing"

func TestRingPushAndLast(t *testing.T) {
	r := NewRing()
	for i := 0; i < 5; i++ {
		r.Push(Window{Start: uint64(i), End: uint64(i + 1), Value: uint8(i % 2)})
	}
	if r.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", r.Len())
	}
	last3 := r.Last(3)
	if len(last3) != 3 {
		t.Fatalf("Last(3) returned %d windows", len(last3))
	}
	if last3[0].Start != 2 || last3[2].Start != 4 {
		t.Fatalf("Last(3) out of order: %+v", last3)
	}
}

func TestRingWrapsAtCapacity(t *testing.T) {
	r := NewRing()
	for i := 0; i < RingCapacity+10; i++ {
		r.Push(Window{Start: uint64(i)})
	}
	if r.Len() != RingCapacity {
		t.Fatalf("Len() = %d, want capacity %d", r.Len(), RingCapacity)
	}
	// The most recent push should be at offset 0.
	if r.At(0).Start != uint64(RingCapacity+9) {
		t.Fatalf("At(0).Start = %d, want %d", r.At(0).Start, RingCapacity+9)
	}
}

func TestRingAtMutatesInPlace(t *testing.T) {
	r := NewRing()
	r.Push(Window{Start: 1})
	r.Push(Window{Start: 2})
	r.At(0).Value = 1
	if r.At(0).Value != 1 {
		t.Fatalf("mutation through At() did not persist")
	}
}
