package core

import (
	"testing"
)

// TestFIFOQueue_Order verifies insertion order is execution order
// Given: A queue with five items pushed in order
// When: Items are popped until empty
// Then: Items come out in the order they were pushed and Pop reports empty afterwards
func TestFIFOQueue_Order(t *testing.T) {
	// Arrange
	q := NewFIFOQueue[int]()
	for i := range 5 {
		q.Push(i)
	}

	// Act & Assert
	for want := range 5 {
		got, ok := q.Pop()
		if !ok {
			t.Fatalf("Step %d: queue is empty", want)
		}
		if got != want {
			t.Errorf("Step %d: got %d, want %d", want, got, want)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop() on empty queue = true, want false")
	}
	if !q.IsEmpty() {
		t.Error("IsEmpty() = false, want true")
	}
}

// TestFIFOQueue_Clear verifies that Clear drops items without returning them
// Given: A queue with three items
// When: Clear is called
// Then: It reports three dropped items and the queue is empty
func TestFIFOQueue_Clear(t *testing.T) {
	// Arrange
	q := NewFIFOQueue[string]()
	q.Push("a")
	q.Push("b")
	q.Push("c")

	// Act
	dropped := q.Clear()

	// Assert
	if dropped != 3 {
		t.Errorf("Clear() = %d, want 3", dropped)
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

// TestFIFOQueue_Compaction verifies the backing array shrinks after a burst
// Given: A queue that grew to hold 1000 items
// When: All but a few items are popped
// Then: Capacity shrinks below the peak and remaining items keep their order
func TestFIFOQueue_Compaction(t *testing.T) {
	// Arrange
	q := NewFIFOQueue[int]()
	for i := range 1000 {
		q.Push(i)
	}
	peak := cap(q.items)

	// Act
	for range 995 {
		q.Pop()
	}

	// Assert
	if cap(q.items) >= peak {
		t.Errorf("cap = %d, want less than peak %d", cap(q.items), peak)
	}
	for want := 995; want < 1000; want++ {
		got, ok := q.Pop()
		if !ok || got != want {
			t.Fatalf("Pop() = %d, %v, want %d, true", got, ok, want)
		}
	}
}
