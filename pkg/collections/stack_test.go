package collections

import "testing"

func TestStack(t *testing.T) {
	s := NewStack[int](10)

	if !s.IsEmpty() {
		t.Error("New stack should be empty")
	}

	s.Push(1)
	s.Push(2)
	s.Push(3)

	if s.Len() != 3 {
		t.Errorf("Expected length 3, got %d", s.Len())
	}

	v, ok := s.Peek()
	if !ok || v != 3 {
		t.Errorf("Expected Peek to return 3, got %d", v)
	}
	if s.Len() != 3 {
		t.Error("Peek should not modify length")
	}

	v, ok = s.Pop()
	if !ok || v != 3 {
		t.Errorf("Expected Pop to return 3, got %d", v)
	}

	v, ok = s.Pop()
	if !ok || v != 2 {
		t.Errorf("Expected Pop to return 2, got %d", v)
	}

	v, ok = s.Pop()
	if !ok || v != 1 {
		t.Errorf("Expected Pop to return 1, got %d", v)
	}

	_, ok = s.Pop()
	if ok {
		t.Error("Pop from empty stack should return false")
	}

	if !s.IsEmpty() {
		t.Error("Stack should be empty after popping all elements")
	}
}

func TestStack_Clear(t *testing.T) {
	s := NewStack[int](4)
	s.Push(1)
	s.Push(2)
	s.Clear()
	if !s.IsEmpty() {
		t.Error("Stack should be empty after Clear")
	}
	s.Push(9)
	v, ok := s.Pop()
	if !ok || v != 9 {
		t.Errorf("Expected 9 after Clear+Push, got %d", v)
	}
}

func BenchmarkStack_PushPop(b *testing.B) {
	s := NewStack[int](1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Push(i)
		s.Pop()
	}
}
