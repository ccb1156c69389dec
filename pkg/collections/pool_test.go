package collections

import "testing"

func TestSlicePool(t *testing.T) {
	pool := NewSlicePool[int](256)

	s := pool.Get()
	if s == nil {
		t.Fatal("Get returned nil")
	}
	if cap(*s) < 256 {
		t.Errorf("Expected capacity >= 256, got %d", cap(*s))
	}

	*s = append(*s, 1, 2, 3)
	if len(*s) != 3 {
		t.Errorf("Expected length 3, got %d", len(*s))
	}

	pool.Put(s)

	s2 := pool.Get()
	if len(*s2) != 0 {
		t.Errorf("Expected length 0 after Put, got %d", len(*s2))
	}
}

func TestMapPool(t *testing.T) {
	pool := NewMapPool[string, int](1024)

	m := pool.Get()
	if m == nil {
		t.Fatal("Get returned nil")
	}

	m["a"] = 1
	m["b"] = 2
	if len(m) != 2 {
		t.Errorf("Expected length 2, got %d", len(m))
	}

	pool.Put(m)

	m2 := pool.Get()
	if len(m2) != 0 {
		t.Errorf("Expected length 0 after Put, got %d", len(m2))
	}
}
