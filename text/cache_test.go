package text

import "testing"

func TestCache_InternIdempotent(t *testing.T) {
	c := NewCache()

	id := c.Intern("alpha")
	if id != 1 {
		t.Fatalf("first id = %d, want 1", id)
	}
	if again := c.Intern("alpha"); again != id {
		t.Fatalf("re-intern returned %d, want %d", again, id)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
}

func TestCache_BothDirections(t *testing.T) {
	c := NewCache()
	a := c.Intern("a")
	b := c.Intern("b")

	if a == b {
		t.Fatal("distinct strings share an id")
	}

	s, ok := c.Lookup(b)
	if !ok || s != "b" {
		t.Fatalf("Lookup(%d) = (%q, %v)", b, s, ok)
	}
	id, ok := c.IDOf("a")
	if !ok || id != a {
		t.Fatalf("IDOf = (%d, %v)", id, ok)
	}

	if _, ok := c.Lookup(99); ok {
		t.Fatal("unknown id resolved")
	}
	if _, ok := c.IDOf("missing"); ok {
		t.Fatal("unknown string resolved")
	}
}

func TestCache_ZeroNeverIssued(t *testing.T) {
	c := NewCache()
	for i := 0; i < 100; i++ {
		if id := c.Intern(string(rune('a' + i))); id == 0 {
			t.Fatal("cache issued id 0")
		}
	}
}

func TestCache_Clear(t *testing.T) {
	c := NewCache()
	c.Intern("x")
	c.Intern("y")

	c.Clear()

	if c.Len() != 0 {
		t.Fatalf("Len after Clear = %d", c.Len())
	}
	if id := c.Intern("z"); id != 1 {
		t.Fatalf("id after Clear = %d, want 1", id)
	}
}
