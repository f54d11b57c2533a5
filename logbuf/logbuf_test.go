package logbuf

import "testing"

func TestLogfWrapsAfterCapacity(t *testing.T) {
	b := New()
	for i := 0; i < Capacity+10; i++ {
		b.Logf("line %d", i)
	}
	if got := b.Len(); got != Capacity {
		t.Fatalf("Len() = %d, want %d", got, Capacity)
	}
	lines := b.Lines()
	if len(lines) != Capacity {
		t.Fatalf("len(Lines()) = %d, want %d", len(lines), Capacity)
	}
	if want := "line 10"; lines[0].Text != want {
		t.Fatalf("oldest retained line = %q, want %q", lines[0].Text, want)
	}
	if want := "line 265"; lines[Capacity-1].Text != want {
		t.Fatalf("newest line = %q, want %q", lines[Capacity-1].Text, want)
	}
}

func TestLogfBeforeCapacityKeepsAll(t *testing.T) {
	b := New()
	b.Logf("a")
	b.Logf("b")
	b.Logf("c")
	lines := b.Lines()
	if len(lines) != 3 {
		t.Fatalf("len(Lines()) = %d, want 3", len(lines))
	}
	want := []string{"a", "b", "c"}
	for i, l := range lines {
		if l.Text != want[i] {
			t.Fatalf("lines[%d] = %q, want %q", i, l.Text, want[i])
		}
	}
}
