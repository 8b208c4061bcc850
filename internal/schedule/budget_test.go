package schedule

import "testing"

func TestBudgetConsume(t *testing.T) {
	t.Parallel()
	b := NewBudget(500)
	if !b.Bounded() {
		t.Fatal("expected bounded budget")
	}
	if !b.Consume(300) {
		t.Fatal("first consume should fit")
	}
	if got := b.Remaining(); got != 200 {
		t.Fatalf("remaining = %v, want 200", got)
	}
	// 200 - 300 < 0: refused without decrement.
	if b.Consume(300) {
		t.Fatal("second consume should be refused")
	}
	if got := b.Remaining(); got != 200 {
		t.Fatalf("remaining after refusal = %v, want 200 (no decrement)", got)
	}
}

func TestBudgetExactFit(t *testing.T) {
	t.Parallel()
	b := NewBudget(300)
	if !b.Consume(300) {
		t.Fatal("exact fit should be allowed")
	}
	if got := b.Remaining(); got != 0 {
		t.Fatalf("remaining = %v, want 0", got)
	}
	if b.Consume(1) {
		t.Fatal("empty budget should refuse")
	}
}

func TestBudgetUnbounded(t *testing.T) {
	t.Parallel()
	b := Unbounded()
	if b.Bounded() {
		t.Fatal("expected unbounded budget")
	}
	for i := 0; i < 1000; i++ {
		if !b.Consume(1e6) {
			t.Fatal("unbounded budget should never refuse")
		}
	}
}
