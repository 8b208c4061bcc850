package schedule

// Budget tracks the remaining execution time of a bounded run.
//
// The zero value is an unbounded budget. Once bounded, the remaining amount
// only ever decreases and never goes negative; exhaustion is a normal exit
// condition, not an error.
type Budget struct {
	bounded   bool
	remaining float64 // seconds
}

// NewBudget returns a bounded budget of the given seconds.
func NewBudget(seconds float64) *Budget {
	return &Budget{bounded: true, remaining: seconds}
}

// Unbounded returns a budget that never terminates the run.
func Unbounded() *Budget { return &Budget{} }

// Consume reports whether the run may continue after an iteration costing
// wait seconds. It returns false — without decrementing — when the remainder
// is insufficient; otherwise it deducts wait and returns true.
func (b *Budget) Consume(wait float64) bool {
	if !b.bounded {
		return true
	}
	if b.remaining-wait < 0 {
		return false
	}
	b.remaining -= wait
	return true
}

// Bounded reports whether this budget terminates the run at all.
func (b *Budget) Bounded() bool { return b.bounded }

// Remaining returns the seconds left (0 for unbounded budgets).
func (b *Budget) Remaining() float64 { return b.remaining }
