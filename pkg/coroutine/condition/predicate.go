package condition

// PredicateCondition waits until a function reports true.
type PredicateCondition struct {
	latch
	fn    func() bool
	polls int
}

// Predicate returns a condition satisfied the first time fn returns true.
// fn is not called again after that. A nil fn never becomes true.
func Predicate(fn func() bool) *PredicateCondition {
	return &PredicateCondition{fn: fn}
}

// Until is an alias for Predicate that reads well at the yield site:
//
//	yield(condition.Until(func() bool { return hp <= 0 }))
func Until(fn func() bool) *PredicateCondition {
	return Predicate(fn)
}

func (p *PredicateCondition) IsSatisfied() bool {
	if p.fired {
		return true
	}
	if p.fn == nil {
		return false
	}
	p.polls++
	if p.fn() {
		return p.fire()
	}
	return false
}

// Polls returns how many times the predicate function has been evaluated.
func (p *PredicateCondition) Polls() int {
	return p.polls
}
