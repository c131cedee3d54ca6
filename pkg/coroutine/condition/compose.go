package condition

// allOf is satisfied once every child has been satisfied at least once.
type allOf struct {
	latch
	pending []Condition
}

// All returns a condition satisfied once each of cs has been satisfied.
// Children are polled in order until they fire and are not polled again
// afterwards. All with no children is satisfied on its first poll.
func All(cs ...Condition) Condition {
	pending := make([]Condition, 0, len(cs))
	for _, c := range cs {
		if c != nil {
			pending = append(pending, c)
		}
	}
	return &allOf{pending: pending}
}

func (a *allOf) IsSatisfied() bool {
	if a.fired {
		return true
	}
	kept := a.pending[:0]
	for _, c := range a.pending {
		if !c.IsSatisfied() {
			kept = append(kept, c)
		}
	}
	a.pending = kept
	if len(a.pending) == 0 {
		return a.fire()
	}
	return false
}

// anyOf is satisfied as soon as one child is.
type anyOf struct {
	latch
	children []Condition
	winner   int
}

// Any returns a condition satisfied on the first poll where one of cs is.
// Children are polled in order and polling stops at the first satisfied one,
// so later children do not observe that poll. Any with no children never fires.
func Any(cs ...Condition) Condition {
	children := make([]Condition, 0, len(cs))
	for _, c := range cs {
		if c != nil {
			children = append(children, c)
		}
	}
	return &anyOf{children: children, winner: -1}
}

func (a *anyOf) IsSatisfied() bool {
	if a.fired {
		return true
	}
	for i, c := range a.children {
		if c.IsSatisfied() {
			a.winner = i
			return a.fire()
		}
	}
	return false
}

// Winner returns the index of the child that satisfied an Any condition, or
// -1 if c is not an Any condition or has not fired.
func Winner(c Condition) int {
	if a, ok := c.(*anyOf); ok {
		return a.winner
	}
	return -1
}
