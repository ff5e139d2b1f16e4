package eventbus

import "strconv"

// Action is an immutable record of something that happened.
//
// The variant set is open: listeners switch on the concrete type and ignore
// variants they do not know.
type Action interface {
	ActionName() string
}

// CounterAction carries the next counter value.
type CounterAction struct {
	Count int
}

func (CounterAction) ActionName() string { return "counter" }

func (a CounterAction) String() string { return "counter(" + strconv.Itoa(a.Count) + ")" }
