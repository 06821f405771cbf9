package spop

import "github.com/sadewadee/maboo-spoa/internal/spoe/value"

// Arg is one named argument of a Message. Messages keep args in an
// ordered slice rather than a map: SPOP requires iteration order to be
// stable within a single decode even though no consumer may rely on a
// particular order across messages.
type Arg struct {
	Name  string
	Value value.Value
}

// Message is a single named, typed-argument bundle carried inside a
// NOTIFY frame — the unit dispatched to a Handler. Once decoded, a
// Message is never mutated.
type Message struct {
	Name string
	Args []Arg
}

// Get returns the value bound to name and whether it was present.
func (m Message) Get(name string) (value.Value, bool) {
	for _, a := range m.Args {
		if a.Name == name {
			return a.Value, true
		}
	}
	return value.Value{}, false
}
