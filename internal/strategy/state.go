package strategy

import "math/rand"

// State holds per-run strategy memory. It is created once per run and keeps
// the rolling close history plus a seeded random source so that two runs with
// the same seed and the same bars produce the same signals.
type State struct {
	closes []float64
	rng    *rand.Rand
}

// NewState creates strategy state with a seeded random source.
func NewState(seed int64) *State {
	return &State{rng: rand.New(rand.NewSource(seed))}
}

// ObserveClose appends a bar close to the rolling history. The caller invokes
// this exactly once per bar, before Generate.
func (s *State) ObserveClose(c float64) {
	s.closes = append(s.closes, c)
}

// Closes returns the close history observed so far.
func (s *State) Closes() []float64 {
	return s.closes
}

// Rand returns the seeded random source.
func (s *State) Rand() *rand.Rand {
	return s.rng
}
