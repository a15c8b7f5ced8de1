// Package stage holds the ordered list of production stage names shared by the
// stage tracker and the order stage machine.
package stage

import (
	"fmt"

	"go.uber.org/fx"

	"github.com/Additional-Code/shopfloor/internal/config"
)

// Name identifies a production stage.
type Name string

// Stage names with side effects or special meaning. Other configured names are
// plain work stages.
const (
	Pending          Name = "pending"
	Design           Name = "design"
	Cutting          Name = "cutting"
	Sewing           Name = "sewing"
	Fitting          Name = "fitting"
	Finishing        Name = "finishing"
	QualityCheck     Name = "quality_check"
	ReadyForDelivery Name = "ready_for_delivery"
	Completed        Name = "completed"
)

func (n Name) String() string { return string(n) }

// Sequence is an immutable total order over stage names.
type Sequence struct {
	names []Name
	index map[Name]int
}

// Module provides the configured Sequence to Fx.
var Module = fx.Provide(FromConfig)

// FromConfig builds the Sequence from PRODUCTION_STAGES.
func FromConfig(cfg config.Config) (Sequence, error) {
	return NewSequence(cfg.Production.Stages)
}

// NewSequence validates and orders the given names.
func NewSequence(names []string) (Sequence, error) {
	if len(names) == 0 {
		return Sequence{}, fmt.Errorf("stage sequence is empty")
	}
	seq := Sequence{
		names: make([]Name, 0, len(names)),
		index: make(map[Name]int, len(names)),
	}
	for _, raw := range names {
		n := Name(raw)
		if n == "" {
			return Sequence{}, fmt.Errorf("stage sequence contains an empty name")
		}
		if _, dup := seq.index[n]; dup {
			return Sequence{}, fmt.Errorf("duplicate stage %q", n)
		}
		seq.index[n] = len(seq.names)
		seq.names = append(seq.names, n)
	}
	return seq, nil
}

// MustSequence is NewSequence for static inputs.
func MustSequence(names ...string) Sequence {
	seq, err := NewSequence(names)
	if err != nil {
		panic(err)
	}
	return seq
}

// Names returns a copy of the ordered names.
func (s Sequence) Names() []Name {
	out := make([]Name, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of stages.
func (s Sequence) Len() int { return len(s.names) }

// Contains reports whether n is a configured stage.
func (s Sequence) Contains(n Name) bool {
	_, ok := s.index[n]
	return ok
}

// Position returns the zero-based position of n, or -1.
func (s Sequence) Position(n Name) int {
	if i, ok := s.index[n]; ok {
		return i
	}
	return -1
}

// First returns the initial stage.
func (s Sequence) First() Name { return s.names[0] }

// Last returns the terminal stage.
func (s Sequence) Last() Name { return s.names[len(s.names)-1] }

// IsFinal reports whether n is the terminal stage.
func (s Sequence) IsFinal(n Name) bool {
	return len(s.names) > 0 && n == s.Last()
}

// Next returns the stage after n. ok is false when n is final or unknown.
func (s Sequence) Next(n Name) (next Name, ok bool) {
	i, known := s.index[n]
	if !known || i+1 >= len(s.names) {
		return "", false
	}
	return s.names[i+1], true
}

// Work returns the stages between the first and the last, i.e. the ones that
// are performed on the shop floor.
func (s Sequence) Work() []Name {
	if len(s.names) <= 2 {
		return nil
	}
	return s.Names()[1 : len(s.names)-1]
}
