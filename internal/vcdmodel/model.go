// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package vcdmodel holds the data model populated by the indexer: the
// signal hierarchy, the per-bit toggle-tracking state, and the aggregate
// that owns both.
package vcdmodel

import "fmt"

// SignalValue is the closed set of logic levels a traced bit can hold.
type SignalValue int

const (
	// X is the default/unknown value.
	X SignalValue = iota
	Low
	High
	Z
)

func (v SignalValue) String() string {
	switch v {
	case Low:
		return "0"
	case High:
		return "1"
	case Z:
		return "z"
	default:
		return "x"
	}
}

// SignalValueFromByte maps a single VCD value byte to a SignalValue
// per the standard VCD 4-state/strength-collapse convention.
func SignalValueFromByte(b byte) SignalValue {
	switch b {
	case 'D', 'd', 'L', 'l', '0':
		return Low
	case 'U', 'u', 'H', 'h', '1':
		return High
	case 'F', 'Z', 'T', 'z':
		return Z
	default:
		return X
	}
}

// Kind distinguishes the two declaration forms the lexer recognizes.
type Kind int

const (
	// KindWire is a `$var wire WIDTH ID NAME $end` declaration.
	KindWire Kind = iota
	// KindGate is a `$var port <L:R> ID NAME $end` declaration.
	KindGate
)

// VcdSignal is a declared variable as emitted by the lexer. It is owned by
// the indexer from the moment it is consumed off the event channel.
type VcdSignal struct {
	ID    string
	Name  string
	Width uint
	Kind  Kind
}

// State is a single slot of the 3-slot toggle tracker: a value together
// with the simulation time at which it was witnessed. The zero value of
// State is not meaningful on its own; use NewState for "unset".
type State struct {
	Value SignalValue
	Time  int64
}

// NewState returns the "unset" sentinel state: value X, time -1.
func NewState() State {
	return State{Value: X, Time: -1}
}

// Node is a child of a Module: either another Module (by index into the
// hierarchy slice) or a Signal (by index into the signal slice).
type Node struct {
	IsSignal bool
	Index    int
}

// Module is one level of scope nesting. Index 0 is the implicit root,
// which is its own parent.
type Module struct {
	ParentIndex int
	Children    map[string]Node
}

// Signal is one tracked bit. A declared bus of width W expands into W
// Signals sharing ID and distinguished by SubID.
type Signal struct {
	ID          string
	SubID       uint16
	Name        string   // bare declared name, no "[k]" subscript
	ModulePath  []string // enclosing scope chain, root-to-leaf, name only
	Width       uint     // declared width of the signal this bit belongs to
	ParentIndex int
	// InitialState is the value/time seeded during the Initializations
	// phase. Kept distinct from States[0] (which the same seeding step
	// sets to the same value) so the "initial value" the report prints
	// is traceable to the phase that produced it, not to the tracker.
	InitialState State
	// States holds the 3-slot toggle tracker:
	//   States[0] - first known real value (the seeded initial value)
	//   States[1] - first real value that differs from States[0]
	//   States[2] - first real value equal to States[0], witnessed after States[1]
	States [3]State
}

// DisplayName returns the bit's leaf name: the bare signal name for a
// width-1 signal, or "name[k]" for bit k of a wider signal.
func (s *Signal) DisplayName() string {
	if s.Width <= 1 {
		return s.Name
	}
	return fmt.Sprintf("%s[%d]", s.Name, s.SubID)
}

// Path returns the full module path joined with "/", followed by the
// signal's display name.
func (s *Signal) Path() string {
	display := s.DisplayName()
	if len(s.ModulePath) == 0 {
		return display
	}
	out := s.ModulePath[0]
	for _, p := range s.ModulePath[1:] {
		out += "/" + p
	}
	return out + "/" + display
}

// Coverage reports the fraction of toggle coverage this bit achieved,
// always one of 0.0, 0.5 or 1.0, together with whether it was observed to
// toggle up and/or down.
func (s *Signal) Coverage() (coverage float64, up, down bool) {
	first := s.States[0].Value
	switch first {
	case High:
		up = s.States[2].Value != X
		down = s.States[1].Value != X
	case Low:
		up = s.States[1].Value != X
		down = s.States[2].Value != X
	default:
		// Initial value never resolved beyond X/Z: no coverage possible.
		return 0, false, false
	}
	if up {
		coverage += 0.5
	}
	if down {
		coverage += 0.5
	}
	return coverage, up, down
}

// VCD is the aggregate owned exclusively by the indexer goroutine for the
// lifetime of one analysis run. Hierarchy and Signals are append-only
// during the Declarations/Initializations phases; only Signal.States is
// mutated afterwards, during Changes.
type VCD struct {
	Hierarchy   []Module
	Signals     []Signal
	SignalsByID map[string]int
}

// NewVCD returns an aggregate with the implicit root module already
// present at index 0.
func NewVCD() *VCD {
	return &VCD{
		Hierarchy:   []Module{{ParentIndex: 0, Children: map[string]Node{}}},
		SignalsByID: map[string]int{},
	}
}

// PushModule creates a new module as a child of parentIndex and returns
// its index.
func (v *VCD) PushModule(name string, parentIndex int) int {
	idx := len(v.Hierarchy)
	v.Hierarchy = append(v.Hierarchy, Module{
		ParentIndex: parentIndex,
		Children:    map[string]Node{},
	})
	v.Hierarchy[parentIndex].Children[name] = Node{IsSignal: false, Index: idx}
	return idx
}

// PushSignal expands a declared VcdSignal into Width tracked bits, parented
// under parentIndex and its enclosing module path. It returns the index of
// the sub_id=0 bit.
func (v *VCD) PushSignal(decl VcdSignal, parentIndex int, modulePath []string) int {
	base := len(v.Signals)
	path := append([]string(nil), modulePath...)
	for k := uint(0); k < decl.Width; k++ {
		sig := Signal{
			ID:           decl.ID,
			SubID:        uint16(k),
			Name:         decl.Name,
			ModulePath:   path,
			Width:        decl.Width,
			ParentIndex:  parentIndex,
			InitialState: NewState(),
			States:       [3]State{NewState(), NewState(), NewState()},
		}
		idx := len(v.Signals)
		v.Signals = append(v.Signals, sig)

		display := sig.DisplayName()
		v.Hierarchy[parentIndex].Children[display] = Node{IsSignal: true, Index: idx}
	}
	if _, exists := v.SignalsByID[decl.ID]; !exists {
		v.SignalsByID[decl.ID] = base
	}
	return base
}

// BitIndex returns the index of bit sub_id of the signal declared under
// id, and whether it exists.
func (v *VCD) BitIndex(id string, subID int) (int, bool) {
	base, ok := v.SignalsByID[id]
	if !ok {
		return 0, false
	}
	idx := base + subID
	if idx >= len(v.Signals) || v.Signals[idx].ID != id {
		return 0, false
	}
	return idx, true
}

// Width returns how many contiguous bits share id (the declared width).
func (v *VCD) Width(id string) int {
	base, ok := v.SignalsByID[id]
	if !ok {
		return 0
	}
	n := 0
	for base+n < len(v.Signals) && v.Signals[base+n].ID == id {
		n++
	}
	return n
}
