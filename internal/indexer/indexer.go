// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package indexer consumes the lexer's event sequence in lock-step with its
// three-phase state machine, builds the signal hierarchy, seeds initial
// values, and folds every value change into the per-bit toggle tracker.
package indexer

import (
	"context"
	"fmt"

	"github.com/ClusterCockpit/vcdcov/internal/lexer"
	"github.com/ClusterCockpit/vcdcov/internal/vcdmodel"
)

// ParsingError is a fatal error surfaced by the indexer: a syntax or
// semantic problem tied to a specific source line.
type ParsingError struct {
	Line    int
	Message string
}

func (e *ParsingError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

func fatalf(line int, format string, args ...interface{}) error {
	return &ParsingError{Line: line, Message: fmt.Sprintf(format, args...)}
}

// Recorder observes the indexer's progress without influencing it. The
// zero value of Nop satisfies it as a no-op.
type Recorder interface {
	Event(kind lexer.EventKind)
	ParseError()
	TrackedBits(n int)
}

// Nop is a Recorder that discards every observation.
type Nop struct{}

func (Nop) Event(lexer.EventKind) {}
func (Nop) ParseError()           {}
func (Nop) TrackedBits(int)       {}

type phase int

const (
	phaseDeclarations phase = iota
	phaseInitializations
	phaseChanges
)

// Run drains events to completion (or until ctx is cancelled) and returns
// the populated aggregate. The first ParsingError or semantic error
// encountered stops the run and is returned; the caller is responsible for
// draining or closing the channel upstream.
func Run(ctx context.Context, events <-chan lexer.LineInfo, rec Recorder) (*vcdmodel.VCD, error) {
	if rec == nil {
		rec = Nop{}
	}
	ix := &indexer{
		v:          vcdmodel.NewVCD(),
		moduleIdx:  []int{0},
		modulePath: []string{},
		timestamp:  -1,
		rec:        rec,
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return ix.v, nil
			}
			rec.Event(ev.Kind)
			if err := ix.consume(ev); err != nil {
				rec.ParseError()
				return nil, err
			}
		}
	}
}

type indexer struct {
	v          *vcdmodel.VCD
	phase      phase
	moduleIdx  []int
	modulePath []string
	timestamp  int64
	rec        Recorder
}

func (ix *indexer) consume(ev lexer.LineInfo) error {
	switch ix.phase {
	case phaseDeclarations:
		return ix.declarations(ev)
	case phaseInitializations:
		return ix.initializations(ev)
	default:
		return ix.changes(ev)
	}
}

func (ix *indexer) currentModule() int {
	return ix.moduleIdx[len(ix.moduleIdx)-1]
}

func (ix *indexer) declarations(ev lexer.LineInfo) error {
	switch ev.Kind {
	case lexer.EventInScope:
		parent := ix.currentModule()
		idx := ix.v.PushModule(ev.Text, parent)
		ix.moduleIdx = append(ix.moduleIdx, idx)
		ix.modulePath = append(ix.modulePath, ev.Text)
		return nil
	case lexer.EventUpScope:
		if len(ix.moduleIdx) <= 1 {
			return fatalf(ev.Line, "unbalanced $upscope: no open scope to close")
		}
		ix.moduleIdx = ix.moduleIdx[:len(ix.moduleIdx)-1]
		ix.modulePath = ix.modulePath[:len(ix.modulePath)-1]
		return nil
	case lexer.EventSignal:
		parent := ix.currentModule()
		path := append([]string(nil), ix.modulePath...)
		ix.v.PushSignal(ev.Signal, parent, path)
		return nil
	case lexer.EventDateInfo, lexer.EventVersionInfo, lexer.EventTimeScaleInfo, lexer.EventUseless:
		return nil
	case lexer.EventEndDefinitions:
		ix.rec.TrackedBits(len(ix.v.Signals))
		ix.phase = phaseInitializations
		return nil
	case lexer.EventParsingError:
		return fatalf(ev.Line, "%s", ev.Text)
	default:
		return fatalf(ev.Line, "unexpected token for the Declarations phase")
	}
}

func (ix *indexer) initializations(ev lexer.LineInfo) error {
	switch ev.Kind {
	case lexer.EventTimestamp:
		ix.timestamp = int64(ev.Timestamp)
		return nil
	case lexer.EventDumpports, lexer.EventUseless:
		return nil
	case lexer.EventChange:
		base, width, err := ix.resolve(ev)
		if err != nil {
			return err
		}
		for k, b := range ev.Change.Values {
			if k >= width {
				break
			}
			st := vcdmodel.State{Value: vcdmodel.SignalValueFromByte(b), Time: ix.timestamp}
			sig := &ix.v.Signals[base+k]
			sig.InitialState = st
			sig.States[0] = st
		}
		return nil
	case lexer.EventEndInitializations:
		ix.phase = phaseChanges
		return nil
	case lexer.EventParsingError:
		return fatalf(ev.Line, "%s", ev.Text)
	default:
		return fatalf(ev.Line, "unexpected token for the Initializations phase")
	}
}

func (ix *indexer) changes(ev lexer.LineInfo) error {
	switch ev.Kind {
	case lexer.EventTimestamp:
		ix.timestamp = int64(ev.Timestamp)
		return nil
	case lexer.EventChange:
		base, width, err := ix.resolve(ev)
		if err != nil {
			return err
		}
		for k, b := range ev.Change.Values {
			if k >= width {
				break
			}
			sv := vcdmodel.SignalValueFromByte(b)
			if sv == vcdmodel.X {
				continue
			}
			foldToggle(&ix.v.Signals[base+k], sv, ix.timestamp)
		}
		return nil
	case lexer.EventParsingError:
		return fatalf(ev.Line, "%s", ev.Text)
	default:
		return fatalf(ev.Line, "unexpected token for the Changes phase")
	}
}

// resolve validates a Change against the signal index and declared width,
// returning the sub_id=0 bit index and the declared width.
func (ix *indexer) resolve(ev lexer.LineInfo) (base, width int, err error) {
	base, ok := ix.v.BitIndex(ev.Change.ID, 0)
	if !ok {
		return 0, 0, fatalf(ev.Line, "unknown signal id %q referenced in change stream", ev.Change.ID)
	}
	width = ix.v.Width(ev.Change.ID)
	if len(ev.Change.Values) > width {
		return 0, 0, fatalf(ev.Line, "change for id %q carries %d values, exceeding declared width %d",
			ev.Change.ID, len(ev.Change.Values), width)
	}
	return base, width, nil
}

// foldToggle folds one witnessed value into a bit's toggle tracker: each of
// states[1]/states[2] is set at most once, recording the first witnessed
// opposite value and the first witnessed return to the initial value.
func foldToggle(s *vcdmodel.Signal, sv vcdmodel.SignalValue, t int64) {
	switch s.States[0].Value {
	case vcdmodel.High:
		if sv == vcdmodel.Low && s.States[1].Value == vcdmodel.X {
			s.States[1] = vcdmodel.State{Value: sv, Time: t}
		} else if sv == vcdmodel.High && s.States[1].Value != vcdmodel.X && s.States[2].Value == vcdmodel.X {
			s.States[2] = vcdmodel.State{Value: sv, Time: t}
		}
	case vcdmodel.Low:
		if sv == vcdmodel.High && s.States[1].Value == vcdmodel.X {
			s.States[1] = vcdmodel.State{Value: sv, Time: t}
		} else if sv == vcdmodel.Low && s.States[1].Value != vcdmodel.X && s.States[2].Value == vcdmodel.X {
			s.States[2] = vcdmodel.State{Value: sv, Time: t}
		}
	default:
		s.States[0] = vcdmodel.State{Value: sv, Time: t}
	}
}
