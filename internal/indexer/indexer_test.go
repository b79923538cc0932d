// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClusterCockpit/vcdcov/internal/lexer"
	"github.com/ClusterCockpit/vcdcov/internal/vcdmodel"
)

func run(t *testing.T, events []lexer.LineInfo) (*vcdmodel.VCD, error) {
	t.Helper()
	ch := make(chan lexer.LineInfo, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return Run(context.Background(), ch, Nop{})
}

func declareScalar(id, name string) lexer.LineInfo {
	return lexer.LineInfo{Kind: lexer.EventSignal, Signal: vcdmodel.VcdSignal{ID: id, Name: name, Width: 1, Kind: vcdmodel.KindWire}}
}

func change(id string, values ...byte) lexer.LineInfo {
	return lexer.LineInfo{Kind: lexer.EventChange, Change: lexer.Change{ID: id, Values: values}}
}

func ts(n uint64) lexer.LineInfo {
	return lexer.LineInfo{Kind: lexer.EventTimestamp, Timestamp: n}
}

var endDefs = lexer.LineInfo{Kind: lexer.EventEndDefinitions}
var endInit = lexer.LineInfo{Kind: lexer.EventEndInitializations}

func TestScalarNeverToggles(t *testing.T) {
	v, err := run(t, []lexer.LineInfo{
		declareScalar("a", "A"), endDefs,
		change("a", '0'), endInit,
	})
	require.NoError(t, err)
	require.Len(t, v.Signals, 1)
	cov, up, down := v.Signals[0].Coverage()
	assert.Equal(t, 0.0, cov)
	assert.False(t, up)
	assert.False(t, down)
	assert.Equal(t, vcdmodel.Low, v.Signals[0].InitialState.Value)
}

func TestScalarHalfToggles(t *testing.T) {
	v, err := run(t, []lexer.LineInfo{
		declareScalar("a", "A"), endDefs,
		change("a", '0'), endInit,
		ts(10), change("a", '1'),
	})
	require.NoError(t, err)
	cov, up, down := v.Signals[0].Coverage()
	assert.Equal(t, 0.5, cov)
	assert.True(t, up)
	assert.False(t, down)
}

func TestScalarFullToggle(t *testing.T) {
	v, err := run(t, []lexer.LineInfo{
		declareScalar("a", "A"), endDefs,
		change("a", '0'), endInit,
		ts(5), change("a", '1'),
		ts(10), change("a", '0'),
	})
	require.NoError(t, err)
	cov, up, down := v.Signals[0].Coverage()
	assert.Equal(t, 1.0, cov)
	assert.True(t, up)
	assert.True(t, down)
}

func TestBusWidthTwo(t *testing.T) {
	v, err := run(t, []lexer.LineInfo{
		lexer.LineInfo{Kind: lexer.EventSignal, Signal: vcdmodel.VcdSignal{ID: "#", Name: "B", Width: 2, Kind: vcdmodel.KindGate}},
		endDefs,
		change("#", '1', '0'), endInit,
		ts(1), change("#", '0', '1'),
		ts(2), change("#", '1', '0'),
	})
	require.NoError(t, err)
	require.Len(t, v.Signals, 2)
	for _, sig := range v.Signals {
		cov, up, down := sig.Coverage()
		assert.Equal(t, 1.0, cov)
		assert.True(t, up)
		assert.True(t, down)
	}
}

func TestXInitialPromoted(t *testing.T) {
	v, err := run(t, []lexer.LineInfo{
		declareScalar("a", "A"), endDefs,
		change("a", 'x'), endInit,
		ts(1), change("a", '1'),
		ts(2), change("a", '0'),
	})
	require.NoError(t, err)
	cov, up, down := v.Signals[0].Coverage()
	assert.Equal(t, 0.5, cov)
	assert.False(t, up)
	assert.True(t, down)
	assert.Equal(t, vcdmodel.X, v.Signals[0].InitialState.Value)
}

func TestUnknownIDInChangesIsFatal(t *testing.T) {
	_, err := run(t, []lexer.LineInfo{
		declareScalar("a", "A"), endDefs,
		change("a", '0'), endInit,
		change("b", '1'),
	})
	require.Error(t, err)
	var pe *ParsingError
	require.ErrorAs(t, err, &pe)
}

func TestUnbalancedUpscopeIsFatal(t *testing.T) {
	_, err := run(t, []lexer.LineInfo{
		{Kind: lexer.EventUpScope},
	})
	require.Error(t, err)
}

func TestWidthOverflowIsFatal(t *testing.T) {
	_, err := run(t, []lexer.LineInfo{
		declareScalar("a", "A"), endDefs,
		change("a", '0', '1'), endInit,
	})
	require.Error(t, err)
}

func TestModuleHierarchyPath(t *testing.T) {
	v, err := run(t, []lexer.LineInfo{
		{Kind: lexer.EventInScope, Text: "top"},
		declareScalar("a", "A"),
		{Kind: lexer.EventUpScope},
		endDefs,
		change("a", '0'), endInit,
	})
	require.NoError(t, err)
	assert.Equal(t, "top/A", v.Signals[0].Path())
}
