// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package vcdmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalValueFromByte(t *testing.T) {
	cases := map[byte]SignalValue{
		'0': Low, 'd': Low, 'D': Low, 'l': Low, 'L': Low,
		'1': High, 'u': High, 'U': High, 'h': High, 'H': High,
		'z': Z, 'Z': Z, 'f': X, 'F': Z, 't': X, 'T': Z,
		'x': X, 'X': X, '?': X,
	}
	for b, want := range cases {
		assert.Equalf(t, want, SignalValueFromByte(b), "byte %q", b)
	}
}

func TestPushSignalExpandsBusIntoBits(t *testing.T) {
	v := NewVCD()
	root := 0
	mod := v.PushModule("top", root)

	base := v.PushSignal(VcdSignal{ID: "!", Name: "bus", Width: 3, Kind: KindGate}, mod, []string{"top"})
	require.Equal(t, 0, base)
	require.Len(t, v.Signals, 3)

	for k := 0; k < 3; k++ {
		idx, ok := v.BitIndex("!", k)
		require.True(t, ok)
		assert.Equal(t, uint16(k), v.Signals[idx].SubID)
	}
	assert.Equal(t, "top/bus[0]", v.Signals[0].Path())
	assert.Equal(t, "top/bus[2]", v.Signals[2].Path())
	assert.Equal(t, 3, v.Width("!"))
}

func TestPushSignalWidthOneHasNoSubscript(t *testing.T) {
	v := NewVCD()
	v.PushSignal(VcdSignal{ID: "#", Name: "a", Width: 1, Kind: KindWire}, 0, nil)
	assert.Equal(t, "a", v.Signals[0].Path())
}

func TestDuplicateIDKeepsFirstMapping(t *testing.T) {
	v := NewVCD()
	v.PushSignal(VcdSignal{ID: "#", Name: "a", Width: 1, Kind: KindWire}, 0, []string{"m1"})
	v.PushSignal(VcdSignal{ID: "#", Name: "b", Width: 1, Kind: KindWire}, 0, []string{"m2"})

	idx, ok := v.BitIndex("#", 0)
	require.True(t, ok)
	assert.Equal(t, "a", v.Signals[idx].Name)
}

func TestCoverageHighInitial(t *testing.T) {
	s := &Signal{States: [3]State{{Value: High}, {Value: X}, {Value: X}}}
	cov, up, down := s.Coverage()
	assert.Equal(t, 0.0, cov)
	assert.False(t, up)
	assert.False(t, down)

	s.States[1] = State{Value: Low}
	cov, up, down = s.Coverage()
	assert.Equal(t, 0.5, cov)
	assert.False(t, up)
	assert.True(t, down)

	s.States[2] = State{Value: High}
	cov, up, down = s.Coverage()
	assert.Equal(t, 1.0, cov)
	assert.True(t, up)
	assert.True(t, down)
}

func TestCoverageNeverResolvedIsZero(t *testing.T) {
	s := &Signal{States: [3]State{{Value: X}, {Value: X}, {Value: X}}}
	cov, up, down := s.Coverage()
	assert.Equal(t, 0.0, cov)
	assert.False(t, up)
	assert.False(t, down)
}
