// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package pipeline

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClusterCockpit/vcdcov/internal/indexer"
	"github.com/ClusterCockpit/vcdcov/internal/report"
)

const halfToggleVCD = `$var wire 1 a A $end
$enddefinitions $end
0a
$end
#10
1a
`

func TestRunProducesCorrectReportUnderDefaultCapacity(t *testing.T) {
	v, err := Run(context.Background(), strings.NewReader(halfToggleVCD), '<', indexer.Nop{}, nil)
	require.NoError(t, err)
	require.Len(t, v.Signals, 1)
	cov, up, down := v.Signals[0].Coverage()
	assert.Equal(t, 0.5, cov)
	assert.True(t, up)
	assert.False(t, down)
}

func TestRunProducesCorrectReportUnderTinyChannelCapacity(t *testing.T) {
	v, err := Run(context.Background(), strings.NewReader(halfToggleVCD), '<', indexer.Nop{}, nil, WithChannelCapacity(1))
	require.NoError(t, err)
	require.Len(t, v.Signals, 1)
	cov, up, down := v.Signals[0].Coverage()
	assert.Equal(t, 0.5, cov)
	assert.True(t, up)
	assert.False(t, down)
}

type depthRecorder struct{ max int }

func (d *depthRecorder) ObserveChannelDepth(n int) {
	if n > d.max {
		d.max = n
	}
}

func TestRunReportsChannelDepth(t *testing.T) {
	depth := &depthRecorder{}
	_, err := Run(context.Background(), strings.NewReader(halfToggleVCD), '<', indexer.Nop{}, depth)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, depth.max, 1)
}

func TestRunPropagatesFatalIndexerError(t *testing.T) {
	_, err := Run(context.Background(), strings.NewReader("$enddefinitions $end\nb\n$end\n"), '<', indexer.Nop{}, nil)
	require.Error(t, err)
}

func TestEndToEndFixtureNestedScopesAndBus(t *testing.T) {
	f, err := os.Open("../../testdata/sample.vcd")
	require.NoError(t, err)
	defer f.Close()

	v, err := Run(context.Background(), f, '<', indexer.Nop{}, nil)
	require.NoError(t, err)
	require.Len(t, v.Signals, 3)

	var buf bytes.Buffer
	require.NoError(t, report.Write(&buf, v))
	out := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, out, 5)

	assert.Contains(t, out[0], "Total coverage: 100.00 % over 3 signals")
	assert.Equal(t, "top/A a-0 1.0 1 1 0", out[2])
	assert.Equal(t, "top/child/B[0] #-0 1.0 1 1 1", out[3])
	assert.Equal(t, "top/child/B[1] #-1 1.0 1 1 0", out[4])
}
