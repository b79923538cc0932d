// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package report serialises a populated vcdmodel.VCD into the
// deterministic toggle-coverage text document.
package report

import (
	"bufio"
	"fmt"
	"io"

	"github.com/ClusterCockpit/vcdcov/internal/vcdmodel"
)

// Write renders v to w: a header line with the aggregate coverage, a
// column-legend line, then one line per tracked bit in declaration order.
// Calling Write twice on the same *vcdmodel.VCD produces byte-identical
// output since it only reads v.
func Write(w io.Writer, v *vcdmodel.VCD) error {
	bw := bufio.NewWriter(w)

	total := 0.0
	for i := range v.Signals {
		cov, _, _ := v.Signals[i].Coverage()
		total += cov
	}
	meanPct := 0.0
	if len(v.Signals) > 0 {
		meanPct = total / float64(len(v.Signals)) * 100
	}

	if _, err := fmt.Fprintf(bw, "# VCD Statistical analysis. Total coverage: %.2f %% over %d signals\n",
		meanPct, len(v.Signals)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(bw, "# Signal name, id-sub_id, coverage [%], has transitioned up, has transitioned down, initial value"); err != nil {
		return err
	}

	for i := range v.Signals {
		sig := &v.Signals[i]
		cov, up, down := sig.Coverage()
		if _, err := fmt.Fprintf(bw, "%s %s-%d %.1f %s %s %s\n",
			sig.Path(), sig.ID, sig.SubID, cov, boolFlag(up), boolFlag(down), sig.InitialState.Value.String()); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
