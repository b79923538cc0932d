// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pipeline wires the lexer and the indexer together across a
// bounded hand-off channel, one producer goroutine and one consumer
// goroutine supervised by errgroup so either side's fatal error cancels
// the other.
package pipeline

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/ClusterCockpit/vcdcov/internal/indexer"
	"github.com/ClusterCockpit/vcdcov/internal/lexer"
	"github.com/ClusterCockpit/vcdcov/internal/vcdmodel"
)

// DefaultChannelCapacity is the event channel's capacity: large enough
// that real traces rarely fill it, small enough to bound memory.
const DefaultChannelCapacity = 1 << 20 // 1,048,576

// DepthObserver is notified of the event channel's occupancy each time the
// producer enqueues an event.
type DepthObserver interface {
	ObserveChannelDepth(n int)
}

type config struct {
	capacity int
}

// Option configures a Run call.
type Option func(*config)

// WithChannelCapacity overrides DefaultChannelCapacity. Used by tests to
// exercise backpressure with a deliberately small buffer.
func WithChannelCapacity(n int) Option {
	return func(c *config) { c.capacity = n }
}

// Run drives one lexer over r and one indexer over the resulting event
// stream concurrently, returning the final aggregate or the first fatal
// error from either side.
func Run(ctx context.Context, r io.Reader, separator byte, rec indexer.Recorder, depth DepthObserver, opts ...Option) (*vcdmodel.VCD, error) {
	cfg := config{capacity: DefaultChannelCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}
	if rec == nil {
		rec = indexer.Nop{}
	}

	events := make(chan lexer.LineInfo, cfg.capacity)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(events)
		lx := lexer.New(r, separator)
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			ev, ok := lx.Next()
			if !ok {
				return nil
			}
			select {
			case events <- ev:
				if depth != nil {
					depth.ObserveChannelDepth(len(events))
				}
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	var result *vcdmodel.VCD
	g.Go(func() error {
		v, err := indexer.Run(gctx, events, rec)
		if err != nil {
			return err
		}
		result = v
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
