// Package livechat – interval loops
//
// This file provides the two ticker shapes the session loops are built on.
package livechat

import (
	"context"
	"time"
)

// periodic calls fetch on a fixed interval and hands each result to handle.
// At most one fetch is in flight: ticks that arrive while one is outstanding
// are skipped, so a hung request never stalls the loop. fetch runs on its
// own goroutine; tick and handle run on the loop goroutine. run does not
// return until an outstanding fetch has come back; its context is cancelled
// first so a well-behaved fetch returns promptly.
type periodic[T any] struct {
	interval time.Duration
	// immediate fetches once before the first tick.
	immediate bool
	// tick runs first on every tick; returning false ends the loop without
	// fetching.
	tick   func() bool
	fetch  func(ctx context.Context) (T, error)
	handle func(v T, err error) bool
}

type outcome[T any] struct {
	v   T
	err error
}

func (p periodic[T]) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	t := time.NewTicker(p.interval)

	results := make(chan outcome[T], 1)
	inFlight := false
	defer func() {
		t.Stop()
		cancel()
		if inFlight {
			<-results
		}
	}()
	launch := func() {
		inFlight = true
		go func() {
			v, err := p.fetch(ctx)
			results <- outcome[T]{v: v, err: err}
		}()
	}

	if p.immediate {
		launch()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if ctx.Err() != nil {
				return
			}
			if p.tick != nil && !p.tick() {
				return
			}
			if !inFlight {
				launch()
			}
		case r := <-results:
			inFlight = false
			if ctx.Err() != nil {
				return
			}
			if !p.handle(r.v, r.err) {
				return
			}
		}
	}
}

// every calls fn on each tick until fn returns false or ctx ends.
func every(ctx context.Context, interval time.Duration, fn func() bool) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if ctx.Err() != nil || !fn() {
				return
			}
		}
	}
}
