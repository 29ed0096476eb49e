// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts wall-clock reads for testability.
//
// The treasury engine touches time in exactly two places: journal
// entry timestamps and capability token issue/expiry instants. Both
// must be deterministic in tests, so production code injects Real()
// and tests inject a Fake with explicit time control. Nothing in the
// engine sleeps, ticks, or schedules — Now is the whole surface.
package clock

import (
	"sync"
	"time"
)

// Clock provides the current time. Production code injects Real();
// tests inject a Fake.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// Real returns a Clock backed by the system clock.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Fake is a Clock with manually controlled time. Safe for concurrent
// use. The zero value is not valid; use NewFake.
type Fake struct {
	mutex sync.Mutex
	now   time.Time
}

// NewFake returns a Fake clock pinned to the given start time.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake's current time.
func (f *Fake) Now() time.Time {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.now
}

// Advance moves the fake's time forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.now = f.now.Add(d)
}
