// Package engine provides the simulation aggregate, its player commands and
// the tick loop that drives it.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/talgya/freight-tycoon/internal/economy"
)

const (
	TicksPerMonth = economy.TicksPerMonth // 1 tick = 1 day
	TicksPerYear  = 12 * TicksPerMonth
)

// Engine drives a Simulation forward in real time.
type Engine struct {
	Interval time.Duration // base tick interval at speed 1

	// Lock is held around every tick. Share it with anything that reads
	// the simulation concurrently.
	Lock sync.Locker

	// Step advances the world by one tick. Required.
	Step func() TickReport

	// Callbacks run after the step, with Lock held.
	OnTick  func(r TickReport)
	OnMonth func(tick uint64)
	OnYear  func(tick uint64)

	speed   atomic.Uint64 // math.Float64bits of the multiplier; 0 = paused
	running atomic.Bool
	stop    chan struct{}
	once    sync.Once
}

// NewEngine creates an engine that ticks sim under lock.
func NewEngine(sim *Simulation, lock sync.Locker) *Engine {
	e := &Engine{
		Interval: time.Second,
		Lock:     lock,
		Step:     sim.Tick,
		stop:     make(chan struct{}),
	}
	e.SetSpeed(1)
	return e
}

// Speed returns the current multiplier. 0 means paused.
func (e *Engine) Speed() float64 {
	return math.Float64frombits(e.speed.Load())
}

// SetSpeed changes the multiplier. Negative values pause.
func (e *Engine) SetSpeed(v float64) {
	e.speed.Store(math.Float64bits(max(v, 0)))
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Run ticks until ctx is cancelled or Stop is called.
func (e *Engine) Run(ctx context.Context) {
	e.running.Store(true)
	defer e.running.Store(false)
	slog.Info("simulation engine started", "speed", e.Speed(), "interval", e.Interval)

	for {
		speed := e.Speed()
		wait := 100 * time.Millisecond
		if speed > 0 {
			start := time.Now()
			e.StepOnce()
			wait = time.Duration(float64(e.Interval)/speed) - time.Since(start)
		}

		select {
		case <-ctx.Done():
			slog.Info("simulation engine stopped", "reason", ctx.Err())
			return
		case <-e.stop:
			slog.Info("simulation engine stopped")
			return
		case <-time.After(max(wait, 0)):
		}
	}
}

// Stop halts Run. Safe to call more than once.
func (e *Engine) Stop() {
	e.once.Do(func() { close(e.stop) })
}

// StepOnce runs a single tick and its callbacks under the lock.
func (e *Engine) StepOnce() TickReport {
	if e.Lock != nil {
		e.Lock.Lock()
		defer e.Lock.Unlock()
	}

	r := e.Step()
	if e.OnTick != nil {
		e.OnTick(r)
	}
	if r.Tick%TicksPerMonth == 0 && e.OnMonth != nil {
		e.OnMonth(r.Tick)
	}
	if r.Tick%TicksPerYear == 0 && e.OnYear != nil {
		e.OnYear(r.Tick)
	}
	return r
}

// SimTime renders a tick as a calendar date. Tick 0 is Day 1, Month 1, Year 1.
func SimTime(tick uint64) string {
	day := tick%TicksPerMonth + 1
	month := tick/TicksPerMonth%12 + 1
	year := tick/TicksPerYear + 1
	return fmt.Sprintf("Day %d, Month %d, Year %d", day, month, year)
}
