package common

import (
	"math/rand"
	"time"
)

type timerFactory func(time.Duration) <-chan time.Time

// ControlTimer is a resettable timer that drives periodic background work.
// Callers wait on TickCh and reset or stop the timer through the control
// channels.
type ControlTimer struct {
	timerFactory timerFactory
	TickCh       chan struct{}      //sends a signal to listening process
	ResetCh      chan time.Duration //receives instruction to reset the timer
	StopCh       chan struct{}      //receives instruction to stop the timer
	ShutdownCh   chan struct{}      //receives instruction to exit Run loop
	set          bool
}

// NewControlTimer creates a ControlTimer from a timerFactory.
func NewControlTimer(timerFactory timerFactory) *ControlTimer {
	return &ControlTimer{
		timerFactory: timerFactory,
		TickCh:       make(chan struct{}),
		ResetCh:      make(chan time.Duration),
		StopCh:       make(chan struct{}),
		ShutdownCh:   make(chan struct{}),
	}
}

// NewFixedControlTimer creates a ControlTimer that fires at the requested
// interval.
func NewFixedControlTimer() *ControlTimer {
	fixedTimeout := func(min time.Duration) <-chan time.Time {
		if min == 0 {
			return nil
		}
		return time.After(min)
	}
	return NewControlTimer(fixedTimeout)
}

// NewRandomControlTimer creates a ControlTimer that fires after a random
// duration between min and 2*min. The jitter spreads out retries from nodes
// that started at the same moment.
func NewRandomControlTimer() *ControlTimer {
	randomTimeout := func(min time.Duration) <-chan time.Time {
		if min == 0 {
			return nil
		}
		extra := (time.Duration(rand.Int63()) % min)
		return time.After(min + extra)
	}
	return NewControlTimer(randomTimeout)
}

// Run starts the timer with an initial duration and services the control
// channels until Shutdown.
func (c *ControlTimer) Run(init time.Duration) {

	setTimer := func(t time.Duration) <-chan time.Time {
		c.set = true
		return c.timerFactory(t)
	}

	timer := setTimer(init)
	for {
		select {
		case <-timer:
			select {
			case c.TickCh <- struct{}{}:
			case <-c.ShutdownCh:
				c.set = false
				return
			}
			c.set = false
		case t := <-c.ResetCh:
			timer = setTimer(t)
		case <-c.StopCh:
			timer = nil
			c.set = false
		case <-c.ShutdownCh:
			c.set = false
			return
		}
	}
}

// Shutdown stops the Run loop.
func (c *ControlTimer) Shutdown() {
	close(c.ShutdownCh)
}
