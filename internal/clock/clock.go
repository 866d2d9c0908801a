// ABOUTME: Injectable time source for timer-driven components
// ABOUTME: Wraps clockwork so tests can drive timers with a fake clock

package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the time source components depend on. Tests pass a
// *clockwork.FakeClock.
type Clock = clockwork.Clock

// Timer is a pending AfterFunc call.
type Timer = clockwork.Timer

// Real returns a Clock backed by the time package.
func Real() Clock {
	return clockwork.NewRealClock()
}

// Every calls fn on each tick of a d-period ticker until the returned stop
// function is called. Calls run on one goroutine, so they never overlap;
// ticks that arrive while fn is running are coalesced.
func Every(c Clock, d time.Duration, fn func()) (stop func()) {
	ticker := c.NewTicker(d)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.Chan():
			}
			select {
			case <-done:
				return
			default:
			}
			fn()
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}
