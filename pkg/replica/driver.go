package replica

import (
	"context"
	"sync"
	"time"
)

// driver owns the two periodic timers. Each tick posts a message into the
// actor inbox, so ticks are handled in turn with all other inbox traffic and
// never preempt in-flight handling. The send returns once the tick is queued,
// not once it has been handled: the driver does not wait for the actor, and
// several ticks can sit in the inbox at the same time.
type driver struct {
	shipEvery time.Duration
	gcEvery   time.Duration
	post      func(envelope) error

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newDriver(shipEvery, gcEvery time.Duration, post func(envelope) error) *driver {
	return &driver{
		shipEvery: shipEvery,
		gcEvery:   gcEvery,
		post:      post,
	}
}

func (d *driver) start(ctx context.Context) {
	d.mu.Lock()
	if d.cancel != nil {
		d.mu.Unlock()
		return
	}
	ctx, d.cancel = context.WithCancel(ctx)
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ship := time.NewTicker(d.shipEvery)
		defer ship.Stop()
		gc := time.NewTicker(d.gcEvery)
		defer gc.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ship.C:
				if d.post(tryShipEnv{}) != nil {
					return
				}
			case <-gc.C:
				if d.post(gcEnv{}) != nil {
					return
				}
			}
		}
	}()
}

func (d *driver) stop() {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
}
