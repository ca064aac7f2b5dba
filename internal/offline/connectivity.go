package offline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Connectivity tracks whether the API is reachable and notifies subscribers
// when it becomes reachable again.
type Connectivity struct {
	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]func()
}

// NewConnectivity returns a tracker in the given initial state.
func NewConnectivity(online bool) *Connectivity {
	return &Connectivity{online: online, subs: make(map[int]func())}
}

// Online reports the last known state.
func (c *Connectivity) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

// Set records the current state. Subscribers run only on an offline to
// online transition, synchronously and outside the lock.
func (c *Connectivity) Set(online bool) {
	c.mu.Lock()
	reconnected := online && !c.online
	c.online = online
	var fns []func()
	if reconnected {
		fns = make([]func(), 0, len(c.subs))
		for _, fn := range c.subs {
			fns = append(fns, fn)
		}
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// OnReconnect registers fn and returns a function that unregisters it.
func (c *Connectivity) OnReconnect(fn func()) (cancel func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Probe calls check every interval and records the outcome until ctx ends.
// The first check runs immediately.
func (c *Connectivity) Probe(ctx context.Context, interval time.Duration, check func(context.Context) error, log zerolog.Logger) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		cctx, cancel := context.WithTimeout(ctx, interval)
		err := check(cctx)
		cancel()
		if ctx.Err() != nil {
			return
		}
		if err != nil && c.Online() {
			log.Info().Err(err).Msg("connection lost")
		}
		c.Set(err == nil)

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
