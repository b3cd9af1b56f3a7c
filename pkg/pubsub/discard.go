package pubsub

import (
	"context"
	"sync"
)

type discardSub struct {
	ch   chan *Event
	stop chan struct{}
}

// Discard drops every published event. Subscriptions stay open until their
// context ends or they are unsubscribed, and never deliver anything.
type Discard struct {
	mu     sync.Mutex
	subs   map[string]*discardSub
	closed bool
}

// NewDiscard creates a Discard bus.
func NewDiscard() *Discard {
	return &Discard{subs: make(map[string]*discardSub)}
}

func (d *Discard) Publish(ctx context.Context, channel string, event *Event) error {
	return nil
}

func (d *Discard) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	return d.subscribe(ctx, channel), nil
}

func (d *Discard) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	return d.subscribe(ctx, pattern), nil
}

func (d *Discard) subscribe(ctx context.Context, key string) <-chan *Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	sub := &discardSub{ch: make(chan *Event), stop: make(chan struct{})}
	if d.closed {
		close(sub.ch)
		return sub.ch
	}
	d.closeLocked(key)
	d.subs[key] = sub

	go func() {
		select {
		case <-ctx.Done():
		case <-sub.stop:
			return
		}
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.subs[key] == sub {
			d.closeLocked(key)
		}
	}()
	return sub.ch
}

func (d *Discard) Unsubscribe(ctx context.Context, channel string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeLocked(channel)
	return nil
}

func (d *Discard) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key := range d.subs {
		d.closeLocked(key)
	}
	d.closed = true
	return nil
}

func (d *Discard) closeLocked(key string) {
	if sub, ok := d.subs[key]; ok {
		close(sub.stop)
		close(sub.ch)
		delete(d.subs, key)
	}
}
