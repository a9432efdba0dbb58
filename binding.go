package prefstore

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

// Binding associates a named property of a Preferences container with its
// storage key, default value and codec. Bindings are created once, when the
// container is assembled, and never change.
type Binding[T any] struct {
	prefs  *Preferences
	key    string
	def    T
	codec  Codec[T]
	driver Driver
}

// BindingOption customizes a Binding.
type BindingOption[T any] func(*Binding[T])

// WithCodec sets the codec. Defaults to JSONCodec[T].
func WithCodec[T any](c Codec[T]) BindingOption[T] {
	return func(b *Binding[T]) {
		if c != nil {
			b.codec = c
		}
	}
}

// WithBindingDriver routes this binding to d instead of the container
// driver.
func WithBindingDriver[T any](d Driver) BindingOption[T] {
	return func(b *Binding[T]) {
		b.driver = d
	}
}

// Bind registers a property named key on p. Keys are unique per container.
func Bind[T any](p *Preferences, key string, def T, opts ...BindingOption[T]) (*Binding[T], error) {
	b := &Binding[T]{
		prefs: p,
		key:   key,
		def:   def,
		codec: JSONCodec[T]{},
	}
	for _, opt := range opts {
		opt(b)
	}
	if err := p.register(key, b.driver); err != nil {
		return nil, err
	}
	return b, nil
}

// MustBind is like Bind but panics on error. It simplifies declaring the
// bindings of a container in one place.
func MustBind[T any](p *Preferences, key string, def T, opts ...BindingOption[T]) *Binding[T] {
	b, err := Bind(p, key, def, opts...)
	if err != nil {
		panic(err)
	}
	return b
}

// Key returns the binding's name within its container.
func (b *Binding[T]) Key() string { return b.key }

// Default returns the value reported when nothing usable is stored.
func (b *Binding[T]) Default() T { return b.def }

func (b *Binding[T]) store() Driver {
	if b.driver != nil {
		return b.driver
	}
	return b.prefs.driver
}

// Get returns the stored value, or the default when it is missing,
// unreadable or cannot be decoded. Get never fails.
func (b *Binding[T]) Get(ctx context.Context) T {
	p := b.prefs
	data, err := b.store().Get(ctx, p.storageKey(b.key))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			p.logf("error", ctx, "Get %s failed: %v", b.key, err)
		}
		return b.def
	}
	v, err := b.codec.Decode(data)
	if err != nil {
		p.logf("warn", ctx, "failed to decode %s to %T: %v", b.key, b.def, err)
		return b.def
	}
	return v
}

// Set stores v and notifies the binding's subscriptions. Nothing is
// notified when encoding or the driver fails.
func (b *Binding[T]) Set(ctx context.Context, v T) error {
	p := b.prefs
	data, err := b.codec.Encode(v)
	if err != nil {
		p.logf("error", ctx, "failed to encode %s: %v", b.key, err)
		return fmt.Errorf("encode %s: %w", b.key, err)
	}
	if err := b.store().Set(ctx, p.storageKey(b.key), data); err != nil {
		p.logf("error", ctx, "Set %s failed: %v", b.key, err)
		return err
	}
	p.logf("debug", ctx, "Set %s (%d bytes)", b.key, len(data))
	p.notifier.publish(b.key)
	return nil
}

// Delete removes the stored value so Get reports the default again, and
// notifies the binding's subscriptions.
func (b *Binding[T]) Delete(ctx context.Context) error {
	p := b.prefs
	if err := b.store().Delete(ctx, p.storageKey(b.key)); err != nil {
		p.logf("error", ctx, "Delete %s failed: %v", b.key, err)
		return err
	}
	p.notifier.publish(b.key)
	return nil
}

// Subscribe starts observing the binding. The subscription is cancelled by
// Cancel or when ctx is done, whichever happens first.
func (b *Binding[T]) Subscribe(ctx context.Context) *Subscription[T] {
	s := newSubscriber()
	b.prefs.notifier.add(b.key, s)
	sub := &Subscription[T]{binding: b, s: s}
	sub.stop = context.AfterFunc(ctx, sub.cancel)
	return sub
}

// Values returns a lazy, unbounded stream of the binding's values: the
// current value first, then the value after every change. Each range over
// the sequence subscribes afresh and cancels when the loop ends.
func (b *Binding[T]) Values(ctx context.Context) iter.Seq[T] {
	return func(yield func(T) bool) {
		sub := b.Subscribe(ctx)
		defer sub.Cancel()
		for {
			v, ok := sub.Next(ctx)
			if !ok || !yield(v) {
				return
			}
		}
	}
}
