package prefstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Option customizes Preferences behavior.
type Option func(*Preferences)

// WithDriver specifies the backing store.
// If not provided, NewMemory() will be used.
func WithDriver(d Driver) Option {
	return func(p *Preferences) {
		if d != nil {
			p.driver = d
		}
	}
}

// WithLogger specifies a logger for operation logging.
// If not provided, a no-op logger is used (no logging).
func WithLogger(logger Logger) Option {
	return func(p *Preferences) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithLogTag sets a tag prefix for all log messages.
// Useful for identifying the source of logs when several containers share
// a logger.
func WithLogTag(tag string) Option {
	return func(p *Preferences) {
		p.logTag = tag
	}
}

// WithNamespace prefixes every storage key with "namespace:" so several
// containers can share one driver.
func WithNamespace(namespace string) Option {
	return func(p *Preferences) {
		p.namespace = namespace
	}
}

// Preferences is a container of named, typed bindings. Writes through a
// binding are broadcast to the subscriptions of that binding only.
type Preferences struct {
	driver    Driver
	logger    Logger
	logTag    string
	namespace string

	mu sync.RWMutex
	// bindings maps a binding key to its driver override, nil when the
	// binding uses the container driver.
	bindings map[string]Driver

	notifier *notifier
}

// NewPreferences creates an empty container.
func NewPreferences(opts ...Option) *Preferences {
	p := &Preferences{
		driver:   NewMemory(),
		logger:   defaultLogger,
		bindings: make(map[string]Driver),
		notifier: newNotifier(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Driver returns the container's backing store.
func (p *Preferences) Driver() Driver { return p.driver }

func (p *Preferences) storageKey(key string) string {
	if p.namespace == "" {
		return key
	}
	return p.namespace + ":" + key
}

func (p *Preferences) bindingKey(storageKey string) (string, bool) {
	if p.namespace == "" {
		return storageKey, true
	}
	return strings.CutPrefix(storageKey, p.namespace+":")
}

func (p *Preferences) logf(level string, ctx context.Context, format string, args ...interface{}) {
	logTagged(p.logger, p.logTag, level, ctx, format, args...)
}

func (p *Preferences) register(key string, d Driver) error {
	if key == "" {
		return ErrInvalidKey
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.bindings[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateBinding, key)
	}
	p.bindings[key] = d
	return nil
}

// Bindings returns the registered binding keys, sorted.
func (p *Preferences) Bindings() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	keys := make([]string, 0, len(p.bindings))
	for k := range p.bindings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Keys returns the keys stored in the container's namespace on its driver,
// with the namespace stripped.
func (p *Preferences) Keys(ctx context.Context) ([]string, error) {
	full, err := p.driver.Keys(ctx, p.namespace, "*")
	if err != nil {
		p.logf("error", ctx, "Keys failed: %v", err)
		return nil, err
	}
	keys := make([]string, 0, len(full))
	for _, k := range full {
		if bk, ok := p.bindingKey(k); ok {
			keys = append(keys, bk)
		}
	}
	return keys, nil
}

// Reset removes every stored value of the container, including bindings
// routed to other drivers, and notifies all bindings.
func (p *Preferences) Reset(ctx context.Context) error {
	if err := p.driver.Clear(ctx, p.namespace); err != nil {
		p.logf("error", ctx, "Reset failed: %v", err)
		return err
	}
	p.mu.RLock()
	overrides := make(map[string]Driver)
	for k, d := range p.bindings {
		if d != nil {
			overrides[k] = d
		}
	}
	p.mu.RUnlock()
	for k, d := range overrides {
		if err := d.Delete(ctx, p.storageKey(k)); err != nil {
			p.logf("error", ctx, "Reset %s failed: %v", k, err)
		}
	}
	for _, k := range p.Bindings() {
		p.notifier.publish(k)
	}
	return nil
}

// Watch turns writes made to the container driver by other processes into
// notifications for the affected bindings. It blocks until ctx is done and
// returns ErrWatchUnsupported when the driver cannot watch.
func (p *Preferences) Watch(ctx context.Context) error {
	w, ok := p.driver.(Watcher)
	if !ok {
		return ErrWatchUnsupported
	}
	return w.Watch(ctx, func(keys []string) {
		for _, sk := range keys {
			k, ok := p.bindingKey(sk)
			if !ok {
				continue
			}
			p.mu.RLock()
			d, registered := p.bindings[k]
			p.mu.RUnlock()
			if registered && d == nil {
				p.notifier.publish(k)
			}
		}
	})
}
