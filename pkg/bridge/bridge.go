// Package bridge exposes the service to embedding hosts through string
// calls and a topic/payload event callback.
package bridge

import "sync"

type NotifyFunc func(topic string, payload string)

var (
	mu   sync.RWMutex
	impl NotifyFunc
)

// SetNotifyImpl installs the host callback. nil detaches it.
func SetNotifyImpl(f NotifyFunc) {
	mu.Lock()
	impl = f
	mu.Unlock()
}

// Notify forwards an event to the host if one is attached.
func Notify(topic string, payload string) {
	mu.RLock()
	f := impl
	mu.RUnlock()
	if f != nil {
		f(topic, payload)
	}
}
