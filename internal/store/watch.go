package store

import (
	"sync"

	v1alpha1 "github.com/klubi/relay/pkg/apis/v1alpha1"
)

// watchBuffer is the per-watcher channel capacity. Events beyond it are
// dropped for that watcher.
const watchBuffer = 64

// hub fans store mutations out to watchers.
type hub struct {
	mu       sync.Mutex
	watchers map[chan v1alpha1.WatchEvent]struct{}
}

func newHub() *hub {
	return &hub{watchers: make(map[chan v1alpha1.WatchEvent]struct{})}
}

func (h *hub) subscribe() (<-chan v1alpha1.WatchEvent, func()) {
	ch := make(chan v1alpha1.WatchEvent, watchBuffer)

	h.mu.Lock()
	h.watchers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.watchers[ch]; ok {
			delete(h.watchers, ch)
			close(ch)
		}
	}
	return ch, cancel
}

func (h *hub) publish(evt v1alpha1.WatchEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.watchers {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.watchers {
		close(ch)
	}
	h.watchers = make(map[chan v1alpha1.WatchEvent]struct{})
}
