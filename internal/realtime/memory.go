package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

const subscriberBuffer = 64

// MemoryBroker delivers changes to subscribers in this process only.
// A subscriber that falls behind loses events rather than blocking publishers.
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[int]chan Change
	nextID int
	closed bool
	logger *zap.Logger
}

func NewMemoryBroker(logger *zap.Logger) *MemoryBroker {
	return &MemoryBroker{
		subs:   make(map[int]chan Change),
		logger: logger.With(zap.String("component", "realtime.memory")),
	}
}

func (b *MemoryBroker) Publish(_ context.Context, change Change) error {
	b.deliver(change)
	return nil
}

func (b *MemoryBroker) deliver(change Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- change:
		default:
			b.logger.Warn("Dropping change for slow subscriber",
				zap.Int("subscriber", id),
				zap.String("type", string(change.Type)),
				zap.String("document_id", change.DocumentID))
		}
	}
}

func (b *MemoryBroker) Subscribe() (<-chan Change, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Change, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	return nil
}
