package swms

import (
	"strconv"
	"sync"
	"time"
)

// IDGenerator hands out millisecond-timestamp identifiers. Two calls in the
// same millisecond get consecutive values, so ids are strictly increasing for
// the lifetime of the generator and a removed id is never handed out again.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewIDGenerator(now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{now: now}
}

func (g *IDGenerator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.now().UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}

func (g *IDGenerator) NextString() string {
	return strconv.FormatInt(g.Next(), 10)
}
