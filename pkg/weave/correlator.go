package weave

import (
	"sync"

	"github.com/google/uuid"
)

// Outcome is the terminal result of one pending request: either a decoded
// value or an error, never both.
type Outcome struct {
	Value any
	Err   error
}

type pendingRequest struct {
	ch chan Outcome
}

// Correlator matches outbound request ids to the goroutines awaiting their
// responses. Each id completes exactly once; completions for unknown ids are
// dropped. Requests never time out on their own; callers cancel via their
// context (see Session) and a connection loss drains everything.
type Correlator struct {
	mu      sync.Mutex
	pending map[string]pendingRequest
}

func NewCorrelator() *Correlator {
	return &Correlator{pending: make(map[string]pendingRequest)}
}

// NewID returns a request id that is unique among currently pending ids.
func (c *Correlator) NewID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		id := uuid.NewString()
		if _, exists := c.pending[id]; !exists {
			return id
		}
	}
}

// Register records a pending request and returns the channel its outcome
// will be delivered on. The channel receives exactly one value.
func (c *Correlator) Register(id string) <-chan Outcome {
	ch := make(chan Outcome, 1)
	c.mu.Lock()
	c.pending[id] = pendingRequest{ch: ch}
	c.mu.Unlock()
	return ch
}

// Resolve completes id with value. No-op if id is not pending.
func (c *Correlator) Resolve(id string, value any) {
	c.complete(id, Outcome{Value: value})
}

// Reject completes id with err. No-op if id is not pending.
func (c *Correlator) Reject(id string, err error) {
	c.complete(id, Outcome{Err: err})
}

// Cancel removes id without delivering an outcome. Used when the caller has
// stopped waiting (context cancellation, failed send).
func (c *Correlator) Cancel(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// RejectAll drains every pending request with err. Used on connection loss.
func (c *Correlator) RejectAll(err error) {
	c.mu.Lock()
	drained := c.pending
	c.pending = make(map[string]pendingRequest)
	c.mu.Unlock()

	for _, p := range drained {
		p.ch <- Outcome{Err: err}
	}
}

// Len reports how many requests are currently pending.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// complete removes the entry before delivering, so each id resolves at most
// once even if a duplicate response arrives.
func (c *Correlator) complete(id string, out Outcome) {
	c.mu.Lock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if ok {
		p.ch <- out
	}
}
