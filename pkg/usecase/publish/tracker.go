package publish

import (
	"sync"

	"github.com/m-mizutani/drivelens/pkg/model"
)

// Tracker records the status of each publish request
type Tracker struct {
	mu       sync.RWMutex
	statuses map[model.RequestID]model.PublishStatus
	inFlight int
}

func NewTracker() *Tracker {
	return &Tracker{statuses: make(map[model.RequestID]model.PublishStatus)}
}

// Status returns the status of id. Unknown requests are idle.
func (t *Tracker) Status(id model.RequestID) model.PublishStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if s, ok := t.statuses[id]; ok {
		return s
	}
	return model.PublishStatusIdle
}

// Busy reports whether any request is in flight
func (t *Tracker) Busy() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.inFlight > 0
}

func (t *Tracker) begin(id model.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statuses[id] = model.PublishStatusInFlight
	t.inFlight++
}

func (t *Tracker) settle(id model.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.statuses[id] == model.PublishStatusInFlight {
		t.inFlight--
	}
	t.statuses[id] = model.PublishStatusSettled
}
