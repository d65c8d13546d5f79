package notify

import (
	"context"
	"sync"

	"fleetdocs/internal/document/models"
)

// Recorder is an in-memory notifier. It keeps every accepted reminder and can
// be told to fail for given recipients.
type Recorder struct {
	mu      sync.Mutex
	sent    []models.Reminder
	failFor map[string]error
}

func NewRecorder() *Recorder {
	return &Recorder{failFor: make(map[string]error)}
}

// FailFor makes every Send to recipient return err; a nil err clears it.
func (r *Recorder) FailFor(recipient string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failFor, recipient)
		return
	}
	r.failFor[recipient] = err
}

func (r *Recorder) Send(_ context.Context, reminder models.Reminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failFor[reminder.Recipient]; ok {
		return err
	}
	r.sent = append(r.sent, reminder)
	return nil
}

func (r *Recorder) Sent() []models.Reminder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Reminder(nil), r.sent...)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}
