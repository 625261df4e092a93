package audit

import (
	"context"
	"sync"
)

// MemoryRepo keeps events in memory. Tests use it in place of PostgresRepo.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

// FailWith makes subsequent appends return err.
func (r *MemoryRepo) FailWith(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func (r *MemoryRepo) Append(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of the events recorded for companyID, or of all
// events when companyID is empty.
func (r *MemoryRepo) Events(companyID string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if companyID == "" || e.CompanyID == companyID {
			out = append(out, e)
		}
	}
	return out
}
