package push_service

import (
	"context"
	"errors"
	"fleet-push-service/models"
	"sync"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestRegistry(store TokenDocumentStore) (*Registry, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	registry := NewRegistry(store, time.Second, nil)
	registry.now = clock.Now
	return registry, clock
}

// fakeTransport returns outcomes keyed by token, defaulting to success.
type fakeTransport struct {
	mu       sync.Mutex
	outcomes map[string]models.DeliveryOutcome
	err      error
	short    bool
	block    bool
	calls    [][]string
}

func (f *fakeTransport) GetName() string {
	return "fake"
}

func (f *fakeTransport) SendMulticast(ctx context.Context, tokens []string, notification models.Notification, data map[string]string) ([]models.DeliveryOutcome, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), tokens...))
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	outcomes := make([]models.DeliveryOutcome, 0, len(tokens))
	for _, token := range tokens {
		if outcome, ok := f.outcomes[token]; ok {
			outcomes = append(outcomes, outcome)
			continue
		}
		outcomes = append(outcomes, models.DeliveryOutcome{Success: true, ErrorKind: models.DeliveryErrorNone})
	}
	if f.short {
		outcomes = outcomes[:len(outcomes)-1]
	}
	return outcomes, nil
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var errStoreDown = errors.New("store down")

// failingStore wraps a store and fails the selected operations.
type failingStore struct {
	TokenDocumentStore
	failGet    bool
	failWrite  bool
	failRemove bool
	setCalls   int
	addCalls   int
}

func (s *failingStore) Get(ctx context.Context, identity string) (*models.UserTokenRecord, error) {
	if s.failGet {
		return nil, errStoreDown
	}
	return s.TokenDocumentStore.Get(ctx, identity)
}

func (s *failingStore) Set(ctx context.Context, record *models.UserTokenRecord) error {
	s.setCalls++
	if s.failWrite {
		return errStoreDown
	}
	return s.TokenDocumentStore.Set(ctx, record)
}

func (s *failingStore) AddEntries(ctx context.Context, identity string, entries ...models.TokenEntry) error {
	s.addCalls++
	if s.failWrite {
		return errStoreDown
	}
	return s.TokenDocumentStore.AddEntries(ctx, identity, entries...)
}

func (s *failingStore) RemoveEntries(ctx context.Context, identity string, entries ...models.TokenEntry) error {
	if s.failRemove {
		return errStoreDown
	}
	return s.TokenDocumentStore.RemoveEntries(ctx, identity, entries...)
}
