package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/community-service/internal/events"

	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// eventRecorder captures everything published on a dispatcher.
type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func newEventRecorder(dispatcher events.Dispatcher) *eventRecorder {
	rec := &eventRecorder{}
	for _, eventType := range []events.EventType{
		events.EventFeedbackCreated,
		events.EventFeatureRequestCreated,
		events.EventFeatureVoteCast,
		events.EventFeatureVoteRemoved,
		events.EventTicketCreated,
		events.EventTicketStatusChanged,
		events.EventTicketResponseAdded,
	} {
		dispatcher.Subscribe(eventType, rec.record)
	}
	return rec
}

func (r *eventRecorder) record(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]events.EventType, len(r.events))
	for i, event := range r.events {
		types[i] = event.Type
	}
	return types
}
