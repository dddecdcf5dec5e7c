package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/community-service/internal/events"
	"github.com/spec-kit/community-service/internal/snapshot"
)

// SnapshotWorker persists audit snapshots for created entities. It
// drains a bounded queue on its own goroutine so publishers never wait
// on the filesystem; failures are logged and never surfaced.
type SnapshotWorker struct {
	writer *snapshot.Writer
	logger *zap.Logger
	queue  chan events.Event
	wg     sync.WaitGroup
}

// StartSnapshotWorker subscribes to creation events and begins draining.
func StartSnapshotWorker(dispatcher events.Dispatcher, writer *snapshot.Writer, logger *zap.Logger, queueDepth int) *SnapshotWorker {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	w := &SnapshotWorker{
		writer: writer,
		logger: logger,
		queue:  make(chan events.Event, queueDepth),
	}

	dispatcher.Subscribe(events.EventFeedbackCreated, w.enqueue)
	dispatcher.Subscribe(events.EventFeatureRequestCreated, w.enqueue)
	dispatcher.Subscribe(events.EventTicketCreated, w.enqueue)

	w.wg.Add(1)
	go w.run()
	return w
}

func (w *SnapshotWorker) enqueue(_ context.Context, event events.Event) error {
	select {
	case w.queue <- event:
	default:
		w.logger.Warn("snapshot queue full, dropping snapshot",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID))
	}
	return nil
}

func (w *SnapshotWorker) run() {
	defer w.wg.Done()
	for event := range w.queue {
		w.handle(event)
	}
}

func (w *SnapshotWorker) handle(event events.Event) {
	var err error
	switch payload := event.Payload.(type) {
	case events.FeedbackCreatedPayload:
		err = w.writer.WriteFeedback(payload.Feedback)
	case events.FeatureRequestCreatedPayload:
		err = w.writer.WriteFeatureRequest(payload.Request)
	case events.TicketCreatedPayload:
		err = w.writer.WriteTicket(payload.Ticket)
	default:
		w.logger.Warn("unexpected snapshot payload", zap.String("event_type", string(event.Type)))
		return
	}
	if err != nil {
		w.logger.Error("failed to write snapshot",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
}

// Stop drains remaining snapshots and stops the worker.
func (w *SnapshotWorker) Stop() {
	close(w.queue)
	w.wg.Wait()
}
