package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/community-service/internal/events"
	"github.com/spec-kit/community-service/pkg/util"
)

// publishEvent stamps and publishes a domain event, never failing the caller.
func publishEvent(ctx context.Context, dispatcher events.Dispatcher, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = dispatcher.Publish(ctx, event)
}

// storeFailure converts raw store errors into a neutral persistence
// failure, logging the cause. Domain errors (validation, duplicate
// vote, not found, forbidden) pass through untouched.
func storeFailure(logger *zap.Logger, msg string, err error, fields ...zap.Field) error {
	var domainErr *util.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	logger.Error(msg, append(fields, zap.Error(err))...)
	return util.NewPersistenceFailure(err)
}
