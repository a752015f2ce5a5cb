package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/chishiki/internal/errkind"
	"github.com/hyperjump/chishiki/internal/models"
	"github.com/hyperjump/chishiki/internal/transport"
)

const sourceComponent = "indexing-orchestrator"

func (o *Orchestrator) publishCompleted(ctx context.Context, completed *models.IndexCompleted) {
	env, err := transport.NewEnvelope("document-index-completed", completed.CorrelationID, sourceComponent, completed)
	if err != nil {
		o.logger.Error("encode completed event", zap.Error(err))
		return
	}
	if err := o.bus.Publish(ctx, transport.TopicDocumentIndexCompleted, env); err != nil {
		o.logger.Error("publish completed event",
			zap.String("correlation_id", completed.CorrelationID), zap.Error(err))
	}
}

func (o *Orchestrator) publishFailed(ctx context.Context, correlationID string, cause error, partial *models.IndexCompleted) {
	o.metrics.EventsFailed.Inc()
	kind := errkind.KindOf(cause)
	failed := &models.IndexFailed{
		CorrelationID:   correlationID,
		ErrorKind:       string(kind),
		ErrorMessage:    cause.Error(),
		FailedComponent: errkind.ComponentOf(cause),
		RetryAllowed:    kind.Retryable(),
		PartialResults:  partial,
	}
	if kind.Retryable() {
		failed.SuggestedAction = "retry the request; the failure is transient"
	}
	env, err := transport.NewEnvelope("document-index-failed", correlationID, sourceComponent, failed)
	if err != nil {
		o.logger.Error("encode failed event", zap.Error(err))
		return
	}
	if err := o.bus.Publish(ctx, transport.TopicDocumentIndexFailed, env); err != nil {
		o.logger.Error("publish failed event",
			zap.String("correlation_id", correlationID), zap.Error(err))
	}
}
