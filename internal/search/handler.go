package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/chishiki/internal/errkind"
	"github.com/hyperjump/chishiki/internal/models"
	"github.com/hyperjump/chishiki/internal/transport"
)

const sourceComponent = "search-aggregator"

// Service consumes search-requested events and publishes exactly one
// search-completed or search-failed event per request.
type Service struct {
	agg    *Aggregator
	bus    transport.Transport
	group  string
	logger *zap.Logger
}

// NewService wires the aggregator to the transport.
func NewService(agg *Aggregator, bus transport.Transport, queueGroup string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{agg: agg, bus: bus, group: queueGroup, logger: logger}
}

// Start subscribes to the search request topic.
func (s *Service) Start() (transport.Subscription, error) {
	return s.bus.Subscribe(transport.TopicSearchRequested, s.group, s.handle)
}

func (s *Service) handle(ctx context.Context, env transport.Envelope) error {
	req, err := models.ParseSearchRequest(env.Payload)
	if err != nil {
		s.publishFailed(ctx, env.CorrelationID, errkind.Wrap(errkind.KindInvalidInput, "malformed search payload", err))
		return nil
	}
	if req.CorrelationID == "" {
		req.CorrelationID = env.CorrelationID
	}
	resp, err := s.agg.Search(ctx, req)
	if err != nil {
		s.publishFailed(ctx, req.CorrelationID, err)
		return nil
	}
	s.publishCompleted(ctx, resp)
	return nil
}

func (s *Service) publishCompleted(ctx context.Context, resp *models.SearchResponse) {
	env, err := transport.NewEnvelope("search-completed", resp.CorrelationID, sourceComponent, resp)
	if err != nil {
		s.logger.Error("encode search response", zap.Error(err))
		return
	}
	if err := s.bus.Publish(ctx, transport.TopicSearchCompleted, env); err != nil {
		s.logger.Error("publish search response",
			zap.String("correlation_id", resp.CorrelationID), zap.Error(err))
	}
}

func (s *Service) publishFailed(ctx context.Context, correlationID string, cause error) {
	kind := errkind.KindOf(cause)
	payload := map[string]any{
		"correlation_id": correlationID,
		"error_kind":     string(kind),
		"error_message":  cause.Error(),
		"retry_allowed":  kind.Retryable(),
	}
	env, err := transport.NewEnvelope("search-failed", correlationID, sourceComponent, payload)
	if err != nil {
		s.logger.Error("encode search failure", zap.Error(err))
		return
	}
	if err := s.bus.Publish(ctx, transport.TopicSearchFailed, env); err != nil {
		s.logger.Error("publish search failure",
			zap.String("correlation_id", correlationID), zap.Error(err))
	}
}
