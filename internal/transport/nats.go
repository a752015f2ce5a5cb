package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// headerRetryCount tracks redeliveries of one envelope.
const headerRetryCount = "Chishiki-Retry-Count"

// NATSTransport is the production transport. Handler failures are
// republished to the same subject with an incremented retry header; after
// maxRedeliver attempts the envelope lands on the subject's dead-letter
// queue instead of being lost.
type NATSTransport struct {
	conn         *nats.Conn
	maxRedeliver int
	logger       *zap.Logger
}

// NATSOption configures a NATSTransport.
type NATSOption func(*NATSTransport)

// WithLogger sets a logger for delivery failures.
func WithLogger(l *zap.Logger) NATSOption {
	return func(t *NATSTransport) { t.logger = l }
}

// NewNATSTransport connects to the NATS server at url.
func NewNATSTransport(url string, maxRedeliver int, opts ...NATSOption) (*NATSTransport, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	if maxRedeliver <= 0 {
		maxRedeliver = 3
	}
	t := &NATSTransport{conn: conn, maxRedeliver: maxRedeliver}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Publish sends env on topic.
func (t *NATSTransport) Publish(ctx context.Context, topic string, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	msg := nats.NewMsg(topic)
	msg.Data = data
	if err := t.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers handler on topic within a queue group.
func (t *NATSTransport) Subscribe(topic, group string, handler Handler) (Subscription, error) {
	sub, err := t.conn.QueueSubscribe(topic, group, func(msg *nats.Msg) {
		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			if t.logger != nil {
				t.logger.Error("dropping undecodable envelope",
					zap.String("topic", topic), zap.Error(err))
			}
			return
		}
		if err := handler(context.Background(), env); err != nil {
			t.redeliver(topic, msg, env, err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	return sub, nil
}

func (t *NATSTransport) redeliver(topic string, msg *nats.Msg, env Envelope, cause error) {
	retries := 0
	if v := msg.Header.Get(headerRetryCount); v != "" {
		retries, _ = strconv.Atoi(v)
	}
	retries++
	out := nats.NewMsg(topic)
	out.Data = msg.Data
	out.Header.Set(headerRetryCount, strconv.Itoa(retries))
	if retries >= t.maxRedeliver {
		out.Subject = topic + DLQSuffix
	}
	if t.logger != nil {
		t.logger.Warn("handler failed, redelivering",
			zap.String("topic", out.Subject),
			zap.String("correlation_id", env.CorrelationID),
			zap.Int("retries", retries),
			zap.Error(cause))
	}
	if err := t.conn.PublishMsg(out); err != nil && t.logger != nil {
		t.logger.Error("redelivery publish failed",
			zap.String("topic", out.Subject), zap.Error(err))
	}
}

// Close drains and closes the connection.
func (t *NATSTransport) Close() error {
	if err := t.conn.Drain(); err != nil {
		t.conn.Close()
		return err
	}
	return nil
}
