package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"go.uber.org/multierr"

	"github.com/angelmondragon/skillbridge-billing/pkg/logger"
)

// Alert kinds raised by billing flows.
const (
	KindProvisioningFailed   = "plan_provisioning_failed"
	KindSubscriptionFailed   = "subscription_creation_failed"
	KindReconciliationFailed = "subscription_reconciliation_failed"
	KindConfigurationMissing = "payment_configuration_missing"
)

// Event is an operator-facing billing failure.
type Event struct {
	Kind       string         `json:"kind"`
	UserID     string         `json:"userId,omitempty"`
	Message    string         `json:"message"`
	Code       string         `json:"code,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// Sink delivers alerts. Delivery failures never change the caller's outcome.
type Sink interface {
	Notify(ctx context.Context, event Event) error
}

// LogSink writes alerts to the structured log.
type LogSink struct {
	logg *logger.Logger
}

func NewLogSink(logg *logger.Logger) *LogSink {
	return &LogSink{logg: logg}
}

func (s *LogSink) Notify(ctx context.Context, event Event) error {
	if s == nil || s.logg == nil {
		return nil
	}
	fields := map[string]any{
		"alert_kind": event.Kind,
		"alert_code": event.Code,
	}
	if event.UserID != "" {
		fields["user_id"] = event.UserID
	}
	for k, v := range event.Details {
		fields["alert_"+k] = v
	}
	s.logg.Warn(s.logg.WithFields(ctx, fields), event.Message)
	return nil
}

type topicPublisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

type pubsubPublisher struct {
	p *pubsub.Publisher
}

func (p pubsubPublisher) Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	return p.p.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs}).Get(ctx)
}

// PubSubSink publishes alerts as JSON messages.
type PubSubSink struct {
	publisher topicPublisher
}

func NewPubSubSink(publisher *pubsub.Publisher) (*PubSubSink, error) {
	if publisher == nil {
		return nil, errors.New("pubsub publisher required")
	}
	return &PubSubSink{publisher: pubsubPublisher{p: publisher}}, nil
}

func (s *PubSubSink) Notify(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = s.publisher.Publish(ctx, data, map[string]string{"kind": event.Kind})
	return err
}

// Fanout notifies every sink and joins their failures.
type Fanout []Sink

func (f Fanout) Notify(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	var errs error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		errs = multierr.Append(errs, sink.Notify(ctx, event))
	}
	return errs
}
