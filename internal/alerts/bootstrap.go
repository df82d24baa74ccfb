package alerts

import (
	"context"

	"github.com/angelmondragon/skillbridge-billing/pkg/config"
	"github.com/angelmondragon/skillbridge-billing/pkg/logger"
	"github.com/angelmondragon/skillbridge-billing/pkg/pubsub"
)

// NewSink always logs alerts and also publishes them when an alerts topic is
// configured. The returned close func flushes and releases the publisher.
func NewSink(ctx context.Context, cfg *config.Config, logg *logger.Logger) (Sink, func() error, error) {
	logSink := NewLogSink(logg)
	if !cfg.Alerts.Enabled() {
		return logSink, func() error { return nil }, nil
	}

	client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.Alerts.Topic, logg)
	if err != nil {
		return nil, nil, err
	}
	publisher := client.Publisher()
	pubSink, err := NewPubSubSink(publisher)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	closeFn := func() error {
		publisher.Stop()
		return client.Close()
	}
	return Fanout{logSink, pubSink}, closeFn, nil
}
