package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/skillbridge-billing/pkg/config"
	"github.com/angelmondragon/skillbridge-billing/pkg/logger"
)

type fakePublisher struct {
	data  []byte
	attrs map[string]string
	err   error
}

func (f *fakePublisher) Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	f.data = data
	f.attrs = attrs
	return "msg-1", f.err
}

type failingSink struct{ err error }

func (s failingSink) Notify(context.Context, Event) error { return s.err }

func TestPubSubSinkPublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	sink := &PubSubSink{publisher: pub}
	at := time.Date(2026, 6, 1, 2, 0, 0, 0, time.UTC)
	err := sink.Notify(context.Background(), Event{
		Kind:       KindReconciliationFailed,
		UserID:     "user-1",
		Message:    "sync failed",
		Details:    map[string]any{"issue": "paypal_sync_failed"},
		OccurredAt: at,
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if pub.attrs["kind"] != KindReconciliationFailed {
		t.Fatalf("expected kind attribute, got %v", pub.attrs)
	}
	var decoded Event
	if err := json.Unmarshal(pub.data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.UserID != "user-1" || decoded.Details["issue"] != "paypal_sync_failed" || !decoded.OccurredAt.Equal(at) {
		t.Fatalf("unexpected payload %+v", decoded)
	}
}

func TestFanoutCollectsFailures(t *testing.T) {
	pub := &fakePublisher{}
	first := errors.New("first")
	second := errors.New("second")
	f := Fanout{NewLogSink(logger.Nop()), failingSink{err: first}, nil, &PubSubSink{publisher: pub}, failingSink{err: second}}

	err := f.Notify(context.Background(), Event{Kind: KindProvisioningFailed, Message: "boom"})
	if got := multierr.Errors(err); len(got) != 2 {
		t.Fatalf("expected two joined errors, got %v", got)
	}
	if pub.data == nil {
		t.Fatal("healthy sinks should still be notified")
	}
	var decoded Event
	if err := json.Unmarshal(pub.data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.OccurredAt.IsZero() {
		t.Fatal("expected occurredAt to be stamped")
	}
}

func TestNewPubSubSinkRequiresPublisher(t *testing.T) {
	if _, err := NewPubSubSink(nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewSinkWithoutTopicLogsOnly(t *testing.T) {
	cfg := &config.Config{}
	sink, closeFn, err := NewSink(context.Background(), cfg, logger.Nop())
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	if _, ok := sink.(*LogSink); !ok {
		t.Fatalf("expected log sink, got %T", sink)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
