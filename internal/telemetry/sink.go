package telemetry

import (
	"context"

	"github.com/flemzord/parrot/internal/channel"
)

// InstrumentSink wraps s so that every call is counted in m.
// It returns s unchanged when m is nil.
func InstrumentSink(s channel.Sink, m *Metrics) channel.Sink {
	if m == nil {
		return s
	}
	return &instrumentedSink{next: s, metrics: m}
}

type instrumentedSink struct {
	next    channel.Sink
	metrics *Metrics
}

func (s *instrumentedSink) SendMessage(ctx context.Context, chatID, text string) (channel.MessageRef, error) {
	ref, err := s.next.SendMessage(ctx, chatID, text)
	s.metrics.SinkCall("send", err)
	return ref, err
}

func (s *instrumentedSink) EditMessage(ctx context.Context, ref channel.MessageRef, text string) error {
	err := s.next.EditMessage(ctx, ref, text)
	s.metrics.SinkCall("edit", err)
	return err
}

func (s *instrumentedSink) SendActivity(ctx context.Context, chatID string, activity channel.Activity) error {
	err := s.next.SendActivity(ctx, chatID, activity)
	s.metrics.SinkCall("activity", err)
	return err
}
