// Copyright © 2024 The QDAP authors

package cmd

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// newTracerProvider returns a provider that logs every span synchronously.
func newTracerProvider(log *logrus.Logger) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(spanLogger{log: log.WithField("layer", "trace")}),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
}

// spanLogger is a span exporter that writes one log entry per span.
// Failed spans are logged at warn, the rest at debug.
type spanLogger struct {
	log *logrus.Entry
}

func (l spanLogger) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		fields := logrus.Fields{
			"span":     s.Name(),
			"duration": s.EndTime().Sub(s.StartTime()).String(),
		}
		for _, kv := range s.Attributes() {
			fields[string(kv.Key)] = kv.Value.Emit()
		}
		entry := l.log.WithFields(fields)
		if status := s.Status(); status.Code == codes.Error {
			entry.WithField("error", status.Description).Warn("span")
			continue
		}
		entry.Debug("span")
	}
	return nil
}

func (spanLogger) Shutdown(context.Context) error {
	return nil
}
