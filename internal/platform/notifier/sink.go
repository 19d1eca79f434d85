package notifier

import (
	"context"
	"log/slog"

	"github.com/hashicorp/go-multierror"
)

// Sink receives every indicator change
type Sink interface {
	Show(ctx context.Context, ind Indicator) error
}

// LogSink writes indicator changes to the log
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With("component", "notifications")}
}

func (s *LogSink) Show(_ context.Context, ind Indicator) error {
	s.logger.Info(ind.Message,
		"key", ind.Key,
		"tx_id", ind.TxID,
		"state", ind.State,
		"detail", ind.Detail)
	return nil
}

// MultiSink fans an indicator out to several sinks
type MultiSink []Sink

func (m MultiSink) Show(ctx context.Context, ind Indicator) error {
	var result *multierror.Error
	for _, s := range m {
		if err := s.Show(ctx, ind); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
