package settlement

import (
	"time"

	"bookingpay/internal/models"

	"go.uber.org/zap"
)

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordTransition(models.PaymentStatus, models.PaymentStatus) {}
func (n *NoopMetricsCollector) RecordProcessorCall(string, bool, time.Duration)             {}
func (n *NoopMetricsCollector) RecordTransfer(string, bool)                                 {}
func (n *NoopMetricsCollector) RecordRefusedCharge()                                        {}

// LogMetricsCollector writes settlement events to a zap logger at debug
// level, except refused charges which are warnings.
type LogMetricsCollector struct {
	log *zap.Logger
}

func NewLogMetricsCollector(log *zap.Logger) *LogMetricsCollector {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogMetricsCollector{log: log.Named("metrics")}
}

func (m *LogMetricsCollector) RecordTransition(from, to models.PaymentStatus) {
	m.log.Debug("payment transition", zap.String("from", string(from)), zap.String("to", string(to)))
}

func (m *LogMetricsCollector) RecordProcessorCall(op string, ok bool, duration time.Duration) {
	m.log.Debug("processor call", zap.String("op", op), zap.Bool("ok", ok), zap.Duration("duration", duration))
}

func (m *LogMetricsCollector) RecordTransfer(kind string, ok bool) {
	m.log.Debug("transfer", zap.String("kind", kind), zap.Bool("ok", ok))
}

func (m *LogMetricsCollector) RecordRefusedCharge() {
	m.log.Warn("charge refused on a completed payment")
}
