package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/platinummonkey/modcheck/pkg/finding"
)

// OTelMetrics mirrors the run counters as OpenTelemetry instruments.
type OTelMetrics struct {
	runs        metric.Int64Counter
	runDuration metric.Float64Histogram
	findings    metric.Int64Counter
	unfixed     metric.Int64Histogram
}

// NewOTelMetrics creates the instruments on the global meter provider.
func NewOTelMetrics() (*OTelMetrics, error) {
	return NewOTelMetricsWithMeter(otel.Meter("github.com/platinummonkey/modcheck"))
}

// NewOTelMetricsWithMeter creates the instruments on meter.
func NewOTelMetricsWithMeter(meter metric.Meter) (*OTelMetrics, error) {
	m := &OTelMetrics{}
	var err error

	m.runs, err = meter.Int64Counter(
		"modcheck.runs",
		metric.WithDescription("Total number of runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create runs counter: %w", err)
	}

	m.runDuration, err = meter.Float64Histogram(
		"modcheck.run.duration",
		metric.WithDescription("Run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run duration histogram: %w", err)
	}

	m.findings, err = meter.Int64Counter(
		"modcheck.findings",
		metric.WithDescription("Total number of reported findings"),
		metric.WithUnit("{finding}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create findings counter: %w", err)
	}

	m.unfixed, err = meter.Int64Histogram(
		"modcheck.run.unfixed",
		metric.WithDescription("Unfixed findings per run"),
		metric.WithUnit("{finding}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create unfixed histogram: %w", err)
	}

	return m, nil
}

// RunFinished records the outcome of a run.
func (m *OTelMetrics) RunFinished(ctx context.Context, outcome *finding.Outcome, duration time.Duration) {
	outcomeAttr := metric.WithAttributes(attribute.String("outcome", OutcomeLabel(outcome)))
	m.runs.Add(ctx, 1, outcomeAttr)
	m.runDuration.Record(ctx, duration.Seconds(), outcomeAttr)
	m.unfixed.Record(ctx, int64(outcome.Unfixed))
	for _, r := range outcome.Results {
		m.findings.Add(ctx, 1, metric.WithAttributes(
			attribute.String("rule", r.RuleID),
			attribute.Bool("fixed", r.Fixed),
		))
	}
}
