package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"TradeSentinel/internal/metrics"
	"TradeSentinel/internal/model"
)

var errProviderPanic = errors.New("provider panicked")

// ResilientSource tries providers in order and returns the first non-empty series.
type ResilientSource struct {
	providers []Provider
	metrics   *metrics.Metrics
}

// NewResilientSource requires at least one provider.
func NewResilientSource(providers ...Provider) (*ResilientSource, error) {
	if len(providers) == 0 {
		return nil, &model.ConfigError{Field: "data_sources", Reason: "at least one provider is required"}
	}
	return &ResilientSource{providers: providers}, nil
}

// WithMetrics attaches per-provider outcome counters.
func (s *ResilientSource) WithMetrics(m *metrics.Metrics) *ResilientSource {
	s.metrics = m
	return s
}

// Providers lists provider names in fallback order.
func (s *ResilientSource) Providers() []string {
	names := make([]string, len(s.providers))
	for i, p := range s.providers {
		names[i] = p.Name()
	}
	return names
}

// FetchHistoricalData returns the first provider's non-empty series unchanged.
// Provider errors, panics and empty results fall through to the next provider;
// only exhaustion is reported, as an empty series plus ErrAllProvidersFailed.
func (s *ResilientSource) FetchHistoricalData(ctx context.Context, symbol string, tf model.Timeframe, start, end time.Time) (model.PriceSeries, error) {
	if _, err := model.ParseTimeframe(string(tf)); err != nil {
		return model.PriceSeries{}, err
	}
	start, end = start.UTC(), end.UTC()

	causes := make([]error, 0, len(s.providers))
	for _, p := range s.providers {
		if err := ctx.Err(); err != nil {
			return model.PriceSeries{Symbol: symbol, Timeframe: tf}, err
		}

		series, err := s.try(ctx, p, symbol, tf, start, end)
		switch {
		case errors.Is(err, model.ErrConfiguration):
			return model.PriceSeries{}, err
		case errors.Is(err, errProviderPanic):
			log.Printf("[ERROR] %s: %v", p.Name(), err)
			s.metrics.ProviderResult(p.Name(), metrics.OutcomePanic)
			causes = append(causes, err)
		case err != nil:
			log.Printf("[WARN] %s failed for %s: %v", p.Name(), symbol, err)
			s.metrics.ProviderResult(p.Name(), metrics.OutcomeError)
			causes = append(causes, err)
		case series.Empty():
			log.Printf("[WARN] %s returned no data for %s (%s)", p.Name(), symbol, tf)
			s.metrics.ProviderResult(p.Name(), metrics.OutcomeEmpty)
			causes = append(causes, fmt.Errorf("%s: empty result", p.Name()))
		default:
			s.metrics.ProviderResult(p.Name(), metrics.OutcomeOK)
			return series, nil
		}
	}

	log.Printf("[ERROR] all %d providers failed for %s (%s)", len(s.providers), symbol, tf)
	err := errors.Join(append([]error{model.ErrAllProvidersFailed}, causes...)...)
	return model.PriceSeries{Symbol: symbol, Timeframe: tf}, fmt.Errorf("fetch %s: %w", symbol, err)
}

func (s *ResilientSource) try(ctx context.Context, p Provider, symbol string, tf model.Timeframe, start, end time.Time) (series model.PriceSeries, err error) {
	defer func() {
		if r := recover(); r != nil {
			series = model.PriceSeries{}
			err = fmt.Errorf("%s: %w: %v", p.Name(), errProviderPanic, r)
		}
	}()
	return p.FetchHistoricalData(ctx, symbol, tf, start, end)
}
