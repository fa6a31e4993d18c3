package tracing

import (
	"example.com/resto/services/kitchen/config"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Tracer defines the interface for tracing
type Tracer interface {
	StartTransaction(name string) *newrelic.Transaction
	StartSpan(name string, transaction *newrelic.Transaction) *newrelic.Segment
	EndTransaction(transaction *newrelic.Transaction)
	RecordError(txn *newrelic.Transaction, err error)
	AddAttribute(txn *newrelic.Transaction, key string, value interface{})
	Application() *newrelic.Application
}

// NewRelicTracer implements Tracer using New Relic
type NewRelicTracer struct {
	app     *newrelic.Application
	enabled bool
}

// NewTracer creates a new tracer; without a license key it is a no-op.
func NewTracer(cfg config.TracingConfig) (Tracer, error) {
	if cfg.LicenseKey == "" {
		log.Warn().Msg("New Relic license key not provided, tracing will be disabled")
		return &NewRelicTracer{enabled: false}, nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(cfg.DistribTracing),
		newrelic.ConfigAppLogForwardingEnabled(cfg.LogEnabled),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize New Relic")
	}

	return &NewRelicTracer{
		app:     app,
		enabled: true,
	}, nil
}

// StartTransaction starts a new transaction
func (t *NewRelicTracer) StartTransaction(name string) *newrelic.Transaction {
	if !t.enabled || t.app == nil {
		return nil
	}
	return t.app.StartTransaction(name)
}

// StartSpan starts a new segment within a transaction
func (t *NewRelicTracer) StartSpan(name string, transaction *newrelic.Transaction) *newrelic.Segment {
	if !t.enabled || transaction == nil {
		return &newrelic.Segment{}
	}
	return transaction.StartSegment(name)
}

// EndTransaction ends a transaction
func (t *NewRelicTracer) EndTransaction(transaction *newrelic.Transaction) {
	if !t.enabled || transaction == nil {
		return
	}
	transaction.End()
}

// RecordError records an error in a transaction
func (t *NewRelicTracer) RecordError(txn *newrelic.Transaction, err error) {
	if !t.enabled || txn == nil || err == nil {
		return
	}
	txn.NoticeError(err)
}

// AddAttribute adds an attribute to a transaction
func (t *NewRelicTracer) AddAttribute(txn *newrelic.Transaction, key string, value interface{}) {
	if !t.enabled || txn == nil {
		return
	}
	txn.AddAttribute(key, value)
}

// Application exposes the underlying agent for HTTP middleware
// integration. Nil when tracing is disabled.
func (t *NewRelicTracer) Application() *newrelic.Application {
	if !t.enabled {
		return nil
	}
	return t.app
}

// Disabled returns a tracer that records nothing. Used as the fallback
// when agent initialization fails.
func Disabled() Tracer {
	return &NewRelicTracer{enabled: false}
}
